package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// FileWatcher monitors a single file for changes and invokes a callback.
// Used to pick up external edits to the persisted thresholds file.
type FileWatcher struct {
	path        string
	watcher     *fsnotify.Watcher
	stopChan    chan struct{}
	stopOnce    sync.Once
	mu          sync.RWMutex
	lastModTime time.Time
	onChange    func()
}

// NewFileWatcher creates a watcher for path. The callback runs on the
// watcher goroutine; keep it short.
func NewFileWatcher(path string, onChange func()) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &FileWatcher{
		path:     path,
		watcher:  watcher,
		stopChan: make(chan struct{}),
		onChange: onChange,
	}

	if stat, err := os.Stat(path); err == nil {
		fw.lastModTime = stat.ModTime()
	}

	return fw, nil
}

// Start begins watching. The parent directory is watched so that atomic
// replace-by-rename writes are observed.
func (fw *FileWatcher) Start() error {
	dir := filepath.Dir(fw.path)
	if err := fw.watcher.Add(dir); err != nil {
		log.Warn().Err(err).Str("path", dir).Msg("Failed to watch directory, falling back to polling")
		go fw.pollForChanges()
		return nil
	}

	go fw.watchForChanges()
	log.Info().Str("path", fw.path).Msg("Started watching file for changes")
	return nil
}

// Stop shuts the watcher down.
func (fw *FileWatcher) Stop() {
	fw.stopOnce.Do(func() {
		close(fw.stopChan)
		if err := fw.watcher.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close file watcher")
		}
	})
}

func (fw *FileWatcher) watchForChanges() {
	// Debounce: editors and atomic saves produce bursts of events.
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-fw.stopChan:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(fw.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, fw.fireIfModified)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("path", fw.path).Msg("File watcher error")
		}
	}
}

// pollForChanges is the fallback when inotify is unavailable.
func (fw *FileWatcher) pollForChanges() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-fw.stopChan:
			return
		case <-ticker.C:
			fw.fireIfModified()
		}
	}
}

func (fw *FileWatcher) fireIfModified() {
	stat, err := os.Stat(fw.path)
	if err != nil {
		return
	}

	fw.mu.Lock()
	modified := stat.ModTime().After(fw.lastModTime)
	if modified {
		fw.lastModTime = stat.ModTime()
	}
	fw.mu.Unlock()

	if modified && fw.onChange != nil {
		fw.onChange()
	}
}
