package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitForChange(t *testing.T, changed <-chan struct{}) {
	t.Helper()
	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("change callback never fired")
	}
}

func TestFileWatcherDetectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cpu": 80}`), 0o600))

	changed := make(chan struct{}, 8)
	fw, err := NewFileWatcher(path, func() { changed <- struct{}{} })
	require.NoError(t, err)
	defer fw.Stop()
	require.NoError(t, fw.Start())

	// Modification times need to move forward for the change to register.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{"cpu": 90}`), 0o600))

	waitForChange(t, changed)
}

func TestFileWatcherDetectsAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thresholds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cpu": 80}`), 0o600))

	changed := make(chan struct{}, 8)
	fw, err := NewFileWatcher(path, func() { changed <- struct{}{} })
	require.NoError(t, err)
	defer fw.Stop()
	require.NoError(t, fw.Start())

	time.Sleep(20 * time.Millisecond)
	tmp := filepath.Join(dir, "thresholds.json.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(`{"cpu": 95}`), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	waitForChange(t, changed)
}

func TestFileWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thresholds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cpu": 80}`), 0o600))

	changed := make(chan struct{}, 8)
	fw, err := NewFileWatcher(path, func() { changed <- struct{}{} })
	require.NoError(t, err)
	defer fw.Stop()
	require.NoError(t, fw.Start())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0o600))

	select {
	case <-changed:
		t.Fatal("callback fired for an unrelated file")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestFileWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.json")

	fw, err := NewFileWatcher(path, nil)
	require.NoError(t, err)
	require.NoError(t, fw.Start())

	fw.Stop()
	fw.Stop()
}
