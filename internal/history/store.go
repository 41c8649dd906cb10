// Package history provides a persistent log of fired alerts using SQLite
// for durability across restarts. Active alerts themselves are recomputed
// from scratch every cycle; the history is an append-only record of what
// was published.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/CoffeeShop-Development/watchtower/internal/models"
)

const defaultListLimit = 100

// Store is the alert history log.
type Store struct {
	db        *sql.DB
	retention time.Duration

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewStore opens (or creates) the history database at path and starts the
// background retention worker. A non-positive retention disables pruning.
func NewStore(path string, retention time.Duration) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent API reads.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:        db,
		retention: retention,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	go s.backgroundWorker()

	log.Info().Str("path", path).Dur("retention", retention).Msg("Alert history store opened")
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS alert_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hostname TEXT NOT NULL,
		type TEXT NOT NULL,
		value REAL NOT NULL,
		threshold REAL NOT NULL,
		detected_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alert_history_detected
		ON alert_history (detected_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init history schema: %w", err)
	}
	return nil
}

// Record appends the published alerts to the history log.
func (s *Store) Record(alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO alert_history (hostname, type, value, threshold, detected_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare history insert: %w", err)
	}
	defer stmt.Close()

	for _, alert := range alerts {
		if _, err := stmt.Exec(alert.Hostname, alert.Type, alert.Value, alert.Threshold, alert.Timestamp.UnixNano()); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert history row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history transaction: %w", err)
	}
	return nil
}

// List returns the most recently fired alerts, newest first.
func (s *Store) List(limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.Query(
		`SELECT hostname, type, value, threshold, detected_at
		 FROM alert_history ORDER BY detected_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	alerts := make([]models.Alert, 0, limit)
	for rows.Next() {
		var alert models.Alert
		var detectedAt int64
		if err := rows.Scan(&alert.Hostname, &alert.Type, &alert.Value, &alert.Threshold, &detectedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		alert.Timestamp = time.Unix(0, detectedAt)
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// Prune deletes entries older than the retention window and returns the
// number of rows removed.
func (s *Store) Prune() (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-s.retention).UnixNano()
	result, err := s.db.Exec(`DELETE FROM alert_history WHERE detected_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	removed, _ := result.RowsAffected()
	return removed, nil
}

func (s *Store) backgroundWorker() {
	defer close(s.doneCh)

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if removed, err := s.Prune(); err != nil {
				log.Warn().Err(err).Msg("Alert history pruning failed")
			} else if removed > 0 {
				log.Debug().Int64("removed", removed).Msg("Pruned old alert history entries")
			}
		}
	}
}

// Close stops the retention worker and closes the database.
func (s *Store) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
	})
	return s.db.Close()
}
