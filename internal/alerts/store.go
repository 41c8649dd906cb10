package alerts

import (
	"sync"
	"time"

	"github.com/CoffeeShop-Development/watchtower/internal/models"
)

// Store holds the currently active alert snapshot. The poller replaces the
// whole collection once per successful cycle; readers always see either the
// previous complete snapshot or the new one, never a partial replacement.
//
// Critical sections are O(copy of a small slice) and never span I/O.
type Store struct {
	mu          sync.RWMutex
	active      []models.Alert
	publishedAt time.Time
}

// NewStore returns an empty store. Before the first publish, Active
// returns an empty (non-nil) slice so the API serializes it as [].
func NewStore() *Store {
	return &Store{}
}

// Publish atomically replaces the visible alert collection. The input is
// copied so the caller keeps ownership of its slice.
func (s *Store) Publish(alerts []models.Alert) {
	snapshot := make([]models.Alert, len(alerts))
	copy(snapshot, alerts)

	s.mu.Lock()
	s.active = snapshot
	s.publishedAt = time.Now()
	s.mu.Unlock()
}

// Active returns a copy of the most recently published collection.
func (s *Store) Active() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Alert, len(s.active))
	copy(out, s.active)
	return out
}

// PublishedAt reports when the current snapshot was published; the zero
// time means no cycle has completed yet.
func (s *Store) PublishedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.publishedAt
}
