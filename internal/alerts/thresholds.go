// Package alerts implements threshold configuration, evaluation and the
// active alert snapshot store.
package alerts

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/CoffeeShop-Development/watchtower/internal/errors"
	"github.com/CoffeeShop-Development/watchtower/internal/models"
)

// Thresholds maps a metric kind to its upper bound. A kind absent from the
// map is not evaluated. Exceeding a bound strictly constitutes a violation.
type Thresholds map[models.MetricKind]float64

// Clone returns an independent copy.
func (t Thresholds) Clone() Thresholds {
	if t == nil {
		return nil
	}
	out := make(Thresholds, len(t))
	for kind, value := range t {
		out[kind] = value
	}
	return out
}

// DefaultThresholds returns the startup defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		models.KindCPU:    80,
		models.KindMemory: 85,
		models.KindDisk:   90,
	}
}

// ThresholdStore is the process-wide threshold configuration cell. Writers
// serialize; readers always observe a consistent full set, never a torn
// mix of old and new values.
type ThresholdStore struct {
	mu      sync.RWMutex
	current Thresholds
	path    string // optional persistence target; empty disables persistence

	// saveMu orders merge+persist pairs: the file on disk always reflects
	// the most recent merge, so a reload never reverts a completed update.
	saveMu sync.Mutex
}

// NewThresholdStore creates the configuration cell seeded with initial.
// When path is non-empty, a previously persisted set overrides initial and
// subsequent updates are written back to disk.
func NewThresholdStore(initial Thresholds, path string) *ThresholdStore {
	s := &ThresholdStore{
		current: initial.Clone(),
		path:    path,
	}
	if s.current == nil {
		s.current = DefaultThresholds()
	}
	if path != "" {
		if persisted, err := readThresholdsFile(path); err != nil {
			if !os.IsNotExist(err) {
				log.Warn().Err(err).Str("path", path).Msg("Failed to load persisted thresholds, using defaults")
			}
		} else {
			s.current = persisted
			log.Info().Str("path", path).Msg("Loaded persisted thresholds")
		}
	}
	return s
}

// Current returns a copy of the active threshold set.
func (s *ThresholdStore) Current() Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Update merges the given kind/value pairs into the active set and returns
// the resulting full set. Unspecified kinds are left unchanged. The whole
// payload is validated before anything is applied.
func (s *ThresholdStore) Update(partial map[models.MetricKind]float64) (Thresholds, error) {
	if len(partial) == 0 {
		return nil, errors.NewValidationError("update_thresholds", "no threshold values provided")
	}
	for kind, value := range partial {
		if err := validateThreshold(kind, value); err != nil {
			return nil, err
		}
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	for kind, value := range partial {
		s.current[kind] = value
	}
	merged := s.current.Clone()
	s.mu.Unlock()

	if s.path != "" {
		if err := writeThresholdsFile(s.path, merged); err != nil {
			log.Error().Err(err).Str("path", s.path).Msg("Failed to persist thresholds")
		}
	}

	return merged, nil
}

// Reload re-reads the persisted threshold file, picking up external edits.
// A missing or unchanged file is a no-op. Taking saveMu keeps the reload
// from racing an in-flight update's disk write.
func (s *ThresholdStore) Reload() {
	if s.path == "" {
		return
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	persisted, err := readThresholdsFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.path).Msg("Failed to reload thresholds file")
		}
		return
	}

	s.mu.Lock()
	changed := !equalThresholds(s.current, persisted)
	if changed {
		s.current = persisted
	}
	s.mu.Unlock()

	if changed {
		log.Info().Str("path", s.path).Msg("Reloaded thresholds from disk")
	}
}

func validateThreshold(kind models.MetricKind, value float64) error {
	if !kind.Valid() {
		return errors.NewValidationError("update_thresholds", "unknown metric kind %q", string(kind))
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return errors.NewValidationError("update_thresholds", "threshold for %s must be a finite number", string(kind))
	}
	if value < 0 {
		return errors.NewValidationError("update_thresholds", "threshold for %s must not be negative, got %v", string(kind), value)
	}
	return nil
}

func equalThresholds(a, b Thresholds) bool {
	if len(a) != len(b) {
		return false
	}
	for kind, value := range a {
		other, ok := b[kind]
		if !ok || other != value {
			return false
		}
	}
	return true
}

func readThresholdsFile(path string) (Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[models.MetricKind]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	parsed := make(Thresholds, len(raw))
	for kind, value := range raw {
		if err := validateThreshold(kind, value); err != nil {
			return nil, err
		}
		parsed[kind] = value
	}
	return parsed, nil
}

// writeThresholdsFile writes atomically via temp file and rename so readers
// never observe a partial file.
func writeThresholdsFile(path string, thresholds Thresholds) error {
	data, err := json.MarshalIndent(thresholds, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
