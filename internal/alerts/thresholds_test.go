package alerts

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	apperrors "github.com/CoffeeShop-Development/watchtower/internal/errors"
	"github.com/CoffeeShop-Development/watchtower/internal/models"
)

func TestUpdateMergesPartialSet(t *testing.T) {
	store := NewThresholdStore(DefaultThresholds(), "")

	updated, err := store.Update(map[models.MetricKind]float64{models.KindCPU: 90})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if updated[models.KindCPU] != 90 {
		t.Errorf("cpu should be 90, got %v", updated[models.KindCPU])
	}
	if updated[models.KindMemory] != 85 || updated[models.KindDisk] != 90 {
		t.Errorf("unspecified kinds must be unchanged, got %+v", updated)
	}

	current := store.Current()
	if current[models.KindCPU] != 90 {
		t.Errorf("Current must reflect the update, got %+v", current)
	}
}

func TestCurrentReturnsACopy(t *testing.T) {
	store := NewThresholdStore(DefaultThresholds(), "")

	first := store.Current()
	first[models.KindCPU] = 1

	if store.Current()[models.KindCPU] != 80 {
		t.Error("mutating the returned set must not affect the store")
	}
}

func TestUpdateRejectsInvalidPayloads(t *testing.T) {
	store := NewThresholdStore(DefaultThresholds(), "")

	cases := []struct {
		name    string
		partial map[models.MetricKind]float64
	}{
		{"empty", map[models.MetricKind]float64{}},
		{"unknown kind", map[models.MetricKind]float64{"network": 50}},
		{"negative", map[models.MetricKind]float64{models.KindCPU: -5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := store.Update(tc.partial); err == nil {
				t.Fatalf("Update(%v) should fail", tc.partial)
			} else if !apperrors.IsValidationError(err) {
				t.Errorf("expected a validation error, got %v", err)
			}
		})
	}

	// A rejected payload must not be partially applied.
	if _, err := store.Update(map[models.MetricKind]float64{
		models.KindCPU:  70,
		models.KindDisk: -1,
	}); err == nil {
		t.Fatal("mixed valid/invalid payload should fail")
	}
	if store.Current()[models.KindCPU] != 80 {
		t.Error("failed update must leave the set untouched")
	}
}

func TestConcurrentReadsObserveOldOrNewValue(t *testing.T) {
	store := NewThresholdStore(DefaultThresholds(), "")

	start := make(chan struct{})
	var wg sync.WaitGroup
	results := make([]float64, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i] = store.Current()[models.KindMemory]
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		if _, err := store.Update(map[models.MetricKind]float64{models.KindMemory: 70}); err != nil {
			t.Errorf("Update failed: %v", err)
		}
	}()

	close(start)
	wg.Wait()

	for i, value := range results {
		if value != 85 && value != 70 {
			t.Errorf("reader %d observed torn value %v", i, value)
		}
	}
}

func TestThresholdsPersistAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.json")

	store := NewThresholdStore(DefaultThresholds(), path)
	if _, err := store.Update(map[models.MetricKind]float64{models.KindDisk: 99}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	reopened := NewThresholdStore(DefaultThresholds(), path)
	if got := reopened.Current()[models.KindDisk]; got != 99 {
		t.Errorf("persisted disk threshold should survive restart, got %v", got)
	}
}

func TestReloadPicksUpExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.json")
	store := NewThresholdStore(DefaultThresholds(), path)

	if err := os.WriteFile(path, []byte(`{"cpu": 42, "memory": 85, "disk": 90}`), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	store.Reload()

	if got := store.Current()[models.KindCPU]; got != 42 {
		t.Errorf("Reload should pick up the edited value, got %v", got)
	}
}

func TestReloadIgnoresCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.json")
	store := NewThresholdStore(DefaultThresholds(), path)

	if err := os.WriteFile(path, []byte(`{"cpu": "lots"`), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	store.Reload()

	if got := store.Current()[models.KindCPU]; got != 80 {
		t.Errorf("corrupt file must not clobber the active set, got %v", got)
	}
}

func TestConcurrentUpdatesKeepFileInSyncWithMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.json")
	store := NewThresholdStore(DefaultThresholds(), path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(value float64) {
			defer wg.Done()
			if _, err := store.Update(map[models.MetricKind]float64{models.KindCPU: value}); err != nil {
				t.Errorf("Update failed: %v", err)
			}
		}(float64(50 + i))
	}
	wg.Wait()

	inMemory := store.Current()
	persisted, err := readThresholdsFile(path)
	if err != nil {
		t.Fatalf("read persisted thresholds: %v", err)
	}
	if !equalThresholds(inMemory, persisted) {
		t.Errorf("persisted file lags behind memory: file %+v, memory %+v", persisted, inMemory)
	}

	// A reload right after the updates settle must be a no-op: the file
	// already reflects the final merge.
	store.Reload()
	if got := store.Current(); !equalThresholds(got, inMemory) {
		t.Errorf("reload reverted a completed update: got %+v, want %+v", got, inMemory)
	}
}
