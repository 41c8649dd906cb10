package alerts

import (
	"sort"
	"time"

	"github.com/CoffeeShop-Development/watchtower/internal/models"
)

// Evaluate compares every host snapshot against the configured thresholds
// and returns one alert per strict violation. It is pure: no side effects,
// and the output order is deterministic (hostnames sorted, kinds in
// cpu/memory/disk order).
//
// Equality is not a violation. Out-of-range readings are compared literally
// against the threshold, never clamped or rejected. Kinds absent from
// thresholds are skipped.
func Evaluate(snapshots map[string]models.MetricSnapshot, thresholds Thresholds, now time.Time) []models.Alert {
	if len(snapshots) == 0 || len(thresholds) == 0 {
		return nil
	}

	hostnames := make([]string, 0, len(snapshots))
	for hostname := range snapshots {
		hostnames = append(hostnames, hostname)
	}
	sort.Strings(hostnames)

	var violations []models.Alert
	for _, hostname := range hostnames {
		snapshot := snapshots[hostname]
		for _, kind := range models.MetricKinds {
			threshold, ok := thresholds[kind]
			if !ok {
				continue
			}
			value := snapshot.Usage(kind)
			if value > threshold {
				violations = append(violations, models.Alert{
					Hostname:  hostname,
					Type:      kind.Label(),
					Value:     value,
					Threshold: threshold,
					Timestamp: now,
				})
			}
		}
	}

	return violations
}
