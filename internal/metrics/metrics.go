// Package metrics exposes Prometheus instrumentation for the poll loop and
// the alert snapshot.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/CoffeeShop-Development/watchtower/internal/models"
)

var (
	PollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchtower_poll_cycles_total",
			Help: "Total number of poll cycles by outcome",
		},
		[]string{"status"}, // success, error
	)

	PollDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "watchtower_poll_duration_seconds",
			Help:    "Duration of one fetch/evaluate/publish cycle",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	HostsReporting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchtower_hosts_reporting",
			Help: "Number of hosts present in the last successful snapshot",
		},
	)

	AlertsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watchtower_alerts_active",
			Help: "Number of currently active alerts by metric kind",
		},
		[]string{"type"},
	)

	AlertsFiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchtower_alerts_fired_total",
			Help: "Total number of alerts published by metric kind",
		},
		[]string{"type"},
	)
)

// RecordCycleSuccess records one completed poll cycle.
func RecordCycleSuccess(duration time.Duration, hostCount int) {
	PollCyclesTotal.WithLabelValues("success").Inc()
	PollDurationSeconds.Observe(duration.Seconds())
	HostsReporting.Set(float64(hostCount))
}

// RecordCycleFailure records one abandoned poll cycle.
func RecordCycleFailure(duration time.Duration) {
	PollCyclesTotal.WithLabelValues("error").Inc()
	PollDurationSeconds.Observe(duration.Seconds())
}

// RecordActiveAlerts updates the per-kind active gauges for the published
// snapshot. Kinds with no violations are reset to zero so the gauge does
// not go stale when a host recovers.
func RecordActiveAlerts(alerts []models.Alert) {
	counts := make(map[string]int, len(models.MetricKinds))
	for _, kind := range models.MetricKinds {
		counts[kind.Label()] = 0
	}
	for _, alert := range alerts {
		counts[alert.Type]++
		AlertsFiredTotal.WithLabelValues(alert.Type).Inc()
	}
	for label, count := range counts {
		AlertsActive.WithLabelValues(label).Set(float64(count))
	}
}
