// Package models defines the data types shared between the poller, the
// alert engine and the API surface.
package models

import "time"

// MetricKind identifies one of the resource usage readings carried by a
// snapshot. The string value matches the keys used by the threshold
// configuration API.
type MetricKind string

const (
	KindCPU    MetricKind = "cpu"
	KindMemory MetricKind = "memory"
	KindDisk   MetricKind = "disk"
)

// MetricKinds lists all kinds in evaluation order. Evaluation and JSON
// output rely on this ordering being stable.
var MetricKinds = []MetricKind{KindCPU, KindMemory, KindDisk}

// Label returns the display name used as the alert type field.
func (k MetricKind) Label() string {
	switch k {
	case KindCPU:
		return "CPU"
	case KindMemory:
		return "Memory"
	case KindDisk:
		return "Disk"
	default:
		return string(k)
	}
}

// Valid reports whether k is a known metric kind.
func (k MetricKind) Valid() bool {
	switch k {
	case KindCPU, KindMemory, KindDisk:
		return true
	default:
		return false
	}
}

// MetricSnapshot is one host's instantaneous resource readings as reported
// by the metrics aggregation server. Timestamp is epoch nanoseconds, the
// resolution the aggregation server stores.
type MetricSnapshot struct {
	Hostname    string  `json:"hostname"`
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`
	DiskUsage   float64 `json:"disk_usage"`
	Timestamp   int64   `json:"timestamp"`
}

// Usage returns the reading for the given metric kind.
func (m MetricSnapshot) Usage(kind MetricKind) float64 {
	switch kind {
	case KindCPU:
		return m.CPUUsage
	case KindMemory:
		return m.MemoryUsage
	case KindDisk:
		return m.DiskUsage
	default:
		return 0
	}
}

// MeasuredAt converts the snapshot timestamp to a time.Time.
func (m MetricSnapshot) MeasuredAt() time.Time {
	return time.Unix(0, m.Timestamp)
}

// Alert is a single threshold violation detected during one evaluation
// cycle. Alerts are derived data: the full set is recomputed every cycle
// and never carries state across cycles.
type Alert struct {
	Hostname  string    `json:"hostname"`
	Type      string    `json:"type"` // "CPU", "Memory" or "Disk"
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}
