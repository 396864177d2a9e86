package authcore

import "sync/atomic"

// MetricID identifies one counter in the in-process metrics table.
type MetricID int

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricDeviceAnomaly
	MetricLogout
	MetricSessionCreated
	MetricSessionInvalidated
	MetricRegisterSuccess
	MetricRegisterFailure
	MetricOTPVerified
	MetricPasswordForgot
	MetricPasswordResetSuccess
	MetricPasswordResetFailure

	metricIDCount
)

// MetricsConfig enables the in-process counters. When disabled every
// operation is a no-op.
type MetricsConfig struct {
	Enabled bool
}

// Metrics holds atomic counters, one per MetricID.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

// NewMetrics returns a Metrics table per cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id < 0 || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Value returns the current value of the counter for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || !m.enabled || id < 0 || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot returns a point-in-time copy of all counters.
func (m *Metrics) Snapshot() map[MetricID]uint64 {
	snap := make(map[MetricID]uint64, metricIDCount)
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap[id] = m.counters[id].Load()
	}
	return snap
}
