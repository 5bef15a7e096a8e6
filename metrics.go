package sessionkit

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a client lifecycle counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful password logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins rejected by the backend.
	MetricLoginFailure
	// MetricLoginLocked counts submissions blocked by the attempt governor.
	MetricLoginLocked
	// MetricLogout counts explicit logouts.
	MetricLogout
	// MetricForcedLogout counts logouts triggered by 401/403 responses.
	MetricForcedLogout
	// MetricBiometricLoginSuccess counts successful biometric logins.
	MetricBiometricLoginSuccess
	// MetricBiometricLoginFailure counts failed biometric logins.
	MetricBiometricLoginFailure
	// MetricBiometricExpired counts expired-record detections.
	MetricBiometricExpired
	// MetricBiometricEnrolled counts credential enrollments.
	MetricBiometricEnrolled
	// MetricValidationCommitted counts debounced evaluations that reached a
	// terminal field state.
	MetricValidationCommitted
	// MetricValidationSuperseded counts evaluations discarded by newer input.
	MetricValidationSuperseded
	// MetricSubmitRejected counts submissions aborted by synchronous validation.
	MetricSubmitRejected
	// MetricLoginLatency is the histogram slot for login round-trip time.
	MetricLoginLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

// paddedCounter keeps adjacent counters on separate cache lines.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed-size set of atomic counters plus an optional login
// latency histogram. A nil or disabled Metrics is a no-op.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a Metrics set from config.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counting is active.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is active.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a login round-trip duration into the histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricLoginLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value returns the current value of one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters (and histograms when enabled).
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricLoginLatency].buckets[i])
		}
		s.Histograms[MetricLoginLatency] = buckets
	}
	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 25:
		return 0
	case ms <= 50:
		return 1
	case ms <= 100:
		return 2
	case ms <= 250:
		return 3
	case ms <= 500:
		return 4
	case ms <= 1000:
		return 5
	case ms <= 2500:
		return 6
	default:
		return 7
	}
}
