package sessionkit

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{})

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricLoginLatency, 100*time.Millisecond)

	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("disabled metrics counted")
	}
	snap := m.Snapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("disabled snapshot not empty: %+v", snap)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	m.Inc(MetricLogout)
	m.Observe(MetricLoginLatency, time.Second)
	if m.Value(MetricLogout) != 0 {
		t.Fatal("nil metrics returned nonzero")
	}
	if m.Enabled() {
		t.Fatal("nil metrics enabled")
	}
}

func TestConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 8
	const perGoroutine = 1000

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				m.Inc(MetricLoginFailure)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricLoginFailure); got != goroutines*perGoroutine {
		t.Fatalf("lost increments: %d", got)
	}
}

func TestLatencyHistogramBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	cases := []struct {
		d      time.Duration
		bucket int
	}{
		{10 * time.Millisecond, 0},
		{30 * time.Millisecond, 1},
		{80 * time.Millisecond, 2},
		{200 * time.Millisecond, 3},
		{400 * time.Millisecond, 4},
		{900 * time.Millisecond, 5},
		{2 * time.Second, 6},
		{10 * time.Second, 7},
	}
	for _, tc := range cases {
		m.Observe(MetricLoginLatency, tc.d)
	}

	buckets := m.Snapshot().Histograms[MetricLoginLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("bucket count: %d", len(buckets))
	}
	for _, tc := range cases {
		if buckets[tc.bucket] == 0 {
			t.Fatalf("bucket %d empty after observing %v", tc.bucket, tc.d)
		}
	}
}

func TestObserveIgnoresNonLatencyIDs(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Observe(MetricLoginSuccess, time.Second)

	if buckets, ok := m.Snapshot().Histograms[MetricLoginSuccess]; ok {
		t.Fatalf("unexpected histogram: %v", buckets)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricLoginSuccess)
	snap := m.Snapshot()
	m.Inc(MetricLoginSuccess)

	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("snapshot mutated: %d", snap.Counters[MetricLoginSuccess])
	}
}
