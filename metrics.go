package mailindex

import (
	"sync/atomic"
	"time"

	"github.com/barracuda156/mailindex/engine"
)

// MetricsCollector receives operation counters and timings. Implement it to
// integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    commitCounter   prometheus.Counter
//	    searchHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) CommitApplied(ops int, revision uint64, d time.Duration) {
//	    p.commitCounter.Inc()
//	    // ... record duration, revision lag, etc.
//	}
type MetricsCollector = engine.Metrics

// NopMetricsCollector discards all metrics. Use this when metrics collection
// is not needed.
type NopMetricsCollector = engine.NopMetrics

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	CommitCount      atomic.Int64
	CommitOps        atomic.Int64
	CommitErrors     atomic.Int64
	CommitTotalNanos atomic.Int64
	SearchCount      atomic.Int64
	SearchMatches    atomic.Int64
	SearchTotalNanos atomic.Int64
	Checkpoints      atomic.Int64
	CheckpointBytes  atomic.Int64
	Recoveries       atomic.Int64
	RecoveredBatches atomic.Int64
}

// CommitApplied implements MetricsCollector.
func (b *BasicMetricsCollector) CommitApplied(ops int, revision uint64, d time.Duration) {
	b.CommitCount.Add(1)
	b.CommitOps.Add(int64(ops))
	b.CommitTotalNanos.Add(d.Nanoseconds())
}

// CommitFailed implements MetricsCollector.
func (b *BasicMetricsCollector) CommitFailed() {
	b.CommitErrors.Add(1)
}

// SearchExecuted implements MetricsCollector.
func (b *BasicMetricsCollector) SearchExecuted(terms, matches int, d time.Duration) {
	b.SearchCount.Add(1)
	b.SearchMatches.Add(int64(matches))
	b.SearchTotalNanos.Add(d.Nanoseconds())
}

// CheckpointCompleted implements MetricsCollector.
func (b *BasicMetricsCollector) CheckpointCompleted(revision uint64, bytes int64, d time.Duration) {
	b.Checkpoints.Add(1)
	b.CheckpointBytes.Add(bytes)
}

// RecoveryCompleted implements MetricsCollector.
func (b *BasicMetricsCollector) RecoveryCompleted(batches int, revision uint64) {
	b.Recoveries.Add(1)
	b.RecoveredBatches.Add(int64(batches))
}

// Stats is a snapshot of BasicMetricsCollector state.
type Stats struct {
	CommitCount      int64
	CommitOps        int64
	CommitErrors     int64
	CommitAvgNanos   int64
	SearchCount      int64
	SearchMatches    int64
	SearchAvgNanos   int64
	Checkpoints      int64
	CheckpointBytes  int64
	Recoveries       int64
	RecoveredBatches int64
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() Stats {
	s := Stats{
		CommitCount:      b.CommitCount.Load(),
		CommitOps:        b.CommitOps.Load(),
		CommitErrors:     b.CommitErrors.Load(),
		SearchCount:      b.SearchCount.Load(),
		SearchMatches:    b.SearchMatches.Load(),
		Checkpoints:      b.Checkpoints.Load(),
		CheckpointBytes:  b.CheckpointBytes.Load(),
		Recoveries:       b.Recoveries.Load(),
		RecoveredBatches: b.RecoveredBatches.Load(),
	}
	if s.CommitCount > 0 {
		s.CommitAvgNanos = b.CommitTotalNanos.Load() / s.CommitCount
	}
	if s.SearchCount > 0 {
		s.SearchAvgNanos = b.SearchTotalNanos.Load() / s.SearchCount
	}
	return s
}
