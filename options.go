package mailindex

import (
	"log/slog"

	"github.com/barracuda156/mailindex/codec"
	"github.com/barracuda156/mailindex/engine"
	"github.com/barracuda156/mailindex/persistence"
	"github.com/barracuda156/mailindex/resource"
	"github.com/barracuda156/mailindex/wal"
)

// Options configures Open.
type Options struct {
	// Engine holds the underlying store configuration. Its Path is set
	// from the Open argument.
	Engine engine.Options
}

// WithLogger configures structured logging. Pass nil to disable.
func WithLogger(logger *slog.Logger) func(*Options) {
	return func(o *Options) {
		o.Engine.Logger = logger
	}
}

// WithMetrics configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &mailindex.BasicMetricsCollector{}
//	idx, err := mailindex.Open(dir, mailindex.WithMetrics(metrics))
func WithMetrics(m MetricsCollector) func(*Options) {
	return func(o *Options) {
		if m == nil {
			m = engine.NopMetrics{}
		}
		o.Engine.Metrics = m
	}
}

// WithCodec configures the codec used for snapshot sections.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) func(*Options) {
	return func(o *Options) {
		if c == nil {
			c = codec.Default
		}
		o.Engine.Codec = c
	}
}

// WithDurability controls fsync behavior on Commit. The default,
// wal.DurabilitySync, fsyncs every commit batch; wal.DurabilityAsync trades
// the crash-durability of the most recent commits for bulk-reindex speed.
func WithDurability(mode wal.DurabilityMode) func(*Options) {
	return func(o *Options) {
		o.Engine.WAL.DurabilityMode = mode
	}
}

// WithWAL applies fine-grained write-ahead log tuning (compression,
// checkpoint thresholds) on top of the defaults.
func WithWAL(optFns ...func(*wal.Options)) func(*Options) {
	return func(o *Options) {
		for _, fn := range optFns {
			fn(&o.Engine.WAL)
		}
	}
}

// WithSnapshotCompression selects the block compression for checkpoint
// snapshots. The default is no compression.
func WithSnapshotCompression(c persistence.Compression) func(*Options) {
	return func(o *Options) {
		o.Engine.SnapshotCompression = c
	}
}

// WithResourceLimits bounds background jobs, their I/O rate and the staged
// write buffer. A zero field means unlimited for that dimension.
func WithResourceLimits(cfg resource.Config) func(*Options) {
	return func(o *Options) {
		o.Engine.Resources = resource.NewController(cfg)
	}
}

// WithAutoCheckpoint enables or disables folding the WAL into a fresh
// snapshot when it passes the checkpoint thresholds. Enabled by default;
// Close always checkpoints regardless.
func WithAutoCheckpoint(enabled bool) func(*Options) {
	return func(o *Options) {
		o.Engine.AutoCheckpoint = enabled
	}
}
