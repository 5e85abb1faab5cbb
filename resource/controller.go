// Package resource bounds the background work of the index: how many
// checkpoint or backup jobs run at once, how fast they may touch disk, and
// how much memory uncommitted writes may hold.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds the resource limits.
type Config struct {
	// MaxBackgroundJobs caps concurrent checkpoint and backup jobs.
	// Defaults to 1.
	MaxBackgroundJobs int64

	// IOLimitBytesPerSec throttles background disk and network IO.
	// 0 means unlimited.
	IOLimitBytesPerSec int64

	// BufferLimitBytes caps the memory held by uncommitted writes.
	// 0 means tracking only, no limit.
	BufferLimitBytes int64
}

// Controller enforces the configured limits. A nil Controller enforces
// nothing, so callers need no guards.
type Controller struct {
	jobSem *semaphore.Weighted

	ioLimiter *rate.Limiter

	bufSem  *semaphore.Weighted // nil when unlimited
	bufUsed atomic.Int64
}

// NewController creates a controller for the given limits.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundJobs <= 0 {
		cfg.MaxBackgroundJobs = 1
	}

	c := &Controller{
		jobSem: semaphore.NewWeighted(cfg.MaxBackgroundJobs),
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	if cfg.BufferLimitBytes > 0 {
		c.bufSem = semaphore.NewWeighted(cfg.BufferLimitBytes)
	}

	return c
}

// AcquireJob reserves a background job slot, blocking until one frees up or
// ctx is canceled.
func (c *Controller) AcquireJob(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.jobSem.Acquire(ctx, 1)
}

// TryAcquireJob reserves a background job slot without blocking.
func (c *Controller) TryAcquireJob() bool {
	if c == nil {
		return true
	}
	return c.jobSem.TryAcquire(1)
}

// ReleaseJob releases a background job slot.
func (c *Controller) ReleaseJob() {
	if c == nil {
		return
	}
	c.jobSem.Release(1)
}

// AcquireIO waits until the IO limit admits n bytes.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	// WaitN rejects bursts larger than the limiter allows; split them.
	burst := c.ioLimiter.Burst()
	for n > burst {
		if err := c.ioLimiter.WaitN(ctx, burst); err != nil {
			return err
		}
		n -= burst
	}
	return c.ioLimiter.WaitN(ctx, n)
}

// AcquireBuffer reserves n bytes of write-buffer budget, blocking when the
// limit is reached until a commit or rollback releases some.
func (c *Controller) AcquireBuffer(ctx context.Context, n int64) error {
	if c == nil || n <= 0 {
		return nil
	}
	if c.bufSem != nil {
		if err := c.bufSem.Acquire(ctx, n); err != nil {
			return err
		}
	}
	c.bufUsed.Add(n)
	return nil
}

// TryAcquireBuffer reserves n bytes of write-buffer budget without
// blocking. It returns false when the limit would be exceeded.
func (c *Controller) TryAcquireBuffer(n int64) bool {
	if c == nil || n <= 0 {
		return true
	}
	if c.bufSem != nil && !c.bufSem.TryAcquire(n) {
		return false
	}
	c.bufUsed.Add(n)
	return true
}

// ReleaseBuffer returns n bytes of write-buffer budget.
func (c *Controller) ReleaseBuffer(n int64) {
	if c == nil || n <= 0 {
		return
	}
	if c.bufSem != nil {
		c.bufSem.Release(n)
	}
	c.bufUsed.Add(-n)
}

// BufferUsage returns the bytes currently held by uncommitted writes.
func (c *Controller) BufferUsage() int64 {
	if c == nil {
		return 0
	}
	return c.bufUsed.Load()
}
