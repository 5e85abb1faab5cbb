package resource

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Jobs(t *testing.T) {
	c := NewController(Config{MaxBackgroundJobs: 2})

	require.NoError(t, c.AcquireJob(context.Background()))
	require.NoError(t, c.AcquireJob(context.Background()))

	assert.False(t, c.TryAcquireJob())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireJob(ctx), context.DeadlineExceeded)

	c.ReleaseJob()
	assert.True(t, c.TryAcquireJob())
}

func TestController_Buffer(t *testing.T) {
	c := NewController(Config{BufferLimitBytes: 100})

	require.NoError(t, c.AcquireBuffer(context.Background(), 60))
	require.NoError(t, c.AcquireBuffer(context.Background(), 30))
	assert.Equal(t, int64(90), c.BufferUsage())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireBuffer(ctx, 20), context.DeadlineExceeded)

	c.ReleaseBuffer(60)
	assert.Equal(t, int64(30), c.BufferUsage())
	require.NoError(t, c.AcquireBuffer(context.Background(), 20))
}

func TestController_BufferTrackingOnly(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireBuffer(context.Background(), 1000))
	assert.Equal(t, int64(1000), c.BufferUsage())
	c.ReleaseBuffer(400)
	assert.Equal(t, int64(600), c.BufferUsage())
}

func TestController_NilIsTransparent(t *testing.T) {
	var c *Controller

	require.NoError(t, c.AcquireJob(context.Background()))
	c.ReleaseJob()
	assert.True(t, c.TryAcquireJob())
	require.NoError(t, c.AcquireIO(context.Background(), 1<<20))
	require.NoError(t, c.AcquireBuffer(context.Background(), 1<<20))
	c.ReleaseBuffer(1 << 20)
	assert.Equal(t, int64(0), c.BufferUsage())
}

func TestThrottledWriterLargeBurst(t *testing.T) {
	// A write larger than the burst must be split, not rejected.
	c := NewController(Config{IOLimitBytesPerSec: 1 << 30})

	var buf bytes.Buffer
	w := NewThrottledWriter(context.Background(), &buf, c)

	data := make([]byte, 4096)
	n, err := w.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, len(data), buf.Len())
}
