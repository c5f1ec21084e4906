package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gaugeHandler tracks how many messages run at once
type gaugeHandler struct {
	running atomic.Int32
	peak    atomic.Int32
	done    atomic.Int32
	hold    time.Duration

	mu       sync.Mutex
	deadline bool
}

func (g *gaugeHandler) Dispatch(ctx context.Context, userID, text string) error {
	n := g.running.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if _, ok := ctx.Deadline(); ok {
		g.mu.Lock()
		g.deadline = true
		g.mu.Unlock()
	}
	time.Sleep(g.hold)
	g.running.Add(-1)
	g.done.Add(1)
	return nil
}

func TestDispatcherBoundsConcurrency(t *testing.T) {
	h := &gaugeHandler{hold: 20 * time.Millisecond}
	d := NewDispatcher(h, 3, 16, time.Second)

	for i := 0; i < 12; i++ {
		require.NoError(t, d.Submit(testUser, "hello"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))

	assert.Equal(t, int32(12), h.done.Load())
	assert.LessOrEqual(t, h.peak.Load(), int32(3))
	assert.True(t, h.deadline)
}

func TestDispatcherRejectsAfterShutdown(t *testing.T) {
	d := NewDispatcher(&gaugeHandler{}, 1, 0, time.Second)
	require.NoError(t, d.Shutdown(context.Background()))

	assert.ErrorIs(t, d.Submit(testUser, "hello"), ErrShuttingDown)
}

func TestDispatcherShutdownTimeout(t *testing.T) {
	h := &gaugeHandler{hold: 200 * time.Millisecond}
	d := NewDispatcher(h, 1, 0, time.Second)
	require.NoError(t, d.Submit(testUser, "slow"))
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Shutdown(ctx), context.DeadlineExceeded)
}

// blockingHandler holds every message until release is closed
type blockingHandler struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingHandler) Dispatch(ctx context.Context, userID, text string) error {
	b.started <- struct{}{}
	<-b.release
	return nil
}

func TestDispatcherRejectsWhenQueueFull(t *testing.T) {
	h := &blockingHandler{started: make(chan struct{}, 4), release: make(chan struct{})}
	d := NewDispatcher(h, 1, 1, time.Second)

	require.NoError(t, d.Submit(testUser, "first"))
	<-h.started
	require.NoError(t, d.Submit(testUser, "second"))

	assert.ErrorIs(t, d.Submit(testUser, "third"), ErrQueueFull)

	close(h.release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
}
