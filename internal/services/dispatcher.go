package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrShuttingDown is returned by Submit once Shutdown has begun
	ErrShuttingDown = errors.New("dispatcher is shutting down")
	// ErrQueueFull is returned by Submit when the backlog is at capacity
	ErrQueueFull = errors.New("dispatcher queue is full")
)

// MessageHandler processes one inbound message end to end
type MessageHandler interface {
	Dispatch(ctx context.Context, userID, text string) error
}

// Dispatcher runs message handling off the webhook goroutine with bounded
// concurrency, a bounded backlog and a per-message deadline.
type Dispatcher struct {
	handler  MessageHandler
	sem      *semaphore.Weighted
	timeout  time.Duration
	capacity int

	base    context.Context
	stop    context.CancelFunc
	mu      sync.Mutex
	closing bool
	pending int
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher running at most workers messages at once
// with up to queueSize more waiting for a worker.
func NewDispatcher(handler MessageHandler, workers, queueSize int, timeout time.Duration) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	base, stop := context.WithCancel(context.Background())
	return &Dispatcher{
		handler:  handler,
		sem:      semaphore.NewWeighted(int64(workers)),
		timeout:  timeout,
		capacity: workers + queueSize,
		base:     base,
		stop:     stop,
	}
}

// Submit queues a message and returns immediately. It returns ErrQueueFull
// instead of queueing past the backlog limit.
func (d *Dispatcher) Submit(userID, text string) error {
	d.mu.Lock()
	if d.closing {
		d.mu.Unlock()
		return ErrShuttingDown
	}
	if d.pending >= d.capacity {
		d.mu.Unlock()
		return ErrQueueFull
	}
	d.pending++
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer d.release()
		if err := d.sem.Acquire(d.base, 1); err != nil {
			log.Printf("⚠️ Dropped message from %s: %v", userID, err)
			return
		}
		defer d.sem.Release(1)

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.handler.Dispatch(ctx, userID, text); err != nil {
			log.Printf("❌ Message from %s not delivered: %v", userID, err)
		}
	}()
	return nil
}

func (d *Dispatcher) release() {
	d.mu.Lock()
	d.pending--
	d.mu.Unlock()
}

// Shutdown stops accepting messages and waits for in-flight ones. Messages
// still waiting for a worker when ctx expires are dropped.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closing = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.stop()
		return nil
	case <-ctx.Done():
		d.stop()
		return ctx.Err()
	}
}
