package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mmlink/ispbot-backend/internal/storage"
)

// SessionSweeper deletes sessions idle for longer than the TTL, whatever
// workflow owns them.
type SessionSweeper struct {
	store    storage.SessionStore
	ttl      time.Duration
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSessionSweeper creates a sweeper; call Start to run it
func NewSessionSweeper(store storage.SessionStore, ttl, interval, timeout time.Duration) *SessionSweeper {
	return &SessionSweeper{
		store:    store,
		ttl:      ttl,
		interval: interval,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Start runs a sweep immediately and then every interval
func (s *SessionSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		log.Println("Session sweeper already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx, s.done)
	log.Printf("🧹 Session sweeper started (ttl %v, every %v)", s.ttl, s.interval)
}

// Stop halts the sweeper and waits for an in-progress sweep
func (s *SessionSweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Println("⏹️  Session sweeper stopped")
}

func (s *SessionSweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			log.Printf("❌ Session sweep failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce deletes every session last updated before now minus the TTL
func (s *SessionSweeper) SweepOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	removed, err := s.store.DeleteIdleSessions(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		log.Printf("🧹 Removed %d idle sessions", removed)
	}
	return removed, nil
}
