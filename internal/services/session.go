package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mmlink/ispbot-backend/internal/models"
	"github.com/mmlink/ispbot-backend/internal/storage"
)

// SessionManager fronts the session store with per-call timeouts and
// per-user serialization of message handling.
type SessionManager struct {
	store   storage.SessionStore
	timeout time.Duration
	locks   *userLocks
}

// NewSessionManager creates a new session manager
func NewSessionManager(store storage.SessionStore, timeout time.Duration) *SessionManager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SessionManager{
		store:   store,
		timeout: timeout,
		locks:   newUserLocks(),
	}
}

// Get loads the user's session. storage.ErrNotFound is passed through untouched.
func (sm *SessionManager) Get(ctx context.Context, userID string) (*models.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, sm.timeout)
	defer cancel()

	s, err := sm.store.GetSession(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, transient("get session", err)
	}
	return s, nil
}

// Begin replaces any existing session with a fresh one owned by kind
func (sm *SessionManager) Begin(ctx context.Context, userID string, kind models.WorkflowKind, data models.SessionData) (*models.Session, error) {
	s := models.NewSession(userID, kind)
	if data != nil {
		s.Data = data
	}
	if err := sm.Upsert(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Upsert writes s unconditionally
func (sm *SessionManager) Upsert(ctx context.Context, s *models.Session) error {
	ctx, cancel := context.WithTimeout(ctx, sm.timeout)
	defer cancel()

	if err := sm.store.UpsertSession(ctx, s); err != nil {
		return transient("upsert session", err)
	}
	return nil
}

// Update is a conditional write; storage.ErrVersionConflict is passed through
// so the caller can reload and retry.
func (sm *SessionManager) Update(ctx context.Context, s *models.Session) error {
	ctx, cancel := context.WithTimeout(ctx, sm.timeout)
	defer cancel()

	if err := sm.store.UpdateSession(ctx, s); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			return err
		}
		return transient("update session", err)
	}
	return nil
}

// Delete removes the user's session if any
func (sm *SessionManager) Delete(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, sm.timeout)
	defer cancel()

	if err := sm.store.DeleteSession(ctx, userID); err != nil {
		return transient("delete session", err)
	}
	return nil
}

// Count returns the number of live sessions
func (sm *SessionManager) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, sm.timeout)
	defer cancel()
	return sm.store.CountSessions(ctx)
}

// Lock serializes handling for one user. The returned func releases the lock.
func (sm *SessionManager) Lock(userID string) func() {
	return sm.locks.lock(userID)
}

// userLocks hands out one mutex per user and drops it once nobody holds it
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			ul.mu.Unlock()
			l.mu.Lock()
			ul.refs--
			if ul.refs == 0 {
				delete(l.locks, userID)
			}
			l.mu.Unlock()
		})
	}
}

func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// describe is used in log lines
func describe(s *models.Session) string {
	if s == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s@%d(v%d)", s.Workflow, s.StepIndex, s.Version)
}
