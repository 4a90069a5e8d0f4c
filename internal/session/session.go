// Package session holds the per-browsing-context state of a buyer: the cart
// and favorites view, the identity it is bound to, the captured referrer and
// the sync engine that keeps the view consistent with storage.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_market/internal/domain"
	"github.com/fjod/go_market/internal/logger"
	"github.com/google/uuid"
)

type Session struct {
	ID       string
	DeviceID string

	mu         sync.RWMutex
	identity   domain.Identity
	referrerID *string

	store  *Store
	engine *Engine
}

func (s *Session) Identity() domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *Session) ReferrerID() *string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.referrerID == nil {
		return nil
	}
	v := *s.referrerID
	return &v
}

// SetReferrerOnce records the referrer unless one is already set. It reports
// whether the value was taken.
func (s *Session) SetReferrerOnce(referrerID string) bool {
	if referrerID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.referrerID != nil {
		return false
	}
	s.referrerID = &referrerID
	return true
}

func (s *Session) Store() *Store {
	return s.store
}

func (s *Session) Cart() []domain.CartLine {
	return s.store.Cart()
}

// ClearLine removes a purchased line and reports a failed write-through.
func (s *Session) ClearLine(ctx context.Context, productID string) error {
	return s.store.ClearLine(ctx, productID)
}

func (s *Session) Mode() Mode {
	return s.engine.Mode()
}

// Authenticate switches the session to identity, merging or swapping cart
// state as configured.
func (s *Session) Authenticate(ctx context.Context, identity domain.Identity) error {
	if err := s.engine.Transition(ctx, identity); err != nil {
		return err
	}
	s.mu.Lock()
	s.identity = identity
	s.mu.Unlock()
	return nil
}

func (s *Session) Close() {
	s.engine.Close()
}

// DefaultIdleTTL is how long a session may go untouched before the sweeper
// ends it.
const DefaultIdleTTL = 30 * time.Minute

type ManagerOption func(*Manager)

// WithIdleTTL sets the idle window after which Sweep ends a session.
func WithIdleTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.idleTTL = ttl
		}
	}
}

// WithEvictHook registers fn to run with the id of every session Sweep ends.
func WithEvictHook(fn func(sessionID string)) ManagerOption {
	return func(m *Manager) {
		m.onEvict = append(m.onEvict, fn)
	}
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager owns the live sessions of this process.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	lastSeen map[string]time.Time
	deps     EngineDeps
	idleTTL  time.Duration
	onEvict  []func(sessionID string)
	now      func() time.Time
	log      *logger.Logger
}

func NewManager(deps EngineDeps, opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		lastSeen: make(map[string]time.Time),
		deps:     deps,
		idleTTL:  DefaultIdleTTL,
		now:      time.Now,
		log:      deps.Log.With("component", "session_manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resume returns the live session with sessionID, creating it when missing.
// An empty sessionID starts a new session. The session is then moved to the
// mode that identity implies.
func (m *Manager) Resume(ctx context.Context, sessionID, deviceID string, identity domain.Identity) (*Session, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if deviceID == "" {
		deviceID = sessionID
	}

	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		store := NewStore(m.log.With("session_id", sessionID))
		sess = &Session{
			ID:       sessionID,
			DeviceID: deviceID,
			store:    store,
			engine:   NewEngine(store, deviceID, m.deps),
		}
		m.sessions[sessionID] = sess
	}
	m.lastSeen[sessionID] = m.now()
	m.mu.Unlock()

	if err := sess.Authenticate(ctx, identity); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns the live session and counts as activity for idle eviction.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if ok {
		m.lastSeen[sessionID] = m.now()
	}
	return sess, ok
}

func (m *Manager) End(sessionID string) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	delete(m.lastSeen, sessionID)
	m.mu.Unlock()
	if ok {
		sess.Close()
	}
}

// Sweep ends every session idle for at least the idle TTL as of now and
// returns their ids. Evict hooks run after each session is closed.
func (m *Manager) Sweep(now time.Time) []string {
	m.mu.Lock()
	var idle []*Session
	for id, seen := range m.lastSeen {
		if now.Sub(seen) < m.idleTTL {
			continue
		}
		idle = append(idle, m.sessions[id])
		delete(m.sessions, id)
		delete(m.lastSeen, id)
	}
	m.mu.Unlock()

	ids := make([]string, 0, len(idle))
	for _, sess := range idle {
		sess.Close()
		for _, fn := range m.onEvict {
			fn(sess.ID)
		}
		ids = append(ids, sess.ID)
	}
	return ids
}

// RunSweeper calls Sweep every interval until ctx is done. A non-positive
// interval disables sweeping.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		m.log.Warn("session sweeper disabled", "interval", interval.String())
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if ids := m.Sweep(m.now()); len(ids) > 0 {
				m.log.Info("idle sessions evicted", "count", len(ids))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.lastSeen = make(map[string]time.Time)
	m.mu.Unlock()
	for _, sess := range sessions {
		sess.Close()
	}
}
