package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long an idle session survives in a Manager.
const DefaultTTL = 30 * time.Minute

// Factory builds an empty session with the given id.
type Factory func(id string) *Session

type entry struct {
	session   *Session
	expiresAt time.Time
}

// Manager hands out sessions by id and disposes of them once idle past ttl.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry
	factory  Factory
	ttl      time.Duration
	logger   *log.Logger
	now      func() time.Time
}

func NewManager(factory Factory, ttl time.Duration, logger *log.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[sessions] ", log.LstdFlags)
	}
	return &Manager{
		sessions: make(map[string]*entry),
		factory:  factory,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Create registers a new empty session.
func (m *Manager) Create() *Session {
	s := m.factory(uuid.NewString())
	m.mu.Lock()
	m.sessions[s.ID()] = &entry{session: s, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return s
}

// Get returns a live session and extends its lease.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok || m.now().After(e.expiresAt) {
		return nil, false
	}
	e.expiresAt = m.now().Add(m.ttl)
	return e.session, true
}

// Dispose removes and disposes a session.
func (m *Manager) Dispose(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return e.session.Dispose()
}

// Len reports the number of registered sessions, expired ones included.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep disposes every expired session and returns how many were removed.
func (m *Manager) Sweep() int {
	now := m.now()
	var expired []*Session
	m.mu.Lock()
	for id, e := range m.sessions {
		if now.After(e.expiresAt) {
			expired = append(expired, e.session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range expired {
		if err := s.Dispose(); err != nil {
			m.logger.Printf("dispose %s: %v", s.ID(), err)
		}
	}
	if len(expired) > 0 {
		m.logger.Printf("expired %d session(s)", len(expired))
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done, then disposes everything.
func (m *Manager) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Close()
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Close disposes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()
	for _, e := range all {
		_ = e.session.Dispose()
	}
}
