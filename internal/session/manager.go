package session

import (
	"sync"
	"time"

	"github.com/nikitkaralius/pollmate/internal/access"
)

// Manager is the registry of live sessions keyed by session id.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Get returns the session for id, starting one with the given role and name if needed. The
// session counts as active from this call on, so Sweep does not evict it before its turn starts.
func (m *Manager) Get(id string, role access.Role, name string) *Session {
	m.mu.RLock()
	s := m.sessions[id]
	if s != nil {
		s.touch(m.now())
	}
	m.mu.RUnlock()
	if s != nil {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s = m.sessions[id]
	if s == nil {
		s = Start(id, role, name)
		m.sessions[id] = s
	}
	s.touch(m.now())
	return s
}

func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Drop(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than idle and returns how many were removed.
// Sessions with a turn in flight are skipped.
func (m *Manager) Sweep(idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if !s.LastSeen().Before(cutoff) {
			continue
		}
		if !s.tryLock() {
			continue
		}
		delete(m.sessions, id)
		s.Unlock()
		removed++
	}
	return removed
}
