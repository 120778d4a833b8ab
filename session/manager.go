package session

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound is returned when a session id is unknown to the manager.
var ErrNotFound = errors.New("session not found")

// Manager tracks all active sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *zap.Logger
}

// NewManager creates an empty session manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Create registers a new session for a user. params may be nil.
func (m *Manager) Create(userID string, params *sync.Map) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := newSession(userID, params, m.logger)
	s.SetStatus(StatusActive)
	m.sessions[s.ID] = s

	m.logger.Debug("created session",
		zap.String("session_id", s.ID),
		zap.String("user_id", userID),
	)
	return s
}

// Get retrieves a session by id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Close removes a session and releases its state.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		m.logger.Warn("close of unknown session", zap.String("session_id", id))
		return
	}
	if err := s.Close(); err != nil {
		m.logger.Error("error closing session", zap.String("session_id", id), zap.Error(err))
	}
	delete(m.sessions, id)
	m.logger.Info("closed session", zap.String("session_id", id))
}

// CloseAll closes every tracked session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Close(id)
	}
	m.logger.Info("closed all sessions", zap.Int("count", len(ids)))
}

// CleanupIdle closes sessions that have been inactive longer than timeout.
func (m *Manager) CleanupIdle(timeout time.Duration) {
	m.mu.RLock()
	var idle []string
	cutoff := time.Now().Add(-timeout)
	for id, s := range m.sessions {
		if s.LastActivity().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range idle {
		m.Close(id)
	}
}

// Count returns the number of tracked sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
