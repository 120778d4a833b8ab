// Package session holds per-caller state: identity, arbitrary parameters,
// activity tracking and the anchor store that backs the pin modifier.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Status represents the lifecycle state of a session.
type Status int

const (
	StatusNew Status = iota
	StatusActive
	StatusClosed
)

// Session is one caller's state. A session is created by a Manager, shared
// with the transport that owns the connection, and passed (by reference) to
// dispatch calls through the execution context. Dispatch never retains it.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	// Params carries transport- and validator-owned values (rate limiters,
	// negotiated options). Keyed writes are concurrency-safe.
	Params *sync.Map

	mu           sync.RWMutex
	status       Status
	anchors      map[string]any
	lastActivity atomic.Value // time.Time

	logger *zap.Logger
}

// RandomID returns a URL-safe random identifier.
func RandomID() string {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(err)
	}
	return base64.URLEncoding.EncodeToString(key)
}

func newSession(userID string, params *sync.Map, logger *zap.Logger) *Session {
	if params == nil {
		params = &sync.Map{}
	}
	id := RandomID()
	s := &Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: time.Now(),
		Params:    params,
		status:    StatusNew,
		anchors:   make(map[string]any),
		logger:    logger.With(zap.String("session_id", id)),
	}
	s.UpdateLastActivity()
	return s
}

// Status returns the session's lifecycle state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SetStatus updates the session's lifecycle state.
func (s *Session) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// UpdateLastActivity stamps the session as active now.
func (s *Session) UpdateLastActivity() {
	s.lastActivity.Store(time.Now())
}

// LastActivity returns the time of the most recent activity.
func (s *Session) LastActivity() time.Time {
	return s.lastActivity.Load().(time.Time)
}

// SetAnchor persists a value under the given navigation path. Anchored
// values survive navigation transitions and are dropped when the session
// closes.
func (s *Session) SetAnchor(path string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusClosed {
		s.logger.Warn("anchor on closed session dropped", zap.String("path", path))
		return
	}
	s.anchors[path] = value
}

// Anchor returns the value anchored under path, if any.
func (s *Session) Anchor(path string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.anchors[path]
	return v, ok
}

// Anchors returns a copy of the anchor store.
func (s *Session) Anchors() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.anchors))
	for k, v := range s.anchors {
		out[k] = v
	}
	return out
}

// Close marks the session closed and drops its anchors. Closing twice is
// harmless.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusClosed {
		s.logger.Debug("double close of session")
		return nil
	}
	s.status = StatusClosed
	s.anchors = make(map[string]any)
	s.logger.Debug("session closed")
	return nil
}

// Logger returns the session-scoped logger.
func (s *Session) Logger() *zap.Logger {
	return s.logger
}
