package gateway

import (
	"sync"
	"time"

	"github.com/harun/fiftplay/internal/observability"
)

// idleAfter marks a session idle in SessionInfo
const idleAfter = 5 * time.Minute

// SessionRegistry manages connected sessions
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionRegistry creates a new session registry
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Session),
	}
}

// Add adds a session to the registry
func (r *SessionRegistry) Add(sess *Session) {
	r.mu.Lock()
	r.sessions[sess.ID] = sess
	count := len(r.sessions)
	r.mu.Unlock()

	observability.SetActiveSessions(count)
}

// Remove removes a session from the registry
func (r *SessionRegistry) Remove(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	count := len(r.sessions)
	r.mu.Unlock()

	observability.SetActiveSessions(count)
}

// Get retrieves a session by ID
func (r *SessionRegistry) Get(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, exists := r.sessions[sessionID]
	return sess, exists
}

// GetAll returns all sessions
func (r *SessionRegistry) GetAll() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

// Count returns the number of connected sessions
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Infos returns information about every connected session
func (r *SessionRegistry) Infos() []SessionInfo {
	now := time.Now()
	sessions := r.GetAll()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sess.Info(now))
	}
	return infos
}
