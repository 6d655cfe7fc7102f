// Package session tracks connected participants for presence display.
// Sessions are ephemeral and never load-bearing for canvas state: stroke
// records reference the session id only as informational ownership.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session 클라이언트 세션
type Session struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Duration 연결 유지 시간
func (s *Session) Duration() time.Duration {
	return time.Since(s.ConnectedAt)
}

// Registry holds the currently connected sessions (Thread-Safe)
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry 새 레지스트리 생성
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Add registers a new session and returns it. The transport-assigned id is
// a fresh uuid.
func (r *Registry) Add() *Session {
	s := &Session{
		ID:          uuid.New().String(),
		ConnectedAt: time.Now(),
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Remove drops a session on disconnect. Unknown ids are ignored.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// IDs returns the connected session ids, ordered by connect time (ties
// broken by id so the presence list is stable)
func (r *Registry) IDs() []string {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].ConnectedAt.Equal(sessions[j].ConnectedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].ConnectedAt.Before(sessions[j].ConnectedAt)
	})

	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	return ids
}

// Count returns the number of connected sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
