package chat

import (
	"fmt"
	"sort"
)

// Registry tracks live sessions by connection ID. Removing a session evicts
// it from every room through the router and closes its outbox.
type Registry struct {
	sessions map[string]*Session
	router   *Router
}

// NewRegistry creates a registry whose removals are propagated to router.
func NewRegistry(router *Router) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		router:   router,
	}
}

// Create registers a new session for connID.
func (r *Registry) Create(connID, username string, outbox Outbox) (*Session, error) {
	if connID == "" {
		return nil, fmt.Errorf("%w: empty connection id", ErrValidation)
	}
	if _, exists := r.sessions[connID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateConnection, connID)
	}

	s := newSession(connID, username, outbox)
	r.sessions[connID] = s
	return s, nil
}

// Remove deregisters the session for connID and returns it, or nil when no
// such session is registered. Removing twice is a no-op.
func (r *Registry) Remove(connID string) *Session {
	s, ok := r.sessions[connID]
	if !ok {
		return nil
	}
	delete(r.sessions, connID)

	if r.router != nil {
		r.router.LeaveAll(s)
	}
	s.closed = true
	if s.outbox != nil {
		s.outbox.Close()
	}
	return s
}

// Get looks up a live session.
func (r *Registry) Get(connID string) (*Session, bool) {
	s, ok := r.sessions[connID]
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// IDs returns every live connection ID in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
