package deskapi

import (
	"sync"

	"github.com/zulandar/benchdesk/internal/intake"
	"go.uber.org/zap"
)

// Registry holds the open form sessions.
type Registry struct {
	lookup    *intake.LookupService
	submitter *intake.Submitter
	log       *zap.Logger

	mu       sync.Mutex
	sessions map[string]*intake.Session
}

// NewRegistry creates an empty Registry whose sessions share lookup and submitter.
func NewRegistry(lookup *intake.LookupService, submitter *intake.Submitter, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		lookup:    lookup,
		submitter: submitter,
		log:       log,
		sessions:  make(map[string]*intake.Session),
	}
}

// Create opens a new session.
func (r *Registry) Create() *intake.Session {
	s := intake.NewSession(r.lookup, r.submitter, r.log)
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	return s
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*intake.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Delete closes and forgets a session. It reports whether the session existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll closes every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*intake.Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
