package session

import (
	"errors"
	"sync"

	"github.com/mindease/backend/internal/service/llm"
)

// ErrSessionNotFound reports an unknown session identifier.
var ErrSessionNotFound = errors.New("session not found")

// Registry manages the live chat sessions, one controller per page
// session. Conversations are discarded with their controller.
type Registry struct {
	client   *llm.Client
	policy   func() *llm.FailoverPolicy
	fallback *llm.FallbackResponder

	mu       sync.RWMutex
	sessions map[string]*Controller
}

// NewRegistry builds the session registry. policy constructs a fresh
// failover policy per session, so route stickiness stays per-page.
func NewRegistry(client *llm.Client, policy func() *llm.FailoverPolicy, fallback *llm.FallbackResponder) *Registry {
	return &Registry{
		client:   client,
		policy:   policy,
		fallback: fallback,
		sessions: make(map[string]*Controller),
	}
}

// Create provisions a new session controller.
func (r *Registry) Create() *Controller {
	ctrl := NewController(r.client, r.policy(), r.fallback)
	r.mu.Lock()
	r.sessions[ctrl.ID()] = ctrl
	r.mu.Unlock()
	return ctrl
}

// Get retrieves a live session by identifier.
func (r *Registry) Get(id string) (*Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctrl, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ctrl, nil
}

// Delete ends a session and releases its resources.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	ctrl, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		ctrl.Close()
	}
}
