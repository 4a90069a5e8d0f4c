package checkout

import (
	"sync"

	"github.com/fjod/go_market/internal/logger"
)

// Registry keeps one Machine per session id.
type Registry struct {
	mu        sync.Mutex
	machines  map[string]*Machine
	fulfiller Fulfiller
	log       *logger.Logger
}

func NewRegistry(fulfiller Fulfiller, log *logger.Logger) *Registry {
	return &Registry{
		machines:  make(map[string]*Machine),
		fulfiller: fulfiller,
		log:       log,
	}
}

// For returns the session's machine, creating it on first use.
func (r *Registry) For(sessionID string, basket Basket) *Machine {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.machines[sessionID]
	if !ok {
		m = NewMachine(basket, r.fulfiller, r.log.With("session_id", sessionID))
		r.machines[sessionID] = m
	}
	return m
}

func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.machines, sessionID)
}
