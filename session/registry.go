package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brensch/lionsweep/observe"
)

// Registry holds independent sessions keyed by id.
type Registry struct {
	opts    []Option
	metrics *observe.Metrics
	seq     atomic.Uint64

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry. opts are applied to every session
// it creates; m may be nil.
func NewRegistry(m *observe.Metrics, opts ...Option) *Registry {
	return &Registry{
		opts:     append([]Option{WithMetrics(m)}, opts...),
		metrics:  m,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session. extra options are applied after the
// registry's own.
func (r *Registry) Create(extra ...Option) *Session {
	id := fmt.Sprintf("session_%d_%d", time.Now().UnixNano(), r.seq.Add(1))
	opts := append(append([]Option(nil), r.opts...), extra...)
	s := New(id, opts...)

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ActiveSessions.Add(context.Background(), 1)
	}
	return s
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return s, nil
}

// Remove closes and forgets the session with id.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	s.Close()
	if r.metrics != nil {
		r.metrics.ActiveSessions.Add(context.Background(), -1)
	}
	return nil
}

// List returns the ids of all live sessions in lexical order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every session. Used on shutdown so archives get flushed.
func (r *Registry) CloseAll() {
	for _, id := range r.List() {
		_ = r.Remove(id)
	}
}
