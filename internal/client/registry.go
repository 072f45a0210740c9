package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// ErrNotJoined is returned for handles without a joined session.
var ErrNotJoined = errors.New("session not joined")

// SessionFactory builds the session for a handle.
type SessionFactory func(ctx context.Context, handle string) (*Session, error)

// Registry keeps one Session per joined handle.
type Registry struct {
	factory SessionFactory
	log     *zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(factory SessionFactory, logger *zerolog.Logger) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Registry{
		factory:  factory,
		log:      logger,
		sessions: make(map[string]*Session),
	}
}

// Join returns the session for handle, creating and connecting it on first
// use. The bool reports whether a new session was created.
func (r *Registry) Join(ctx context.Context, handle string) (*Session, bool, error) {
	if handle == "" {
		return nil, false, ErrInvalidHandle
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[handle]; ok {
		return s, false, nil
	}

	s, err := r.factory(ctx, handle)
	if err != nil {
		return nil, false, fmt.Errorf("join %s: %w", handle, err)
	}
	if err := s.Connect(); err != nil {
		return nil, false, fmt.Errorf("join %s: %w", handle, err)
	}
	r.sessions[handle] = s
	r.log.Info().Str("session", handle).Msg("joined session")
	return s, true, nil
}

// Get returns a joined session.
func (r *Registry) Get(handle string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[handle]
	if !ok {
		return nil, ErrNotJoined
	}
	return s, nil
}

// Leave leaves and forgets a session.
func (r *Registry) Leave(handle string) error {
	r.mu.Lock()
	s, ok := r.sessions[handle]
	delete(r.sessions, handle)
	r.mu.Unlock()

	if !ok {
		return ErrNotJoined
	}
	s.Leave()
	return nil
}

// Handles lists joined sessions in lexical order.
func (r *Registry) Handles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.sessions))
	for h := range r.sessions {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Close leaves every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Leave()
		}(s)
	}
	wg.Wait()
}
