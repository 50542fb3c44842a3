package identity

import (
	"context"
	"errors"
	"sync"

	"campussync/internal/domain/feed"
	"campussync/internal/ports"
)

// Static is an identity provider holding one in-process principal. It backs
// the daemon and CLI, where the principal comes from configuration or a
// decoded token rather than an interactive credential flow.
type Static struct {
	mu        sync.RWMutex
	principal feed.Principal
	signedIn  bool

	nextListener int
	listeners    map[int]func(feed.Principal, bool)
}

var _ ports.Identity = (*Static)(nil)

// NewStatic starts signed out.
func NewStatic() *Static {
	return &Static{listeners: make(map[int]func(feed.Principal, bool))}
}

// NewStaticSignedIn starts with the given principal signed in.
func NewStaticSignedIn(p feed.Principal) *Static {
	s := NewStatic()
	s.SetUser(p)
	return s
}

func (s *Static) CurrentUser(ctx context.Context) (feed.Principal, bool, error) {
	if ctx == nil {
		return feed.Principal{}, false, errors.New("context is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.principal, s.signedIn, nil
}

// SetUser signs the principal in and fires registered listeners.
func (s *Static) SetUser(p feed.Principal) {
	s.mu.Lock()
	s.principal = p
	s.signedIn = p.ID != ""
	listeners := make([]func(feed.Principal, bool), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	signedIn := s.signedIn
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(p, signedIn)
	}
}

// SignOut clears the principal and fires registered listeners.
func (s *Static) SignOut() {
	s.SetUser(feed.Principal{})
}

func (s *Static) OnAuthStateChange(fn func(p feed.Principal, signedIn bool)) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
