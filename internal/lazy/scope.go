package lazy

import (
	"context"
	"sync"

	"lazymod/internal/loader"
)

// Scope is an open deferred-entry scope. Imports made through it are claimed
// by the scope's group and come back as proxies until the group unlocks.
// Closing the scope stops further imports; the claims and the raw-load gate
// stay in force for the rest of the process.
type Scope struct {
	registry *Registry
	group    *Group

	mu     sync.Mutex
	closed bool
}

// Group returns the import group this scope feeds.
func (s *Scope) Group() *Group { return s.group }

// Import claims a module name for the scope's group and returns a handle for
// it. While the group is locked the handle is a proxy; if an earlier scope
// with the same locator already unlocked the group, the real module is loaded
// and returned directly.
func (s *Scope) Import(name string) (loader.Handle, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrScopeClosed
	}
	s.mu.Unlock()

	leading := leadingName(name)
	if err := s.registry.claim(leading, s.group); err != nil {
		return nil, err
	}
	s.group.addClaim(leading)

	if s.group.Unlocked() {
		// No install can happen here, so the load is local and quick.
		m, err := s.group.Load(context.Background(), name)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return newProxy(name, s.group), nil
}

// Close ends the scope. Idempotent.
func (s *Scope) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
