package keel

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Scope is a lifetime for scoped components, typically one HTTP request or
// another bounded operation. Singletons and transients resolve through a
// scope exactly as they do through its kernel.
type Scope struct {
	id      string
	kernel  *Kernel
	tracked []scopedInstance
	ended   bool
	mu      sync.Mutex
}

type scopedInstance struct {
	owner    *scopedLifestyle
	instance any
}

// newScope creates a new scope.
func newScope(k *Kernel) *Scope {
	return &Scope{
		id:     uuid.NewString(),
		kernel: k,
	}
}

// ID returns the unique scope identifier.
func (s *Scope) ID() string { return s.id }

// Kernel returns the kernel the scope resolves from.
func (s *Scope) Kernel() *Kernel { return s.kernel }

// Ended reports whether End has been called.
func (s *Scope) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ended
}

// Resolve returns an instance of the first component serving c.
func (s *Scope) Resolve(c Contract) (any, error) {
	return s.ResolveRequest(context.Background(), Request{Contract: c})
}

// ResolveKey returns an instance of the component registered under key.
func (s *Scope) ResolveKey(key string) (any, error) {
	return s.ResolveRequest(context.Background(), Request{Key: key})
}

// ResolveRequest resolves req within this scope.
func (s *Scope) ResolveRequest(ctx context.Context, req Request) (any, error) {
	if s.Ended() {
		return nil, ErrScopeEnded
	}

	return s.kernel.resolve(ctx, s, req)
}

// track records a scoped instance for disposal at End.
func (s *Scope) track(owner *scopedLifestyle, instance any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return ErrScopeEnded
	}

	s.tracked = append(s.tracked, scopedInstance{owner: owner, instance: instance})

	return nil
}

// End cleans up all scoped instances in this scope.
func (s *Scope) End() error {
	s.mu.Lock()

	if s.ended {
		s.mu.Unlock()

		return ErrScopeEnded
	}

	s.ended = true
	tracked := s.tracked
	s.tracked = nil
	s.mu.Unlock()

	// Dispose of scoped instances in reverse order
	var errs error

	for i := len(tracked) - 1; i >= 0; i-- {
		t := tracked[i]
		t.owner.evict(s.id)

		if err := disposeInstance(t.instance); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to dispose %s: %w", t.owner.key, err))
		}
	}

	return errs
}
