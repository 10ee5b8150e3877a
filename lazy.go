package keel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// resolveFrom resolves req from a kernel, or through a scope when one is set.
func resolveFrom(k *Kernel, scope *Scope, req Request) (any, error) {
	if scope != nil {
		return scope.ResolveRequest(context.Background(), req)
	}

	return k.ResolveRequest(context.Background(), req)
}

// Lazy defers a resolution until Get is first called. A component can take a
// Lazy of something that depends back on it without forming a cycle.
type Lazy[T any] struct {
	kernel   *Kernel
	scope    *Scope
	request  Request
	once     sync.Once
	value    T
	err      error
	resolved atomic.Bool
}

// NewLazy creates a lazy wrapper for the component serving T.
func NewLazy[T any](k *Kernel) *Lazy[T] {
	return newLazy[T](k, nil, Request{Contract: ContractOf[T]()})
}

// NewLazyKey creates a lazy wrapper for the component registered under key.
func NewLazyKey[T any](k *Kernel, key string) *Lazy[T] {
	return newLazy[T](k, nil, Request{Key: key})
}

func newLazy[T any](k *Kernel, scope *Scope, req Request) *Lazy[T] {
	return &Lazy[T]{
		kernel:  k,
		scope:   scope,
		request: req,
	}
}

// Get resolves on the first call and returns the same result, or the same
// error, afterwards.
func (l *Lazy[T]) Get() (T, error) {
	l.once.Do(func() {
		instance, err := resolveFrom(l.kernel, l.scope, l.request)
		if err != nil {
			l.err = err

			return
		}

		typed, ok := instance.(T)
		if !ok {
			var zero T

			l.err = fmt.Errorf("lazy dependency %s: expected type %T, got %T", l.request, zero, instance)

			return
		}

		l.value = typed
		l.resolved.Store(true)
	})

	return l.value, l.err
}

// MustGet is Get that panics on error.
func (l *Lazy[T]) MustGet() T {
	value, err := l.Get()
	if err != nil {
		panic(fmt.Sprintf("lazy dependency %s failed: %v", l.request, err))
	}

	return value
}

// IsResolved reports whether Get has succeeded.
func (l *Lazy[T]) IsResolved() bool {
	return l.resolved.Load()
}

// Request returns what the wrapper resolves.
func (l *Lazy[T]) Request() Request {
	return l.request
}

// Provider resolves its request again on every call, so transient targets
// yield a new instance each time.
type Provider[T any] struct {
	kernel  *Kernel
	scope   *Scope
	request Request
}

// NewProvider creates a provider for the component serving T.
func NewProvider[T any](k *Kernel) *Provider[T] {
	return newProvider[T](k, nil, Request{Contract: ContractOf[T]()})
}

func newProvider[T any](k *Kernel, scope *Scope, req Request) *Provider[T] {
	return &Provider[T]{
		kernel:  k,
		scope:   scope,
		request: req,
	}
}

// Provide performs one resolution.
func (p *Provider[T]) Provide() (T, error) {
	var zero T

	instance, err := resolveFrom(p.kernel, p.scope, p.request)
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("provider %s: expected type %T, got %T", p.request, zero, instance)
	}

	return typed, nil
}

// MustProvide is Provide that panics on error.
func (p *Provider[T]) MustProvide() T {
	value, err := p.Provide()
	if err != nil {
		panic(fmt.Sprintf("provider %s failed: %v", p.request, err))
	}

	return value
}
