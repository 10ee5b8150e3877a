package keel

import (
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"
)

// LifestyleManager owns the instance cache of one handler.
//
// Resolve returns a cached instance or calls build to make one. Build is
// invoked at most once per cache key for caching lifestyles, even when
// several goroutines miss the cache at the same time.
type LifestyleManager interface {
	Resolve(ctx *CreationContext, build func() (any, error)) (any, error)
	Release(instance any) bool
	Dispose() error
}

// LifestyleFactory creates the manager for a handler using a custom lifecycle.
type LifestyleFactory func() LifestyleManager

// Disposable is implemented by instances that hold resources.
type Disposable interface {
	Dispose() error
}

// cacheInspector is implemented by lifestyles that can report a cached
// instance without building one.
type cacheInspector interface {
	cached(ctx *CreationContext) (any, bool)
}

func newLifestyle(m *ComponentModel) LifestyleManager {
	switch m.lifecycle {
	case LifecycleTransient:
		return transientLifestyle{}
	case LifecycleScoped:
		return newScopedLifestyle(m.key)
	case LifecyclePooled:
		return newPooledLifestyle(m.poolSize)
	case LifecycleCustom:
		return m.lifestyle()
	default:
		return &singletonLifestyle{}
	}
}

func disposeInstance(instance any) error {
	if d, ok := instance.(Disposable); ok {
		return d.Dispose()
	}

	return nil
}

// singletonLifestyle caches one instance for the lifetime of the handler.
type singletonLifestyle struct {
	instance any
	built    bool
	mu       sync.RWMutex
}

func (l *singletonLifestyle) Resolve(_ *CreationContext, build func() (any, error)) (any, error) {
	// Fast path: already built (read lock)
	l.mu.RLock()
	if l.built {
		instance := l.instance
		l.mu.RUnlock()

		return instance, nil
	}
	l.mu.RUnlock()

	// Slow path: build while holding the write lock so concurrent callers wait
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.built {
		return l.instance, nil
	}

	instance, err := build()
	if err != nil {
		return nil, err
	}

	l.instance = instance
	l.built = true

	return instance, nil
}

func (l *singletonLifestyle) cached(_ *CreationContext) (any, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.instance, l.built
}

// Release is a no-op; singletons live until the kernel is disposed.
func (l *singletonLifestyle) Release(any) bool {
	return false
}

func (l *singletonLifestyle) Dispose() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.built {
		return nil
	}

	err := disposeInstance(l.instance)
	l.instance = nil
	l.built = false

	return err
}

// transientLifestyle builds on every request and caches nothing.
type transientLifestyle struct{}

func (transientLifestyle) Resolve(_ *CreationContext, build func() (any, error)) (any, error) {
	return build()
}

func (transientLifestyle) Release(instance any) bool {
	_ = disposeInstance(instance)

	return true
}

func (transientLifestyle) Dispose() error {
	return nil
}

// scopedLifestyle caches one instance per scope ID.
type scopedLifestyle struct {
	key       string
	instances map[string]any
	group     singleflight.Group
	mu        sync.Mutex
}

func newScopedLifestyle(key string) *scopedLifestyle {
	return &scopedLifestyle{
		key:       key,
		instances: make(map[string]any),
	}
}

func (l *scopedLifestyle) Resolve(ctx *CreationContext, build func() (any, error)) (any, error) {
	scope := ctx.Scope()
	if scope == nil {
		return nil, ErrScopeRequired(l.key)
	}

	if scope.Ended() {
		return nil, ErrScopeEnded
	}

	id := scope.ID()

	if instance, ok := l.lookup(id); ok {
		return instance, nil
	}

	instance, err, _ := l.group.Do(id, func() (any, error) {
		// Another caller may have stored it between lookup and Do
		if instance, ok := l.lookup(id); ok {
			return instance, nil
		}

		instance, err := build()
		if err != nil {
			return nil, err
		}

		// Visible to evict before the scope can track it
		l.mu.Lock()
		l.instances[id] = instance
		l.mu.Unlock()

		if err := scope.track(l, instance); err != nil {
			l.evict(id)
			_ = disposeInstance(instance)

			return nil, err
		}

		return instance, nil
	})

	return instance, err
}

func (l *scopedLifestyle) lookup(id string) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	instance, ok := l.instances[id]

	return instance, ok
}

func (l *scopedLifestyle) cached(ctx *CreationContext) (any, bool) {
	if ctx == nil || ctx.Scope() == nil {
		return nil, false
	}

	return l.lookup(ctx.Scope().ID())
}

// evict drops the instance cached for a scope. The scope disposes it.
func (l *scopedLifestyle) evict(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.instances, id)
}

// Release is a no-op; scoped instances live until their scope ends.
func (l *scopedLifestyle) Release(any) bool {
	return false
}

func (l *scopedLifestyle) Dispose() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs error
	for id, instance := range l.instances {
		errs = multierr.Append(errs, disposeInstance(instance))
		delete(l.instances, id)
	}

	return errs
}

// pooledLifestyle recycles released instances through a bounded pool.
type pooledLifestyle struct {
	pool     chan any
	disposed bool
	mu       sync.Mutex
}

func newPooledLifestyle(size int) *pooledLifestyle {
	return &pooledLifestyle{pool: make(chan any, size)}
}

func (l *pooledLifestyle) Resolve(_ *CreationContext, build func() (any, error)) (any, error) {
	select {
	case instance := <-l.pool:
		return instance, nil
	default:
		return build()
	}
}

func (l *pooledLifestyle) Release(instance any) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disposed {
		_ = disposeInstance(instance)

		return true
	}

	select {
	case l.pool <- instance:
	default:
		// Pool is full
		_ = disposeInstance(instance)
	}

	return true
}

func (l *pooledLifestyle) Dispose() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.disposed = true

	var errs error
	for {
		select {
		case instance := <-l.pool:
			errs = multierr.Append(errs, disposeInstance(instance))
		default:
			return errs
		}
	}
}

// idle returns the number of instances waiting in the pool.
func (l *pooledLifestyle) idle() int {
	return len(l.pool)
}
