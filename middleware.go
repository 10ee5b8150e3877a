package keel

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Middleware observes the kernel a request was made on. Hooks run in
// registration order; a non-nil error from any hook fails the operation.
type Middleware interface {
	// BeforeResolve runs once per top-level request, before lookup.
	BeforeResolve(ctx context.Context, req Request) error

	// AfterResolve runs once per top-level request with its outcome.
	AfterResolve(ctx context.Context, req Request, instance any, err error) error

	// BeforeActivate runs before a handler builds a new instance. Cache hits
	// do not trigger it.
	BeforeActivate(ctx context.Context, key string) error

	// AfterActivate runs after a build attempt. An error rejects the instance,
	// which is then disposed.
	AfterActivate(ctx context.Context, key string, instance any, err error) error
}

type middlewareChain struct {
	middleware []Middleware
	mu         sync.RWMutex
}

func newMiddlewareChain() *middlewareChain {
	return &middlewareChain{}
}

func (m *middlewareChain) add(middleware Middleware) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.middleware = append(m.middleware, middleware)
}

func (m *middlewareChain) list() []Middleware {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.middleware)
}

func (m *middlewareChain) beforeResolve(ctx context.Context, req Request) error {
	for _, mw := range m.list() {
		if err := mw.BeforeResolve(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func (m *middlewareChain) afterResolve(ctx context.Context, req Request, instance any, err error) error {
	for _, mw := range m.list() {
		if mwErr := mw.AfterResolve(ctx, req, instance, err); mwErr != nil {
			return mwErr
		}
	}
	return nil
}

func (m *middlewareChain) beforeActivate(ctx context.Context, key string) error {
	for _, mw := range m.list() {
		if err := mw.BeforeActivate(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (m *middlewareChain) afterActivate(ctx context.Context, key string, instance any, err error) error {
	for _, mw := range m.list() {
		if mwErr := mw.AfterActivate(ctx, key, instance, err); mwErr != nil {
			return mwErr
		}
	}
	return nil
}

// FuncMiddleware adapts plain functions to Middleware. Nil fields are no-ops.
type FuncMiddleware struct {
	BeforeResolveFunc  func(ctx context.Context, req Request) error
	AfterResolveFunc   func(ctx context.Context, req Request, instance any, err error) error
	BeforeActivateFunc func(ctx context.Context, key string) error
	AfterActivateFunc  func(ctx context.Context, key string, instance any, err error) error
}

// BeforeResolve implements Middleware.
func (f *FuncMiddleware) BeforeResolve(ctx context.Context, req Request) error {
	if f.BeforeResolveFunc != nil {
		return f.BeforeResolveFunc(ctx, req)
	}
	return nil
}

// AfterResolve implements Middleware.
func (f *FuncMiddleware) AfterResolve(ctx context.Context, req Request, instance any, err error) error {
	if f.AfterResolveFunc != nil {
		return f.AfterResolveFunc(ctx, req, instance, err)
	}
	return nil
}

// BeforeActivate implements Middleware.
func (f *FuncMiddleware) BeforeActivate(ctx context.Context, key string) error {
	if f.BeforeActivateFunc != nil {
		return f.BeforeActivateFunc(ctx, key)
	}
	return nil
}

// AfterActivate implements Middleware.
func (f *FuncMiddleware) AfterActivate(ctx context.Context, key string, instance any, err error) error {
	if f.AfterActivateFunc != nil {
		return f.AfterActivateFunc(ctx, key, instance, err)
	}
	return nil
}

// LoggingMiddleware logs every top-level resolution at debug level, and
// failures at warn level.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return &FuncMiddleware{
		AfterResolveFunc: func(ctx context.Context, req Request, _ any, err error) error {
			fields := []zap.Field{zap.Stringer("request", req)}
			if r, ok := ResolutionFrom(ctx); ok {
				fields = append(fields,
					zap.String("resolution_id", r.ID),
					zap.Duration("elapsed", time.Since(r.Started)),
				)
			}

			if err != nil {
				logger.Warn("resolution failed", append(fields, zap.Error(err))...)

				return nil
			}

			logger.Debug("resolved", fields...)

			return nil
		},
		AfterActivateFunc: func(_ context.Context, key string, _ any, err error) error {
			if err == nil {
				logger.Debug("component activated", zap.String("component", key))
			}

			return nil
		},
	}
}
