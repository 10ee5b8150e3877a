// Package keel is a hierarchical component registry and dependency resolver.
//
// Components are registered into a Kernel as ComponentModel descriptors. A
// request for a service contract or key is satisfied by the first matching
// Handler in the requesting kernel or its ancestors; the handler builds the
// instance after recursively resolving the dependencies the model declares,
// honoring the model's lifecycle and failing fast on cycles.
//
// Kernels compose into a tree with AddChildKernel. Lookups only travel up the
// tree, so a parent never sees its children's registrations and siblings
// never see each other.
package keel

import "go.uber.org/zap"

// Option configures a Kernel.
type Option func(*Kernel)

// WithName sets the kernel name used in logs and diagnostics.
func WithName(name string) Option {
	return func(k *Kernel) {
		k.name = name
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(k *Kernel) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// WithMiddleware installs middleware at construction time.
func WithMiddleware(middleware ...Middleware) Option {
	return func(k *Kernel) {
		for _, mw := range middleware {
			k.middleware.add(mw)
		}
	}
}

// New creates a new kernel with no parent.
func New(opts ...Option) *Kernel {
	k := newKernel()
	for _, opt := range opts {
		opt(k)
	}

	k.logger = k.logger.With(zap.String("kernel", k.name))

	return k
}
