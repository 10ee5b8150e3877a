package keel

import (
	"context"
	"fmt"
)

// HandlerState says whether a handler can currently be activated.
type HandlerState int

const (
	// WaitingDependencies means at least one required dependency cannot be located.
	WaitingDependencies HandlerState = iota
	// Valid means every required dependency can be located.
	Valid
)

// String returns the state name.
func (s HandlerState) String() string {
	if s == Valid {
		return "valid"
	}

	return "waiting_dependencies"
}

// Handler wraps one ComponentModel inside one kernel. It owns the instance
// cache of the component and mediates its activation.
type Handler struct {
	model     *ComponentModel
	kernel    *Kernel // owning kernel; the kernel holds the only strong reference to the handler
	lifestyle LifestyleManager
}

func newHandler(k *Kernel, m *ComponentModel) *Handler {
	return &Handler{
		model:     m,
		kernel:    k,
		lifestyle: newLifestyle(m),
	}
}

// Key returns the component key.
func (h *Handler) Key() string { return h.model.key }

// Model returns the wrapped component model.
func (h *Handler) Model() *ComponentModel { return h.model }

// Kernel returns the kernel the handler is registered in.
func (h *Handler) Kernel() *Kernel { return h.kernel }

// State probes the dependencies of the component from its own kernel
// without activating anything.
func (h *Handler) State() HandlerState {
	cc := newCreationContext(context.Background(), h.kernel, nil, Request{})
	if _, missing := unsatisfied(cc, h); missing {
		return WaitingDependencies
	}

	return Valid
}

// IsBeingResolvedIn reports whether the handler is on the resolution stack of cc.
func (h *Handler) IsBeingResolvedIn(cc *CreationContext) bool {
	return cc.IsResolving(h)
}

// Release hands an instance back to the lifestyle. Pooled instances return
// to the pool; transient instances are disposed.
func (h *Handler) Release(instance any) bool {
	return h.lifestyle.Release(instance)
}

func (h *Handler) cached(cc *CreationContext) bool {
	inspector, ok := h.lifestyle.(cacheInspector)
	if !ok {
		return false
	}

	_, found := inspector.cached(cc)

	return found
}

// activate returns an instance of the component, building it through the
// lifestyle when nothing is cached.
func (h *Handler) activate(cc *CreationContext) (any, error) {
	if cc.IsResolving(h) {
		return nil, ErrCircularDependency(cc.path(h))
	}

	return h.lifestyle.Resolve(cc, func() (any, error) {
		return h.build(cc)
	})
}

func (h *Handler) build(cc *CreationContext) (any, error) {
	cc.push(h)
	defer cc.pop()

	mw := cc.origin.middleware
	if err := mw.beforeActivate(cc.ctx, h.Key()); err != nil {
		return nil, err
	}

	instance, err := h.construct(cc)

	if mwErr := mw.afterActivate(cc.ctx, h.Key(), instance, err); mwErr != nil {
		_ = disposeInstance(instance)

		return nil, mwErr
	}

	return instance, err
}

func (h *Handler) construct(cc *CreationContext) (any, error) {
	args, err := resolveArguments(cc, h)
	if err != nil {
		return nil, err
	}

	interceptors := make([]Interceptor, 0, len(h.model.interceptors))
	for _, ref := range h.model.interceptors {
		icpt, err := ref.resolve(cc, h)
		if err != nil {
			return nil, ErrUnsatisfiedDependency(h.Key(), ref.dependencyName, err)
		}

		interceptors = append(interceptors, icpt)
	}

	instance, err := h.model.activator(args)
	if err != nil {
		return nil, NewActivationError(h.Key(), "activate", err)
	}

	for _, icpt := range interceptors {
		wrapped, err := icpt.Intercept(instance)
		if err != nil {
			_ = disposeInstance(instance)

			return nil, NewActivationError(h.Key(), "intercept", err)
		}

		instance = wrapped
	}

	return instance, nil
}

func (h *Handler) dispose() error {
	if err := h.lifestyle.Dispose(); err != nil {
		return fmt.Errorf("dispose %s: %w", h.Key(), err)
	}

	return nil
}
