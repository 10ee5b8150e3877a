package keel

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// kernelSeq orders kernel locks when two kernels are mutated together.
var kernelSeq atomic.Uint64

// Kernel owns a registry of handlers and an ordered set of child kernels.
// The parent link is a back-pointer; ownership flows from parent to children.
type Kernel struct {
	name       string
	seq        uint64
	parent     *Kernel
	children   []*Kernel
	handlers   map[string]*Handler
	byContract map[Contract][]*Handler
	order      []*Handler // Preserve registration order
	listeners  *listenerSet
	middleware *middlewareChain
	logger     *zap.Logger
	disposed   bool
	mu         sync.RWMutex
}

func newKernel() *Kernel {
	seq := kernelSeq.Add(1)

	return &Kernel{
		name:       fmt.Sprintf("kernel-%d", seq),
		seq:        seq,
		handlers:   make(map[string]*Handler),
		byContract: make(map[Contract][]*Handler),
		listeners:  newListenerSet(),
		middleware: newMiddlewareChain(),
		logger:     zap.NewNop(),
	}
}

// Name returns the kernel name.
func (k *Kernel) Name() string {
	return k.name
}

// String implements fmt.Stringer.
func (k *Kernel) String() string {
	return k.name
}

// =============================================================================
// REGISTRATION
// =============================================================================

// Register adds a component to the kernel. Keys are unique within one
// kernel only; a parent, child or sibling may reuse a key.
func (k *Kernel) Register(model *ComponentModel) (*Handler, error) {
	if model == nil {
		return nil, ErrInvalidModel("", "model cannot be nil")
	}

	if err := model.validate(); err != nil {
		return nil, err
	}

	k.mu.Lock()

	if k.disposed {
		k.mu.Unlock()

		return nil, ErrKernelDisposed
	}

	if _, exists := k.handlers[model.key]; exists {
		k.mu.Unlock()

		return nil, ErrDuplicateKey(model.key)
	}

	h := newHandler(k, model)
	k.handlers[model.key] = h
	k.order = append(k.order, h)

	for _, c := range model.services {
		k.byContract[c] = append(k.byContract[c], h)
	}

	k.mu.Unlock()

	k.logger.Debug("component registered",
		zap.String("component", model.key),
		zap.Stringer("lifecycle", model.lifecycle),
	)

	k.listeners.registered(h)

	return h, nil
}

// localHandler returns the handler registered under key in this kernel only.
func (k *Kernel) localHandler(key string) *Handler {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return k.handlers[key]
}

// candidates returns the local handlers serving c in registration order.
// Exact registrations come first; handlers whose services merely satisfy c
// are used when there is no exact registration.
func (k *Kernel) candidates(c Contract) []*Handler {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if hs := k.byContract[c]; len(hs) > 0 {
		return slices.Clone(hs)
	}

	var out []*Handler
	for _, h := range k.order {
		if h.model.Serves(c) {
			out = append(out, h)
		}
	}

	return out
}

// Handler returns the handler for key, searching this kernel then its ancestors.
func (k *Kernel) Handler(key string) *Handler {
	for cur := k; cur != nil; cur = cur.Parent() {
		if h := cur.localHandler(key); h != nil {
			return h
		}
	}

	return nil
}

// Handlers returns the handlers registered in this kernel, in registration order.
func (k *Kernel) Handlers() []*Handler {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return slices.Clone(k.order)
}

// HasKey reports whether key is registered in this kernel or an ancestor.
func (k *Kernel) HasKey(key string) bool {
	return k.Handler(key) != nil
}

// HasComponent reports whether c is served by this kernel or an ancestor.
// Nothing is activated.
func (k *Kernel) HasComponent(c Contract) bool {
	for cur := k; cur != nil; cur = cur.Parent() {
		if len(cur.candidates(c)) > 0 {
			return true
		}
	}

	return false
}

// =============================================================================
// RESOLUTION
// =============================================================================

// Resolve returns an instance of the first component serving c.
func (k *Kernel) Resolve(c Contract) (any, error) {
	return k.ResolveRequest(context.Background(), Request{Contract: c})
}

// ResolveKey returns an instance of the component registered under key.
func (k *Kernel) ResolveKey(key string) (any, error) {
	return k.ResolveRequest(context.Background(), Request{Key: key})
}

// ResolveNamed returns the component registered under key, which must serve c.
func (k *Kernel) ResolveNamed(c Contract, key string) (any, error) {
	return k.ResolveRequest(context.Background(), Request{Contract: c, Key: key})
}

// ResolveRequest resolves req. Each call gets its own CreationContext.
func (k *Kernel) ResolveRequest(ctx context.Context, req Request) (any, error) {
	return k.resolve(ctx, nil, req)
}

func (k *Kernel) resolve(ctx context.Context, scope *Scope, req Request) (any, error) {
	if k.isDisposed() {
		return nil, ErrKernelDisposed
	}

	if req.Key == "" && req.Contract.IsZero() {
		return nil, ErrServiceNotFound(req.String())
	}

	ctx = withResolution(ctx, req)

	// Call middleware before resolve
	if err := k.middleware.beforeResolve(ctx, req); err != nil {
		return nil, err
	}

	cc := newCreationContext(ctx, k, scope, req)

	var instance any

	h, err := locate(cc, k, req)
	if err == nil {
		instance, err = h.activate(cc)
	}

	// Call middleware after resolve
	if mwErr := k.middleware.afterResolve(ctx, req, instance, err); mwErr != nil {
		if err == nil {
			// Cached lifestyles keep the instance; the others take it back
			h.Release(instance)
		}

		return nil, mwErr
	}

	return instance, err
}

// Release hands instance back to the handler registered under key.
func (k *Kernel) Release(key string, instance any) bool {
	h := k.Handler(key)
	if h == nil {
		return false
	}

	return h.Release(instance)
}

// BeginScope creates a new scope for scoped components, resolving from k.
func (k *Kernel) BeginScope() *Scope {
	return newScope(k)
}

// Use adds middleware to the kernel.
// Middleware is called in the order they are added.
func (k *Kernel) Use(middleware Middleware) {
	k.middleware.add(middleware)
}

// =============================================================================
// HIERARCHY
// =============================================================================

// Parent returns the parent kernel, or nil.
func (k *Kernel) Parent() *Kernel {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return k.parent
}

// Children returns the child kernels in the order they were added.
func (k *Kernel) Children() []*Kernel {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return slices.Clone(k.children)
}

// Subscribe registers l on this kernel and returns the function that
// removes it.
func (k *Kernel) Subscribe(l HierarchyListener) (unsubscribe func()) {
	return k.listeners.subscribe(l)
}

// lockPair locks two distinct kernels in a stable order.
func lockPair(a, b *Kernel) (unlock func()) {
	first, second := a, b
	if second.seq < first.seq {
		first, second = second, first
	}

	first.mu.Lock()
	second.mu.Lock()

	return func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}
}

// hierarchyMu serializes parent/child changes across all kernels so that the
// ancestor check and the link it guards happen atomically.
var hierarchyMu sync.Mutex

// AddChildKernel makes child a child of k. A kernel has at most one parent;
// moving it requires RemoveChildKernel on the old parent first.
func (k *Kernel) AddChildKernel(child *Kernel) error {
	if child == nil {
		return ErrHierarchy("child kernel cannot be nil")
	}

	if child == k {
		return ErrHierarchy("a kernel cannot be its own child")
	}

	linked, err := k.link(child)
	if err != nil || !linked {
		return err
	}

	k.logger.Debug("child kernel added", zap.String("child", child.name))
	child.listeners.addedAsChild(child)

	return nil
}

func (k *Kernel) link(child *Kernel) (bool, error) {
	hierarchyMu.Lock()
	defer hierarchyMu.Unlock()

	for anc := k.Parent(); anc != nil; anc = anc.Parent() {
		if anc == child {
			return false, ErrHierarchy(fmt.Sprintf("kernel %s is an ancestor of %s", child, k))
		}
	}

	unlock := lockPair(k, child)
	defer unlock()

	if k.disposed || child.disposed {
		return false, ErrKernelDisposed
	}

	if child.parent == k {
		return false, nil
	}

	if child.parent != nil {
		return false, ErrHierarchy(
			"you can not change the kernel parent once set, " +
				"use the RemoveChildKernel and AddChildKernel methods together to achieve this",
		).WithContext("child", child.name).
			WithContext("parent", child.parent.name)
	}

	child.parent = k
	k.children = append(k.children, child)

	return true, nil
}

// RemoveChildKernel detaches child if k is its parent; otherwise it does nothing.
func (k *Kernel) RemoveChildKernel(child *Kernel) {
	if child == nil || child == k || !k.unlink(child) {
		return
	}

	k.logger.Debug("child kernel removed", zap.String("child", child.name))
	child.listeners.removedAsChild(child)
}

func (k *Kernel) unlink(child *Kernel) bool {
	hierarchyMu.Lock()
	defer hierarchyMu.Unlock()

	unlock := lockPair(k, child)
	defer unlock()

	if child.parent != k {
		return false
	}

	child.parent = nil
	k.children = slices.DeleteFunc(k.children, func(c *Kernel) bool { return c == child })

	return true
}

// =============================================================================
// DIAGNOSTICS
// =============================================================================

// ComponentInfo contains diagnostic information about a handler.
type ComponentInfo struct {
	Key          string
	Kernel       string
	Services     []string
	Lifecycle    string
	Dependencies []string
	Interceptors []string
	State        string
	Cached       bool
	Groups       []string
	Metadata     map[string]string
}

// Inspect returns diagnostic information about the handler for key,
// searching this kernel then its ancestors.
func (k *Kernel) Inspect(key string) ComponentInfo {
	h := k.Handler(key)
	if h == nil {
		return ComponentInfo{Key: key}
	}

	services := make([]string, len(h.model.services))
	for i, s := range h.model.services {
		services[i] = s.String()
	}

	interceptors := make([]string, len(h.model.interceptors))
	for i, ref := range h.model.interceptors {
		interceptors[i] = ref.String()
	}

	return ComponentInfo{
		Key:          h.Key(),
		Kernel:       h.kernel.name,
		Services:     services,
		Lifecycle:    h.model.lifecycle.String(),
		Dependencies: DependencyNames(h.model.dependencies),
		Interceptors: interceptors,
		State:        h.State().String(),
		Cached:       h.cached(nil),
		Groups:       h.model.Groups(),
		Metadata:     h.model.Metadata(),
	}
}

// Validate reports static dependency cycles among local components and every
// local component that is still waiting for dependencies.
func (k *Kernel) Validate() error {
	var errs error

	if _, err := k.dependencyGraph().TopologicalSort(); err != nil {
		errs = multierr.Append(errs, err)
	}

	cc := newCreationContext(context.Background(), k, nil, Request{})
	for _, h := range k.Handlers() {
		if name, missing := unsatisfied(cc, h); missing {
			errs = multierr.Append(errs, ErrUnsatisfiedDependency(h.Key(), name, nil))
		}
	}

	return errs
}

// dependencyGraph links local handlers to the local handlers their
// dependencies would statically resolve to.
func (k *Kernel) dependencyGraph() *DependencyGraph {
	g := NewDependencyGraph()

	for _, h := range k.Handlers() {
		var edges []string

		deps := slices.Clip(h.model.dependencies)
		for _, ref := range h.model.interceptors {
			deps = append(deps, ref.Dependency())
		}

		for _, d := range deps {
			if d.lazy != nil {
				continue
			}

			req := d.request()
			if d.kind == ByPolicy {
				req = d.policy.request()
			}

			if v, ok := h.model.parameters[d.name]; ok {
				ref, isRef := v.(KeyRef)
				if !isRef {
					continue
				}

				req = Request{Key: string(ref)}
			}

			if target := k.staticTarget(req); target != "" {
				edges = append(edges, target)
			}
		}

		g.AddNode(h.Key(), edges)
	}

	return g
}

func (k *Kernel) staticTarget(req Request) string {
	if req.Key != "" {
		if h := k.localHandler(req.Key); h != nil {
			return h.Key()
		}

		return ""
	}

	if req.Contract.IsZero() {
		return ""
	}

	if hs := k.candidates(req.Contract); len(hs) > 0 {
		return hs[0].Key()
	}

	return ""
}

// =============================================================================
// DISPOSAL
// =============================================================================

func (k *Kernel) isDisposed() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return k.disposed
}

// Dispose tears the kernel down: children first, depth-first, then the
// cached instances of local handlers (dependents before their dependencies),
// then the link to the parent. Every step runs even when an earlier one
// fails; all failures are returned together.
func (k *Kernel) Dispose() error {
	k.mu.Lock()
	if k.disposed {
		k.mu.Unlock()

		return nil
	}

	k.disposed = true
	children := slices.Clone(k.children)
	k.mu.Unlock()

	var errs error

	for _, child := range children {
		errs = multierr.Append(errs, child.Dispose())
	}

	for _, h := range k.disposalOrder() {
		errs = multierr.Append(errs, h.dispose())
	}

	if parent := k.Parent(); parent != nil {
		parent.RemoveChildKernel(k)
	}

	k.mu.Lock()
	k.handlers = make(map[string]*Handler)
	k.byContract = make(map[Contract][]*Handler)
	k.order = nil
	k.mu.Unlock()

	if errs != nil {
		k.logger.Warn("kernel disposed with errors", zap.Error(errs))
	} else {
		k.logger.Debug("kernel disposed")
	}

	return errs
}

// disposalOrder returns local handlers in reverse dependency order, or in
// reverse registration order when the graph has a cycle.
func (k *Kernel) disposalOrder() []*Handler {
	handlers := k.Handlers()

	order, err := k.dependencyGraph().TopologicalSort()
	if err != nil {
		slices.Reverse(handlers)

		return handlers
	}

	out := make([]*Handler, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		if h := k.localHandler(order[i]); h != nil {
			out = append(out, h)
		}
	}

	return out
}
