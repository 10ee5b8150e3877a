package keel

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
)

// CreationContext is the state of one top-level resolution. It is threaded
// through the recursive activation of dependencies and is never shared
// between goroutines.
type CreationContext struct {
	ctx     context.Context
	request Request
	target  Contract
	origin  *Kernel
	scope   *Scope
	stack   *resolutionStack
	probe   *probeState
}

// resolutionStack holds the handlers currently being activated. Contexts
// rebuilt for interceptor resolution share the stack of their parent.
type resolutionStack struct {
	handlers []*Handler
}

func newCreationContext(ctx context.Context, origin *Kernel, scope *Scope, req Request) *CreationContext {
	return &CreationContext{
		ctx:     ctx,
		request: req,
		target:  req.Contract,
		origin:  origin,
		scope:   scope,
		stack:   &resolutionStack{},
		probe:   newProbeState(),
	}
}

// probeState caches dependency probes for the lifetime of one creation
// context. Only results that did not depend on the resolution stack or on
// a probe in progress are kept, so they stay valid while the stack changes.
type probeState struct {
	visiting map[*Handler]bool
	results  map[*Handler]probeResult
	tainted  int
}

type probeResult struct {
	missing string
	ok      bool
}

func newProbeState() *probeState {
	return &probeState{
		visiting: make(map[*Handler]bool),
		results:  make(map[*Handler]probeResult),
	}
}

// Context returns the context.Context of the top-level call.
func (c *CreationContext) Context() context.Context { return c.ctx }

// Request returns the top-level request.
func (c *CreationContext) Request() Request { return c.request }

// Target returns the contract the current activation is specialized for.
func (c *CreationContext) Target() Contract { return c.target }

// Origin returns the kernel the top-level request was made on.
func (c *CreationContext) Origin() *Kernel { return c.origin }

// Scope returns the scope of the request, or nil.
func (c *CreationContext) Scope() *Scope { return c.scope }

// Depth returns how many handlers are currently being activated.
func (c *CreationContext) Depth() int { return len(c.stack.handlers) }

// IsResolving reports whether h is on the active resolution stack.
func (c *CreationContext) IsResolving(h *Handler) bool {
	return slices.Contains(c.stack.handlers, h)
}

func (c *CreationContext) push(h *Handler) {
	c.stack.handlers = append(c.stack.handlers, h)
}

func (c *CreationContext) pop() {
	c.stack.handlers = c.stack.handlers[:len(c.stack.handlers)-1]
}

// path returns the keys on the stack from the first occurrence of next,
// closed with next itself.
func (c *CreationContext) path(next *Handler) []string {
	start := slices.Index(c.stack.handlers, next)
	if start < 0 {
		start = 0
	}

	keys := make([]string, 0, len(c.stack.handlers)-start+1)
	for _, h := range c.stack.handlers[start:] {
		keys = append(keys, h.Key())
	}

	return append(keys, next.Key())
}

// rebuild returns a context specialized for target that shares this
// context's stack. Open targets keep the current context.
func (c *CreationContext) rebuild(target Contract) *CreationContext {
	if target.IsOpen() {
		return c
	}

	clone := *c
	clone.target = target

	return &clone
}

// Resolution identifies one top-level call in middleware hooks.
type Resolution struct {
	ID      string
	Started time.Time
	Request Request
}

type resolutionKey struct{}

func withResolution(ctx context.Context, req Request) context.Context {
	return context.WithValue(ctx, resolutionKey{}, Resolution{
		ID:      uuid.NewString(),
		Started: time.Now(),
		Request: req,
	})
}

// ResolutionFrom returns the resolution carried by a middleware context.
func ResolutionFrom(ctx context.Context) (Resolution, bool) {
	r, ok := ctx.Value(resolutionKey{}).(Resolution)

	return r, ok
}
