package keel

import (
	"errors"
	"fmt"
)

// Lookup rules
//
// A top-level request starts in the origin kernel and walks up the parent
// chain. Dependencies of a component are searched in the origin kernel's own
// registry first and then along the chain of the kernel that owns the
// component. This makes a child's registrations visible to components found
// in its parent when the request started in the child, while siblings never
// see each other.
//
// Kernels strictly between the origin and the owner are not consulted for
// nested dependencies. A component in a grandparent whose dependency is
// registered only in the middle kernel does not resolve from the grandchild.

// searchOrder returns the kernels to consult for a dependency of a component
// owned by owner.
func searchOrder(cc *CreationContext, owner *Kernel) []*Kernel {
	var order []*Kernel
	if cc.origin != nil && cc.origin != owner {
		order = append(order, cc.origin)
	}

	for k := owner; k != nil; k = k.Parent() {
		if k != cc.origin || len(order) == 0 {
			order = append(order, k)
		}
	}

	return order
}

// locate finds the handler that should serve req.
//
// A key hit is decisive: the handler is used, or the lookup fails with a
// cycle or mismatch error, without delegating further. A contract lookup
// stops at the first kernel with a candidate that is not being resolved.
// There it takes the first candidate whose dependencies can be located, or
// else the first candidate so activation reports the missing dependency.
// Only kernels whose candidates are all being resolved are passed over.
func locate(cc *CreationContext, owner *Kernel, req Request) (*Handler, error) {
	var cycleErr error

	for _, k := range searchOrder(cc, owner) {
		if req.Key != "" {
			h := k.localHandler(req.Key)
			if h == nil {
				continue
			}

			if cc.IsResolving(h) {
				return nil, ErrCircularDependency(cc.path(h))
			}

			if !req.Contract.IsZero() && !h.model.Serves(req.Contract) {
				return nil, NewError(CodeTypeMismatch,
					fmt.Sprintf("component '%s' does not provide %s", h.Key(), req.Contract), nil).
					WithContext("component", h.Key())
			}

			return h, nil
		}

		h, _, resolving := pickCandidate(cc, k.candidates(req.Contract))
		if h != nil {
			return h, nil
		}

		if resolving != nil && cycleErr == nil {
			cycleErr = ErrCircularDependency(cc.path(resolving))
		}
	}

	if cycleErr != nil {
		return nil, cycleErr
	}

	return nil, ErrServiceNotFound(req.String())
}

// pickCandidate chooses among the candidates of one kernel. It returns the
// first candidate that is not being resolved and whose dependencies can be
// located, with viable set. Failing that it returns the first candidate not
// being resolved. resolving is the first candidate skipped for being on the
// stack.
func pickCandidate(cc *CreationContext, candidates []*Handler) (pick *Handler, viable bool, resolving *Handler) {
	for _, h := range candidates {
		if cc.IsResolving(h) {
			if resolving == nil {
				resolving = h
			}

			cc.probe.tainted++

			continue
		}

		if _, missing := unsatisfied(cc, h); !missing {
			return h, true, resolving
		}

		if pick == nil {
			pick = h
		}
	}

	return pick, false, resolving
}

// lookupHandler returns the first handler matching req in search order
// without filtering handlers that are being resolved.
func lookupHandler(cc *CreationContext, owner *Kernel, req Request) *Handler {
	for _, k := range searchOrder(cc, owner) {
		if req.Key != "" {
			if h := k.localHandler(req.Key); h != nil {
				return h
			}

			continue
		}

		if candidates := k.candidates(req.Contract); len(candidates) > 0 {
			return candidates[0]
		}
	}

	return nil
}

// unsatisfied probes whether every required dependency of h can be located.
// It returns the name of the first dependency that cannot. Nothing is
// activated. Results are cached on cc when they do not depend on the stack.
func unsatisfied(cc *CreationContext, h *Handler) (string, bool) {
	p := cc.probe
	if r, ok := p.results[h]; ok {
		return r.missing, !r.ok
	}

	if p.visiting[h] {
		p.tainted++

		return "", false
	}

	if h.cached(cc) {
		return "", false
	}

	p.visiting[h] = true
	tainted := p.tainted
	missing, found := probeDependencies(cc, h)
	delete(p.visiting, h)

	if p.tainted == tainted {
		p.results[h] = probeResult{missing: missing, ok: !found}
	}

	return missing, found
}

func probeDependencies(cc *CreationContext, h *Handler) (string, bool) {
	for _, d := range h.model.dependencies {
		if !dependencyLocatable(cc, h, d) {
			return d.name, true
		}
	}

	for _, ref := range h.model.interceptors {
		if lookupHandler(cc, h.kernel, ref.request()) == nil {
			return ref.dependencyName, true
		}
	}

	return "", false
}

func dependencyLocatable(cc *CreationContext, h *Handler, d Dependency) bool {
	if d.optional || d.hasDefault || d.lazy != nil {
		return true
	}

	req := d.request()

	if v, ok := h.model.parameters[d.name]; ok {
		ref, isRef := v.(KeyRef)
		if !isRef || d.kind == ByValue {
			return true
		}

		req = Request{Key: string(ref), Contract: d.contract}
	} else {
		switch d.kind {
		case ByValue:
			return d.hasValue
		case ByPolicy:
			return lookupHandler(cc, h.kernel, d.policy.request()) != nil
		}
	}

	for _, k := range searchOrder(cc, h.kernel) {
		if req.Key != "" {
			target := k.localHandler(req.Key)
			if target == nil {
				continue
			}

			if cc.IsResolving(target) {
				cc.probe.tainted++

				return false
			}

			_, missing := unsatisfied(cc, target)

			return !missing
		}

		if pick, viable, _ := pickCandidate(cc, k.candidates(req.Contract)); pick != nil {
			return viable
		}
	}

	return false
}

// resolveArguments resolves the dependencies of h in declaration order.
func resolveArguments(cc *CreationContext, h *Handler) (Arguments, error) {
	deps := h.model.dependencies
	args := Arguments{
		names:  DependencyNames(deps),
		values: make([]any, len(deps)),
		params: h.model.parameters,
	}

	for i, d := range deps {
		value, err := resolveDependency(cc, h, d)
		if err != nil {
			return Arguments{}, ErrUnsatisfiedDependency(h.Key(), d.name, err)
		}

		args.values[i] = value
	}

	return args, nil
}

func resolveDependency(cc *CreationContext, h *Handler, d Dependency) (any, error) {
	if v, ok := h.model.parameters[d.name]; ok {
		ref, isRef := v.(KeyRef)
		if !isRef || d.kind == ByValue {
			return v, nil
		}

		return resolveRequest(cc, h.kernel, d, Request{Key: string(ref), Contract: d.contract})
	}

	switch d.kind {
	case ByValue:
		if d.hasValue {
			return d.value, nil
		}

		return fallback(d, ErrServiceNotFound("parameter "+d.name))
	case ByPolicy:
		return d.policy.resolve(cc, h)
	}

	if d.lazy != nil {
		return d.lazy(cc.origin, cc.scope, d), nil
	}

	return resolveRequest(cc, h.kernel, d, d.request())
}

func resolveRequest(cc *CreationContext, owner *Kernel, d Dependency, req Request) (any, error) {
	target, err := locate(cc, owner, req)
	if err != nil {
		return fallback(d, err)
	}

	instance, err := target.activate(cc)
	if err != nil {
		return fallback(d, err)
	}

	return instance, nil
}

// fallback applies the default or optional policy of d to a lookup failure.
// Only not-found and unsatisfied failures are absorbed; cycles and
// activator errors anywhere in the chain are not.
func fallback(d Dependency, err error) (any, error) {
	if !errors.Is(err, ErrServiceNotFoundSentinel) && !errors.Is(err, ErrUnsatisfiedDependencySentinel) {
		return nil, err
	}

	if errors.Is(err, ErrCircularDependencySentinel) || errors.Is(err, ErrActivationFailedSentinel) {
		return nil, err
	}

	if d.hasDefault {
		return d.def, nil
	}

	if d.optional {
		return nil, nil
	}

	return nil, err
}
