package keel

import (
	"strings"

	"github.com/google/uuid"
)

// Interceptor is a policy object that wraps a component instance after
// activation. Implementations typically return a decorator around target.
type Interceptor interface {
	Intercept(target any) (any, error)
}

// InterceptorContract is the contract interceptor components are expected to expose.
var InterceptorContract = ContractOf[Interceptor]()

// InterceptorReference points at the component that provides an interceptor,
// either by key or by contract.
type InterceptorReference struct {
	key            string
	contract       Contract
	dependencyName string
}

// InterceptorForKey references the interceptor registered under key.
func InterceptorForKey(key string) *InterceptorReference {
	return &InterceptorReference{key: key, dependencyName: interceptorDependencyName()}
}

// InterceptorFor references the first interceptor registered for T.
func InterceptorFor[T any]() *InterceptorReference {
	return InterceptorForContract(ContractOf[T]())
}

// InterceptorForContract references the first interceptor registered for c.
func InterceptorForContract(c Contract) *InterceptorReference {
	return &InterceptorReference{contract: c, dependencyName: interceptorDependencyName()}
}

func interceptorDependencyName() string {
	return "interceptor-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// String returns the key or the contract name.
func (r *InterceptorReference) String() string {
	if r.contract.IsZero() {
		return r.key
	}

	return r.contract.String()
}

// Equal reports whether both references point at the same target.
func (r *InterceptorReference) Equal(other *InterceptorReference) bool {
	if other == nil {
		return false
	}

	return r.key == other.key && r.contract == other.contract
}

// Dependency returns the reference as a policy dependency, so an interceptor
// can also be received as an activator argument.
func (r *InterceptorReference) Dependency() Dependency {
	return Dependency{
		name:     r.dependencyName,
		kind:     ByPolicy,
		contract: r.contract,
		key:      r.key,
		policy:   r,
	}
}

func (r *InterceptorReference) request() Request {
	if r.contract.IsZero() {
		return Request{Key: r.key}
	}

	return Request{Contract: r.contract}
}

// resolve activates the interceptor for the component wrapped by owner.
func (r *InterceptorReference) resolve(cc *CreationContext, owner *Handler) (Interceptor, error) {
	h := lookupHandler(cc, owner.kernel, r.request())
	if h == nil {
		return nil, ErrServiceNotFound("interceptor " + r.String())
	}

	if cc.IsResolving(h) {
		return nil, ErrSelfInterception(h.Key())
	}

	target, err := r.handlerContract(h)
	if err != nil {
		return nil, err
	}

	instance, err := h.activate(cc.rebuild(target))
	if err != nil {
		return nil, err
	}

	icpt, ok := instance.(Interceptor)
	if !ok {
		return nil, ErrTypeMismatch(h.Key(), instance)
	}

	return icpt, nil
}

// handlerContract picks the single service of h that interceptors are
// resolved as: the explicit contract of the reference, the interceptor
// contract itself, or the one service compatible with it.
func (r *InterceptorReference) handlerContract(h *Handler) (Contract, error) {
	if !r.contract.IsZero() {
		return r.contract, nil
	}

	var exact, compatible []Contract
	for _, s := range h.model.services {
		if s == InterceptorContract {
			exact = append(exact, s)
		} else if s.Satisfies(InterceptorContract) {
			compatible = append(compatible, s)
		}
	}

	if len(exact) == 1 {
		return exact[0], nil
	}

	if len(compatible) != 1 {
		return Contract{}, ErrAmbiguousReference(h.Key(), InterceptorContract, len(compatible))
	}

	return compatible[0], nil
}
