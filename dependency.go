package keel

import "fmt"

// DependencyKind says how a dependency is satisfied.
type DependencyKind int

const (
	// ByContract resolves the first handler exposing the contract.
	ByContract DependencyKind = iota
	// ByKey resolves the handler registered under a key.
	ByKey
	// ByValue takes a literal value, inline or from the model's parameters.
	ByValue
	// ByPolicy resolves a policy object (an interceptor) for the requesting component.
	ByPolicy
)

// String returns the kind name.
func (k DependencyKind) String() string {
	switch k {
	case ByContract:
		return "contract"
	case ByKey:
		return "key"
	case ByValue:
		return "value"
	case ByPolicy:
		return "policy"
	default:
		return fmt.Sprintf("DependencyKind(%d)", int(k))
	}
}

// Dependency describes one declared need of a component. Values are
// immutable; the modifier methods return copies.
type Dependency struct {
	name       string
	kind       DependencyKind
	contract   Contract
	key        string
	optional   bool
	value      any
	hasValue   bool
	def        any
	hasDefault bool
	lazy       func(origin *Kernel, scope *Scope, d Dependency) any
	policy     *InterceptorReference
}

// KeyRef is a parameter override that redirects a dependency to the
// component registered under the given key.
type KeyRef string

// Inject declares a dependency on the contract of T.
//
// Usage:
//
//	keel.NewModel("userService", newUserService,
//	    keel.DependsOn(keel.Inject[*sql.DB]("db")),
//	)
func Inject[T any](name string) Dependency {
	return InjectContract(name, ContractOf[T]())
}

// InjectContract declares a dependency on an explicit contract.
func InjectContract(name string, c Contract) Dependency {
	return Dependency{name: name, kind: ByContract, contract: c}
}

// InjectKey declares a dependency on the component registered under key.
func InjectKey(name, key string) Dependency {
	return Dependency{name: name, kind: ByKey, key: key}
}

// InjectValue declares a literal dependency with an inline value.
func InjectValue(name string, value any) Dependency {
	return Dependency{name: name, kind: ByValue, value: value, hasValue: true}
}

// Parameter declares a literal dependency supplied through WithParameter.
func Parameter(name string) Dependency {
	return Dependency{name: name, kind: ByValue}
}

// OptionalInject declares a dependency on T that resolves to nil when absent.
func OptionalInject[T any](name string) Dependency {
	return Inject[T](name).AsOptional()
}

// LazyInject declares a dependency on T delivered as a *Lazy[T]. The target
// is resolved on first access from the kernel that started the resolution.
//
// Usage:
//
//	keel.DependsOn(keel.LazyInject[*Cache]("cache"))
//	...
//	cache := keel.Arg[*keel.Lazy[*Cache]](args, "cache")
func LazyInject[T any](name string) Dependency {
	d := Inject[T](name)
	d.lazy = func(origin *Kernel, scope *Scope, d Dependency) any {
		return newLazy[T](origin, scope, d.request())
	}

	return d
}

// ProviderInject declares a dependency on T delivered as a *Provider[T],
// which performs a fresh resolution on every call.
func ProviderInject[T any](name string) Dependency {
	d := Inject[T](name)
	d.lazy = func(origin *Kernel, scope *Scope, d Dependency) any {
		return newProvider[T](origin, scope, d.request())
	}

	return d
}

// AsOptional returns a copy of d that resolves to nil (or its default) when
// nothing satisfies it.
func (d Dependency) AsOptional() Dependency {
	d.optional = true

	return d
}

// WithDefault returns a copy of d that falls back to value when nothing satisfies it.
func (d Dependency) WithDefault(value any) Dependency {
	d.def = value
	d.hasDefault = true

	return d
}

// WithContract returns a copy of a key dependency that also checks the
// resolved handler exposes c.
func (d Dependency) WithContract(c Contract) Dependency {
	d.contract = c

	return d
}

// Name returns the dependency name.
func (d Dependency) Name() string { return d.name }

// Kind returns how the dependency is satisfied.
func (d Dependency) Kind() DependencyKind { return d.kind }

// Contract returns the requested contract, if any.
func (d Dependency) Contract() Contract { return d.contract }

// Key returns the requested key, if any.
func (d Dependency) Key() string { return d.key }

// IsOptional reports whether the dependency may be left unsatisfied.
func (d Dependency) IsOptional() bool { return d.optional }

// IsLazy reports whether the dependency is delivered as a Lazy or Provider.
func (d Dependency) IsLazy() bool { return d.lazy != nil }

// Value returns the inline value of a ByValue dependency.
func (d Dependency) Value() (any, bool) { return d.value, d.hasValue }

// Default returns the fallback value.
func (d Dependency) Default() (any, bool) { return d.def, d.hasDefault }

// Target returns the key or contract name the dependency points at.
func (d Dependency) Target() string {
	switch d.kind {
	case ByKey:
		return d.key
	case ByPolicy:
		if d.policy != nil {
			return d.policy.String()
		}
	}

	return d.contract.String()
}

func (d Dependency) request() Request {
	if d.kind == ByKey {
		return Request{Key: d.key, Contract: d.contract}
	}

	return Request{Contract: d.contract}
}

// Request is what a caller asks a kernel for: a contract, a key, or both.
type Request struct {
	Contract Contract
	Key      string
}

// String returns a human-readable representation of the request.
func (r Request) String() string {
	if r.Key == "" {
		return r.Contract.String()
	}

	if r.Contract.IsZero() {
		return r.Key
	}

	return fmt.Sprintf("%s[key=%s]", r.Contract, r.Key)
}

// DependencyNames returns the names of deps in order.
func DependencyNames(deps []Dependency) []string {
	names := make([]string, len(deps))
	for i, d := range deps {
		names[i] = d.name
	}

	return names
}
