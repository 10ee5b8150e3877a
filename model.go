package keel

import (
	"fmt"
	"maps"
	"slices"
)

// Lifecycle governs instance reuse across resolutions.
type Lifecycle string

const (
	// LifecycleSingleton builds one instance per handler and reuses it.
	LifecycleSingleton Lifecycle = "singleton"

	// LifecycleTransient builds a new instance on every resolution.
	LifecycleTransient Lifecycle = "transient"

	// LifecycleScoped builds one instance per Scope.
	LifecycleScoped Lifecycle = "scoped"

	// LifecyclePooled recycles released instances through a bounded pool.
	LifecyclePooled Lifecycle = "pooled"

	// LifecycleCustom delegates to a LifestyleManager supplied by the model.
	LifecycleCustom Lifecycle = "custom"
)

// String returns the lifecycle name.
func (l Lifecycle) String() string {
	return string(l)
}

// Activator constructs a component instance from its resolved dependencies.
type Activator func(args Arguments) (any, error)

// ComponentModel describes one registrable unit. It is immutable once built
// and owned by the Handler that wraps it.
type ComponentModel struct {
	key            string
	services       []Contract
	implementation Contract
	lifecycle      Lifecycle
	dependencies   []Dependency
	interceptors   []*InterceptorReference
	parameters     map[string]any
	metadata       map[string]string
	groups         []string
	poolSize       int
	lifestyle      LifestyleFactory
	activator      Activator
}

// ModelOption configures a ComponentModel while it is being built.
type ModelOption func(*ComponentModel)

// NewModel builds a component model. The default lifecycle is singleton.
//
// Example:
//
//	model := keel.NewModel("mailer", newMailer,
//	    keel.WithServices(keel.ContractOf[Mailer]()),
//	    keel.DependsOn(keel.Inject[*Templates]("templates")),
//	    keel.Transient(),
//	)
func NewModel(key string, activator Activator, opts ...ModelOption) *ComponentModel {
	m := &ComponentModel{
		key:        key,
		lifecycle:  LifecycleSingleton,
		parameters: make(map[string]any),
		metadata:   make(map[string]string),
		activator:  activator,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// WithServices adds the contracts the component satisfies.
func WithServices(contracts ...Contract) ModelOption {
	return func(m *ComponentModel) {
		for _, c := range contracts {
			if !slices.Contains(m.services, c) {
				m.services = append(m.services, c)
			}
		}
	}
}

// WithImplementation records the concrete contract the activator produces.
func WithImplementation(c Contract) ModelOption {
	return func(m *ComponentModel) {
		m.implementation = c
	}
}

// Singleton makes the component a singleton (default).
func Singleton() ModelOption {
	return func(m *ComponentModel) {
		m.lifecycle = LifecycleSingleton
	}
}

// Transient makes the component created on each resolve.
func Transient() ModelOption {
	return func(m *ComponentModel) {
		m.lifecycle = LifecycleTransient
	}
}

// Scoped makes the component live for the duration of a scope.
func Scoped() ModelOption {
	return func(m *ComponentModel) {
		m.lifecycle = LifecycleScoped
	}
}

// Pooled keeps up to size released instances for reuse.
func Pooled(size int) ModelOption {
	return func(m *ComponentModel) {
		m.lifecycle = LifecyclePooled
		m.poolSize = size
	}
}

// WithLifestyle installs a custom lifestyle. The factory is called once per
// handler.
func WithLifestyle(factory LifestyleFactory) ModelOption {
	return func(m *ComponentModel) {
		m.lifecycle = LifecycleCustom
		m.lifestyle = factory
	}
}

// DependsOn appends dependencies in declaration order.
func DependsOn(deps ...Dependency) ModelOption {
	return func(m *ComponentModel) {
		m.dependencies = append(m.dependencies, deps...)
	}
}

// WithParameter overrides the dependency named name with value. A KeyRef
// value redirects the dependency to another component key.
func WithParameter(name string, value any) ModelOption {
	return func(m *ComponentModel) {
		m.parameters[name] = value
	}
}

// WithMetadata adds diagnostic metadata.
func WithMetadata(key, value string) ModelOption {
	return func(m *ComponentModel) {
		m.metadata[key] = value
	}
}

// WithGroup adds the component to a named group.
func WithGroup(group string) ModelOption {
	return func(m *ComponentModel) {
		if !slices.Contains(m.groups, group) {
			m.groups = append(m.groups, group)
		}
	}
}

// WithInterceptors attaches interceptor references. Their instances wrap the
// component after activation, in the order given.
func WithInterceptors(refs ...*InterceptorReference) ModelOption {
	return func(m *ComponentModel) {
		m.interceptors = append(m.interceptors, refs...)
	}
}

// Key returns the component key.
func (m *ComponentModel) Key() string { return m.key }

// Services returns the contracts the component satisfies.
func (m *ComponentModel) Services() []Contract { return slices.Clone(m.services) }

// Implementation returns the concrete contract, if recorded.
func (m *ComponentModel) Implementation() Contract { return m.implementation }

// Lifecycle returns the lifecycle policy.
func (m *ComponentModel) Lifecycle() Lifecycle { return m.lifecycle }

// Dependencies returns the declared dependencies in order.
func (m *ComponentModel) Dependencies() []Dependency { return slices.Clone(m.dependencies) }

// Interceptors returns the attached interceptor references.
func (m *ComponentModel) Interceptors() []*InterceptorReference { return slices.Clone(m.interceptors) }

// Parameters returns a copy of the parameter overrides.
func (m *ComponentModel) Parameters() map[string]any { return maps.Clone(m.parameters) }

// Metadata returns a copy of the metadata.
func (m *ComponentModel) Metadata() map[string]string { return maps.Clone(m.metadata) }

// Groups returns the groups the component belongs to.
func (m *ComponentModel) Groups() []string { return slices.Clone(m.groups) }

// Serves reports whether the component can satisfy a request for c.
func (m *ComponentModel) Serves(c Contract) bool {
	for _, s := range m.services {
		if s.Satisfies(c) {
			return true
		}
	}

	return false
}

func (m *ComponentModel) validate() error {
	if m.key == "" {
		return ErrInvalidModel(m.key, "key cannot be empty")
	}

	if m.activator == nil {
		return ErrInvalidActivator
	}

	if len(m.services) == 0 {
		return ErrInvalidModel(m.key, "at least one service contract is required")
	}

	switch m.lifecycle {
	case LifecycleSingleton, LifecycleTransient, LifecycleScoped:
	case LifecyclePooled:
		if m.poolSize <= 0 {
			return ErrInvalidModel(m.key, fmt.Sprintf("pool size must be positive, got %d", m.poolSize))
		}
	case LifecycleCustom:
		if m.lifestyle == nil {
			return ErrInvalidModel(m.key, "custom lifecycle requires a lifestyle factory")
		}
	default:
		return ErrInvalidModel(m.key, fmt.Sprintf("unknown lifecycle %q", m.lifecycle))
	}

	for _, d := range m.dependencies {
		if d.name == "" {
			return ErrInvalidModel(m.key, "dependency name cannot be empty")
		}
	}

	return nil
}

// Arguments carries the resolved dependencies handed to an Activator.
type Arguments struct {
	names  []string
	values []any
	params map[string]any
}

// Len returns the number of resolved dependencies.
func (a Arguments) Len() int { return len(a.values) }

// At returns the i-th dependency value in declaration order.
func (a Arguments) At(i int) any { return a.values[i] }

// Get returns the value of the named dependency, or nil.
func (a Arguments) Get(name string) any {
	if i := slices.Index(a.names, name); i >= 0 {
		return a.values[i]
	}

	return nil
}

// Has reports whether the named dependency resolved to a non-nil value.
func (a Arguments) Has(name string) bool {
	return a.Get(name) != nil
}

// Param returns a parameter override that is not bound to a declared dependency.
func (a Arguments) Param(name string) (any, bool) {
	v, ok := a.params[name]

	return v, ok
}

// Arg returns the named dependency as T, or the zero value.
func Arg[T any](args Arguments, name string) T {
	v, _ := args.Get(name).(T)

	return v
}
