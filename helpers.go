package keel

import (
	"fmt"
)

// Resolve with type safety.
func Resolve[T any](k *Kernel) (T, error) {
	var zero T

	instance, err := k.Resolve(ContractOf[T]())
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("%w: component is not of type %T", ErrTypeMismatch(ContractOf[T]().String(), instance), zero)
	}

	return typed, nil
}

// ResolveNamed resolves the component registered under key as T.
func ResolveNamed[T any](k *Kernel, key string) (T, error) {
	var zero T

	instance, err := k.ResolveKey(key)
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("%w: component %s is not of type %T", ErrTypeMismatch(key, instance), key, zero)
	}

	return typed, nil
}

// Must resolves or panics - use only during startup.
func Must[T any](k *Kernel) T {
	instance, err := Resolve[T](k)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %s: %v", ContractOf[T](), err))
	}

	return instance
}

// MustNamed resolves by key or panics - use only during startup.
func MustNamed[T any](k *Kernel, key string) T {
	instance, err := ResolveNamed[T](k, key)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %s: %v", key, err))
	}

	return instance
}

// RegisterComponent registers a component that serves T. Further services
// can be added with WithServices.
//
// Usage:
//
//	keel.RegisterComponent(k, "spamservice",
//	    func(args keel.Arguments) (*SpamService, error) {
//	        return &SpamService{Mailer: keel.Arg[Mailer](args, "mailer")}, nil
//	    },
//	    keel.DependsOn(keel.Inject[Mailer]("mailer")),
//	)
func RegisterComponent[T any](k *Kernel, key string, factory func(Arguments) (T, error), opts ...ModelOption) (*Handler, error) {
	if factory == nil {
		return nil, ErrInvalidActivator
	}

	activator := func(args Arguments) (any, error) {
		return factory(args)
	}

	opts = append([]ModelOption{WithServices(ContractOf[T]()), WithImplementation(ContractOf[T]())}, opts...)

	return k.Register(NewModel(key, activator, opts...))
}

// RegisterSingleton is a convenience wrapper for singleton components.
func RegisterSingleton[T any](k *Kernel, key string, factory func(Arguments) (T, error), opts ...ModelOption) (*Handler, error) {
	return RegisterComponent(k, key, factory, append(opts, Singleton())...)
}

// RegisterTransient is a convenience wrapper for transient components.
func RegisterTransient[T any](k *Kernel, key string, factory func(Arguments) (T, error), opts ...ModelOption) (*Handler, error) {
	return RegisterComponent(k, key, factory, append(opts, Transient())...)
}

// RegisterScoped is a convenience wrapper for scoped components.
func RegisterScoped[T any](k *Kernel, key string, factory func(Arguments) (T, error), opts ...ModelOption) (*Handler, error) {
	return RegisterComponent(k, key, factory, append(opts, Scoped())...)
}

// RegisterValue registers a pre-built instance (always singleton).
func RegisterValue[T any](k *Kernel, key string, instance T, opts ...ModelOption) (*Handler, error) {
	return RegisterComponent(k, key, func(Arguments) (T, error) {
		return instance, nil
	}, append(opts, Singleton())...)
}

// ResolveScope is a helper for resolving from a scope.
func ResolveScope[T any](s *Scope) (T, error) {
	var zero T

	instance, err := s.Resolve(ContractOf[T]())
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("%w: component is not of type %T", ErrTypeMismatch(ContractOf[T]().String(), instance), zero)
	}

	return typed, nil
}

// MustScope resolves from scope or panics.
func MustScope[T any](s *Scope) T {
	instance, err := ResolveScope[T](s)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %s from scope: %v", ContractOf[T](), err))
	}

	return instance
}
