package keel

// RegisterAll registers multiple models in a single call.
// Registration stops at the first failure; models registered before it stay registered.
//
// Example:
//
//	err := keel.RegisterAll(k,
//	    keel.NewModel("db", newDatabase, keel.WithServices(dbContract)),
//	    keel.NewModel("cache", newCache, keel.WithServices(cacheContract)),
//	)
func RegisterAll(k *Kernel, models ...*ComponentModel) error {
	for _, m := range models {
		if _, err := k.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// TypedRegistration holds configuration for a typed component to be registered.
type TypedRegistration[T any] struct {
	Key     string
	Factory func(Arguments) (T, error)
	Options []ModelOption
}

// TypedComponent creates a TypedRegistration for batch typed registration.
func TypedComponent[T any](key string, factory func(Arguments) (T, error), opts ...ModelOption) TypedRegistration[T] {
	return TypedRegistration[T]{
		Key:     key,
		Factory: factory,
		Options: opts,
	}
}

// RegisterTypedComponents registers multiple components of the same type in a single call.
//
// Example:
//
//	err := keel.RegisterTypedComponents(k,
//	    keel.TypedComponent("primary", newStore),
//	    keel.TypedComponent("replica", newStore, keel.Transient()),
//	)
func RegisterTypedComponents[T any](k *Kernel, components ...TypedRegistration[T]) error {
	for _, c := range components {
		if _, err := RegisterComponent(k, c.Key, c.Factory, c.Options...); err != nil {
			return err
		}
	}
	return nil
}
