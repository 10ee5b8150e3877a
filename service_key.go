package keel

// ServiceKey provides type-safe component identification.
// Use NewServiceKey to create typed keys for your components.
type ServiceKey[T any] struct {
	name string
}

// NewServiceKey creates a new typed service key.
// The type parameter T ensures type safety when registering and resolving components.
//
// Example:
//
//	var DatabaseKey = NewServiceKey[*Database]("database")
//	var UserServiceKey = NewServiceKey[*UserService]("userService")
func NewServiceKey[T any](name string) ServiceKey[T] {
	return ServiceKey[T]{name: name}
}

// Name returns the string name of the service key.
func (k ServiceKey[T]) Name() string {
	return k.name
}

// Contract returns the contract of T.
func (k ServiceKey[T]) Contract() Contract {
	return ContractOf[T]()
}

// Dependency returns a by-key dependency on this key, checked against T.
func (k ServiceKey[T]) Dependency(name string) Dependency {
	return InjectKey(name, k.name).WithContract(ContractOf[T]())
}

// RegisterWithKey registers a component using a typed service key.
//
// Example:
//
//	var DatabaseKey = NewServiceKey[*Database]("database")
//	RegisterWithKey(k, DatabaseKey, func(keel.Arguments) (*Database, error) {
//	    return &Database{}, nil
//	}, Singleton())
func RegisterWithKey[T any](k *Kernel, key ServiceKey[T], factory func(Arguments) (T, error), opts ...ModelOption) (*Handler, error) {
	return RegisterComponent(k, key.name, factory, opts...)
}

// ResolveWithKey resolves a component using a typed service key.
//
// Example:
//
//	db, err := ResolveWithKey(k, DatabaseKey)
func ResolveWithKey[T any](k *Kernel, key ServiceKey[T]) (T, error) {
	var zero T

	instance, err := k.ResolveNamed(key.Contract(), key.name)
	if err != nil {
		return zero, err
	}

	result, ok := instance.(T)
	if !ok {
		return zero, ErrTypeMismatch(key.name, instance)
	}

	return result, nil
}

// MustWithKey resolves a component using a typed service key and panics on error.
//
// Example:
//
//	db := MustWithKey(k, DatabaseKey)
func MustWithKey[T any](k *Kernel, key ServiceKey[T]) T {
	result, err := ResolveWithKey(k, key)
	if err != nil {
		panic(err)
	}
	return result
}

// HasServiceKey checks if a component is registered using a typed service key.
func HasServiceKey[T any](k *Kernel, key ServiceKey[T]) bool {
	return k.HasKey(key.name)
}

// InspectKey returns diagnostic information about a component using a typed service key.
func InspectKey[T any](k *Kernel, key ServiceKey[T]) ComponentInfo {
	return k.Inspect(key.name)
}
