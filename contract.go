package keel

import "reflect"

// Contract identifies the capability a component provides and a dependency
// asks for. Contracts are comparable and can be used as map keys.
type Contract struct {
	name string
	typ  reflect.Type
	open bool
}

// ContractOf returns the contract for the Go type T.
func ContractOf[T any]() Contract {
	t := reflect.TypeFor[T]()

	return Contract{name: t.String(), typ: t}
}

// NamedContract returns an abstract contract that has no Go type behind it.
func NamedContract(name string) Contract {
	return Contract{name: name}
}

// OpenContract returns a contract for a generic definition whose type
// parameters are not bound, e.g. "Repository[T]".
func OpenContract(name string) Contract {
	return Contract{name: name, open: true}
}

// Name returns the contract name.
func (c Contract) Name() string {
	return c.name
}

// Type returns the Go type of the contract, or nil for named and open contracts.
func (c Contract) Type() reflect.Type {
	return c.typ
}

// IsOpen reports whether the contract still has unbound type parameters.
func (c Contract) IsOpen() bool {
	return c.open
}

// IsZero reports whether c is the zero contract.
func (c Contract) IsZero() bool {
	return c.name == "" && c.typ == nil
}

// String returns a human-readable representation of the contract.
func (c Contract) String() string {
	if c.IsZero() {
		return "<none>"
	}

	return c.name
}

// Satisfies reports whether a component exposing c can serve a request for target.
func (c Contract) Satisfies(target Contract) bool {
	if c == target {
		return true
	}

	if c.typ == nil || target.typ == nil {
		return false
	}

	return target.typ.Kind() == reflect.Interface && c.typ.Implements(target.typ)
}
