package keel

import (
	"fmt"
	"strings"
)

// =============================================================================
// ERROR CODES
// =============================================================================

const (
	// CodeInvalidModel indicates a component model is incomplete
	CodeInvalidModel = "INVALID_MODEL"

	// CodeDuplicateKey indicates a component key is already registered in a kernel
	CodeDuplicateKey = "DUPLICATE_KEY"

	// CodeServiceNotFound indicates no handler in the visible kernel chain matches
	CodeServiceNotFound = "SERVICE_NOT_FOUND"

	// CodeUnsatisfiedDependency indicates a handler was found but a required dependency was not
	CodeUnsatisfiedDependency = "UNSATISFIED_DEPENDENCY"

	// CodeCircularDependency indicates a handler would be activated while already on the stack
	CodeCircularDependency = "CIRCULAR_DEPENDENCY"

	// CodeAmbiguousReference indicates more than one candidate matched where exactly one is required
	CodeAmbiguousReference = "AMBIGUOUS_REFERENCE"

	// CodeHierarchy indicates an illegal parent/child kernel operation
	CodeHierarchy = "HIERARCHY_ERROR"

	// CodeActivationFailed indicates a component activator returned an error
	CodeActivationFailed = "ACTIVATION_FAILED"

	// CodeScopeEnded indicates operation on an ended scope
	CodeScopeEnded = "SCOPE_ENDED"

	// CodeScopeRequired indicates a scoped component was resolved outside a scope
	CodeScopeRequired = "SCOPE_REQUIRED"

	// CodeTypeMismatch indicates a type mismatch during resolution
	CodeTypeMismatch = "TYPE_MISMATCH"

	// CodeKernelDisposed indicates an operation on a disposed kernel
	CodeKernelDisposed = "KERNEL_DISPOSED"
)

// Error is a coded error. Two errors match under errors.Is when their codes
// are equal, so the sentinels below can be used for classification.
type Error struct {
	Code    string
	Message string
	Cause   error
	Context map[string]any
}

// NewError creates a coded error.
func NewError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Error implements error.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Code == e.Code
}

// WithContext attaches a diagnostic key/value pair and returns the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}

	e.Context[key] = value

	return e
}

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

// ErrInvalidActivator is returned when a model has no activator.
var ErrInvalidActivator = NewError(CodeInvalidModel, "activator cannot be nil", nil)

// ErrServiceNotFoundSentinel is a sentinel for not-found checks.
var ErrServiceNotFoundSentinel = NewError(CodeServiceNotFound, "service not found", nil)

// ErrDuplicateKeySentinel is a sentinel for duplicate registrations.
var ErrDuplicateKeySentinel = NewError(CodeDuplicateKey, "duplicate key", nil)

// ErrCircularDependencySentinel is a sentinel for cycle checks.
var ErrCircularDependencySentinel = NewError(CodeCircularDependency, "circular dependency", nil)

// ErrUnsatisfiedDependencySentinel is a sentinel for unsatisfied dependencies.
var ErrUnsatisfiedDependencySentinel = NewError(CodeUnsatisfiedDependency, "unsatisfied dependency", nil)

// ErrAmbiguousReferenceSentinel is a sentinel for ambiguous references.
var ErrAmbiguousReferenceSentinel = NewError(CodeAmbiguousReference, "ambiguous reference", nil)

// ErrHierarchySentinel is a sentinel for hierarchy errors.
var ErrHierarchySentinel = NewError(CodeHierarchy, "hierarchy error", nil)

// ErrActivationFailedSentinel is a sentinel for activator failures.
var ErrActivationFailedSentinel = NewError(CodeActivationFailed, "activation failed", nil)

// ErrScopeEnded is returned when operations are attempted on an ended scope.
var ErrScopeEnded = NewError(CodeScopeEnded, "scope has ended", nil)

// ErrScopeRequiredSentinel is a sentinel for scoped resolution outside a scope.
var ErrScopeRequiredSentinel = NewError(CodeScopeRequired, "scope required", nil)

// ErrTypeMismatchSentinel is a sentinel error for type mismatch during resolution.
var ErrTypeMismatchSentinel = NewError(CodeTypeMismatch, "type mismatch", nil)

// ErrKernelDisposed is returned by operations on a disposed kernel.
var ErrKernelDisposed = NewError(CodeKernelDisposed, "kernel has been disposed", nil)

// =============================================================================
// ERROR CONSTRUCTORS
// =============================================================================

// ErrInvalidModel creates an error for a model that cannot be registered.
func ErrInvalidModel(key, reason string) *Error {
	return NewError(
		CodeInvalidModel,
		fmt.Sprintf("component '%s' is invalid: %s", key, reason),
		nil,
	).WithContext("component", key)
}

// ErrDuplicateKey creates an error for a key already used in a kernel.
func ErrDuplicateKey(key string) *Error {
	return NewError(
		CodeDuplicateKey,
		fmt.Sprintf("component '%s' already exists", key),
		nil,
	).WithContext("component", key)
}

// ErrServiceNotFound creates an error for when nothing in the visible chain matches.
func ErrServiceNotFound(what string) *Error {
	return NewError(
		CodeServiceNotFound,
		fmt.Sprintf("service '%s' not found", what),
		nil,
	).WithContext("service", what)
}

// ErrUnsatisfiedDependency creates an error naming the component and the dependency it is missing.
func ErrUnsatisfiedDependency(component, dependency string, cause error) *Error {
	return NewError(
		CodeUnsatisfiedDependency,
		fmt.Sprintf("component '%s' has unsatisfied dependency '%s'", component, dependency),
		cause,
	).WithContext("component", component).
		WithContext("dependency", dependency)
}

// ErrCircularDependency creates an error for circular dependency detection.
func ErrCircularDependency(cycle []string) *Error {
	return NewError(
		CodeCircularDependency,
		fmt.Sprintf("circular dependency detected: %s", strings.Join(cycle, " -> ")),
		nil,
	).WithContext("cycle", cycle)
}

// ErrSelfInterception creates a cycle error for an interceptor that would intercept itself.
func ErrSelfInterception(component string) *Error {
	return NewError(
		CodeCircularDependency,
		fmt.Sprintf("cycle detected: component '%s' wants to use itself as its own interceptor", component),
		nil,
	).WithContext("component", component)
}

// ErrAmbiguousReference creates an error for an under-specified reference.
func ErrAmbiguousReference(component string, target Contract, matches int) *Error {
	return NewError(
		CodeAmbiguousReference,
		fmt.Sprintf("ambiguous service: component '%s' has %d services compatible with %s, register it explicitly as %s or pick a single compatible service",
			component, matches, target, target),
		nil,
	).WithContext("component", component).
		WithContext("matches", matches)
}

// ErrHierarchy creates an error for an illegal hierarchy mutation.
func ErrHierarchy(message string) *Error {
	return NewError(CodeHierarchy, message, nil)
}

// NewActivationError creates an error for an activator or interceptor failure.
func NewActivationError(component, operation string, cause error) *Error {
	return NewError(
		CodeActivationFailed,
		fmt.Sprintf("component '%s' error during %s", component, operation),
		cause,
	).WithContext("component", component).
		WithContext("operation", operation)
}

// ErrScopeRequired creates an error for a scoped component resolved outside a scope.
func ErrScopeRequired(component string) *Error {
	return NewError(
		CodeScopeRequired,
		fmt.Sprintf("scoped component '%s' must be resolved from a scope", component),
		nil,
	).WithContext("component", component)
}

// ErrTypeMismatch creates an error for type mismatch during resolution
func ErrTypeMismatch(what string, actual any) *Error {
	return NewError(
		CodeTypeMismatch,
		fmt.Sprintf("service '%s' type mismatch: got %T", what, actual),
		nil,
	).WithContext("service", what).
		WithContext("actual_type", fmt.Sprintf("%T", actual))
}
