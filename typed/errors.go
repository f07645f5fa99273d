package typed

import "fmt"

// NotRegisteredError is returned when an operation is attempted on a Go type
// that has not been registered.
type NotRegisteredError struct {
	TypeName string
}

// Error returns the error message for NotRegisteredError.
func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("type %q is not registered", e.TypeName)
}

// PathError is returned when a field path cannot be resolved against a
// document type's declared schema.
type PathError struct {
	TypeName string
	Path     string
	Reason   string
}

// Error returns the error message for PathError.
func (e *PathError) Error() string {
	return fmt.Sprintf("path %q on %s: %s", e.Path, e.TypeName, e.Reason)
}

// TypeMismatchError is returned when an expression operand disagrees with the
// declared type of the field it is applied to. It is reported at expression
// construction time, never at execution time.
type TypeMismatchError struct {
	Field    string
	Expected string
	Actual   string
}

// Error returns the error message for TypeMismatchError.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("field %q expects %s, got %s", e.Field, e.Expected, e.Actual)
}

// ConflictingUpdateError is returned when two operations in one update
// expression target the same path or paths in an ancestor/descendant
// relation, whose combined store semantics would be undefined.
type ConflictingUpdateError struct {
	PathA string
	PathB string
}

// Error returns the error message for ConflictingUpdateError.
func (e *ConflictingUpdateError) Error() string {
	return fmt.Sprintf("update paths %q and %q conflict", e.PathA, e.PathB)
}

// EncodeError is returned when a document instance cannot be serialized to
// the generic document tree.
type EncodeError struct {
	Field string
	Cause error
}

// Error returns the error message for EncodeError.
func (e *EncodeError) Error() string {
	return fmt.Sprintf("encoding field %q: %v", e.Field, e.Cause)
}

// Unwrap returns the underlying cause of the EncodeError.
func (e *EncodeError) Unwrap() error {
	return e.Cause
}

// DecodeError is returned when a raw document cannot be deserialized into a
// document instance. Path names the offending field in dotted form when known.
type DecodeError struct {
	Path  string
	Cause error
}

// Error returns the error message for DecodeError.
func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decoding document: %v", e.Cause)
	}
	return fmt.Sprintf("decoding %q: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying cause of the DecodeError.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// IdentifierFormatError is returned when a native identifier value has a
// shape the identifier adapter does not support. Conversion is strict: no
// best-effort coercion is attempted.
type IdentifierFormatError struct {
	Expected string
	Got      string
}

// Error returns the error message for IdentifierFormatError.
func (e *IdentifierFormatError) Error() string {
	return fmt.Sprintf("identifier: expected %s, got %s", e.Expected, e.Got)
}

// SchemaConflictError is returned when collection creation finds an existing
// collection whose validator differs from the derived one.
type SchemaConflictError struct {
	Collection string
	Message    string
}

// Error returns the error message for SchemaConflictError.
func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("schema conflict on %q: %s", e.Collection, e.Message)
}

// DuplicateKeyError is returned when a write violates the collection's
// unique identifier constraint.
type DuplicateKeyError struct {
	Collection string
	Message    string
}

// Error returns the error message for DuplicateKeyError.
func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key in %q: %s", e.Collection, e.Message)
}
