package driver

import (
	"errors"
	"fmt"
)

// Well-known error codes shared by conforming drivers. The typed layer maps
// these onto its own error taxonomy and passes everything else through
// unchanged.
const (
	// CodeDuplicateKey signals a unique index violation (including _id).
	CodeDuplicateKey = 11000
	// CodeNamespaceExists signals collection creation against an existing
	// collection with incompatible options (e.g. a different validator).
	CodeNamespaceExists = 48
	// CodeDocumentValidationFailure signals a write rejected by the
	// collection's validator.
	CodeDocumentValidationFailure = 121
	// CodeCursorNotFound signals an operation on a released cursor.
	CodeCursorNotFound = 43
	// CodeBadCommand signals a malformed or unsupported command document.
	CodeBadCommand = 2
)

// Error is an opaque failure reported by the executing driver. The typed
// layer wraps it but never reinterprets Message.
type Error struct {
	// Code is the store's numeric error code, 0 when unknown.
	Code int
	// Message is the driver-supplied description.
	Message string
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("driver: (%d) %s", e.Code, e.Message)
	}
	return "driver: " + e.Message
}

// HasCode reports whether err is a driver Error carrying the given code.
func HasCode(err error, code int) bool {
	var de *Error
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == code
}
