// Package driver defines the narrow contract between the typed layer and an
// executing document-database driver.
//
// The typed layer lowers every operation to a single command document and
// hands it to a [Conn]; it never constructs wire messages itself. Production
// deployments plug in a real network driver behind this interface; the
// embedded reference engine in [github.com/mondolib/mondo/driver/engine]
// implements the same contract in-process.
package driver

import (
	"context"

	"github.com/mondolib/mondo/raw"
)

// Conn executes lowered command documents. Implementations must be safe for
// concurrent use; cancellation and deadlines arrive through ctx and must be
// honored by the implementation, never reinterpreted by callers.
type Conn interface {
	// RunCommand executes a command that yields a single reply document
	// (insert, update, delete, count, distinct, create, drop).
	RunCommand(ctx context.Context, cmd raw.Document) (raw.Document, error)

	// OpenCursor executes a command that yields a result sequence
	// (find, aggregate). The returned cursor is forward-only and must be
	// closed by the caller; implementations release server-side resources
	// on Close even when the sequence was not exhausted.
	OpenCursor(ctx context.Context, cmd raw.Document) (Cursor, error)
}

// Cursor is a server-side handle over a result sequence, consumed one
// document at a time. Next returns io.EOF after the final document.
// Implementations must not prefetch beyond their own batching.
type Cursor interface {
	Next(ctx context.Context) (raw.Document, error)
	Close(ctx context.Context) error
}
