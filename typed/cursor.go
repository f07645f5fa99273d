package typed

import (
	"context"
	"errors"
	"io"
	"reflect"

	"github.com/mondolib/mondo/driver"
	"github.com/mondolib/mondo/raw"
)

// Cursor iterates the typed results of a find or aggregate operation. The
// caller owns the underlying store cursor: iterate with Next and release it
// with Close, or consume everything with All, which closes it on every path.
type Cursor[T Doc] struct {
	inner driver.Cursor
	model *ModelInfo

	cur    *T
	err    error
	done   bool
	closed bool
}

// Next fetches and decodes the next document, reporting whether one is
// available. After Next returns false, Err tells exhaustion from failure.
func (c *Cursor[T]) Next(ctx context.Context) bool {
	if c.done || c.err != nil {
		return false
	}
	d, err := c.inner.Next(ctx)
	if errors.Is(err, io.EOF) {
		c.done = true
		return false
	}
	if err != nil {
		c.err = err
		return false
	}
	out := new(T)
	if err := c.model.decodeDoc(d, reflect.ValueOf(out).Elem()); err != nil {
		c.err = err
		return false
	}
	c.cur = out
	return true
}

// Value returns the document decoded by the last successful Next.
func (c *Cursor[T]) Value() *T { return c.cur }

// Err returns the first error hit while iterating, nil after a clean end.
func (c *Cursor[T]) Err() error { return c.err }

// Close releases the underlying store cursor. Safe to call more than once.
func (c *Cursor[T]) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.inner.Close(ctx)
}

// All drains the cursor into a slice and closes it.
func (c *Cursor[T]) All(ctx context.Context) ([]*T, error) {
	defer c.Close(ctx)
	var out []*T
	for c.Next(ctx) {
		out = append(out, c.Value())
	}
	if c.err != nil {
		return nil, c.err
	}
	return out, nil
}

// RawCursor iterates undecoded result documents, for pipelines that reshape
// their input.
type RawCursor struct {
	inner driver.Cursor

	cur    raw.Document
	err    error
	done   bool
	closed bool
}

// Next fetches the next document, reporting whether one is available.
func (c *RawCursor) Next(ctx context.Context) bool {
	if c.done || c.err != nil {
		return false
	}
	d, err := c.inner.Next(ctx)
	if errors.Is(err, io.EOF) {
		c.done = true
		return false
	}
	if err != nil {
		c.err = err
		return false
	}
	c.cur = d
	return true
}

// Value returns the document fetched by the last successful Next.
func (c *RawCursor) Value() raw.Document { return c.cur }

// Err returns the first error hit while iterating.
func (c *RawCursor) Err() error { return c.err }

// Close releases the underlying store cursor. Safe to call more than once.
func (c *RawCursor) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.inner.Close(ctx)
}

// All drains the cursor into a slice and closes it.
func (c *RawCursor) All(ctx context.Context) ([]raw.Document, error) {
	defer c.Close(ctx)
	var out []raw.Document
	for c.Next(ctx) {
		out = append(out, c.Value())
	}
	if c.err != nil {
		return nil, c.err
	}
	return out, nil
}
