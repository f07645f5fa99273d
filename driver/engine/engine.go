// Package engine is an embedded command engine implementing driver.Conn over
// a pluggable Storage backend. It evaluates filters, applies updates, runs
// aggregation stages, and enforces collection validators, all on generic
// document trees. Intended for tests, tooling, and small embedded uses.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mondolib/mondo/driver"
	"github.com/mondolib/mondo/raw"
)

// ErrDuplicateID is returned by Storage.Insert when the identifier is taken.
var ErrDuplicateID = errors.New("engine: duplicate identifier")

// Iterator walks the documents of one collection in insertion order.
type Iterator interface {
	// Next returns the next document, or io.EOF when the scan is done.
	Next(ctx context.Context) (raw.Document, error)
	Close(ctx context.Context) error
}

// Storage persists collections of documents keyed by identifier. Identifier
// keys are the canonical rendering of the "_id" value, produced by IDKey.
type Storage interface {
	// CreateCollection makes the collection exist. Idempotent.
	CreateCollection(ctx context.Context, name string) error
	DropCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)

	// Validator returns the collection's stored validator, nil when none.
	Validator(ctx context.Context, name string) (raw.Document, error)
	SetValidator(ctx context.Context, name string, v raw.Document) error

	// Insert stores a new document under its key. ErrDuplicateID when taken.
	Insert(ctx context.Context, name, key string, doc raw.Document) error
	// Replace overwrites the document stored under the key.
	Replace(ctx context.Context, name, key string, doc raw.Document) error
	// Delete removes the document stored under the key.
	Delete(ctx context.Context, name, key string) error
	// Scan iterates the collection in insertion order.
	Scan(ctx context.Context, name string) (Iterator, error)
}

// IDKey renders an identifier value into the canonical string form storage
// backends key on.
func IDKey(id raw.Value) string { return raw.Format(id) }

// Engine implements driver.Conn over a Storage backend. Commands are
// evaluated eagerly; cursors yield the precomputed result set.
type Engine struct {
	store Storage
}

// New returns an Engine over the given storage backend.
func New(store Storage) *Engine {
	return &Engine{store: store}
}

// RunCommand executes one command document and returns its reply.
func (e *Engine) RunCommand(ctx context.Context, cmd raw.Document) (raw.Document, error) {
	if len(cmd) == 0 {
		return nil, &driver.Error{Code: driver.CodeBadCommand, Message: "empty command"}
	}
	switch cmd[0].Key {
	case "insert":
		return e.runInsert(ctx, cmd)
	case "update":
		return e.runUpdate(ctx, cmd)
	case "delete":
		return e.runDelete(ctx, cmd)
	case "count":
		return e.runCount(ctx, cmd)
	case "distinct":
		return e.runDistinct(ctx, cmd)
	case "create":
		return e.runCreate(ctx, cmd)
	case "drop":
		return e.runDrop(ctx, cmd)
	case "find", "aggregate":
		return nil, &driver.Error{Code: driver.CodeBadCommand,
			Message: fmt.Sprintf("command %q returns a cursor, use OpenCursor", cmd[0].Key)}
	}
	return nil, &driver.Error{Code: driver.CodeBadCommand,
		Message: fmt.Sprintf("unknown command %q", cmd[0].Key)}
}

// OpenCursor executes a cursor-producing command.
func (e *Engine) OpenCursor(ctx context.Context, cmd raw.Document) (driver.Cursor, error) {
	if len(cmd) == 0 {
		return nil, &driver.Error{Code: driver.CodeBadCommand, Message: "empty command"}
	}
	var results []raw.Document
	var err error
	switch cmd[0].Key {
	case "find":
		results, err = e.runFind(ctx, cmd)
	case "aggregate":
		results, err = e.runAggregate(ctx, cmd)
	default:
		err = &driver.Error{Code: driver.CodeBadCommand,
			Message: fmt.Sprintf("command %q does not return a cursor", cmd[0].Key)}
	}
	if err != nil {
		return nil, err
	}
	return &sliceCursor{docs: results}, nil
}

func commandTarget(cmd raw.Document) (string, error) {
	s, ok := cmd[0].Value.(raw.String)
	if !ok || s == "" {
		return "", &driver.Error{Code: driver.CodeBadCommand,
			Message: fmt.Sprintf("command %q needs a collection name", cmd[0].Key)}
	}
	return string(s), nil
}

func (e *Engine) collect(ctx context.Context, name string) ([]raw.Document, error) {
	exists, err := e.store.CollectionExists(ctx, name)
	if err != nil || !exists {
		return nil, err
	}
	it, err := e.store.Scan(ctx, name)
	if err != nil {
		return nil, err
	}
	defer it.Close(ctx)
	var docs []raw.Document
	for {
		d, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
}

func (e *Engine) runFind(ctx context.Context, cmd raw.Document) ([]raw.Document, error) {
	name, err := commandTarget(cmd)
	if err != nil {
		return nil, err
	}
	filter := docField(cmd, "filter")
	docs, err := e.collect(ctx, name)
	if err != nil {
		return nil, err
	}
	var out []raw.Document
	for _, d := range docs {
		ok, err := matchDocument(filter, d)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	if sort := docField(cmd, "sort"); len(sort) > 0 {
		sortDocuments(out, sort)
	}
	if skip := intField(cmd, "skip"); skip > 0 {
		if skip >= int64(len(out)) {
			out = nil
		} else {
			out = out[skip:]
		}
	}
	if limit := intField(cmd, "limit"); limit > 0 && limit < int64(len(out)) {
		out = out[:limit]
	}
	return out, nil
}

func (e *Engine) runInsert(ctx context.Context, cmd raw.Document) (raw.Document, error) {
	name, err := commandTarget(cmd)
	if err != nil {
		return nil, err
	}
	docsVal, _ := cmd.Lookup("documents")
	arr, ok := docsVal.(raw.Array)
	if !ok {
		return nil, &driver.Error{Code: driver.CodeBadCommand, Message: "insert needs a documents array"}
	}
	if err := e.store.CreateCollection(ctx, name); err != nil {
		return nil, err
	}
	validator, err := e.store.Validator(ctx, name)
	if err != nil {
		return nil, err
	}

	ids := make(raw.Array, 0, len(arr))
	n := int64(0)
	for _, v := range arr {
		d, ok := v.(raw.Document)
		if !ok {
			return nil, &driver.Error{Code: driver.CodeBadCommand, Message: "insert documents must be documents"}
		}
		id, hasID := d.Lookup("_id")
		if !hasID {
			id = raw.NewObjectID()
			withID := make(raw.Document, 0, len(d)+1)
			withID = append(withID, raw.E("_id", id))
			d = append(withID, d...)
		}
		if err := checkValidator(validator, d); err != nil {
			return nil, err
		}
		if err := e.store.Insert(ctx, name, IDKey(id), d.Clone()); err != nil {
			if errors.Is(err, ErrDuplicateID) {
				return nil, &driver.Error{Code: driver.CodeDuplicateKey,
					Message: fmt.Sprintf("_id %s already exists in %s", raw.Format(id), name)}
			}
			return nil, err
		}
		ids = append(ids, id)
		n++
	}
	return raw.D(
		raw.E("ok", raw.Int32(1)),
		raw.E("n", raw.Int64(n)),
		raw.E("insertedIds", ids),
	), nil
}

func (e *Engine) runUpdate(ctx context.Context, cmd raw.Document) (raw.Document, error) {
	name, err := commandTarget(cmd)
	if err != nil {
		return nil, err
	}
	updatesVal, _ := cmd.Lookup("updates")
	updates, ok := updatesVal.(raw.Array)
	if !ok {
		return nil, &driver.Error{Code: driver.CodeBadCommand, Message: "update needs an updates array"}
	}
	validator, err := e.store.Validator(ctx, name)
	if err != nil {
		return nil, err
	}

	reply := raw.D(raw.E("ok", raw.Int32(1)))
	var matched, modified int64
	var upserted raw.Value
	for _, uv := range updates {
		u, ok := uv.(raw.Document)
		if !ok {
			return nil, &driver.Error{Code: driver.CodeBadCommand, Message: "updates entries must be documents"}
		}
		q := docField(u, "q")
		mutation := docField(u, "u")
		multi := boolField(u, "multi")
		upsert := boolField(u, "upsert")

		docs, err := e.collect(ctx, name)
		if err != nil {
			return nil, err
		}
		hit := false
		for _, d := range docs {
			ok, err := matchDocument(q, d)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			hit = true
			matched++
			next, err := applyUpdate(d, mutation, false)
			if err != nil {
				return nil, err
			}
			if raw.Equal(next, d) {
				if !multi {
					break
				}
				continue
			}
			if err := checkValidator(validator, next); err != nil {
				return nil, err
			}
			oldID, _ := d.Lookup("_id")
			newID, _ := next.Lookup("_id")
			if !raw.Equal(oldID, newID) {
				return nil, &driver.Error{Code: driver.CodeBadCommand, Message: "the _id field is immutable"}
			}
			if err := e.store.Replace(ctx, name, IDKey(oldID), next); err != nil {
				return nil, err
			}
			modified++
			if !multi {
				break
			}
		}
		if !hit && upsert {
			id, err := e.upsertInsert(ctx, name, q, mutation, validator)
			if err != nil {
				return nil, err
			}
			upserted = id
		}
	}
	reply = append(reply, raw.E("n", raw.Int64(matched)), raw.E("nModified", raw.Int64(modified)))
	if upserted != nil {
		reply = append(reply, raw.E("upserted", upserted))
	}
	return reply, nil
}

// upsertInsert builds the document an unmatched upsert inserts: the filter's
// equality constraints, the mutation applied on top, and a fresh _id unless
// one was pinned.
func (e *Engine) upsertInsert(ctx context.Context, name string, q, mutation, validator raw.Document) (raw.Value, error) {
	seed := equalitySeed(q)
	next, err := applyUpdate(seed, mutation, true)
	if err != nil {
		return nil, err
	}
	id, hasID := next.Lookup("_id")
	if !hasID {
		id = raw.NewObjectID()
		withID := make(raw.Document, 0, len(next)+1)
		withID = append(withID, raw.E("_id", id))
		next = append(withID, next...)
	}
	if err := checkValidator(validator, next); err != nil {
		return nil, err
	}
	if err := e.store.CreateCollection(ctx, name); err != nil {
		return nil, err
	}
	if err := e.store.Insert(ctx, name, IDKey(id), next); err != nil {
		if errors.Is(err, ErrDuplicateID) {
			return nil, &driver.Error{Code: driver.CodeDuplicateKey,
				Message: fmt.Sprintf("_id %s already exists in %s", raw.Format(id), name)}
		}
		return nil, err
	}
	return id, nil
}

func (e *Engine) runDelete(ctx context.Context, cmd raw.Document) (raw.Document, error) {
	name, err := commandTarget(cmd)
	if err != nil {
		return nil, err
	}
	deletesVal, _ := cmd.Lookup("deletes")
	deletes, ok := deletesVal.(raw.Array)
	if !ok {
		return nil, &driver.Error{Code: driver.CodeBadCommand, Message: "delete needs a deletes array"}
	}
	var n int64
	for _, dv := range deletes {
		d, ok := dv.(raw.Document)
		if !ok {
			return nil, &driver.Error{Code: driver.CodeBadCommand, Message: "deletes entries must be documents"}
		}
		q := docField(d, "q")
		limit := intField(d, "limit")

		docs, err := e.collect(ctx, name)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			ok, err := matchDocument(q, doc)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			id, _ := doc.Lookup("_id")
			if err := e.store.Delete(ctx, name, IDKey(id)); err != nil {
				return nil, err
			}
			n++
			if limit == 1 {
				break
			}
		}
	}
	return raw.D(raw.E("ok", raw.Int32(1)), raw.E("n", raw.Int64(n))), nil
}

func (e *Engine) runCount(ctx context.Context, cmd raw.Document) (raw.Document, error) {
	name, err := commandTarget(cmd)
	if err != nil {
		return nil, err
	}
	q := docField(cmd, "query")
	docs, err := e.collect(ctx, name)
	if err != nil {
		return nil, err
	}
	var n int64
	for _, d := range docs {
		ok, err := matchDocument(q, d)
		if err != nil {
			return nil, err
		}
		if ok {
			n++
		}
	}
	return raw.D(raw.E("ok", raw.Int32(1)), raw.E("n", raw.Int64(n))), nil
}

func (e *Engine) runDistinct(ctx context.Context, cmd raw.Document) (raw.Document, error) {
	name, err := commandTarget(cmd)
	if err != nil {
		return nil, err
	}
	keyVal, _ := cmd.Lookup("key")
	key, ok := keyVal.(raw.String)
	if !ok {
		return nil, &driver.Error{Code: driver.CodeBadCommand, Message: "distinct needs a key"}
	}
	q := docField(cmd, "query")
	docs, err := e.collect(ctx, name)
	if err != nil {
		return nil, err
	}
	var values raw.Array
	seen := map[string]bool{}
	for _, d := range docs {
		ok, err := matchDocument(q, d)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for _, v := range resolvePath(d, string(key)) {
			// distinct unwinds arrays one level
			if arr, isArr := v.(raw.Array); isArr {
				for _, ev := range arr {
					k := raw.Format(ev)
					if !seen[k] {
						seen[k] = true
						values = append(values, ev)
					}
				}
				continue
			}
			k := raw.Format(v)
			if !seen[k] {
				seen[k] = true
				values = append(values, v)
			}
		}
	}
	if values == nil {
		values = raw.Array{}
	}
	return raw.D(raw.E("ok", raw.Int32(1)), raw.E("values", values)), nil
}

func (e *Engine) runCreate(ctx context.Context, cmd raw.Document) (raw.Document, error) {
	name, err := commandTarget(cmd)
	if err != nil {
		return nil, err
	}
	validator := docField(cmd, "validator")
	exists, err := e.store.CollectionExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		existing, err := e.store.Validator(ctx, name)
		if err != nil {
			return nil, err
		}
		if raw.Equal(existing, validator) {
			return raw.D(raw.E("ok", raw.Int32(1))), nil
		}
		return nil, &driver.Error{Code: driver.CodeNamespaceExists,
			Message: fmt.Sprintf("collection %s already exists with a different validator", name)}
	}
	if err := e.store.CreateCollection(ctx, name); err != nil {
		return nil, err
	}
	if len(validator) > 0 {
		if err := e.store.SetValidator(ctx, name, validator.Clone()); err != nil {
			return nil, err
		}
	}
	return raw.D(raw.E("ok", raw.Int32(1))), nil
}

func (e *Engine) runDrop(ctx context.Context, cmd raw.Document) (raw.Document, error) {
	name, err := commandTarget(cmd)
	if err != nil {
		return nil, err
	}
	if err := e.store.DropCollection(ctx, name); err != nil {
		return nil, err
	}
	return raw.D(raw.E("ok", raw.Int32(1))), nil
}

func docField(d raw.Document, key string) raw.Document {
	v, ok := d.Lookup(key)
	if !ok {
		return nil
	}
	sub, _ := v.(raw.Document)
	return sub
}

func intField(d raw.Document, key string) int64 {
	v, ok := d.Lookup(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case raw.Int32:
		return int64(n)
	case raw.Int64:
		return int64(n)
	}
	return 0
}

func boolField(d raw.Document, key string) bool {
	v, ok := d.Lookup(key)
	if !ok {
		return false
	}
	b, _ := v.(raw.Bool)
	return bool(b)
}

// sliceCursor yields a precomputed result set.
type sliceCursor struct {
	docs   []raw.Document
	pos    int
	closed bool
}

func (c *sliceCursor) Next(ctx context.Context) (raw.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.closed {
		return nil, &driver.Error{Code: driver.CodeCursorNotFound, Message: "cursor is closed"}
	}
	if c.pos >= len(c.docs) {
		return nil, io.EOF
	}
	d := c.docs[c.pos]
	c.pos++
	return d, nil
}

func (c *sliceCursor) Close(ctx context.Context) error {
	c.closed = true
	c.docs = nil
	return nil
}
