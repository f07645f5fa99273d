package typed

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/mondolib/mondo/driver"
	"github.com/mondolib/mondo/raw"
)

// Collection provides the typed operations over one stored collection. It is
// bound to a registered document type and a driver connection; every
// expression it accepts was validated at construction, so a malformed filter
// or update is rejected here before any command reaches the connection.
type Collection[T Doc] struct {
	conn  driver.Conn
	model *ModelInfo
}

// NewCollection binds a registered document type to a connection.
func NewCollection[T Doc](conn driver.Conn) (*Collection[T], error) {
	m, err := ModelFor[T]()
	if err != nil {
		return nil, err
	}
	return &Collection[T]{conn: conn, model: m}, nil
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.model.Collection }

// Model returns the bound document type's model.
func (c *Collection[T]) Model() *ModelInfo { return c.model }

// InsertOneResult reports the outcome of InsertOne.
type InsertOneResult struct {
	InsertedID raw.Value
}

// InsertOne stores one document. When the document's object identifier is
// zero the store assigns one, and it is written back into the instance.
func (c *Collection[T]) InsertOne(ctx context.Context, doc *T) (*InsertOneResult, error) {
	d, err := c.model.encodeDoc(reflect.ValueOf(doc).Elem())
	if err != nil {
		return nil, err
	}
	reply, err := c.run(ctx, raw.D(
		raw.E("insert", raw.String(c.model.Collection)),
		raw.E("documents", raw.A(d)),
	))
	if err != nil {
		return nil, err
	}
	ids, _ := reply.Lookup("insertedIds")
	res := &InsertOneResult{}
	if arr, ok := ids.(raw.Array); ok && len(arr) == 1 {
		res.InsertedID = arr[0]
		if err := c.writeBackID(doc, arr[0]); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// InsertManyResult reports the outcome of InsertMany.
type InsertManyResult struct {
	InsertedIDs []raw.Value
}

// InsertMany stores a batch of documents in order, writing assigned
// identifiers back into the instances.
func (c *Collection[T]) InsertMany(ctx context.Context, docs []*T) (*InsertManyResult, error) {
	arr := make(raw.Array, 0, len(docs))
	for _, doc := range docs {
		d, err := c.model.encodeDoc(reflect.ValueOf(doc).Elem())
		if err != nil {
			return nil, err
		}
		arr = append(arr, d)
	}
	reply, err := c.run(ctx, raw.D(
		raw.E("insert", raw.String(c.model.Collection)),
		raw.E("documents", arr),
	))
	if err != nil {
		return nil, err
	}
	res := &InsertManyResult{}
	if ids, ok := reply.Lookup("insertedIds"); ok {
		if idArr, ok := ids.(raw.Array); ok && len(idArr) == len(docs) {
			res.InsertedIDs = idArr
			for i, doc := range docs {
				if err := c.writeBackID(doc, idArr[i]); err != nil {
					return nil, err
				}
			}
		}
	}
	return res, nil
}

func (c *Collection[T]) writeBackID(doc *T, id raw.Value) error {
	fv := reflect.ValueOf(doc).Elem().Field(c.model.IDField().Index)
	if !isZeroID(c.model.IDKind, fv) {
		return nil
	}
	if err := decodeID(c.model.IDKind, id, fv); err != nil {
		return fmt.Errorf("assigned identifier: %w", err)
	}
	return nil
}

type findOptions struct {
	sort      []SortKey
	skip      int64
	limit     int64
	batchSize int32
}

// FindOption adjusts a find operation.
type FindOption func(*findOptions)

// WithSort orders results by the given keys.
func WithSort(keys ...SortKey) FindOption {
	return func(o *findOptions) { o.sort = keys }
}

// WithSkip drops the first n results.
func WithSkip(n int64) FindOption {
	return func(o *findOptions) { o.skip = n }
}

// WithLimit caps the number of results.
func WithLimit(n int64) FindOption {
	return func(o *findOptions) { o.limit = n }
}

// WithBatchSize sets the cursor's fetch batch size.
func WithBatchSize(n int32) FindOption {
	return func(o *findOptions) { o.batchSize = n }
}

func (c *Collection[T]) findCommand(f Filter, opts []FindOption) (raw.Document, error) {
	if f == nil {
		f = MatchAll()
	}
	if err := f.Err(); err != nil {
		return nil, err
	}
	fd, err := f.Lower()
	if err != nil {
		return nil, err
	}
	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}
	cmd := raw.D(
		raw.E("find", raw.String(c.model.Collection)),
		raw.E("filter", fd),
	)
	if len(o.sort) > 0 {
		cmd = append(cmd, raw.E("sort", lowerSortKeys(o.sort)))
	}
	if o.skip > 0 {
		cmd = append(cmd, raw.E("skip", raw.Int64(o.skip)))
	}
	if o.limit > 0 {
		cmd = append(cmd, raw.E("limit", raw.Int64(o.limit)))
	}
	if o.batchSize > 0 {
		cmd = append(cmd, raw.E("batchSize", raw.Int32(o.batchSize)))
	}
	return cmd, nil
}

// Find returns a cursor over every document matching the filter. A nil
// filter matches everything. The caller owns the cursor and must close it.
func (c *Collection[T]) Find(ctx context.Context, f Filter, opts ...FindOption) (*Cursor[T], error) {
	cmd, err := c.findCommand(f, opts)
	if err != nil {
		return nil, err
	}
	inner, err := c.conn.OpenCursor(ctx, cmd)
	if err != nil {
		return nil, c.mapError(err)
	}
	return &Cursor[T]{inner: inner, model: c.model}, nil
}

// FindOne returns the first document matching the filter, or nil when
// nothing matches.
func (c *Collection[T]) FindOne(ctx context.Context, f Filter, opts ...FindOption) (*T, error) {
	cur, err := c.Find(ctx, f, append(opts, WithLimit(1))...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if !cur.Next(ctx) {
		return nil, cur.Err()
	}
	return cur.Value(), nil
}

// FindByID returns the document with the given identifier, or nil when it
// does not exist.
func (c *Collection[T]) FindByID(ctx context.Context, id any) (*T, error) {
	return c.FindOne(ctx, Eq(c.model.IDPath(), id))
}

// UpdateResult reports the outcome of an update operation.
type UpdateResult struct {
	Matched    int64
	Modified   int64
	UpsertedID raw.Value
}

type updateOptions struct {
	upsert bool
}

// UpdateOption adjusts an update operation.
type UpdateOption func(*updateOptions)

// WithUpsert inserts a new document when the filter matches nothing.
func WithUpsert() UpdateOption {
	return func(o *updateOptions) { o.upsert = true }
}

func (c *Collection[T]) update(ctx context.Context, f Filter, u raw.Value, multi bool, opts []UpdateOption) (*UpdateResult, error) {
	if f == nil {
		f = MatchAll()
	}
	if err := f.Err(); err != nil {
		return nil, err
	}
	fd, err := f.Lower()
	if err != nil {
		return nil, err
	}
	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}
	one := raw.D(
		raw.E("q", fd),
		raw.E("u", u),
		raw.E("multi", raw.Bool(multi)),
	)
	if o.upsert {
		one = append(one, raw.E("upsert", raw.Bool(true)))
	}
	reply, err := c.run(ctx, raw.D(
		raw.E("update", raw.String(c.model.Collection)),
		raw.E("updates", raw.A(one)),
	))
	if err != nil {
		return nil, err
	}
	res := &UpdateResult{
		Matched:  replyInt(reply, "n"),
		Modified: replyInt(reply, "nModified"),
	}
	if v, ok := reply.Lookup("upserted"); ok {
		res.UpsertedID = v
	}
	return res, nil
}

// UpdateOne applies the update to the first document matching the filter.
func (c *Collection[T]) UpdateOne(ctx context.Context, f Filter, u *Update, opts ...UpdateOption) (*UpdateResult, error) {
	if err := u.Err(); err != nil {
		return nil, err
	}
	ud, err := u.Lower()
	if err != nil {
		return nil, err
	}
	return c.update(ctx, f, ud, false, opts)
}

// UpdateMany applies the update to every document matching the filter.
func (c *Collection[T]) UpdateMany(ctx context.Context, f Filter, u *Update, opts ...UpdateOption) (*UpdateResult, error) {
	if err := u.Err(); err != nil {
		return nil, err
	}
	ud, err := u.Lower()
	if err != nil {
		return nil, err
	}
	return c.update(ctx, f, ud, true, opts)
}

// ReplaceOne swaps the first document matching the filter for the given
// instance. Replacement and operator updates are kept apart by this API:
// ReplaceOne takes a whole document, never an update expression.
func (c *Collection[T]) ReplaceOne(ctx context.Context, f Filter, replacement *T, opts ...UpdateOption) (*UpdateResult, error) {
	d, err := c.model.encodeDoc(reflect.ValueOf(replacement).Elem())
	if err != nil {
		return nil, err
	}
	return c.update(ctx, f, d, false, opts)
}

// DeleteResult reports the outcome of a delete operation.
type DeleteResult struct {
	Deleted int64
}

func (c *Collection[T]) delete(ctx context.Context, f Filter, limit int64) (*DeleteResult, error) {
	if f == nil {
		f = MatchAll()
	}
	if err := f.Err(); err != nil {
		return nil, err
	}
	fd, err := f.Lower()
	if err != nil {
		return nil, err
	}
	reply, err := c.run(ctx, raw.D(
		raw.E("delete", raw.String(c.model.Collection)),
		raw.E("deletes", raw.A(raw.D(
			raw.E("q", fd),
			raw.E("limit", raw.Int64(limit)),
		))),
	))
	if err != nil {
		return nil, err
	}
	return &DeleteResult{Deleted: replyInt(reply, "n")}, nil
}

// DeleteOne removes the first document matching the filter.
func (c *Collection[T]) DeleteOne(ctx context.Context, f Filter) (*DeleteResult, error) {
	return c.delete(ctx, f, 1)
}

// DeleteMany removes every document matching the filter.
func (c *Collection[T]) DeleteMany(ctx context.Context, f Filter) (*DeleteResult, error) {
	return c.delete(ctx, f, 0)
}

// CountDocuments returns the number of documents matching the filter.
func (c *Collection[T]) CountDocuments(ctx context.Context, f Filter) (int64, error) {
	if f == nil {
		f = MatchAll()
	}
	if err := f.Err(); err != nil {
		return 0, err
	}
	fd, err := f.Lower()
	if err != nil {
		return 0, err
	}
	reply, err := c.run(ctx, raw.D(
		raw.E("count", raw.String(c.model.Collection)),
		raw.E("query", fd),
	))
	if err != nil {
		return 0, err
	}
	return replyInt(reply, "n"), nil
}

// Distinct returns the distinct values stored at the path among documents
// matching the filter.
func (c *Collection[T]) Distinct(ctx context.Context, p Path, f Filter) ([]raw.Value, error) {
	if f == nil {
		f = MatchAll()
	}
	if err := f.Err(); err != nil {
		return nil, err
	}
	fd, err := f.Lower()
	if err != nil {
		return nil, err
	}
	reply, err := c.run(ctx, raw.D(
		raw.E("distinct", raw.String(c.model.Collection)),
		raw.E("key", raw.String(p.String())),
		raw.E("query", fd),
	))
	if err != nil {
		return nil, err
	}
	values, _ := reply.Lookup("values")
	arr, _ := values.(raw.Array)
	return arr, nil
}

func (c *Collection[T]) aggregateCommand(p *Pipeline) (raw.Document, error) {
	if err := p.Err(); err != nil {
		return nil, err
	}
	stages, err := p.Lower()
	if err != nil {
		return nil, err
	}
	return raw.D(
		raw.E("aggregate", raw.String(c.model.Collection)),
		raw.E("pipeline", stages),
	), nil
}

// Aggregate runs the pipeline and decodes results into the document type.
// Use it when the pipeline preserves the document shape; reshaping pipelines
// belong with AggregateRaw.
func (c *Collection[T]) Aggregate(ctx context.Context, p *Pipeline) (*Cursor[T], error) {
	cmd, err := c.aggregateCommand(p)
	if err != nil {
		return nil, err
	}
	inner, err := c.conn.OpenCursor(ctx, cmd)
	if err != nil {
		return nil, c.mapError(err)
	}
	return &Cursor[T]{inner: inner, model: c.model}, nil
}

// AggregateRaw runs the pipeline and yields the result documents undecoded.
func (c *Collection[T]) AggregateRaw(ctx context.Context, p *Pipeline) (*RawCursor, error) {
	cmd, err := c.aggregateCommand(p)
	if err != nil {
		return nil, err
	}
	inner, err := c.conn.OpenCursor(ctx, cmd)
	if err != nil {
		return nil, c.mapError(err)
	}
	return &RawCursor{inner: inner}, nil
}

// CreateWithValidation creates the collection with the validator derived
// from the document type. An existing collection with a different validator
// surfaces SchemaConflictError.
func (c *Collection[T]) CreateWithValidation(ctx context.Context) error {
	_, err := c.conn.RunCommand(ctx, raw.D(
		raw.E("create", raw.String(c.model.Collection)),
		raw.E("validator", raw.D(raw.E("$jsonSchema", DeriveSchema(c.model)))),
	))
	if driver.HasCode(err, driver.CodeNamespaceExists) {
		var de *driver.Error
		msg := "collection exists with a different validator"
		if asDriverError(err, &de) {
			msg = de.Message
		}
		return &SchemaConflictError{Collection: c.model.Collection, Message: msg}
	}
	if err != nil {
		return c.mapError(err)
	}
	return nil
}

// Drop removes the collection and everything in it.
func (c *Collection[T]) Drop(ctx context.Context) error {
	_, err := c.run(ctx, raw.D(raw.E("drop", raw.String(c.model.Collection))))
	return err
}

func (c *Collection[T]) run(ctx context.Context, cmd raw.Document) (raw.Document, error) {
	reply, err := c.conn.RunCommand(ctx, cmd)
	if err != nil {
		return nil, c.mapError(err)
	}
	return reply, nil
}

// mapError translates well-known store error codes into this package's
// error types and wraps everything else with the collection name.
func (c *Collection[T]) mapError(err error) error {
	if err == nil {
		return nil
	}
	if driver.HasCode(err, driver.CodeDuplicateKey) {
		var de *driver.Error
		msg := err.Error()
		if asDriverError(err, &de) {
			msg = de.Message
		}
		return &DuplicateKeyError{Collection: c.model.Collection, Message: msg}
	}
	return fmt.Errorf("collection %q: %w", c.model.Collection, err)
}

func asDriverError(err error, target **driver.Error) bool {
	return errors.As(err, target)
}

func replyInt(d raw.Document, key string) int64 {
	v, ok := d.Lookup(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case raw.Int32:
		return int64(n)
	case raw.Int64:
		return int64(n)
	case raw.Double:
		return int64(n)
	}
	return 0
}
