// Package sqlitestore is an engine.Storage backend on SQLite. Each document
// is one row holding its serialized blob, ordered by a monotonic sequence so
// scans replay insertion order.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	_ "modernc.org/sqlite"

	"github.com/mondolib/mondo/driver/engine"
	"github.com/mondolib/mondo/raw"
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	name      TEXT PRIMARY KEY,
	validator BLOB
);
CREATE TABLE IF NOT EXISTS documents (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	key        TEXT NOT NULL,
	doc        BLOB NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS documents_collection_key
	ON documents (collection, key);
`

// Store implements engine.Storage over a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. Use ":memory:" for a private
// in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}
	// a single connection keeps :memory: databases coherent
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// CreateCollection makes the collection exist. Idempotent.
func (s *Store) CreateCollection(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name)
	return err
}

// DropCollection removes the collection and its documents.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name); err != nil {
		return err
	}
	return tx.Commit()
}

// CollectionExists reports whether the collection was created.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM collections WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Validator returns the collection's stored validator, nil when none.
func (s *Store) Validator(ctx context.Context, name string) (raw.Document, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT validator FROM collections WHERE name = ?`, name).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && blob == nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw.Unmarshal(blob)
}

// SetValidator stores the collection's validator.
func (s *Store) SetValidator(ctx context.Context, name string, v raw.Document) error {
	blob, err := raw.Marshal(v)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE collections SET validator = ? WHERE name = ?`, blob, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("sqlitestore: collection %q does not exist", name)
	}
	return nil
}

// Insert stores a new document under its key.
func (s *Store) Insert(ctx context.Context, name, key string, doc raw.Document) error {
	blob, err := raw.Marshal(doc)
	if err != nil {
		return err
	}
	var one int
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE collection = ? AND key = ?`, name, key).Scan(&one)
	if err == nil {
		return engine.ErrDuplicateID
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, key, doc) VALUES (?, ?, ?)`, name, key, blob)
	return err
}

// Replace overwrites the document stored under the key.
func (s *Store) Replace(ctx context.Context, name, key string, doc raw.Document) error {
	blob, err := raw.Marshal(doc)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET doc = ? WHERE collection = ? AND key = ?`, blob, name, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("sqlitestore: no document under key %q", key)
	}
	return nil
}

// Delete removes the document stored under the key. Missing keys are a no-op.
func (s *Store) Delete(ctx context.Context, name, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND key = ?`, name, key)
	return err
}

// Scan iterates the collection in insertion order over a snapshot taken at
// call time.
func (s *Store) Scan(ctx context.Context, name string) (engine.Iterator, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM documents WHERE collection = ? ORDER BY seq`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var blobs [][]byte
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		blobs = append(blobs, blob)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &iterator{blobs: blobs}, nil
}

type iterator struct {
	blobs [][]byte
	pos   int
}

func (it *iterator) Next(ctx context.Context) (raw.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= len(it.blobs) {
		return nil, io.EOF
	}
	d, err := raw.Unmarshal(it.blobs[it.pos])
	if err != nil {
		return nil, err
	}
	it.pos++
	return d, nil
}

func (it *iterator) Close(ctx context.Context) error {
	it.blobs = nil
	return nil
}
