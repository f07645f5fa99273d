// Package memstore is an in-memory engine.Storage backend. Documents are
// held as serialized blobs keyed by identifier, in insertion order, so reads
// always decode a private copy.
package memstore

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/mondolib/mondo/driver/engine"
	"github.com/mondolib/mondo/raw"
)

type collection struct {
	validator []byte
	docs      map[string][]byte
	order     []string
}

// Store implements engine.Storage in memory.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// New returns an empty store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// CreateCollection makes the collection exist. Idempotent.
func (s *Store) CreateCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = &collection{docs: make(map[string][]byte)}
	}
	return nil
}

// DropCollection removes the collection and its documents.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

// CollectionExists reports whether the collection was created.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

// Validator returns the collection's stored validator, nil when none.
func (s *Store) Validator(ctx context.Context, name string) (raw.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok || c.validator == nil {
		return nil, nil
	}
	return raw.Unmarshal(c.validator)
}

// SetValidator stores the collection's validator.
func (s *Store) SetValidator(ctx context.Context, name string, v raw.Document) error {
	blob, err := raw.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("memstore: collection %q does not exist", name)
	}
	c.validator = blob
	return nil
}

// Insert stores a new document under its key.
func (s *Store) Insert(ctx context.Context, name, key string, doc raw.Document) error {
	blob, err := raw.Marshal(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("memstore: collection %q does not exist", name)
	}
	if _, taken := c.docs[key]; taken {
		return engine.ErrDuplicateID
	}
	c.docs[key] = blob
	c.order = append(c.order, key)
	return nil
}

// Replace overwrites the document stored under the key.
func (s *Store) Replace(ctx context.Context, name, key string, doc raw.Document) error {
	blob, err := raw.Marshal(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("memstore: collection %q does not exist", name)
	}
	if _, has := c.docs[key]; !has {
		return fmt.Errorf("memstore: no document under key %q", key)
	}
	c.docs[key] = blob
	return nil
}

// Delete removes the document stored under the key. Missing keys are a no-op.
func (s *Store) Delete(ctx context.Context, name, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return nil
	}
	if _, has := c.docs[key]; !has {
		return nil
	}
	delete(c.docs, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Scan iterates the collection in insertion order over a snapshot taken at
// call time.
func (s *Store) Scan(ctx context.Context, name string) (engine.Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return &iterator{}, nil
	}
	blobs := make([][]byte, 0, len(c.order))
	for _, key := range c.order {
		blobs = append(blobs, c.docs[key])
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
