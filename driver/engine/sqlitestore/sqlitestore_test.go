package sqlitestore

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/mondolib/mondo/driver/engine"
	"github.com/mondolib/mondo/raw"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func scanAll(t *testing.T, s *Store, name string) []raw.Document {
	t.Helper()
	it, err := s.Scan(context.Background(), name)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	defer it.Close(context.Background())
	var out []raw.Document
	for {
		d, err := it.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		out = append(out, d)
	}
}

func TestInsertScanOrder(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	if err := s.CreateCollection(ctx, "users"); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i, name := range []string{"Ann", "Bob", "Cid"} {
		doc := raw.D(raw.E("name", raw.String(name)))
		if err := s.Insert(ctx, "users", raw.Format(raw.Int64(i)), doc); err != nil {
			t.Fatalf("insert %s: %v", name, err)
		}
	}
	docs := scanAll(t, s, "users")
	if len(docs) != 3 {
		t.Fatalf("scanned %d, want 3", len(docs))
	}
	want := []string{`{"name": "Ann"}`, `{"name": "Bob"}`, `{"name": "Cid"}`}
	for i, d := range docs {
		if got := raw.Format(d); got != want[i] {
			t.Errorf("docs[%d] = %s, want %s", i, got, want[i])
		}
	}
}

func TestInsertDuplicateKey(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	if err := s.CreateCollection(ctx, "users"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Insert(ctx, "users", "a", raw.D(raw.E("n", raw.Int32(1)))); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := s.Insert(ctx, "users", "a", raw.D(raw.E("n", raw.Int32(2))))
	if !errors.Is(err, engine.ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
}

func TestReplaceAndDelete(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	if err := s.CreateCollection(ctx, "users"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Insert(ctx, "users", "a", raw.D(raw.E("n", raw.Int32(1)))); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Replace(ctx, "users", "a", raw.D(raw.E("n", raw.Int32(2)))); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got := raw.Format(scanAll(t, s, "users")[0]); got != `{"n": 2}` {
		t.Errorf("after replace = %s", got)
	}
	if err := s.Replace(ctx, "users", "b", raw.Document{}); err == nil {
		t.Error("replace of missing key accepted")
	}
	if err := s.Delete(ctx, "users", "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "users", "a"); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
	if left := scanAll(t, s, "users"); len(left) != 0 {
		t.Errorf("left %d after delete", len(left))
	}
}

func TestValidatorRoundTrip(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	if err := s.CreateCollection(ctx, "users"); err != nil {
		t.Fatalf("create: %v", err)
	}
	v, err := s.Validator(ctx, "users")
	if err != nil || v != nil {
		t.Fatalf("fresh validator = %v, %v", v, err)
	}
	want := raw.D(raw.E("$jsonSchema", raw.D(raw.E("bsonType", raw.String("object")))))
	if err := s.SetValidator(ctx, "users", want); err != nil {
		t.Fatalf("set validator: %v", err)
	}
	got, err := s.Validator(ctx, "users")
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	if !raw.Equal(got, want) {
		t.Errorf("validator = %s", raw.Format(got))
	}
	if err := s.SetValidator(ctx, "nope", want); err == nil {
		t.Error("set validator on missing collection accepted")
	}
}

func TestDropCollection(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	if err := s.CreateCollection(ctx, "users"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Insert(ctx, "users", "a", raw.D(raw.E("n", raw.Int32(1)))); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.DropCollection(ctx, "users"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	exists, err := s.CollectionExists(ctx, "users")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Error("collection still exists after drop")
	}
	if docs := scanAll(t, s, "users"); len(docs) != 0 {
		t.Errorf("scan after drop yielded %d", len(docs))
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.CreateCollection(ctx, "users"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Insert(ctx, "users", "a", raw.D(raw.E("name", raw.String("Ann")))); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	docs := scanAll(t, s, "users")
	if len(docs) != 1 || raw.Format(docs[0]) != `{"name": "Ann"}` {
		t.Fatalf("after reopen = %v", docs)
	}
}
