package memstore

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/mondolib/mondo/driver/engine"
	"github.com/mondolib/mondo/raw"
)

func mustCreate(t *testing.T, s *Store, name string) {
	t.Helper()
	if err := s.CreateCollection(context.Background(), name); err != nil {
		t.Fatalf("create %q: %v", name, err)
	}
}

func mustInsert(t *testing.T, s *Store, name, key string, doc raw.Document) {
	t.Helper()
	if err := s.Insert(context.Background(), name, key, doc); err != nil {
		t.Fatalf("insert %q/%q: %v", name, key, err)
	}
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
	s := New()
	mustCreate(t, s, "users")
	mustInsert(t, s, "users", "a", raw.D(raw.E("name", raw.String("Ann"))))
	mustInsert(t, s, "users", "b", raw.D(raw.E("name", raw.String("Bob"))))

	docs := scanAll(t, s, "users")
	if len(docs) != 2 {
		t.Fatalf("scanned %d, want 2", len(docs))
	}
	if got := raw.Format(docs[0]); got != `{"name": "Ann"}` {
		t.Errorf("first = %s", got)
	}
	if got := raw.Format(docs[1]); got != `{"name": "Bob"}` {
		t.Errorf("second = %s", got)
	}
}

func TestInsertDuplicateKey(t *testing.T) {
	s := New()
	mustCreate(t, s, "users")
	mustInsert(t, s, "users", "a", raw.D(raw.E("n", raw.Int32(1))))
	err := s.Insert(context.Background(), "users", "a", raw.D(raw.E("n", raw.Int32(2))))
	if !errors.Is(err, engine.ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
}

func TestInsertIntoMissingCollection(t *testing.T) {
	s := New()
	if err := s.Insert(context.Background(), "nope", "a", raw.Document{}); err == nil {
		t.Fatal("insert into missing collection accepted")
	}
}

func TestReplaceAndDelete(t *testing.T) {
	s := New()
	mustCreate(t, s, "users")
	mustInsert(t, s, "users", "a", raw.D(raw.E("n", raw.Int32(1))))
	if err := s.Replace(context.Background(), "users", "a", raw.D(raw.E("n", raw.Int32(2)))); err != nil {
		t.Fatalf("replace: %v", err)
	}
	docs := scanAll(t, s, "users")
	if got := raw.Format(docs[0]); got != `{"n": 2}` {
		t.Errorf("after replace = %s", got)
	}
	if err := s.Replace(context.Background(), "users", "b", raw.Document{}); err == nil {
		t.Error("replace of missing key accepted")
	}
	if err := s.Delete(context.Background(), "users", "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(context.Background(), "users", "a"); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
	if left := scanAll(t, s, "users"); len(left) != 0 {
		t.Errorf("left %d after delete", len(left))
	}
}

func TestScanSnapshotUnaffectedByWrites(t *testing.T) {
	s := New()
	mustCreate(t, s, "users")
	mustInsert(t, s, "users", "a", raw.D(raw.E("n", raw.Int32(1))))

	it, err := s.Scan(context.Background(), "users")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	defer it.Close(context.Background())

	mustInsert(t, s, "users", "b", raw.D(raw.E("n", raw.Int32(2))))

	var n int
	for {
		if _, err := it.Next(context.Background()); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			t.Fatalf("next: %v", err)
		}
		n++
	}
	if n != 1 {
		t.Errorf("snapshot yielded %d, want 1", n)
	}
}

func TestValidatorRoundTrip(t *testing.T) {
	s := New()
	mustCreate(t, s, "users")
	v, err := s.Validator(context.Background(), "users")
	if err != nil || v != nil {
		t.Fatalf("fresh validator = %v, %v", v, err)
	}
	want := raw.D(raw.E("$jsonSchema", raw.D(raw.E("bsonType", raw.String("object")))))
	if err := s.SetValidator(context.Background(), "users", want); err != nil {
		t.Fatalf("set validator: %v", err)
	}
	got, err := s.Validator(context.Background(), "users")
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	if !raw.Equal(got, want) {
		t.Errorf("validator = %s", raw.Format(got))
	}
}

func TestDropCollection(t *testing.T) {
	s := New()
	mustCreate(t, s, "users")
	mustInsert(t, s, "users", "a", raw.D(raw.E("n", raw.Int32(1))))
	if err := s.DropCollection(context.Background(), "users"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	exists, err := s.CollectionExists(context.Background(), "users")
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
