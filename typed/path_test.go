package typed

import (
	"errors"
	"testing"
)

func TestPathResolution(t *testing.T) {
	m := userModel(t)

	p, err := m.Path("Age")
	if err != nil {
		t.Fatalf("Path(Age): %v", err)
	}
	if p.String() != "age" {
		t.Errorf("Path(Age) = %q, want age", p.String())
	}
	if p.Leaf().Kind != KindInt32 {
		t.Errorf("leaf kind = %v, want int32", p.Leaf().Kind)
	}

	// wire names resolve too
	p, err = m.Path("created_at")
	if err != nil {
		t.Fatalf("Path(created_at): %v", err)
	}
	if p.String() != "created_at" {
		t.Errorf("Path(created_at) = %q", p.String())
	}
}

func TestPathThroughArrays(t *testing.T) {
	m := userModel(t)

	p := m.MustPath("Contacts", Idx(0), "Email")
	if p.String() != "contacts.0.email" {
		t.Errorf("indexed path = %q, want contacts.0.email", p.String())
	}

	p = m.MustPath("Contacts", AnyElem(), "Email")
	if p.String() != "contacts.$.email" {
		t.Errorf("any-element path = %q, want contacts.$.email", p.String())
	}

	// implicit element traversal
	p = m.MustPath("Contacts", "Email")
	if p.String() != "contacts.email" {
		t.Errorf("implicit path = %q, want contacts.email", p.String())
	}
	if p.Leaf().Kind != KindString {
		t.Errorf("leaf kind = %v, want string", p.Leaf().Kind)
	}
}

func TestPathErrors(t *testing.T) {
	m := userModel(t)
	cases := [][]PathStep{
		{"Nope"},
		{"Age", "Digits"},
		{"Name", Idx(0)},
		{"Tags", Idx(-1)},
		{"Tags", "Length"},
		{"Age", AnyElem()},
		{},
	}
	for _, steps := range cases {
		_, err := m.Path(steps...)
		var pe *PathError
		if !errors.As(err, &pe) {
			t.Errorf("Path(%v) err = %v, want PathError", steps, err)
		}
	}
}

func TestParsePath(t *testing.T) {
	m := userModel(t)
	p, err := m.ParsePath("contacts.0.email")
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	if p.String() != "contacts.0.email" {
		t.Errorf("ParsePath = %q", p.String())
	}
	if _, err := m.ParsePath("contacts.email.zip"); err == nil {
		t.Error("ParsePath accepted a path through a scalar")
	}
}

func TestPathAncestry(t *testing.T) {
	m := userModel(t)
	contacts := m.MustPath("Contacts")
	indexed := m.MustPath("Contacts", Idx(0), "Email")
	anyElem := m.MustPath("Contacts", AnyElem(), "Email")
	other := m.MustPath("Contacts", Idx(1), "Email")
	age := m.MustPath("Age")

	if !contacts.IsAncestorOf(indexed) {
		t.Error("contacts should be an ancestor of contacts.0.email")
	}
	if contacts.IsAncestorOf(age) {
		t.Error("contacts is not an ancestor of age")
	}
	if indexed.IsAncestorOf(contacts) {
		t.Error("a longer path cannot be an ancestor of its prefix")
	}
	// an index may name the element the selector reaches
	if !anyElem.Equal(indexed) {
		t.Error("contacts.$.email should overlap contacts.0.email")
	}
	if other.Equal(indexed) {
		t.Error("contacts.1.email should not overlap contacts.0.email")
	}
}

func TestRawPath(t *testing.T) {
	p := RawPath("meta.odd-key")
	if !p.IsRaw() || p.String() != "meta.odd-key" {
		t.Fatalf("RawPath = %q raw=%v", p.String(), p.IsRaw())
	}
	if !RawPath("a").IsAncestorOf(RawPath("a.b")) {
		t.Error("raw ancestor by prefix expected")
	}
	if RawPath("a").IsAncestorOf(RawPath("ab")) {
		t.Error("ab is not a descendant of a")
	}
}

func TestIDPath(t *testing.T) {
	m := userModel(t)
	if got := m.IDPath().String(); got != "_id" {
		t.Errorf("IDPath = %q, want _id", got)
	}
}
