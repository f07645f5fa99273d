package engine

import (
	"testing"

	"github.com/mondolib/mondo/raw"
)

func mustMatch(t *testing.T, filter, doc raw.Document) bool {
	t.Helper()
	ok, err := matchDocument(filter, doc)
	if err != nil {
		t.Fatalf("matchDocument: %v", err)
	}
	return ok
}

func sampleDoc() raw.Document {
	return raw.D(
		raw.E("_id", raw.Int64(1)),
		raw.E("name", raw.String("Ann")),
		raw.E("age", raw.Int32(21)),
		raw.E("score", raw.Double(3.5)),
		raw.E("tags", raw.A(raw.String("a"), raw.String("b"))),
		raw.E("contacts", raw.A(
			raw.D(raw.E("kind", raw.String("home")), raw.E("email", raw.String("ann@example.com"))),
			raw.D(raw.E("kind", raw.String("work")), raw.E("email", raw.String("ann@corp.example"))),
		)),
		raw.E("nickname", raw.Null{}),
	)
}

func TestMatchEquality(t *testing.T) {
	d := sampleDoc()
	if !mustMatch(t, raw.D(raw.E("name", raw.String("Ann"))), d) {
		t.Error("direct equality failed")
	}
	if mustMatch(t, raw.D(raw.E("name", raw.String("Bob"))), d) {
		t.Error("wrong value matched")
	}
	// equality across numeric widths
	if !mustMatch(t, raw.D(raw.E("age", raw.D(raw.E("$eq", raw.Int64(21))))), d) {
		t.Error("numeric equality across widths failed")
	}
	if !mustMatch(t, raw.D(raw.E("age", raw.Int64(21))), d) {
		t.Error("bare numeric equality across widths failed")
	}
}

func TestMatchComparisons(t *testing.T) {
	d := sampleDoc()
	if !mustMatch(t, raw.D(raw.E("age", raw.D(raw.E("$gte", raw.Int32(18))))), d) {
		t.Error("$gte failed")
	}
	if mustMatch(t, raw.D(raw.E("age", raw.D(raw.E("$lt", raw.Int32(18))))), d) {
		t.Error("$lt matched out of range")
	}
	// incomparable types never match
	if mustMatch(t, raw.D(raw.E("name", raw.D(raw.E("$gt", raw.Int32(0))))), d) {
		t.Error("cross-type comparison matched")
	}
}

func TestMatchArrayAnyElement(t *testing.T) {
	d := sampleDoc()
	// a bare equality against an array matches any element
	if !mustMatch(t, raw.D(raw.E("tags", raw.String("a"))), d) {
		t.Error("array element equality failed")
	}
	// a dotted path into an array of documents matches if any element matches
	if !mustMatch(t, raw.D(raw.E("contacts.kind", raw.String("work"))), d) {
		t.Error("implicit array traversal failed")
	}
	if !mustMatch(t, raw.D(raw.E("contacts.0.kind", raw.String("home"))), d) {
		t.Error("indexed traversal failed")
	}
	if mustMatch(t, raw.D(raw.E("contacts.0.kind", raw.String("work"))), d) {
		t.Error("indexed traversal matched the wrong element")
	}
	if !mustMatch(t, raw.D(raw.E("contacts.$.kind", raw.String("work"))), d) {
		t.Error("explicit any-element traversal failed")
	}
}

func TestMatchMembership(t *testing.T) {
	d := sampleDoc()
	in := raw.D(raw.E("age", raw.D(raw.E("$in", raw.A(raw.Int32(20), raw.Int32(21))))))
	if !mustMatch(t, in, d) {
		t.Error("$in failed")
	}
	nin := raw.D(raw.E("age", raw.D(raw.E("$nin", raw.A(raw.Int32(20), raw.Int32(21))))))
	if mustMatch(t, nin, d) {
		t.Error("$nin matched a listed value")
	}
}

func TestMatchExists(t *testing.T) {
	d := sampleDoc()
	// null still counts as present
	if !mustMatch(t, raw.D(raw.E("nickname", raw.D(raw.E("$exists", raw.Bool(true))))), d) {
		t.Error("$exists false for a null field")
	}
	if !mustMatch(t, raw.D(raw.E("ghost", raw.D(raw.E("$exists", raw.Bool(false))))), d) {
		t.Error("$exists true for an absent field")
	}
}

func TestMatchNeOnMissingField(t *testing.T) {
	d := sampleDoc()
	if !mustMatch(t, raw.D(raw.E("ghost", raw.D(raw.E("$ne", raw.Int32(1))))), d) {
		t.Error("$ne should match when the field is absent")
	}
}

func TestMatchLogical(t *testing.T) {
	d := sampleDoc()
	and := raw.D(raw.E("$and", raw.A(
		raw.D(raw.E("age", raw.D(raw.E("$gte", raw.Int32(18))))),
		raw.D(raw.E("name", raw.D(raw.E("$ne", raw.String("root"))))),
	)))
	if !mustMatch(t, and, d) {
		t.Error("$and failed")
	}
	or := raw.D(raw.E("$or", raw.A(
		raw.D(raw.E("name", raw.String("Bob"))),
		raw.D(raw.E("age", raw.Int32(21))),
	)))
	if !mustMatch(t, or, d) {
		t.Error("$or failed")
	}
	nor := raw.D(raw.E("$nor", raw.A(
		raw.D(raw.E("name", raw.String("Ann"))),
	)))
	if mustMatch(t, nor, d) {
		t.Error("$nor matched a satisfied clause")
	}
}

func TestMatchEmptyFilter(t *testing.T) {
	if !mustMatch(t, raw.Document{}, sampleDoc()) {
		t.Error("empty filter should match everything")
	}
	if !mustMatch(t, nil, sampleDoc()) {
		t.Error("nil filter should match everything")
	}
}

func TestMatchUnknownOperator(t *testing.T) {
	_, err := matchDocument(raw.D(raw.E("age", raw.D(raw.E("$near", raw.Int32(1))))), sampleDoc())
	if err == nil {
		t.Error("unknown operator accepted")
	}
}

func TestSortDocuments(t *testing.T) {
	docs := []raw.Document{
		raw.D(raw.E("n", raw.Int32(2)), raw.E("s", raw.String("b"))),
		raw.D(raw.E("n", raw.Int32(1)), raw.E("s", raw.String("c"))),
		raw.D(raw.E("n", raw.Int32(2)), raw.E("s", raw.String("a"))),
	}
	sortDocuments(docs, raw.D(raw.E("n", raw.Int32(-1)), raw.E("s", raw.Int32(1))))
	got := ""
	for _, d := range docs {
		s, _ := d.Lookup("s")
		got += string(s.(raw.String))
	}
	if got != "abc" {
		t.Errorf("sorted order = %q, want abc", got)
	}
}
