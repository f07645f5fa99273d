package typed

import (
	"errors"
	"testing"

	"github.com/mondolib/mondo/raw"
)

func loweredUpdate(t *testing.T, u *Update) string {
	t.Helper()
	d, err := u.Lower()
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	return raw.Format(d)
}

func TestUpdateGroupsByOperator(t *testing.T) {
	m := userModel(t)
	u := NewUpdate().
		Set(m.MustPath("Name"), "Ann").
		Inc(m.MustPath("Age"), 1).
		Set(m.MustPath("Active"), true)
	want := `{"$set": {"name": "Ann", "active": true}, "$inc": {"age": 1}}`
	if got := loweredUpdate(t, u); got != want {
		t.Errorf("update lowered to %s, want %s", got, want)
	}
}

func TestUpdateArrayOperators(t *testing.T) {
	m := userModel(t)
	tags := m.MustPath("Tags")
	u := NewUpdate().Push(tags, "new")
	if got := loweredUpdate(t, u); got != `{"$push": {"tags": "new"}}` {
		t.Errorf("Push lowered to %s", got)
	}
	u = NewUpdate().Pull(tags, "old")
	if got := loweredUpdate(t, u); got != `{"$pull": {"tags": "old"}}` {
		t.Errorf("Pull lowered to %s", got)
	}
	u = NewUpdate().PopFirst(tags)
	if got := loweredUpdate(t, u); got != `{"$pop": {"tags": -1}}` {
		t.Errorf("PopFirst lowered to %s", got)
	}
}

func TestUpdateUnsetAndRename(t *testing.T) {
	m := userModel(t)
	u := NewUpdate().Unset(m.MustPath("Nickname"))
	if got := loweredUpdate(t, u); got != `{"$unset": {"nickname": ""}}` {
		t.Errorf("Unset lowered to %s", got)
	}
	u = NewUpdate().Rename(m.MustPath("Nickname"), m.MustPath("Name"))
	if got := loweredUpdate(t, u); got != `{"$rename": {"nickname": "name"}}` {
		t.Errorf("Rename lowered to %s", got)
	}
}

func TestUpdateConflictSamePath(t *testing.T) {
	m := userModel(t)
	u := NewUpdate().
		Set(m.MustPath("Name"), "a").
		Unset(m.MustPath("Name"))
	var ce *ConflictingUpdateError
	if !errors.As(u.Err(), &ce) {
		t.Fatalf("Err = %v, want ConflictingUpdateError", u.Err())
	}
	if _, err := u.Lower(); err == nil {
		t.Fatal("Lower succeeded on a conflicting update")
	}
}

func TestUpdateConflictAncestorDescendant(t *testing.T) {
	m := userModel(t)
	u := NewUpdate().
		Set(m.MustPath("Contacts"), []Contact(nil)).
		Set(m.MustPath("Contacts", Idx(0), "Email"), "a@b")
	var ce *ConflictingUpdateError
	if !errors.As(u.Err(), &ce) {
		t.Fatalf("Err = %v, want ConflictingUpdateError", u.Err())
	}

	// an index and the any-element selector may reach the same slot
	u = NewUpdate().
		Set(m.MustPath("Contacts", Idx(0), "Email"), "a@b").
		Set(m.MustPath("Contacts", AnyElem(), "Email"), "c@d")
	if !errors.As(u.Err(), &ce) {
		t.Fatalf("Err = %v, want ConflictingUpdateError", u.Err())
	}

	// distinct indexes do not collide
	u = NewUpdate().
		Set(m.MustPath("Contacts", Idx(0), "Email"), "a@b").
		Set(m.MustPath("Contacts", Idx(1), "Email"), "c@d")
	if u.Err() != nil {
		t.Fatalf("distinct indexes reported as conflict: %v", u.Err())
	}
}

func TestUpdateTypeChecks(t *testing.T) {
	m := userModel(t)
	var tme *TypeMismatchError
	if err := NewUpdate().Inc(m.MustPath("Name"), 1).Err(); !errors.As(err, &tme) {
		t.Errorf("Inc on a string field: %v", err)
	}
	if err := NewUpdate().Push(m.MustPath("Name"), "x").Err(); !errors.As(err, &tme) {
		t.Errorf("Push on a non-array field: %v", err)
	}
	if err := NewUpdate().Push(m.MustPath("Tags"), 3).Err(); !errors.As(err, &tme) {
		t.Errorf("Push with a mistyped element: %v", err)
	}
	if err := NewUpdate().CurrentDate(m.MustPath("Name")).Err(); !errors.As(err, &tme) {
		t.Errorf("CurrentDate on a non-datetime field: %v", err)
	}
	if err := NewUpdate().CurrentDate(m.MustPath("CreatedAt")).Err(); err != nil {
		t.Errorf("CurrentDate on a datetime field rejected: %v", err)
	}
}

func TestUpdateErrIsSticky(t *testing.T) {
	m := userModel(t)
	u := NewUpdate().
		Inc(m.MustPath("Name"), 1).
		Set(m.MustPath("Age"), 30)
	var tme *TypeMismatchError
	if !errors.As(u.Err(), &tme) {
		t.Fatalf("Err = %v, want the first TypeMismatchError", u.Err())
	}
}

func TestSetOnInsertLowering(t *testing.T) {
	m := userModel(t)
	u := NewUpdate().
		Set(m.MustPath("Name"), "Ann").
		SetOnInsert(m.MustPath("Age"), 1)
	want := `{"$set": {"name": "Ann"}, "$setOnInsert": {"age": 1}}`
	if got := loweredUpdate(t, u); got != want {
		t.Errorf("lowered to %s, want %s", got, want)
	}
}
