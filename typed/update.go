package typed

import (
	"github.com/mondolib/mondo/raw"
)

// update operator keys in lowered form
const (
	opSet         = "$set"
	opUnset       = "$unset"
	opInc         = "$inc"
	opMul         = "$mul"
	opPush        = "$push"
	opPull        = "$pull"
	opPop         = "$pop"
	opRename      = "$rename"
	opSetOnInsert = "$setOnInsert"
	opCurrentDate = "$currentDate"
)

type updateOp struct {
	op    string
	path  Path
	value raw.Value
}

// Update is a mutation expression over a document type, built by chaining
// operation methods. Each addition is validated against the declared field
// types, and any two operations whose paths coincide or stand in an
// ancestor/descendant relation mark the whole expression invalid.
type Update struct {
	ops []updateOp
	err error
}

// NewUpdate returns an empty update expression.
func NewUpdate() *Update { return &Update{} }

// Err reports the construction error, if any.
func (u *Update) Err() error { return u.err }

// Empty reports whether no operations have been added.
func (u *Update) Empty() bool { return len(u.ops) == 0 }

func (u *Update) add(op string, p Path, v raw.Value, err error) *Update {
	if u.err != nil {
		return u
	}
	if err != nil {
		u.err = err
		return u
	}
	for _, prev := range u.ops {
		if pathsConflict(prev.path, p) {
			u.err = &ConflictingUpdateError{PathA: prev.path.String(), PathB: p.String()}
			return u
		}
	}
	u.ops = append(u.ops, updateOp{op: op, path: p, value: v})
	return u
}

func pathsConflict(a, b Path) bool {
	return a.Equal(b) || a.IsAncestorOf(b) || b.IsAncestorOf(a)
}

// Set stores a value at the path.
func (u *Update) Set(p Path, operand any) *Update {
	v, err := convertOperand(p, operand)
	return u.add(opSet, p, v, err)
}

// Unset removes the field at the path.
func (u *Update) Unset(p Path) *Update {
	return u.add(opUnset, p, raw.String(""), nil)
}

// Inc adds a numeric delta to the field at the path.
func (u *Update) Inc(p Path, delta any) *Update {
	v, err := numericOperand(p, delta)
	return u.add(opInc, p, v, err)
}

// Mul multiplies the field at the path by a numeric factor.
func (u *Update) Mul(p Path, factor any) *Update {
	v, err := numericOperand(p, factor)
	return u.add(opMul, p, v, err)
}

// Push appends a value to the array at the path. The operand is checked
// against the array's element type.
func (u *Update) Push(p Path, operand any) *Update {
	if err := requireArray(p); err != nil {
		return u.add(opPush, p, nil, err)
	}
	v, err := convertElemOperand(p, operand)
	return u.add(opPush, p, v, err)
}

// Pull removes every array element equal to the operand.
func (u *Update) Pull(p Path, operand any) *Update {
	if err := requireArray(p); err != nil {
		return u.add(opPull, p, nil, err)
	}
	v, err := convertElemOperand(p, operand)
	return u.add(opPull, p, v, err)
}

// PopFirst removes the first element of the array at the path.
func (u *Update) PopFirst(p Path) *Update {
	return u.add(opPop, p, raw.Int32(-1), requireArray(p))
}

// PopLast removes the last element of the array at the path.
func (u *Update) PopLast(p Path) *Update {
	return u.add(opPop, p, raw.Int32(1), requireArray(p))
}

// Rename moves the field at p to the location named by to. Both paths take
// part in conflict detection.
func (u *Update) Rename(p, to Path) *Update {
	var err error
	if pathsConflict(p, to) {
		err = &ConflictingUpdateError{PathA: p.String(), PathB: to.String()}
	}
	u = u.add(opRename, p, raw.String(to.String()), err)
	if u.err != nil {
		return u
	}
	// the destination must not collide with any other operation either
	for _, prev := range u.ops[:len(u.ops)-1] {
		if pathsConflict(prev.path, to) {
			u.err = &ConflictingUpdateError{PathA: prev.path.String(), PathB: to.String()}
		}
	}
	return u
}

// SetOnInsert stores a value at the path only when the update results in an
// insert during an upsert.
func (u *Update) SetOnInsert(p Path, operand any) *Update {
	v, err := convertOperand(p, operand)
	return u.add(opSetOnInsert, p, v, err)
}

// CurrentDate stores the current timestamp at the path. The path must name a
// datetime field.
func (u *Update) CurrentDate(p Path) *Update {
	var err error
	if !p.IsRaw() && p.leaf != nil && p.leaf.Kind != KindDateTime {
		err = &TypeMismatchError{Field: p.String(), Expected: KindDateTime.String(), Actual: p.leaf.Kind.String()}
	}
	return u.add(opCurrentDate, p, raw.Bool(true), err)
}

func numericOperand(p Path, operand any) (raw.Value, error) {
	if !p.IsRaw() && p.leaf != nil {
		switch p.leaf.Kind {
		case KindInt32, KindInt64, KindDouble:
		default:
			return nil, &TypeMismatchError{Field: p.String(), Expected: "a numeric field", Actual: p.leaf.Kind.String()}
		}
	}
	return convertOperand(p, operand)
}

func requireArray(p Path) error {
	if p.IsRaw() || p.leaf == nil {
		return nil
	}
	if p.leaf.Kind != KindArray {
		return &TypeMismatchError{Field: p.String(), Expected: KindArray.String(), Actual: p.leaf.Kind.String()}
	}
	return nil
}

// Lower produces the update's generic document form. Operations are grouped
// under their operator key; operator keys appear in order of first use and
// paths within a group keep insertion order.
func (u *Update) Lower() (raw.Document, error) {
	if u.err != nil {
		return nil, u.err
	}
	out := raw.Document{}
	for _, op := range u.ops {
		group, ok := out.Lookup(op.op)
		if !ok {
			group = raw.Document{}
		}
		gd := group.(raw.Document)
		gd = append(gd, raw.E(op.path.String(), raw.CloneValue(op.value)))
		out = out.Set(op.op, gd)
	}
	return out, nil
}
