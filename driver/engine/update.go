package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/mondolib/mondo/driver"
	"github.com/mondolib/mondo/raw"
)

// applyUpdate produces the document that results from applying a mutation.
// A mutation whose keys are update operators is applied operator by operator;
// anything else is a whole-document replacement that keeps the stored _id.
// The input document is never modified. forInsert applies $setOnInsert, which
// is otherwise ignored.
func applyUpdate(doc, mutation raw.Document, forInsert bool) (raw.Document, error) {
	if len(mutation) == 0 {
		return doc.Clone(), nil
	}
	if !strings.HasPrefix(mutation[0].Key, "$") {
		// replacement
		out := mutation.Clone()
		if id, ok := doc.Lookup("_id"); ok {
			if _, has := out.Lookup("_id"); !has {
				withID := make(raw.Document, 0, len(out)+1)
				withID = append(withID, raw.E("_id", raw.CloneValue(id)))
				out = append(withID, out...)
			}
		}
		return out, nil
	}

	out := doc.Clone()
	for _, group := range mutation {
		ops, ok := group.Value.(raw.Document)
		if !ok {
			return nil, badUpdate("operator %q needs a document argument", group.Key)
		}
		for _, op := range ops {
			var err error
			switch group.Key {
			case "$set":
				err = setPath(&out, op.Key, raw.CloneValue(op.Value))
			case "$setOnInsert":
				if forInsert {
					err = setPath(&out, op.Key, raw.CloneValue(op.Value))
				}
			case "$unset":
				err = unsetPath(&out, op.Key)
			case "$inc":
				err = arithPath(&out, op.Key, op.Value, false)
			case "$mul":
				err = arithPath(&out, op.Key, op.Value, true)
			case "$push":
				err = pushPath(&out, op.Key, raw.CloneValue(op.Value))
			case "$pull":
				err = pullPath(&out, op.Key, op.Value)
			case "$pop":
				err = popPath(&out, op.Key, op.Value)
			case "$rename":
				to, isStr := op.Value.(raw.String)
				if !isStr {
					err = badUpdate("$rename target for %q must be a string", op.Key)
				} else {
					err = renamePath(&out, op.Key, string(to))
				}
			case "$currentDate":
				err = setPath(&out, op.Key, raw.NewDateTime(time.Now()))
			default:
				err = badUpdate("unknown update operator %q", group.Key)
			}
			if err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func badUpdate(format string, args ...any) error {
	return &driver.Error{Code: driver.CodeBadCommand, Message: fmt.Sprintf(format, args...)}
}

// setPath writes a value at a dotted path, creating intermediate documents
// and extending arrays with nulls as needed.
func setPath(doc *raw.Document, path string, v raw.Value) error {
	updated, err := setInValue(*doc, strings.Split(path, "."), v)
	if err != nil {
		return err
	}
	*doc = updated.(raw.Document)
	return nil
}

func setInValue(container raw.Value, segs []string, v raw.Value) (raw.Value, error) {
	seg := segs[0]
	if idx, isIdx := arrayIndex(seg); isIdx {
		arr, ok := container.(raw.Array)
		if !ok {
			if _, isDoc := container.(raw.Document); !isDoc {
				return nil, badUpdate("cannot index into a non-array value at %q", seg)
			}
			// numeric field name on a document falls through below
		} else {
			for len(arr) <= idx {
				arr = append(arr, raw.Null{})
			}
			if len(segs) == 1 {
				arr[idx] = v
				return arr, nil
			}
			child := arr[idx]
			if child == nil || isNullValue(child) {
				child = raw.Document{}
			}
			updated, err := setInValue(child, segs[1:], v)
			if err != nil {
				return nil, err
			}
			arr[idx] = updated
			return arr, nil
		}
	}
	d, ok := container.(raw.Document)
	if !ok {
		return nil, badUpdate("cannot create field %q inside a non-document value", seg)
	}
	if len(segs) == 1 {
		return d.Set(seg, v), nil
	}
	child, has := d.Lookup(seg)
	if !has || isNullValue(child) {
		if idx, isIdx := arrayIndex(segs[1]); isIdx {
			child = make(raw.Array, 0, idx+1)
		} else {
			child = raw.Document{}
		}
	}
	updated, err := setInValue(child, segs[1:], v)
	if err != nil {
		return nil, err
	}
	return d.Set(seg, updated), nil
}

func isNullValue(v raw.Value) bool {
	_, ok := v.(raw.Null)
	return ok
}

// unsetPath removes the field at a dotted path. Missing paths are a no-op;
// unsetting an array slot nulls it out instead of shifting neighbors.
func unsetPath(doc *raw.Document, path string) error {
	*doc = unsetInValue(*doc, strings.Split(path, ".")).(raw.Document)
	return nil
}

func unsetInValue(container raw.Value, segs []string) raw.Value {
	seg := segs[0]
	switch t := container.(type) {
	case raw.Document:
		if len(segs) == 1 {
			return t.Delete(seg)
		}
		child, ok := t.Lookup(seg)
		if !ok {
			return t
		}
		return t.Set(seg, unsetInValue(child, segs[1:]))
	case raw.Array:
		idx, isIdx := arrayIndex(seg)
		if !isIdx || idx >= len(t) {
			return t
		}
		if len(segs) == 1 {
			t[idx] = raw.Null{}
			return t
		}
		t[idx] = unsetInValue(t[idx], segs[1:])
		return t
	}
	return container
}

// walkToParent resolves all but the last segment, returning the containing
// value and the final segment.
func walkToParent(container raw.Value, segs []string) (raw.Value, string, bool) {
	cur := container
	for _, seg := range segs[:len(segs)-1] {
		switch t := cur.(type) {
		case raw.Document:
			child, ok := t.Lookup(seg)
			if !ok {
				return nil, "", false
			}
			cur = child
		case raw.Array:
			idx, isIdx := arrayIndex(seg)
			if !isIdx || idx >= len(t) {
				return nil, "", false
			}
			cur = t[idx]
		default:
			return nil, "", false
		}
	}
	return cur, segs[len(segs)-1], true
}

func lookupPathValue(doc raw.Document, path string) (raw.Value, bool) {
	segs := strings.Split(path, ".")
	parent, last, ok := walkToParent(doc, segs)
	if !ok {
		return nil, false
	}
	switch t := parent.(type) {
	case raw.Document:
		return t.Lookup(last)
	case raw.Array:
		if idx, isIdx := arrayIndex(last); isIdx && idx < len(t) {
			return t[idx], true
		}
	}
	return nil, false
}

// arithPath applies $inc or $mul. A missing field starts from zero for $inc
// and from zero for $mul, matching the store's behavior.
func arithPath(doc *raw.Document, path string, operand raw.Value, mul bool) error {
	od, ok := numericValue(operand)
	if !ok {
		return badUpdate("numeric operator on %q needs a numeric operand", path)
	}
	cur, has := lookupPathValue(*doc, path)
	if !has || isNullValue(cur) {
		cur = raw.Int32(0)
	}
	cd, ok := numericValue(cur)
	if !ok {
		return badUpdate("field %q is not numeric", path)
	}
	var result float64
	if mul {
		result = cd * od
	} else {
		result = cd + od
	}
	return setPath(doc, path, arithResult(cur, operand, result))
}

// arithResult picks the stored variant: double wins over int64 wins over
// int32, matching numeric promotion on writes.
func arithResult(cur, operand raw.Value, result float64) raw.Value {
	if isDouble(cur) || isDouble(operand) {
		return raw.Double(result)
	}
	if isInt64(cur) || isInt64(operand) {
		return raw.Int64(int64(result))
	}
	return raw.Int32(int32(result))
}

func isDouble(v raw.Value) bool { _, ok := v.(raw.Double); return ok }
func isInt64(v raw.Value) bool  { _, ok := v.(raw.Int64); return ok }

func pushPath(doc *raw.Document, path string, v raw.Value) error {
	cur, has := lookupPathValue(*doc, path)
	if !has || isNullValue(cur) {
		return setPath(doc, path, raw.A(v))
	}
	arr, ok := cur.(raw.Array)
	if !ok {
		return badUpdate("field %q is not an array", path)
	}
	return setPath(doc, path, append(arr, v))
}

func pullPath(doc *raw.Document, path string, operand raw.Value) error {
	cur, has := lookupPathValue(*doc, path)
	if !has || isNullValue(cur) {
		return nil
	}
	arr, ok := cur.(raw.Array)
	if !ok {
		return badUpdate("field %q is not an array", path)
	}
	kept := make(raw.Array, 0, len(arr))
	for _, ev := range arr {
		if !raw.Equal(ev, operand) {
			kept = append(kept, ev)
		}
	}
	return setPath(doc, path, kept)
}

func popPath(doc *raw.Document, path string, operand raw.Value) error {
	cur, has := lookupPathValue(*doc, path)
	if !has || isNullValue(cur) {
		return nil
	}
	arr, ok := cur.(raw.Array)
	if !ok {
		return badUpdate("field %q is not an array", path)
	}
	if len(arr) == 0 {
		return nil
	}
	n, _ := numericValue(operand)
	if n < 0 {
		return setPath(doc, path, arr[1:])
	}
	return setPath(doc, path, arr[:len(arr)-1])
}

func renamePath(doc *raw.Document, from, to string) error {
	v, has := lookupPathValue(*doc, from)
	if !has {
		return nil
	}
	if err := unsetPath(doc, from); err != nil {
		return err
	}
	return setPath(doc, to, v)
}

// equalitySeed extracts the bare equality constraints of a filter, the part
// of the query an unmatched upsert starts its new document from.
func equalitySeed(q raw.Document) raw.Document {
	seed := raw.Document{}
	for _, e := range q {
		if strings.HasPrefix(e.Key, "$") {
			if e.Key == "$and" {
				if arr, ok := e.Value.(raw.Array); ok {
					for _, sub := range arr {
						if sd, ok := sub.(raw.Document); ok {
							for _, se := range equalitySeed(sd) {
								_ = setPath(&seed, se.Key, se.Value)
							}
						}
					}
				}
			}
			continue
		}
		if opDoc, isOp := operatorDocument(e.Value); isOp {
			if eq, ok := opDoc.Lookup("$eq"); ok {
				_ = setPath(&seed, e.Key, raw.CloneValue(eq))
			}
			continue
		}
		_ = setPath(&seed, e.Key, raw.CloneValue(e.Value))
	}
	return seed
}
