package engine

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/mondolib/mondo/driver"
	"github.com/mondolib/mondo/raw"
)

// resolvePath returns every value a dotted path reaches inside a document.
// A plain segment applied to an array traverses into each element, a numeric
// segment indexes, and "$" selects every element. More than one result means
// the path fanned out through arrays.
func resolvePath(v raw.Value, path string) []raw.Value {
	return resolveSegments(v, strings.Split(path, "."))
}

func resolveSegments(v raw.Value, segs []string) []raw.Value {
	if len(segs) == 0 {
		return []raw.Value{v}
	}
	seg := segs[0]
	switch t := v.(type) {
	case raw.Document:
		sub, ok := t.Lookup(seg)
		if !ok {
			return nil
		}
		return resolveSegments(sub, segs[1:])
	case raw.Array:
		if seg == "$" {
			var out []raw.Value
			for _, ev := range t {
				out = append(out, resolveSegments(ev, segs[1:])...)
			}
			return out
		}
		if idx, ok := arrayIndex(seg); ok {
			if idx < 0 || idx >= len(t) {
				return nil
			}
			return resolveSegments(t[idx], segs[1:])
		}
		// implicit traversal: apply the field segment to each element
		var out []raw.Value
		for _, ev := range t {
			if _, isDoc := ev.(raw.Document); isDoc {
				out = append(out, resolveSegments(ev, segs)...)
			}
		}
		return out
	}
	return nil
}

func arrayIndex(seg string) (int, bool) {
	if seg == "" {
		return 0, false
	}
	n := 0
	for _, r := range seg {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// matchDocument evaluates a lowered filter against one document. An empty or
// nil filter matches everything.
func matchDocument(filter, doc raw.Document) (bool, error) {
	for _, e := range filter {
		var ok bool
		var err error
		switch e.Key {
		case "$and":
			ok, err = matchAll(e.Value, doc, false)
		case "$or":
			ok, err = matchAny(e.Value, doc)
		case "$nor":
			ok, err = matchAll(e.Value, doc, true)
		default:
			ok, err = matchCondition(doc, e.Key, e.Value)
		}
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func subFilters(v raw.Value) ([]raw.Document, error) {
	arr, ok := v.(raw.Array)
	if !ok {
		return nil, &driver.Error{Code: driver.CodeBadCommand, Message: "logical operator needs an array of filters"}
	}
	out := make([]raw.Document, 0, len(arr))
	for _, ev := range arr {
		d, ok := ev.(raw.Document)
		if !ok {
			return nil, &driver.Error{Code: driver.CodeBadCommand, Message: "logical operator clauses must be documents"}
		}
		out = append(out, d)
	}
	return out, nil
}

func matchAll(v raw.Value, doc raw.Document, negate bool) (bool, error) {
	subs, err := subFilters(v)
	if err != nil {
		return false, err
	}
	for _, sub := range subs {
		ok, err := matchDocument(sub, doc)
		if err != nil {
			return false, err
		}
		if ok == negate {
			return false, nil
		}
	}
	return true, nil
}

func matchAny(v raw.Value, doc raw.Document) (bool, error) {
	subs, err := subFilters(v)
	if err != nil {
		return false, err
	}
	for _, sub := range subs {
		ok, err := matchDocument(sub, doc)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// matchCondition evaluates one field condition: either a bare equality value
// or a document of comparison operators.
func matchCondition(doc raw.Document, path string, cond raw.Value) (bool, error) {
	candidates := resolvePath(doc, path)
	if opDoc, ok := operatorDocument(cond); ok {
		for _, e := range opDoc {
			ok, err := matchOperator(candidates, e.Key, e.Value)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
	return equalityMatch(candidates, cond), nil
}

// operatorDocument reports whether a condition value is an operator document
// rather than a literal. A document whose first key starts with '$' is taken
// as operators.
func operatorDocument(cond raw.Value) (raw.Document, bool) {
	d, ok := cond.(raw.Document)
	if !ok || len(d) == 0 {
		return nil, false
	}
	if strings.HasPrefix(d[0].Key, "$") {
		return d, true
	}
	return nil, false
}

// equalityMatch applies the store's equality semantics: a candidate matches
// when it equals the operand, and an array candidate also matches when any
// of its elements does. Numeric variants compare by value across widths, so
// an Int32 operand matches a stored Int64 of the same magnitude.
func equalityMatch(candidates []raw.Value, operand raw.Value) bool {
	for _, c := range candidates {
		if valuesEqual(c, operand) {
			return true
		}
		if arr, ok := c.(raw.Array); ok {
			for _, ev := range arr {
				if valuesEqual(ev, operand) {
					return true
				}
			}
		}
	}
	return false
}

func valuesEqual(a, b raw.Value) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return raw.Equal(a, b)
}

func matchOperator(candidates []raw.Value, op string, operand raw.Value) (bool, error) {
	switch op {
	case "$eq":
		return equalityMatch(candidates, operand), nil
	case "$ne":
		return !equalityMatch(candidates, operand), nil
	case "$lt", "$lte", "$gt", "$gte":
		return orderMatch(candidates, op, operand), nil
	case "$in":
		arr, ok := operand.(raw.Array)
		if !ok {
			return false, &driver.Error{Code: driver.CodeBadCommand, Message: "$in needs an array"}
		}
		for _, member := range arr {
			if equalityMatch(candidates, member) {
				return true, nil
			}
		}
		return false, nil
	case "$nin":
		arr, ok := operand.(raw.Array)
		if !ok {
			return false, &driver.Error{Code: driver.CodeBadCommand, Message: "$nin needs an array"}
		}
		for _, member := range arr {
			if equalityMatch(candidates, member) {
				return false, nil
			}
		}
		return true, nil
	case "$exists":
		want := true
		if b, ok := operand.(raw.Bool); ok {
			want = bool(b)
		}
		return (len(candidates) > 0) == want, nil
	}
	return false, &driver.Error{Code: driver.CodeBadCommand,
		Message: fmt.Sprintf("unknown filter operator %q", op)}
}

func orderMatch(candidates []raw.Value, op string, operand raw.Value) bool {
	satisfied := func(v raw.Value) bool {
		cmp, ok := compareValues(v, operand)
		if !ok {
			return false
		}
		switch op {
		case "$lt":
			return cmp < 0
		case "$lte":
			return cmp <= 0
		case "$gt":
			return cmp > 0
		case "$gte":
			return cmp >= 0
		}
		return false
	}
	for _, c := range candidates {
		if satisfied(c) {
			return true
		}
		if arr, ok := c.(raw.Array); ok {
			for _, ev := range arr {
				if satisfied(ev) {
					return true
				}
			}
		}
	}
	return false
}

// compareValues orders two values of compatible types. Numeric variants
// compare by value across widths; everything else compares within its own
// variant only.
func compareValues(a, b raw.Value) (int, bool) {
	if an, aok := numericValue(a); aok {
		bn, bok := numericValue(b)
		if !bok {
			return 0, false
		}
		switch {
		case an < bn:
			return -1, true
		case an > bn:
			return 1, true
		}
		return 0, true
	}
	switch at := a.(type) {
	case raw.String:
		bt, ok := b.(raw.String)
		if !ok {
			return 0, false
		}
		return strings.Compare(string(at), string(bt)), true
	case raw.DateTime:
		bt, ok := b.(raw.DateTime)
		if !ok {
			return 0, false
		}
		switch {
		case at < bt:
			return -1, true
		case at > bt:
			return 1, true
		}
		return 0, true
	case raw.ObjectID:
		bt, ok := b.(raw.ObjectID)
		if !ok {
			return 0, false
		}
		return bytes.Compare(at[:], bt[:]), true
	case raw.Binary:
		bt, ok := b.(raw.Binary)
		if !ok {
			return 0, false
		}
		if at.Subtype != bt.Subtype {
			if at.Subtype < bt.Subtype {
				return -1, true
			}
			return 1, true
		}
		return bytes.Compare(at.Data, bt.Data), true
	case raw.Bool:
		bt, ok := b.(raw.Bool)
		if !ok {
			return 0, false
		}
		switch {
		case !bool(at) && bool(bt):
			return -1, true
		case bool(at) && !bool(bt):
			return 1, true
		}
		return 0, true
	case raw.Null:
		if _, ok := b.(raw.Null); ok {
			return 0, true
		}
		return 0, false
	}
	return 0, false
}

func numericValue(v raw.Value) (float64, bool) {
	switch n := v.(type) {
	case raw.Int32:
		return float64(n), true
	case raw.Int64:
		return float64(n), true
	case raw.Double:
		return float64(n), true
	}
	return 0, false
}

// typeRank orders value variants for sorting when types differ, following
// the store's cross-type ordering.
func typeRank(v raw.Value) int {
	switch v.(type) {
	case nil:
		return 0
	case raw.Null:
		return 1
	case raw.Int32, raw.Int64, raw.Double:
		return 2
	case raw.String:
		return 3
	case raw.Document:
		return 4
	case raw.Array:
		return 5
	case raw.Binary:
		return 6
	case raw.ObjectID:
		return 7
	case raw.Bool:
		return 8
	case raw.DateTime:
		return 9
	case raw.Regex:
		return 10
	}
	return 11
}

// compareForSort is a total order over values: by type rank, then by value
// comparison, falling back to the canonical rendering so ties break the same
// way every run.
func compareForSort(a, b raw.Value) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	if a == nil && b == nil {
		return 0
	}
	if cmp, ok := compareValues(a, b); ok {
		return cmp
	}
	return strings.Compare(raw.Format(a), raw.Format(b))
}

// sortDocuments orders documents in place by a sort specification document
// of path keys mapped to 1 or -1. The sort is stable.
func sortDocuments(docs []raw.Document, spec raw.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, e := range spec {
			desc := false
			if n, ok := e.Value.(raw.Int32); ok && n < 0 {
				desc = true
			}
			if n, ok := e.Value.(raw.Int64); ok && n < 0 {
				desc = true
			}
			av := firstResolved(docs[i], e.Key)
			bv := firstResolved(docs[j], e.Key)
			cmp := compareForSort(av, bv)
			if cmp == 0 {
				continue
			}
			if desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func firstResolved(d raw.Document, path string) raw.Value {
	vs := resolvePath(d, path)
	if len(vs) == 0 {
		return nil
	}
	return vs[0]
}
