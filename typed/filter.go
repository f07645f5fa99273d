package typed

import (
	"github.com/mondolib/mondo/raw"
)

// Filter is a query predicate over a document type. Filters are built with
// the constructor functions in this file; the zero stages of validation
// happen inside the constructors, so an invalid filter carries its error from
// the moment it is built and is rejected before any command is issued.
type Filter interface {
	// Lower produces the filter's generic document form. Lowering the same
	// filter twice yields structurally identical documents.
	Lower() (raw.Document, error)
	// Err reports the construction error, if any.
	Err() error
}

// comparison operator keys in lowered form
const (
	opEq     = "$eq"
	opNe     = "$ne"
	opLt     = "$lt"
	opLte    = "$lte"
	opGt     = "$gt"
	opGte    = "$gte"
	opIn     = "$in"
	opNin    = "$nin"
	opExists = "$exists"
	opAnd    = "$and"
	opOr     = "$or"
	opNor    = "$nor"
)

type comparisonFilter struct {
	path  Path
	op    string
	value raw.Value
	err   error
}

func (f *comparisonFilter) Err() error { return f.err }

func (f *comparisonFilter) Lower() (raw.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.op == opEq {
		// equality lowers to the bare field/value pair
		return raw.D(raw.E(f.path.String(), raw.CloneValue(f.value))), nil
	}
	return raw.D(raw.E(f.path.String(), raw.D(raw.E(f.op, raw.CloneValue(f.value))))), nil
}

func newComparison(p Path, op string, operand any) Filter {
	v, err := convertOperand(p, operand)
	return &comparisonFilter{path: p, op: op, value: v, err: err}
}

// Eq matches documents whose field equals the operand.
func Eq(p Path, operand any) Filter { return newComparison(p, opEq, operand) }

// Ne matches documents whose field does not equal the operand.
func Ne(p Path, operand any) Filter { return newComparison(p, opNe, operand) }

// Lt matches documents whose field is strictly less than the operand.
func Lt(p Path, operand any) Filter { return newComparison(p, opLt, operand) }

// Lte matches documents whose field is at most the operand.
func Lte(p Path, operand any) Filter { return newComparison(p, opLte, operand) }

// Gt matches documents whose field is strictly greater than the operand.
func Gt(p Path, operand any) Filter { return newComparison(p, opGt, operand) }

// Gte matches documents whose field is at least the operand.
func Gte(p Path, operand any) Filter { return newComparison(p, opGte, operand) }

type membershipFilter struct {
	path   Path
	op     string
	values raw.Array
	err    error
}

func (f *membershipFilter) Err() error { return f.err }

func (f *membershipFilter) Lower() (raw.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	arr := make(raw.Array, len(f.values))
	for i, v := range f.values {
		arr[i] = raw.CloneValue(v)
	}
	return raw.D(raw.E(f.path.String(), raw.D(raw.E(f.op, arr)))), nil
}

func newMembership(p Path, op string, operands []any) Filter {
	f := &membershipFilter{path: p, op: op}
	for _, operand := range operands {
		v, err := convertElemOperand(p, operand)
		if err != nil {
			f.err = err
			break
		}
		f.values = append(f.values, v)
	}
	return f
}

// In matches documents whose field equals any of the operands. On array
// fields the operands are checked against the element type.
func In(p Path, operands ...any) Filter { return newMembership(p, opIn, operands) }

// Nin matches documents whose field equals none of the operands.
func Nin(p Path, operands ...any) Filter { return newMembership(p, opNin, operands) }

type existsFilter struct {
	path   Path
	exists bool
}

func (f *existsFilter) Err() error { return nil }

func (f *existsFilter) Lower() (raw.Document, error) {
	return raw.D(raw.E(f.path.String(), raw.D(raw.E(opExists, raw.Bool(f.exists))))), nil
}

// Exists matches documents where the field is present, including when it is
// stored as null.
func Exists(p Path) Filter { return &existsFilter{path: p, exists: true} }

// NotExists matches documents where the field is absent.
func NotExists(p Path) Filter { return &existsFilter{path: p, exists: false} }

type logicalFilter struct {
	op   string
	subs []Filter
}

func (f *logicalFilter) Err() error {
	for _, s := range f.subs {
		if err := s.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (f *logicalFilter) Lower() (raw.Document, error) {
	if err := f.Err(); err != nil {
		return nil, err
	}
	arr := make(raw.Array, 0, len(f.subs))
	for _, s := range f.subs {
		d, err := s.Lower()
		if err != nil {
			return nil, err
		}
		arr = append(arr, d)
	}
	return raw.D(raw.E(f.op, arr)), nil
}

// newLogical flattens nested combinators of the same operator so that
// And(And(a, b), c) lowers the same as And(a, b, c).
func newLogical(op string, subs []Filter) Filter {
	flat := make([]Filter, 0, len(subs))
	for _, s := range subs {
		if lf, ok := s.(*logicalFilter); ok && lf.op == op {
			flat = append(flat, lf.subs...)
			continue
		}
		flat = append(flat, s)
	}
	return &logicalFilter{op: op, subs: flat}
}

// And matches documents satisfying every sub-filter. Nested Ands are
// flattened into one clause list.
func And(subs ...Filter) Filter { return newLogical(opAnd, subs) }

// Or matches documents satisfying at least one sub-filter.
func Or(subs ...Filter) Filter { return newLogical(opOr, subs) }

// Nor matches documents satisfying none of the sub-filters.
func Nor(subs ...Filter) Filter { return newLogical(opNor, subs) }

// Not matches documents that do not satisfy the sub-filter. It lowers to a
// single-clause $nor, the negation form valid for arbitrary sub-filters.
func Not(sub Filter) Filter { return &logicalFilter{op: opNor, subs: []Filter{sub}} }

type matchAllFilter struct{}

func (matchAllFilter) Err() error                   { return nil }
func (matchAllFilter) Lower() (raw.Document, error) { return raw.Document{}, nil }

// MatchAll matches every document. It lowers to the empty document.
func MatchAll() Filter { return matchAllFilter{} }

type rawFilter struct{ doc raw.Document }

func (f *rawFilter) Err() error { return nil }

func (f *rawFilter) Lower() (raw.Document, error) { return f.doc.Clone(), nil }

// RawFilter wraps a hand-built predicate document. It is passed through
// without validation.
func RawFilter(d raw.Document) Filter { return &rawFilter{doc: d.Clone()} }
