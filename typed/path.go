package typed

import (
	"strconv"
	"strings"
)

type segmentKind int

const (
	segField segmentKind = iota
	segIndex
	segAny
)

type segment struct {
	kind  segmentKind
	name  string
	index int
	field *FieldInfo
}

func (s segment) wire() string {
	switch s.kind {
	case segIndex:
		return strconv.Itoa(s.index)
	case segAny:
		return "$"
	}
	return s.name
}

// Path is a resolved reference to a field of a registered document type,
// possibly reaching through nested documents and arrays. A Path is only
// constructed through a ModelInfo, so holding one proves the reference is
// valid against the declared shape.
type Path struct {
	model *ModelInfo
	segs  []segment
	leaf  *FieldInfo

	// raw escape hatch: the path is taken verbatim and never type-checked
	rawKey string
}

// PathStep is one navigation step when building a Path: a string naming a
// field, or the result of Idx or AnyElem.
type PathStep any

type indexStep int

type anyElemStep struct{}

// Idx selects a specific element of an array field.
func Idx(n int) PathStep { return indexStep(n) }

// AnyElem selects an unspecified element of an array field. A filter through
// AnyElem matches when any element matches.
func AnyElem() PathStep { return anyElemStep{} }

// Path resolves a sequence of steps against the model. Field steps accept the
// Go struct field name or the wire name. Stepping with a plain field name
// through an array of documents is allowed and matches any element.
func (m *ModelInfo) Path(steps ...PathStep) (Path, error) {
	p := Path{model: m}
	if len(steps) == 0 {
		return p, &PathError{TypeName: m.TypeName, Path: "", Reason: "empty path"}
	}

	cur := &m.StructInfo
	var curField *FieldInfo
	for _, step := range steps {
		switch s := step.(type) {
		case string:
			if curField != nil && curField.Kind == KindArray {
				// implicit traversal into array elements
				elem := curField.Elem
				if elem.Kind != KindDocument {
					return p, p.fail(s, "cannot select a field of a non-document array element")
				}
				cur = elem.Nested
				curField = nil
			}
			if cur == nil {
				return p, p.fail(s, "cannot descend into a scalar field")
			}
			f, ok := cur.FieldByGoName(s)
			if !ok {
				f, ok = cur.FieldByWireName(s)
			}
			if !ok {
				return p, p.fail(s, "no such field")
			}
			p.segs = append(p.segs, segment{kind: segField, name: f.Name, field: f})
			curField = f
			switch f.Kind {
			case KindDocument:
				cur = f.Nested
			default:
				cur = nil
			}
		case indexStep:
			if curField == nil || curField.Kind != KindArray {
				return p, p.fail(strconv.Itoa(int(s)), "index applied to a non-array field")
			}
			if s < 0 {
				return p, p.fail(strconv.Itoa(int(s)), "negative array index")
			}
			p.segs = append(p.segs, segment{kind: segIndex, index: int(s)})
			curField = curField.Elem
			if curField.Kind == KindDocument {
				cur = curField.Nested
			} else {
				cur = nil
			}
		case anyElemStep:
			if curField == nil || curField.Kind != KindArray {
				return p, p.fail("$", "element selector applied to a non-array field")
			}
			p.segs = append(p.segs, segment{kind: segAny})
			curField = curField.Elem
			if curField.Kind == KindDocument {
				cur = curField.Nested
			} else {
				cur = nil
			}
		default:
			return p, p.fail("", "unsupported path step")
		}
	}
	p.leaf = curField
	return p, nil
}

// MustPath is like Path but panics on error. Intended for paths whose
// validity is established by the program's structure.
func (m *ModelInfo) MustPath(steps ...PathStep) Path {
	p, err := m.Path(steps...)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePath resolves a dotted wire-form path such as "contacts.0.email".
// Numeric segments index arrays and "$" selects any element.
func (m *ModelInfo) ParsePath(s string) (Path, error) {
	parts := strings.Split(s, ".")
	steps := make([]PathStep, 0, len(parts))
	for _, part := range parts {
		if part == "$" {
			steps = append(steps, AnyElem())
			continue
		}
		if n, err := strconv.Atoi(part); err == nil {
			steps = append(steps, Idx(n))
			continue
		}
		steps = append(steps, part)
	}
	return m.Path(steps...)
}

// IDPath returns the path of the model's identifier field.
func (m *ModelInfo) IDPath() Path {
	id := m.IDField()
	return Path{
		model: m,
		segs:  []segment{{kind: segField, name: id.Name, field: id}},
		leaf:  id,
	}
}

// RawPath wraps a verbatim dotted key as a Path. It bypasses resolution and
// type checking entirely; expressions built on it are passed through as-is.
func RawPath(key string) Path {
	return Path{rawKey: key}
}

func (p Path) fail(seg, reason string) *PathError {
	full := p.String()
	if full != "" {
		full += "."
	}
	return &PathError{TypeName: p.typeName(), Path: full + seg, Reason: reason}
}

func (p Path) typeName() string {
	if p.model == nil {
		return "<raw>"
	}
	return p.model.TypeName
}

// IsRaw reports whether the path bypasses resolution.
func (p Path) IsRaw() bool { return p.rawKey != "" }

// Leaf returns the field info of the path's final segment, nil for raw paths.
func (p Path) Leaf() *FieldInfo { return p.leaf }

// String returns the dotted wire form of the path.
func (p Path) String() string {
	if p.rawKey != "" {
		return p.rawKey
	}
	var b strings.Builder
	for i, s := range p.segs {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.wire())
	}
	return b.String()
}

// IsAncestorOf reports whether p is a strict prefix of other. An indexed
// segment and an any-element segment at the same position are considered
// overlapping, since the index may name the element the selector reaches.
func (p Path) IsAncestorOf(other Path) bool {
	if p.rawKey != "" || other.rawKey != "" {
		a, b := p.String(), other.String()
		return len(a) < len(b) && strings.HasPrefix(b, a+".")
	}
	if len(p.segs) >= len(other.segs) {
		return false
	}
	for i, s := range p.segs {
		if !segmentsOverlap(s, other.segs[i]) {
			return false
		}
	}
	return true
}

// Equal reports whether two paths name the same location.
func (p Path) Equal(other Path) bool {
	if p.rawKey != "" || other.rawKey != "" {
		return p.String() == other.String()
	}
	if len(p.segs) != len(other.segs) {
		return false
	}
	for i, s := range p.segs {
		if !segmentsOverlap(s, other.segs[i]) {
			return false
		}
	}
	return true
}

func segmentsOverlap(a, b segment) bool {
	if a.kind == segField || b.kind == segField {
		return a.kind == b.kind && a.name == b.name
	}
	// index vs index must agree; anything involving $ overlaps
	if a.kind == segIndex && b.kind == segIndex {
		return a.index == b.index
	}
	return true
}
