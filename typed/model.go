package typed

import (
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/mondolib/mondo/raw"
)

// Doc is the contract a Go struct must satisfy to act as a document type.
// CollectionName must be a value-receiver method returning a constant.
type Doc interface {
	CollectionName() string
}

// Kind classifies a field's declared value type.
type Kind int

// Field kinds, mirroring the generic document tree's variants.
const (
	KindString Kind = iota
	KindInt32
	KindInt64
	KindDouble
	KindBool
	KindDateTime
	KindObjectID
	KindUUID
	KindBinary
	KindDocument
	KindArray
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	case KindDateTime:
		return "datetime"
	case KindObjectID:
		return "objectid"
	case KindUUID:
		return "uuid"
	case KindBinary:
		return "binary"
	case KindDocument:
		return "document"
	case KindArray:
		return "array"
	}
	return "unknown"
}

// FieldInfo describes one declared field of a document type.
type FieldInfo struct {
	// GoName is the Go struct field name.
	GoName string
	// Name is the wire name the field is stored under.
	Name string
	// Index is the struct field index for reflect access.
	Index int
	// Kind classifies the field's value type.
	Kind Kind
	// GoType is the field's Go type with any pointer stripped.
	GoType reflect.Type
	// Optional is true for pointer fields; they may be absent or null.
	Optional bool
	// Pointer is true when the Go field is a pointer.
	Pointer bool
	// OmitEmpty omits the field from encoded documents when zero.
	OmitEmpty bool
	// Enum restricts a string field to the listed values.
	Enum []string
	// Elem describes array elements when Kind is KindArray.
	Elem *FieldInfo
	// Nested describes the sub-document when Kind is KindDocument.
	Nested *StructInfo
	// IsID is true for the identifier field.
	IsID bool
}

// StructInfo is the extracted shape of one struct: its fields in declaration
// order, keyed for lookup by Go name and wire name.
type StructInfo struct {
	GoType reflect.Type
	Fields []FieldInfo

	byGoName   map[string]int
	byWireName map[string]int
}

// FieldByGoName returns the field with the given Go struct field name.
func (s *StructInfo) FieldByGoName(name string) (*FieldInfo, bool) {
	i, ok := s.byGoName[name]
	if !ok {
		return nil, false
	}
	return &s.Fields[i], true
}

// FieldByWireName returns the field stored under the given wire name.
func (s *StructInfo) FieldByWireName(name string) (*FieldInfo, bool) {
	i, ok := s.byWireName[name]
	if !ok {
		return nil, false
	}
	return &s.Fields[i], true
}

// IDKind classifies the identifier field's value type.
type IDKind int

// Supported identifier shapes.
const (
	IDObjectID IDKind = iota
	IDUUID
	IDString
	IDInt64
)

// String returns a human-readable name for the identifier kind.
func (k IDKind) String() string {
	switch k {
	case IDObjectID:
		return "objectid"
	case IDUUID:
		return "uuid"
	case IDString:
		return "string"
	case IDInt64:
		return "int64"
	}
	return "unknown"
}

// ModelInfo is the complete extracted description of a document type.
type ModelInfo struct {
	StructInfo

	// TypeName is the Go type's name, for diagnostics.
	TypeName string
	// Collection is the collection name the type maps to.
	Collection string
	// IDIndex is the index into Fields of the identifier field.
	IDIndex int
	// IDKind classifies the identifier's value type.
	IDKind IDKind
}

// IDField returns the identifier field's info.
func (m *ModelInfo) IDField() *FieldInfo {
	return &m.Fields[m.IDIndex]
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	uuidType     = reflect.TypeOf(uuid.UUID{})
	objectIDType = reflect.TypeOf(raw.ObjectID{})
	bytesType    = reflect.TypeOf([]byte(nil))
)

// ExtractModelInfo inspects a document instance with reflection and produces
// its ModelInfo. The instance must be a struct or a pointer to one, with
// exactly one identifier field: either tagged with the "id" option or stored
// under the wire name "_id".
func ExtractModelInfo(instance Doc) (*ModelInfo, error) {
	t := reflect.TypeOf(instance)
	if t == nil {
		return nil, fmt.Errorf("cannot extract a model from a nil document")
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("document type must be a struct, got %s", t.Kind())
	}
	// a nil pointer cannot answer CollectionName; ask a fresh instance instead
	if rv := reflect.ValueOf(instance); rv.Kind() == reflect.Ptr && rv.IsNil() {
		fresh, ok := reflect.New(t).Interface().(Doc)
		if !ok {
			return nil, fmt.Errorf("%s does not implement Doc", t.Name())
		}
		instance = fresh
	}

	si, err := extractStructInfo(t, map[reflect.Type]bool{})
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", t.Name(), err)
	}

	m := &ModelInfo{
		StructInfo: *si,
		TypeName:   t.Name(),
		Collection: instance.CollectionName(),
		IDIndex:    -1,
	}
	for i := range m.Fields {
		f := &m.Fields[i]
		if !f.IsID && f.Name != "_id" {
			continue
		}
		if m.IDIndex >= 0 {
			return nil, fmt.Errorf("%s declares more than one identifier field", m.TypeName)
		}
		f.IsID = true
		f.Name = "_id"
		m.IDIndex = i
	}
	if m.IDIndex < 0 {
		return nil, fmt.Errorf("%s declares no identifier field", m.TypeName)
	}

	id := m.IDField()
	switch id.Kind {
	case KindObjectID:
		m.IDKind = IDObjectID
	case KindUUID:
		m.IDKind = IDUUID
	case KindString:
		m.IDKind = IDString
	case KindInt64:
		m.IDKind = IDInt64
	default:
		return nil, fmt.Errorf("%s: identifier field %s has unsupported type %s",
			m.TypeName, id.GoName, id.Kind)
	}
	if id.Pointer {
		return nil, fmt.Errorf("%s: identifier field %s must not be a pointer", m.TypeName, id.GoName)
	}
	// ensure _id lookup resolves after the rename
	m.byWireName = make(map[string]int, len(m.Fields))
	for i := range m.Fields {
		m.byWireName[m.Fields[i].Name] = i
	}
	return m, nil
}

func extractStructInfo(t reflect.Type, visiting map[reflect.Type]bool) (*StructInfo, error) {
	if visiting[t] {
		return nil, fmt.Errorf("recursive document type %s is not supported", t.Name())
	}
	visiting[t] = true
	defer delete(visiting, t)

	si := &StructInfo{
		GoType:     t,
		byGoName:   make(map[string]int),
		byWireName: make(map[string]int),
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, err := ParseTag(sf.Tag.Get("mondo"))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		if tag.Skip {
			continue
		}

		fi := FieldInfo{
			GoName:    sf.Name,
			Name:      tag.Name,
			Index:     i,
			OmitEmpty: tag.OmitEmpty,
			Enum:      tag.Enum,
			IsID:      tag.ID,
		}
		if fi.Name == "" {
			fi.Name = snakeCase(sf.Name)
		}

		ft := sf.Type
		if ft.Kind() == reflect.Ptr {
			fi.Pointer = true
			fi.Optional = true
			ft = ft.Elem()
		}
		fi.GoType = ft
		if err := classifyField(&fi, ft, visiting); err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		if len(fi.Enum) > 0 && fi.Kind != KindString {
			return nil, fmt.Errorf("field %s: enum requires a string field", sf.Name)
		}

		if _, dup := si.byWireName[fi.Name]; dup {
			return nil, fmt.Errorf("duplicate wire name %q", fi.Name)
		}
		si.byGoName[fi.GoName] = len(si.Fields)
		si.byWireName[fi.Name] = len(si.Fields)
		si.Fields = append(si.Fields, fi)
	}
	return si, nil
}

func classifyField(fi *FieldInfo, t reflect.Type, visiting map[reflect.Type]bool) error {
	switch t {
	case timeType:
		fi.Kind = KindDateTime
		return nil
	case uuidType:
		fi.Kind = KindUUID
		return nil
	case objectIDType:
		fi.Kind = KindObjectID
		return nil
	case bytesType:
		fi.Kind = KindBinary
		return nil
	}
	switch t.Kind() {
	case reflect.String:
		fi.Kind = KindString
	case reflect.Int32, reflect.Int16, reflect.Int8:
		fi.Kind = KindInt32
	case reflect.Int, reflect.Int64:
		fi.Kind = KindInt64
	case reflect.Float32, reflect.Float64:
		fi.Kind = KindDouble
	case reflect.Bool:
		fi.Kind = KindBool
	case reflect.Struct:
		fi.Kind = KindDocument
		nested, err := extractStructInfo(t, visiting)
		if err != nil {
			return err
		}
		fi.Nested = nested
	case reflect.Slice:
		fi.Kind = KindArray
		elem := &FieldInfo{GoName: fi.GoName, Name: fi.Name}
		et := t.Elem()
		if et.Kind() == reflect.Ptr {
			elem.Pointer = true
			elem.Optional = true
			et = et.Elem()
		}
		elem.GoType = et
		if err := classifyField(elem, et, visiting); err != nil {
			return err
		}
		fi.Elem = elem
	default:
		return fmt.Errorf("unsupported type %s", t)
	}
	return nil
}

// snakeCase converts a Go field name to its default wire form, e.g.
// "CreatedAt" becomes "created_at" and "URL" becomes "url".
func snakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (!unicode.IsUpper(runes[i-1]) ||
				(i+1 < len(runes) && !unicode.IsUpper(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
