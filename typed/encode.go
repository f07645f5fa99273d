package typed

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/mondolib/mondo/raw"
)

// Marshal encodes a document instance into its generic tree form. Fields
// appear in declaration order, with the identifier first under "_id". A
// zero-valued object identifier is omitted so the store assigns one.
func Marshal[T Doc](doc *T) (raw.Document, error) {
	m, err := ModelFor[T]()
	if err != nil {
		return nil, err
	}
	return m.encodeDoc(reflect.ValueOf(doc).Elem())
}

func (m *ModelInfo) encodeDoc(v reflect.Value) (raw.Document, error) {
	out := make(raw.Document, 0, len(m.Fields))

	id := m.IDField()
	idv := v.Field(id.Index)
	if !(m.IDKind == IDObjectID && isZeroID(m.IDKind, idv)) {
		rv, err := encodeID(m.IDKind, idv)
		if err != nil {
			return nil, &EncodeError{Field: id.Name, Cause: err}
		}
		out = append(out, raw.E("_id", rv))
	}

	rest, err := encodeStruct(&m.StructInfo, v, true)
	if err != nil {
		return nil, err
	}
	return append(out, rest...), nil
}

func encodeStruct(si *StructInfo, v reflect.Value, skipID bool) (raw.Document, error) {
	out := make(raw.Document, 0, len(si.Fields))
	for i := range si.Fields {
		f := &si.Fields[i]
		if skipID && f.IsID {
			continue
		}
		fv := v.Field(f.Index)
		if f.Pointer {
			if fv.IsNil() {
				if !f.OmitEmpty {
					out = append(out, raw.E(f.Name, raw.Null{}))
				}
				continue
			}
			fv = fv.Elem()
		} else if f.OmitEmpty && fv.IsZero() {
			continue
		}
		rv, err := encodeField(f, fv)
		if err != nil {
			return nil, err
		}
		out = append(out, raw.E(f.Name, rv))
	}
	return out, nil
}

func encodeField(f *FieldInfo, v reflect.Value) (raw.Value, error) {
	switch f.Kind {
	case KindString:
		return raw.String(v.String()), nil
	case KindInt32:
		return raw.Int32(v.Int()), nil
	case KindInt64:
		return raw.Int64(v.Int()), nil
	case KindDouble:
		return raw.Double(v.Float()), nil
	case KindBool:
		return raw.Bool(v.Bool()), nil
	case KindDateTime:
		return raw.NewDateTime(v.Interface().(time.Time)), nil
	case KindObjectID:
		return v.Interface().(raw.ObjectID), nil
	case KindUUID:
		id := v.Interface().(uuid.UUID)
		return raw.Binary{Subtype: raw.BinarySubtypeUUID, Data: id[:]}, nil
	case KindBinary:
		data := make([]byte, v.Len())
		reflect.Copy(reflect.ValueOf(data), v)
		return raw.Binary{Data: data}, nil
	case KindDocument:
		return encodeStruct(f.Nested, v, false)
	case KindArray:
		arr := make(raw.Array, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			ev := v.Index(i)
			if f.Elem.Pointer {
				if ev.IsNil() {
					arr = append(arr, raw.Null{})
					continue
				}
				ev = ev.Elem()
			}
			rv, err := encodeField(f.Elem, ev)
			if err != nil {
				return nil, err
			}
			arr = append(arr, rv)
		}
		return arr, nil
	}
	return nil, &EncodeError{Field: f.Name, Cause: fmt.Errorf("unsupported kind %v", f.Kind)}
}
