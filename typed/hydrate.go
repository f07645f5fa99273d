package typed

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/mondolib/mondo/raw"
)

// Unmarshal decodes a generic document tree into a fresh instance of a
// registered document type. Fields absent from the document keep their zero
// value; a stored null clears pointer fields and is an error for others.
func Unmarshal[T Doc](d raw.Document) (*T, error) {
	m, err := ModelFor[T]()
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := m.decodeDoc(d, reflect.ValueOf(out).Elem()); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *ModelInfo) decodeDoc(d raw.Document, v reflect.Value) error {
	id := m.IDField()
	if rv, ok := d.Lookup("_id"); ok {
		if err := decodeID(m.IDKind, rv, v.Field(id.Index)); err != nil {
			return &DecodeError{Path: "_id", Cause: err}
		}
	}
	return decodeStruct(&m.StructInfo, d, v, true, "")
}

func decodeStruct(si *StructInfo, d raw.Document, v reflect.Value, skipID bool, prefix string) error {
	for i := range si.Fields {
		f := &si.Fields[i]
		if skipID && f.IsID {
			continue
		}
		rv, ok := d.Lookup(f.Name)
		if !ok {
			continue
		}
		fv := v.Field(f.Index)
		path := joinPath(prefix, f.Name)
		if _, isNull := rv.(raw.Null); isNull {
			if f.Pointer {
				fv.Set(reflect.Zero(fv.Type()))
				continue
			}
			return &DecodeError{Path: path, Cause: fmt.Errorf("null for non-optional field")}
		}
		if f.Pointer {
			p := reflect.New(fv.Type().Elem())
			if err := decodeField(f, rv, p.Elem(), path); err != nil {
				return err
			}
			fv.Set(p)
			continue
		}
		if err := decodeField(f, rv, fv, path); err != nil {
			return err
		}
	}
	return nil
}

func decodeField(f *FieldInfo, rv raw.Value, dst reflect.Value, path string) error {
	mismatch := func() error {
		return &DecodeError{Path: path, Cause: fmt.Errorf("expected %s, got %s", f.Kind, describeValue(rv))}
	}
	switch f.Kind {
	case KindString:
		s, ok := rv.(raw.String)
		if !ok {
			return mismatch()
		}
		dst.SetString(string(s))
	case KindInt32:
		switch n := rv.(type) {
		case raw.Int32:
			dst.SetInt(int64(n))
		case raw.Int64:
			// stores promote on arithmetic; narrow back when the value fits
			if int64(int32(n)) != int64(n) {
				return &DecodeError{Path: path, Cause: fmt.Errorf("value %d overflows int32", int64(n))}
			}
			dst.SetInt(int64(n))
		default:
			return mismatch()
		}
	case KindInt64:
		switch n := rv.(type) {
		case raw.Int64:
			dst.SetInt(int64(n))
		case raw.Int32:
			dst.SetInt(int64(n))
		default:
			return mismatch()
		}
	case KindDouble:
		switch n := rv.(type) {
		case raw.Double:
			dst.SetFloat(float64(n))
		case raw.Int32:
			dst.SetFloat(float64(n))
		case raw.Int64:
			dst.SetFloat(float64(n))
		default:
			return mismatch()
		}
	case KindBool:
		b, ok := rv.(raw.Bool)
		if !ok {
			return mismatch()
		}
		dst.SetBool(bool(b))
	case KindDateTime:
		dt, ok := rv.(raw.DateTime)
		if !ok {
			return mismatch()
		}
		dst.Set(reflect.ValueOf(dt.Time()))
	case KindObjectID:
		oid, ok := rv.(raw.ObjectID)
		if !ok {
			return mismatch()
		}
		dst.Set(reflect.ValueOf(oid))
	case KindUUID:
		bin, ok := rv.(raw.Binary)
		if !ok || bin.Subtype != raw.BinarySubtypeUUID || len(bin.Data) != 16 {
			return mismatch()
		}
		id, err := uuid.FromBytes(bin.Data)
		if err != nil {
			return &DecodeError{Path: path, Cause: err}
		}
		dst.Set(reflect.ValueOf(id))
	case KindBinary:
		bin, ok := rv.(raw.Binary)
		if !ok {
			return mismatch()
		}
		data := make([]byte, len(bin.Data))
		copy(data, bin.Data)
		dst.SetBytes(data)
	case KindDocument:
		sub, ok := rv.(raw.Document)
		if !ok {
			return mismatch()
		}
		return decodeStruct(f.Nested, sub, dst, false, path)
	case KindArray:
		arr, ok := rv.(raw.Array)
		if !ok {
			return mismatch()
		}
		slice := reflect.MakeSlice(dst.Type(), len(arr), len(arr))
		for i, ev := range arr {
			epath := fmt.Sprintf("%s.%d", path, i)
			target := slice.Index(i)
			if f.Elem.Pointer {
				if _, isNull := ev.(raw.Null); isNull {
					continue
				}
				p := reflect.New(target.Type().Elem())
				if err := decodeField(f.Elem, ev, p.Elem(), epath); err != nil {
					return err
				}
				target.Set(p)
				continue
			}
			if err := decodeField(f.Elem, ev, target, epath); err != nil {
				return err
			}
		}
		dst.Set(slice)
	default:
		return &DecodeError{Path: path, Cause: fmt.Errorf("unsupported kind %v", f.Kind)}
	}
	return nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
