package typed

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/mondolib/mondo/raw"
)

// convertOperand checks an expression operand against the declared type of
// the field a path resolves to and produces its generic tree form. Raw paths
// accept any operand that has a tree form at all.
func convertOperand(p Path, operand any) (raw.Value, error) {
	if p.IsRaw() || p.leaf == nil {
		return anyToValue(p.String(), operand)
	}
	return operandFor(p.String(), p.leaf, operand)
}

// convertElemOperand converts an operand against a path's array element type,
// for membership and array mutation operators applied to array fields.
func convertElemOperand(p Path, operand any) (raw.Value, error) {
	if p.IsRaw() || p.leaf == nil {
		return anyToValue(p.String(), operand)
	}
	f := p.leaf
	if f.Kind == KindArray {
		f = f.Elem
	}
	return operandFor(p.String(), f, operand)
}

func operandFor(field string, f *FieldInfo, operand any) (raw.Value, error) {
	mismatch := func() error {
		return &TypeMismatchError{
			Field:    field,
			Expected: f.Kind.String(),
			Actual:   fmt.Sprintf("%T", operand),
		}
	}
	switch f.Kind {
	case KindString:
		s, ok := operand.(string)
		if !ok {
			if rs, ok := operand.(raw.String); ok {
				return rs, nil
			}
			return nil, mismatch()
		}
		return raw.String(s), nil
	case KindInt32:
		n, ok := toInt64(operand)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, mismatch()
		}
		return raw.Int32(n), nil
	case KindInt64:
		n, ok := toInt64(operand)
		if !ok {
			return nil, mismatch()
		}
		return raw.Int64(n), nil
	case KindDouble:
		switch v := operand.(type) {
		case float64:
			return raw.Double(v), nil
		case float32:
			return raw.Double(v), nil
		}
		if n, ok := toInt64(operand); ok {
			return raw.Double(n), nil
		}
		return nil, mismatch()
	case KindBool:
		b, ok := operand.(bool)
		if !ok {
			return nil, mismatch()
		}
		return raw.Bool(b), nil
	case KindDateTime:
		t, ok := operand.(time.Time)
		if !ok {
			return nil, mismatch()
		}
		return raw.NewDateTime(t), nil
	case KindObjectID:
		oid, ok := operand.(raw.ObjectID)
		if !ok {
			return nil, mismatch()
		}
		return oid, nil
	case KindUUID:
		id, ok := operand.(uuid.UUID)
		if !ok {
			return nil, mismatch()
		}
		return raw.Binary{Subtype: raw.BinarySubtypeUUID, Data: id[:]}, nil
	case KindBinary:
		data, ok := operand.([]byte)
		if !ok {
			return nil, mismatch()
		}
		return raw.Binary{Data: append([]byte(nil), data...)}, nil
	case KindDocument:
		d, ok := operand.(raw.Document)
		if !ok {
			return nil, mismatch()
		}
		return d.Clone(), nil
	case KindArray:
		rv := reflect.ValueOf(operand)
		if rv.Kind() != reflect.Slice {
			// a bare operand compares against any element
			return operandFor(field, f.Elem, operand)
		}
		arr := make(raw.Array, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			ev, err := operandFor(field, f.Elem, rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			arr = append(arr, ev)
		}
		return arr, nil
	}
	return nil, mismatch()
}

func toInt64(operand any) (int64, bool) {
	switch v := operand.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	}
	return 0, false
}

// anyToValue converts an untyped operand to its natural tree form. Used for
// raw paths, where no declared field type is available.
func anyToValue(field string, operand any) (raw.Value, error) {
	switch v := operand.(type) {
	case raw.Value:
		return v, nil
	case string:
		return raw.String(v), nil
	case int:
		return raw.Int64(v), nil
	case int32:
		return raw.Int32(v), nil
	case int64:
		return raw.Int64(v), nil
	case float64:
		return raw.Double(v), nil
	case bool:
		return raw.Bool(v), nil
	case time.Time:
		return raw.NewDateTime(v), nil
	case uuid.UUID:
		return raw.Binary{Subtype: raw.BinarySubtypeUUID, Data: v[:]}, nil
	case []byte:
		return raw.Binary{Data: append([]byte(nil), v...)}, nil
	case nil:
		return raw.Null{}, nil
	}
	rv := reflect.ValueOf(operand)
	if rv.Kind() == reflect.Slice {
		arr := make(raw.Array, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			ev, err := anyToValue(field, rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			arr = append(arr, ev)
		}
		return arr, nil
	}
	return nil, &TypeMismatchError{Field: field, Expected: "a convertible operand", Actual: fmt.Sprintf("%T", operand)}
}
