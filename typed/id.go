package typed

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/mondolib/mondo/raw"
)

// The identifier adapter converts between the Go-side identifier types and
// their stored representations:
//
//	raw.ObjectID  <->  objectid
//	uuid.UUID     <->  binary, subtype 4
//	string        <->  string
//	int64         <->  int64
//
// Conversion is strict in both directions. A stored value whose shape does
// not match the declared identifier type surfaces IdentifierFormatError.

func encodeID(kind IDKind, v reflect.Value) (raw.Value, error) {
	switch kind {
	case IDObjectID:
		oid := v.Interface().(raw.ObjectID)
		return oid, nil
	case IDUUID:
		id := v.Interface().(uuid.UUID)
		return raw.Binary{Subtype: raw.BinarySubtypeUUID, Data: id[:]}, nil
	case IDString:
		return raw.String(v.String()), nil
	case IDInt64:
		return raw.Int64(v.Int()), nil
	}
	return nil, fmt.Errorf("unsupported identifier kind %v", kind)
}

func decodeID(kind IDKind, rv raw.Value, dst reflect.Value) error {
	switch kind {
	case IDObjectID:
		oid, ok := rv.(raw.ObjectID)
		if !ok {
			return &IdentifierFormatError{Expected: "objectid", Got: describeValue(rv)}
		}
		dst.Set(reflect.ValueOf(oid))
	case IDUUID:
		bin, ok := rv.(raw.Binary)
		if !ok || bin.Subtype != raw.BinarySubtypeUUID || len(bin.Data) != 16 {
			return &IdentifierFormatError{Expected: "binary subtype 4 of length 16", Got: describeValue(rv)}
		}
		id, err := uuid.FromBytes(bin.Data)
		if err != nil {
			return &IdentifierFormatError{Expected: "uuid bytes", Got: err.Error()}
		}
		dst.Set(reflect.ValueOf(id))
	case IDString:
		s, ok := rv.(raw.String)
		if !ok {
			return &IdentifierFormatError{Expected: "string", Got: describeValue(rv)}
		}
		dst.SetString(string(s))
	case IDInt64:
		n, ok := rv.(raw.Int64)
		if !ok {
			return &IdentifierFormatError{Expected: "int64", Got: describeValue(rv)}
		}
		dst.SetInt(int64(n))
	default:
		return fmt.Errorf("unsupported identifier kind %v", kind)
	}
	return nil
}

// isZeroID reports whether an identifier value is its type's zero value,
// meaning the store should assign one.
func isZeroID(kind IDKind, v reflect.Value) bool {
	switch kind {
	case IDObjectID:
		return v.Interface().(raw.ObjectID).IsZero()
	case IDUUID:
		return v.Interface().(uuid.UUID) == uuid.Nil
	case IDString:
		return v.String() == ""
	case IDInt64:
		return v.Int() == 0
	}
	return false
}

func describeValue(v raw.Value) string {
	switch t := v.(type) {
	case nil:
		return "absent"
	case raw.String:
		return "string"
	case raw.Int32:
		return "int32"
	case raw.Int64:
		return "int64"
	case raw.Double:
		return "double"
	case raw.Bool:
		return "bool"
	case raw.Null:
		return "null"
	case raw.DateTime:
		return "datetime"
	case raw.ObjectID:
		return "objectid"
	case raw.Binary:
		return fmt.Sprintf("binary subtype %d of length %d", t.Subtype, len(t.Data))
	case raw.Document:
		return "document"
	case raw.Array:
		return "array"
	case raw.Regex:
		return "regex"
	}
	return "unknown"
}
