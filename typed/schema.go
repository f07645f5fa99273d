package typed

import (
	"github.com/mondolib/mondo/raw"
)

// Stored type names used in derived validators.
func (k Kind) schemaType() string {
	switch k {
	case KindString:
		return "string"
	case KindInt32:
		return "int"
	case KindInt64:
		return "long"
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	case KindDateTime:
		return "date"
	case KindObjectID:
		return "objectId"
	case KindUUID, KindBinary:
		return "binData"
	case KindDocument:
		return "object"
	case KindArray:
		return "array"
	}
	return "object"
}

// DeriveSchema produces the validation schema of a document type: an object
// schema whose properties mirror the declared fields in order, with every
// non-optional field required. Deriving twice yields structurally identical
// documents.
func DeriveSchema(m *ModelInfo) raw.Document {
	return structSchema(&m.StructInfo, m)
}

func structSchema(si *StructInfo, top *ModelInfo) raw.Document {
	required := raw.Array{}
	props := raw.Document{}
	for i := range si.Fields {
		f := &si.Fields[i]
		name := f.Name
		if top != nil && f.IsID {
			name = "_id"
		}
		if !f.Optional {
			required = append(required, raw.String(name))
		}
		props = append(props, raw.E(name, fieldSchema(f)))
	}
	out := raw.D(raw.E("bsonType", raw.String("object")))
	if len(required) > 0 {
		out = append(out, raw.E("required", required))
	}
	out = append(out, raw.E("properties", props))
	out = append(out, raw.E("additionalProperties", raw.Bool(false)))
	return out
}

// bsonTypeValue renders the type constraint, widened with "null" for
// optional fields since a cleared pointer is stored as null.
func bsonTypeValue(f *FieldInfo) raw.Value {
	t := raw.String(f.Kind.schemaType())
	if f.Optional {
		return raw.A(t, raw.String("null"))
	}
	return t
}

func fieldSchema(f *FieldInfo) raw.Document {
	switch f.Kind {
	case KindDocument:
		if !f.Optional {
			return structSchema(f.Nested, nil)
		}
		inner := structSchema(f.Nested, nil)
		return inner.Set("bsonType", bsonTypeValue(f))
	case KindArray:
		return raw.D(
			raw.E("bsonType", bsonTypeValue(f)),
			raw.E("items", fieldSchema(f.Elem)),
		)
	}
	out := raw.D(raw.E("bsonType", bsonTypeValue(f)))
	if len(f.Enum) > 0 {
		values := make(raw.Array, len(f.Enum))
		for i, v := range f.Enum {
			values[i] = raw.String(v)
		}
		out = append(out, raw.E("enum", values))
	}
	return out
}
