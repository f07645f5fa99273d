package engine

import (
	"fmt"

	"github.com/mondolib/mondo/driver"
	"github.com/mondolib/mondo/raw"
)

// checkValidator enforces a collection validator against a document about to
// be written. Only the "$jsonSchema" rule is supported; a violation surfaces
// as a driver error with the document-validation code.
func checkValidator(validator, doc raw.Document) error {
	if len(validator) == 0 {
		return nil
	}
	schemaVal, ok := validator.Lookup("$jsonSchema")
	if !ok {
		return &driver.Error{Code: driver.CodeBadCommand, Message: "unsupported validator rule"}
	}
	schema, ok := schemaVal.(raw.Document)
	if !ok {
		return &driver.Error{Code: driver.CodeBadCommand, Message: "$jsonSchema must be a document"}
	}
	if err := validateValue(schema, doc, ""); err != nil {
		return &driver.Error{Code: driver.CodeDocumentValidationFailure, Message: err.Error()}
	}
	return nil
}

func validateValue(schema raw.Document, v raw.Value, path string) error {
	if typesVal, ok := schema.Lookup("bsonType"); ok {
		if err := checkBSONType(typesVal, v, path); err != nil {
			return err
		}
	}
	if enumVal, ok := schema.Lookup("enum"); ok {
		if err := checkEnum(enumVal, v, path); err != nil {
			return err
		}
	}
	// null satisfies only bsonType/enum constraints
	if isNullValue(v) {
		return nil
	}
	if doc, ok := v.(raw.Document); ok {
		if err := checkObject(schema, doc, path); err != nil {
			return err
		}
	}
	if arr, ok := v.(raw.Array); ok {
		if itemsVal, ok := schema.Lookup("items"); ok {
			items, isDoc := itemsVal.(raw.Document)
			if !isDoc {
				return fmt.Errorf("schema items at %q must be a document", path)
			}
			for i, ev := range arr {
				if err := validateValue(items, ev, fmt.Sprintf("%s.%d", path, i)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func checkObject(schema, doc raw.Document, path string) error {
	props, _ := schema.Lookup("properties")
	propDoc, _ := props.(raw.Document)

	if reqVal, ok := schema.Lookup("required"); ok {
		req, isArr := reqVal.(raw.Array)
		if !isArr {
			return fmt.Errorf("schema required at %q must be an array", path)
		}
		for _, rv := range req {
			name, isStr := rv.(raw.String)
			if !isStr {
				continue
			}
			if !doc.Has(string(name)) {
				return fmt.Errorf("missing required field %q", joinSchemaPath(path, string(name)))
			}
		}
	}

	additionalOK := true
	if av, ok := schema.Lookup("additionalProperties"); ok {
		if b, isBool := av.(raw.Bool); isBool {
			additionalOK = bool(b)
		}
	}

	for _, e := range doc {
		sub, has := propDoc.Lookup(e.Key)
		if !has {
			if !additionalOK {
				return fmt.Errorf("unexpected field %q", joinSchemaPath(path, e.Key))
			}
			continue
		}
		subSchema, isDoc := sub.(raw.Document)
		if !isDoc {
			return fmt.Errorf("schema property %q must be a document", e.Key)
		}
		if err := validateValue(subSchema, e.Value, joinSchemaPath(path, e.Key)); err != nil {
			return err
		}
	}
	return nil
}

func checkBSONType(typesVal raw.Value, v raw.Value, path string) error {
	actual := bsonTypeName(v)
	switch t := typesVal.(type) {
	case raw.String:
		if string(t) != actual {
			return fmt.Errorf("field %q: expected %s, got %s", path, t, actual)
		}
	case raw.Array:
		for _, tv := range t {
			if s, ok := tv.(raw.String); ok && string(s) == actual {
				return nil
			}
		}
		return fmt.Errorf("field %q: %s not among allowed types", path, actual)
	}
	return nil
}

func checkEnum(enumVal raw.Value, v raw.Value, path string) error {
	arr, ok := enumVal.(raw.Array)
	if !ok {
		return fmt.Errorf("schema enum at %q must be an array", path)
	}
	for _, member := range arr {
		if raw.Equal(member, v) {
			return nil
		}
	}
	return fmt.Errorf("field %q: value not in enum", path)
}

// bsonTypeName mirrors the type names derived schemas use.
func bsonTypeName(v raw.Value) string {
	switch v.(type) {
	case raw.String:
		return "string"
	case raw.Int32:
		return "int"
	case raw.Int64:
		return "long"
	case raw.Double:
		return "double"
	case raw.Bool:
		return "bool"
	case raw.Null:
		return "null"
	case raw.DateTime:
		return "date"
	case raw.ObjectID:
		return "objectId"
	case raw.Binary:
		return "binData"
	case raw.Document:
		return "object"
	case raw.Array:
		return "array"
	case raw.Regex:
		return "regex"
	}
	return "unknown"
}

func joinSchemaPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
