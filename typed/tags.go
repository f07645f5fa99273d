package typed

import (
	"fmt"
	"strings"
)

// FieldTag holds the parsed contents of a `mondo` struct tag.
//
// The tag format is "name,opt,opt,...". The first element overrides the wire
// name. Recognized options:
//
//	id           marks the field as the document identifier
//	omitempty    omit the field from encoded documents when it is zero
//	enum=a|b|c   restrict a string field to the listed values
//	-            skip the field entirely (must be the whole tag)
type FieldTag struct {
	Name      string
	ID        bool
	OmitEmpty bool
	Enum      []string
	Skip      bool
}

// ParseTag parses the value of a `mondo` struct tag.
func ParseTag(tag string) (FieldTag, error) {
	var ft FieldTag
	if tag == "-" {
		ft.Skip = true
		return ft, nil
	}
	parts := strings.Split(tag, ",")
	ft.Name = strings.TrimSpace(parts[0])
	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		switch {
		case opt == "":
			// trailing comma, ignore
		case opt == "id":
			ft.ID = true
		case opt == "omitempty":
			ft.OmitEmpty = true
		case strings.HasPrefix(opt, "enum="):
			values := strings.Split(strings.TrimPrefix(opt, "enum="), "|")
			for _, v := range values {
				v = strings.TrimSpace(v)
				if v == "" {
					return ft, fmt.Errorf("empty enum value in tag %q", tag)
				}
				ft.Enum = append(ft.Enum, v)
			}
		default:
			return ft, fmt.Errorf("unknown tag option %q", opt)
		}
	}
	return ft, nil
}
