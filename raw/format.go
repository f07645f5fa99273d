package raw

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Format renders a value in canonical extended-JSON form. Rendering is
// deterministic: document entries appear in declaration order, so two
// structurally equal trees always render byte-identically. The output is
// meant for logging, diffing, and test assertions, not for the wire.
func Format(v Value) string {
	var b strings.Builder
	formatValue(&b, v)
	return b.String()
}

// String renders the document in canonical form.
func (d Document) String() string { return Format(d) }

// String renders the array in canonical form.
func (a Array) String() string { return Format(a) }

func formatValue(b *strings.Builder, v Value) {
	switch val := v.(type) {
	case nil, Null:
		b.WriteString("null")
	case String:
		b.WriteString(strconv.Quote(string(val)))
	case Int32:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case Int64:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case Double:
		formatDouble(b, float64(val))
	case Bool:
		b.WriteString(strconv.FormatBool(bool(val)))
	case ObjectID:
		fmt.Fprintf(b, `{"$oid": %q}`, val.Hex())
	case DateTime:
		fmt.Fprintf(b, `{"$date": %q}`, val.Time().Format(time.RFC3339Nano))
	case Binary:
		fmt.Fprintf(b, `{"$binary": {"base64": %q, "subType": "%02x"}}`,
			base64.StdEncoding.EncodeToString(val.Data), val.Subtype)
	case Regex:
		fmt.Fprintf(b, `{"$regex": %q, "$options": %q}`, val.Pattern, val.Options)
	case Array:
		b.WriteByte('[')
		for i, el := range val {
			if i > 0 {
				b.WriteString(", ")
			}
			formatValue(b, el)
		}
		b.WriteByte(']')
	case Document:
		b.WriteByte('{')
		for i, e := range val {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(e.Key))
			b.WriteString(": ")
			formatValue(b, e.Value)
		}
		b.WriteByte('}')
	default:
		fmt.Fprintf(b, "<unknown %T>", v)
	}
}

// formatDouble renders a float so that integral doubles keep a trailing ".0",
// distinguishing them from integer variants in canonical output.
func formatDouble(b *strings.Builder, f float64) {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") && !strings.Contains(s, "Inf") && s != "NaN" {
		s += ".0"
	}
	b.WriteString(s)
}

// NewDateTime converts a time.Time to a DateTime, truncating to milliseconds.
func NewDateTime(t time.Time) DateTime {
	return DateTime(t.UnixMilli())
}

// Time converts the DateTime back to a UTC time.Time.
func (dt DateTime) Time() time.Time {
	return time.UnixMilli(int64(dt)).UTC()
}
