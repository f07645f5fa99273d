// Package raw defines the generic document tree that sits between typed Go
// structs and the store's wire format.
//
// It decouples expression lowering and (de)serialization from any particular
// codec, providing a closed set of value variants so that traversal code can
// be exhaustive and statically checked.
package raw

// Value is the marker interface for all document tree values.
// The set of implementations is closed; code switching over Value
// can treat an unknown variant as an internal invariant violation.
type Value interface {
	value()
}

// String is a UTF-8 string value.
type String string

func (String) value() {}

// Int32 is a 32-bit signed integer value.
type Int32 int32

func (Int32) value() {}

// Int64 is a 64-bit signed integer value.
type Int64 int64

func (Int64) value() {}

// Double is a 64-bit IEEE 754 floating point value.
type Double float64

func (Double) value() {}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

// Null is the explicit null value.
type Null struct{}

func (Null) value() {}

// Array is an ordered sequence of values.
type Array []Value

func (Array) value() {}

// Binary is an opaque byte sequence with a subtype marker.
// Subtype 0x04 is used for UUID identifiers.
type Binary struct {
	Subtype byte
	Data    []byte
}

func (Binary) value() {}

// BinarySubtypeUUID marks a Binary value holding an RFC 4122 UUID.
const BinarySubtypeUUID byte = 0x04

// DateTime is a point in time as milliseconds since the Unix epoch, UTC.
type DateTime int64

func (DateTime) value() {}

// Regex is a regular expression value with store-defined option flags.
type Regex struct {
	Pattern string
	Options string
}

func (Regex) value() {}

// Entry is a single key/value pair of a Document.
type Entry struct {
	Key   string
	Value Value
}

// Document is an ordered sequence of key/value entries.
// Order is significant: lowering emits entries in expression declaration
// order, and canonical rendering preserves it so that equal trees render
// byte-identically.
type Document []Entry

func (Document) value() {}

// D builds a Document from entries, preserving their order.
func D(entries ...Entry) Document {
	return Document(entries)
}

// E builds a single Document entry.
func E(key string, v Value) Entry {
	return Entry{Key: key, Value: v}
}

// A builds an Array from values.
func A(values ...Value) Array {
	return Array(values)
}

// Lookup returns the value stored under key and whether it is present.
func (d Document) Lookup(key string) (Value, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Get returns the value stored under key, or nil if absent.
func (d Document) Get(key string) Value {
	v, _ := d.Lookup(key)
	return v
}

// Has reports whether key is present.
func (d Document) Has(key string) bool {
	_, ok := d.Lookup(key)
	return ok
}

// Set replaces the value under key in place, or appends a new entry if the
// key is absent. It returns the updated document.
func (d Document) Set(key string, v Value) Document {
	for i, e := range d {
		if e.Key == key {
			d[i].Value = v
			return d
		}
	}
	return append(d, Entry{Key: key, Value: v})
}

// Delete removes the entry under key, preserving the order of the rest.
// It returns the updated document.
func (d Document) Delete(key string) Document {
	for i, e := range d {
		if e.Key == key {
			return append(d[:i:i], d[i+1:]...)
		}
	}
	return d
}

// Keys returns the keys in declaration order.
func (d Document) Keys() []string {
	keys := make([]string, len(d))
	for i, e := range d {
		keys[i] = e.Key
	}
	return keys
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for i, e := range d {
		out[i] = Entry{Key: e.Key, Value: CloneValue(e.Value)}
	}
	return out
}

// CloneValue returns a deep copy of a value.
func CloneValue(v Value) Value {
	switch val := v.(type) {
	case Document:
		return val.Clone()
	case Array:
		out := make(Array, len(val))
		for i, el := range val {
			out[i] = CloneValue(el)
		}
		return out
	case Binary:
		data := make([]byte, len(val.Data))
		copy(data, val.Data)
		return Binary{Subtype: val.Subtype, Data: data}
	default:
		// Remaining variants are value types.
		return v
	}
}

// Equal reports structural equality of two values. Variants are never
// conflated: Int32(1) and Int64(1) are not equal.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Document:
		bv, ok := b.(Document)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i].Key != bv[i].Key || !Equal(av[i].Value, bv[i].Value) {
				return false
			}
		}
		return true
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Binary:
		bv, ok := b.(Binary)
		if !ok || av.Subtype != bv.Subtype || len(av.Data) != len(bv.Data) {
			return false
		}
		for i := range av.Data {
			if av.Data[i] != bv.Data[i] {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
