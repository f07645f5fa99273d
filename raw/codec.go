package raw

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Value tags for the msgpack framing. Every value is encoded as a two-element
// array [tag, payload] so decoding never has to guess a variant from the
// payload shape.
const (
	tagNull = iota
	tagString
	tagInt32
	tagInt64
	tagDouble
	tagBool
	tagArray
	tagDocument
	tagBinary
	tagObjectID
	tagDateTime
	tagRegex
)

// Marshal serializes a document to msgpack bytes. The encoding preserves
// entry order and the exact variant of every value, so
// Unmarshal(Marshal(d)) is structurally equal to d.
func Marshal(d Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := encodeValue(enc, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal deserializes msgpack bytes produced by Marshal.
func Unmarshal(data []byte) (Document, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	d, ok := v.(Document)
	if !ok {
		return nil, fmt.Errorf("raw: top-level value is %T, not a document", v)
	}
	return d, nil
}

func encodeValue(enc *msgpack.Encoder, v Value) error {
	switch val := v.(type) {
	case nil, Null:
		return encodeTagged(enc, tagNull, func() error { return enc.EncodeNil() })
	case String:
		return encodeTagged(enc, tagString, func() error { return enc.EncodeString(string(val)) })
	case Int32:
		return encodeTagged(enc, tagInt32, func() error { return enc.EncodeInt32(int32(val)) })
	case Int64:
		return encodeTagged(enc, tagInt64, func() error { return enc.EncodeInt64(int64(val)) })
	case Double:
		return encodeTagged(enc, tagDouble, func() error { return enc.EncodeFloat64(float64(val)) })
	case Bool:
		return encodeTagged(enc, tagBool, func() error { return enc.EncodeBool(bool(val)) })
	case ObjectID:
		return encodeTagged(enc, tagObjectID, func() error { return enc.EncodeBytes(val[:]) })
	case DateTime:
		return encodeTagged(enc, tagDateTime, func() error { return enc.EncodeInt64(int64(val)) })
	case Binary:
		return encodeTagged(enc, tagBinary, func() error {
			if err := enc.EncodeUint8(val.Subtype); err != nil {
				return err
			}
			return enc.EncodeBytes(val.Data)
		})
	case Regex:
		return encodeTagged(enc, tagRegex, func() error {
			if err := enc.EncodeString(val.Pattern); err != nil {
				return err
			}
			return enc.EncodeString(val.Options)
		})
	case Array:
		return encodeTagged(enc, tagArray, func() error {
			if err := enc.EncodeArrayLen(len(val)); err != nil {
				return err
			}
			for _, el := range val {
				if err := encodeValue(enc, el); err != nil {
					return err
				}
			}
			return nil
		})
	case Document:
		return encodeTagged(enc, tagDocument, func() error {
			if err := enc.EncodeArrayLen(len(val)); err != nil {
				return err
			}
			for _, e := range val {
				if err := enc.EncodeString(e.Key); err != nil {
					return err
				}
				if err := encodeValue(enc, e.Value); err != nil {
					return err
				}
			}
			return nil
		})
	default:
		return fmt.Errorf("raw: cannot encode value of type %T", v)
	}
}

func encodeTagged(enc *msgpack.Encoder, tag int, payload func() error) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeInt8(int8(tag)); err != nil {
		return err
	}
	return payload()
}

func decodeValue(dec *msgpack.Decoder) (Value, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if n != 2 {
		return nil, fmt.Errorf("raw: malformed value frame of length %d", n)
	}
	tag, err := dec.DecodeInt8()
	if err != nil {
		return nil, err
	}

	switch tag {
	case tagNull:
		return Null{}, dec.DecodeNil()
	case tagString:
		s, err := dec.DecodeString()
		return String(s), err
	case tagInt32:
		i, err := dec.DecodeInt32()
		return Int32(i), err
	case tagInt64:
		i, err := dec.DecodeInt64()
		return Int64(i), err
	case tagDouble:
		f, err := dec.DecodeFloat64()
		return Double(f), err
	case tagBool:
		b, err := dec.DecodeBool()
		return Bool(b), err
	case tagObjectID:
		b, err := dec.DecodeBytes()
		if err != nil {
			return nil, err
		}
		if len(b) != 12 {
			return nil, fmt.Errorf("raw: ObjectID payload has %d bytes", len(b))
		}
		var id ObjectID
		copy(id[:], b)
		return id, nil
	case tagDateTime:
		i, err := dec.DecodeInt64()
		return DateTime(i), err
	case tagBinary:
		sub, err := dec.DecodeUint8()
		if err != nil {
			return nil, err
		}
		b, err := dec.DecodeBytes()
		return Binary{Subtype: sub, Data: b}, err
	case tagRegex:
		pattern, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		options, err := dec.DecodeString()
		return Regex{Pattern: pattern, Options: options}, err
	case tagArray:
		l, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		arr := make(Array, 0, l)
		for i := 0; i < l; i++ {
			el, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, el)
		}
		return arr, nil
	case tagDocument:
		l, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		doc := make(Document, 0, l)
		for i := 0; i < l; i++ {
			key, err := dec.DecodeString()
			if err != nil {
				return nil, err
			}
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			doc = append(doc, Entry{Key: key, Value: val})
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("raw: unknown value tag %d", tag)
	}
}
