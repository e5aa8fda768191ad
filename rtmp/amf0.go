// AMF0 encoding/decoding

package rtmp

import (
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// AMF0 type markers, as put on the wire.
const (
	typeNumber    byte = 0x00
	typeBoolean   byte = 0x01
	typeString    byte = 0x02
	typeObject    byte = 0x03
	typeNull      byte = 0x05
	typeEcmaArray byte = 0x08
	typeObjectEnd byte = 0x09
)

const amf0MaxStringLen = 65535

// Object is an insertion-ordered string-keyed map, used for AMF0 Object and
// EcmaArray values. A plain Go map would randomize iteration order on every
// run, which breaks the round-trip invariant that object key order survives
// encode(decode(x)).
type Object struct {
	keys   []string
	values map[string]*Value
}

func NewObject() *Object {
	return &Object{values: make(map[string]*Value)}
}

// Set inserts key at the end of the iteration order if it is new, or
// updates the value in place if key already exists.
func (o *Object) Set(key string, v *Value) *Object {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
	return o
}

func (o *Object) Get(key string) *Value {
	return o.values[key]
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	return o.keys
}

func (o *Object) Len() int {
	return len(o.keys)
}

// Value is a tagged AMF0 value, restricted to the subset this spec supports:
// Number, Boolean, String, Object, Null, EcmaArray.
type Value struct {
	amfType byte
	num     float64
	boolean bool
	str     string
	object  *Object
}

func NumberValue(n float64) *Value { return &Value{amfType: typeNumber, num: n} }
func BoolValue(b bool) *Value      { return &Value{amfType: typeBoolean, boolean: b} }
func StringValue(s string) *Value  { return &Value{amfType: typeString, str: s} }
func NullValue() *Value            { return &Value{amfType: typeNull} }

func ObjectValue(o *Object) *Value {
	if o == nil {
		o = NewObject()
	}
	return &Value{amfType: typeObject, object: o}
}

func EcmaArrayValue(o *Object) *Value {
	if o == nil {
		o = NewObject()
	}
	return &Value{amfType: typeEcmaArray, object: o}
}

func (v *Value) IsNull() bool { return v == nil || v.amfType == typeNull }

func (v *Value) Number() float64 {
	if v == nil {
		return 0
	}
	return v.num
}

func (v *Value) Bool() bool {
	if v == nil {
		return false
	}
	return v.boolean
}

func (v *Value) Str() string {
	if v == nil {
		return ""
	}
	return v.str
}

func (v *Value) Object() *Object {
	if v == nil {
		return nil
	}
	return v.object
}

// Property reads a key out of an Object/EcmaArray value. Returns nil if v is
// not an object-like value or the key is absent.
func (v *Value) Property(key string) *Value {
	if v == nil || v.object == nil {
		return nil
	}
	return v.object.Get(key)
}

func (v *Value) Equal(other *Value) bool {
	if v == nil || other == nil {
		return v == other
	}
	if v.amfType != other.amfType {
		return false
	}
	switch v.amfType {
	case typeNumber:
		return v.num == other.num
	case typeBoolean:
		return v.boolean == other.boolean
	case typeString:
		return v.str == other.str
	case typeNull:
		return true
	case typeObject, typeEcmaArray:
		if v.object == nil || other.object == nil {
			return v.object == other.object
		}
		if len(v.object.keys) != len(other.object.keys) {
			return false
		}
		for i, k := range v.object.keys {
			if other.object.keys[i] != k {
				return false
			}
			if !v.object.values[k].Equal(other.object.values[k]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

/* Encoding */

// EncodeAMF0 encodes a sequence of AMF0 values back to back, as used for a
// command message payload (name, transaction id, then arguments).
func EncodeAMF0(values ...*Value) []byte {
	var out []byte
	for _, v := range values {
		out = append(out, encodeValue(v)...)
	}
	return out
}

func encodeValue(v *Value) []byte {
	out := []byte{v.amfType}
	switch v.amfType {
	case typeNumber:
		out = append(out, encodeNumber(v.num)...)
	case typeBoolean:
		if v.boolean {
			out = append(out, 0x01)
		} else {
			out = append(out, 0x00)
		}
	case typeString:
		out = append(out, encodeString(v.str)...)
	case typeNull:
		// no payload
	case typeObject:
		out = append(out, encodeObjectBody(v.object)...)
	case typeEcmaArray:
		count := make([]byte, 4)
		binary.BigEndian.PutUint32(count, uint32(v.object.Len()))
		out = append(out, count...)
		out = append(out, encodeObjectBody(v.object)...)
	}
	return out
}

func encodeNumber(n float64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(n))
	return b
}

func encodeString(s string) []byte {
	if len(s) > amf0MaxStringLen {
		s = s[:amf0MaxStringLen]
	}
	b := []byte(s)
	l := make([]byte, 2)
	binary.BigEndian.PutUint16(l, uint16(len(b)))
	return append(l, b...)
}

func encodeObjectBody(o *Object) []byte {
	var out []byte
	if o != nil {
		for _, key := range o.keys {
			out = append(out, encodeString(key)...)
			out = append(out, encodeValue(o.values[key])...)
		}
	}
	out = append(out, encodeString("")...)
	out = append(out, typeObjectEnd)
	return out
}

/* Decoding */

// decoder walks a byte slice, reporting KindInsufficientData when it runs
// past the end and KindInvalidData for marker/UTF-8 mismatches.
type decoder struct {
	buf []byte
	pos int
}

func newDecoder(buf []byte) *decoder {
	return &decoder{buf: buf}
}

func (d *decoder) remaining() int {
	return len(d.buf) - d.pos
}

func (d *decoder) take(n int) ([]byte, error) {
	if d.remaining() < n {
		return nil, NewError(KindInsufficientData, "amf0: unexpected end of buffer")
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) peekByte() (byte, error) {
	if d.remaining() < 1 {
		return 0, NewError(KindInsufficientData, "amf0: unexpected end of buffer")
	}
	return d.buf[d.pos], nil
}

// DecodeAMF0Values decodes every value remaining in buf, used to parse a
// full command payload (name, transaction id, arguments...).
func DecodeAMF0Values(buf []byte) ([]*Value, error) {
	d := newDecoder(buf)
	var out []*Value
	for d.remaining() > 0 {
		v, err := d.decodeOne()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *decoder) decodeOne() (*Value, error) {
	marker, err := d.take(1)
	if err != nil {
		return nil, err
	}
	switch marker[0] {
	case typeNumber:
		n, err := d.decodeNumber()
		if err != nil {
			return nil, err
		}
		return NumberValue(n), nil
	case typeBoolean:
		b, err := d.take(1)
		if err != nil {
			return nil, err
		}
		return BoolValue(b[0] != 0x00), nil
	case typeString:
		s, err := d.decodeString()
		if err != nil {
			return nil, err
		}
		return StringValue(s), nil
	case typeObject:
		o, err := d.decodeObjectBody()
		if err != nil {
			return nil, err
		}
		return ObjectValue(o), nil
	case typeNull:
		return NullValue(), nil
	case typeEcmaArray:
		// Declared count is advisory: a mismatch against the actual number
		// of pairs read is not fatal, per spec.
		if _, err := d.take(4); err != nil {
			return nil, err
		}
		o, err := d.decodeObjectBody()
		if err != nil {
			return nil, err
		}
		return EcmaArrayValue(o), nil
	default:
		return nil, NewError(KindInvalidData, "amf0: inconsistent-marker")
	}
}

func (d *decoder) decodeNumber() (float64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

func (d *decoder) decodeString() (string, error) {
	lb, err := d.take(2)
	if err != nil {
		return "", err
	}
	l := binary.BigEndian.Uint16(lb)
	sb, err := d.take(int(l))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(sb) {
		return "", NewError(KindInvalidData, "amf0: invalid-string")
	}
	return string(sb), nil
}

func (d *decoder) decodeObjectBody() (*Object, error) {
	o := NewObject()
	for {
		b, err := d.peekByte()
		if err != nil {
			return nil, err
		}
		if b == typeObjectEnd {
			// Malformed stream without the zero-length key, but tolerate it
			// the way a trailing ObjectEnd marker alone would terminate.
			d.pos++
			return o, nil
		}
		key, err := d.decodeString()
		if err != nil {
			return nil, err
		}
		next, err := d.peekByte()
		if err != nil {
			return nil, err
		}
		if key == "" && next == typeObjectEnd {
			d.pos++
			return o, nil
		}
		val, err := d.decodeOne()
		if err != nil {
			return nil, err
		}
		o.Set(key, val)
	}
}
