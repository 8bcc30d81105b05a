package amf0

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Decoder reads AMF0 values from a borrowed byte slice. It never copies the
// input; strings are materialized only at the point of use.
type Decoder struct {
	data []byte
	pos  int
}

// NewDecoder wraps data for decoding.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Remaining returns the number of unconsumed bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.pos
}

func (d *Decoder) need(n int) error {
	if d.Remaining() < n {
		return fmt.Errorf("amf0: need %d bytes, have %d", n, d.Remaining())
	}
	return nil
}

// Decode reads exactly one AMF0 value starting at the current cursor.
func (d *Decoder) Decode() (Value, error) {
	if err := d.need(1); err != nil {
		return Value{}, err
	}
	marker := Marker(d.data[d.pos])
	d.pos++
	switch marker {
	case MarkerNumber:
		return d.decodeNumber()
	case MarkerBoolean:
		return d.decodeBoolean()
	case MarkerString:
		return d.decodeString()
	case MarkerObject:
		return d.decodeObject()
	case MarkerNull:
		return Null, nil
	case MarkerUndefined:
		return Undefined, nil
	case MarkerEcmaArray:
		return d.decodeEcmaArray()
	case MarkerStrictArray:
		return d.decodeStrictArray()
	case MarkerLongString:
		return d.decodeLongString()
	default:
		return Value{}, fmt.Errorf("amf0: unknown marker 0x%02x", byte(marker))
	}
}

// DecodeAll decodes values until the input is exhausted. A value that fails
// to decode truncates the sequence but does not discard values already
// decoded; the error (if any) is returned alongside the partial result.
func (d *Decoder) DecodeAll() ([]Value, error) {
	var values []Value
	for d.Remaining() > 0 {
		v, err := d.Decode()
		if err != nil {
			return values, err
		}
		values = append(values, v)
	}
	return values, nil
}

func (d *Decoder) decodeNumber() (Value, error) {
	if err := d.need(8); err != nil {
		return Value{}, err
	}
	bits := binary.BigEndian.Uint64(d.data[d.pos : d.pos+8])
	d.pos += 8
	return Number(math.Float64frombits(bits)), nil
}

func (d *Decoder) decodeBoolean() (Value, error) {
	if err := d.need(1); err != nil {
		return Value{}, err
	}
	b := d.data[d.pos]
	d.pos++
	return Boolean(b != 0), nil
}

func (d *Decoder) readUTF8(lenBytes int) (string, error) {
	if err := d.need(lenBytes); err != nil {
		return "", err
	}
	var n int
	switch lenBytes {
	case 2:
		n = int(binary.BigEndian.Uint16(d.data[d.pos : d.pos+2]))
	case 4:
		n = int(binary.BigEndian.Uint32(d.data[d.pos : d.pos+4]))
	}
	d.pos += lenBytes
	if err := d.need(n); err != nil {
		return "", err
	}
	s := string(d.data[d.pos : d.pos+n])
	d.pos += n
	return s, nil
}

func (d *Decoder) decodeString() (Value, error) {
	s, err := d.readUTF8(2)
	if err != nil {
		return Value{}, err
	}
	return String(s), nil
}

func (d *Decoder) decodeLongString() (Value, error) {
	s, err := d.readUTF8(4)
	if err != nil {
		return Value{}, err
	}
	return LongString(s), nil
}

// isObjectEnd attempts to read the inline three-byte object-end marker
// (00 00 09) at the cursor. If present, the cursor advances past it and true
// is returned; otherwise the cursor is rewound to where it started.
func (d *Decoder) isObjectEnd() bool {
	if d.Remaining() < 3 {
		return false
	}
	if d.data[d.pos] == objectEndMarker[0] &&
		d.data[d.pos+1] == objectEndMarker[1] &&
		d.data[d.pos+2] == objectEndMarker[2] {
		d.pos += 3
		return true
	}
	return false
}

func (d *Decoder) decodeObject() (Value, error) {
	var props []Property
	for {
		if d.isObjectEnd() {
			return Object(props...), nil
		}
		key, err := d.readUTF8(2)
		if err != nil {
			return Value{}, err
		}
		val, err := d.Decode()
		if err != nil {
			return Value{}, err
		}
		props = append(props, Property{Key: key, Value: val})
	}
}

func (d *Decoder) decodeEcmaArray() (Value, error) {
	if err := d.need(4); err != nil {
		return Value{}, err
	}
	count := binary.BigEndian.Uint32(d.data[d.pos : d.pos+4])
	d.pos += 4

	props := make([]Property, 0, count)
	for i := uint32(0); i < count; i++ {
		if d.isObjectEnd() {
			// Some encoders terminate early; tolerate it.
			break
		}
		key, err := d.readUTF8(2)
		if err != nil {
			return Value{}, err
		}
		val, err := d.Decode()
		if err != nil {
			return Value{}, err
		}
		props = append(props, Property{Key: key, Value: val})
	}
	// The trailing object-end marker is optional: some encoders omit it.
	d.isObjectEnd()
	return EcmaArray(props...), nil
}

func (d *Decoder) decodeStrictArray() (Value, error) {
	if err := d.need(4); err != nil {
		return Value{}, err
	}
	count := binary.BigEndian.Uint32(d.data[d.pos : d.pos+4])
	d.pos += 4

	elems := make([]Value, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := d.Decode()
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, v)
	}
	return StrictArray(elems...), nil
}
