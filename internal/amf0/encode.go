package amf0

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Encode appends the binary AMF0 encoding of v to a new byte slice and
// returns it.
func Encode(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeTo(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo writes the binary AMF0 encoding of v to buf.
func EncodeTo(buf *bytes.Buffer, v Value) error {
	switch v.Kind {
	case KindNumber:
		buf.WriteByte(byte(MarkerNumber))
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v.Number))
		buf.Write(b[:])
	case KindBoolean:
		buf.WriteByte(byte(MarkerBoolean))
		if v.Boolean {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case KindString:
		buf.WriteByte(byte(MarkerString))
		writeUTF8(buf, v.Str, 2)
	case KindLongString:
		buf.WriteByte(byte(MarkerLongString))
		writeUTF8(buf, v.Str, 4)
	case KindNull:
		buf.WriteByte(byte(MarkerNull))
	case KindUndefined:
		buf.WriteByte(byte(MarkerUndefined))
	case KindObject:
		buf.WriteByte(byte(MarkerObject))
		for _, p := range v.Properties {
			writeUTF8(buf, p.Key, 2)
			if err := EncodeTo(buf, p.Value); err != nil {
				return err
			}
		}
		buf.Write(objectEndMarker[:])
	case KindEcmaArray:
		buf.WriteByte(byte(MarkerEcmaArray))
		var cnt [4]byte
		binary.BigEndian.PutUint32(cnt[:], uint32(len(v.Properties)))
		buf.Write(cnt[:])
		for _, p := range v.Properties {
			writeUTF8(buf, p.Key, 2)
			if err := EncodeTo(buf, p.Value); err != nil {
				return err
			}
		}
		buf.Write(objectEndMarker[:])
	case KindStrictArray:
		buf.WriteByte(byte(MarkerStrictArray))
		var cnt [4]byte
		binary.BigEndian.PutUint32(cnt[:], uint32(len(v.Elements)))
		buf.Write(cnt[:])
		for _, e := range v.Elements {
			if err := EncodeTo(buf, e); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("amf0: unknown value kind %d", v.Kind)
	}
	return nil
}

func writeUTF8(buf *bytes.Buffer, s string, lenBytes int) {
	switch lenBytes {
	case 2:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(len(s)))
		buf.Write(b[:])
	case 4:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(len(s)))
		buf.Write(b[:])
	}
	buf.WriteString(s)
}
