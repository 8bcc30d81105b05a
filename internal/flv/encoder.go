package flv

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrHeaderAlreadyWritten is returned by Encoder.WriteHeader if called a
// second time.
var ErrHeaderAlreadyWritten = errors.New("flv: header already written")

// ErrHeaderNotWritten is returned by Encoder.WriteTag if no header has been
// written yet.
var ErrHeaderNotWritten = errors.New("flv: no header written")

// Encoder writes FLV framing to an underlying writer, maintaining the single
// piece of state needed to chain previous-tag-size fields: the byte length
// of the previously written tag structure (4-byte preamble + 11-byte header
// + data).
type Encoder struct {
	w                    io.Writer
	wroteHeader          bool
	lastTagStructureSize uint32
}

// NewEncoder wraps w for encoding.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// WriteHeader writes the 9-byte FLV header. The initial PreviousTagSize0 is
// written by the first call to WriteTag, which always leads with
// lastTagStructureSize (zero until then).
func (e *Encoder) WriteHeader(h Header) error {
	if e.wroteHeader {
		return ErrHeaderAlreadyWritten
	}
	var buf [9]byte
	buf[0], buf[1], buf[2] = 'F', 'L', 'V'
	buf[3] = h.Version
	var flags uint8
	if h.HasAudio {
		flags |= 0x04
	}
	if h.HasVideo {
		flags |= 0x01
	}
	buf[4] = flags
	binary.BigEndian.PutUint32(buf[5:9], 9)
	if _, err := e.w.Write(buf[:]); err != nil {
		return err
	}
	e.wroteHeader = true
	e.lastTagStructureSize = 0
	return nil
}

// WriteTag writes the previous-tag-size for the prior tag (PreviousTagSize0,
// zero, if this is the first tag after the header), then this tag's 11-byte
// header and data.
func (e *Encoder) WriteTag(t Tag) error {
	if !e.wroteHeader {
		return ErrHeaderNotWritten
	}
	if err := t.Validate(); err != nil {
		return err
	}

	var prevSize [4]byte
	binary.BigEndian.PutUint32(prevSize[:], e.lastTagStructureSize)
	if _, err := e.w.Write(prevSize[:]); err != nil {
		return err
	}

	var header [11]byte
	header[0] = byte(t.Type)
	dataSize := uint32(len(t.Data))
	header[1] = byte(dataSize >> 16)
	header[2] = byte(dataSize >> 8)
	header[3] = byte(dataSize)
	ts := uint32(t.Timestamp)
	header[4] = byte(ts >> 16)
	header[5] = byte(ts >> 8)
	header[6] = byte(ts)
	header[7] = byte(ts >> 24)
	header[8] = byte(t.StreamID >> 16)
	header[9] = byte(t.StreamID >> 8)
	header[10] = byte(t.StreamID)
	if _, err := e.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := e.w.Write(t.Data); err != nil {
		return err
	}

	// The value written as the *next* tag's previous-tag-size counts this
	// tag's own 4-byte preamble plus its 11-byte header plus its data, per
	// the wire contract's worked example (a 4-byte video tag yields a
	// following previous-tag-size of 19 = 4 + 11 + 4).
	e.lastTagStructureSize = 4 + 11 + dataSize
	return nil
}

// Finish writes the previous-tag-size trailer for the last tag written, so
// the file ends cleanly. Callers that know they are done writing tags call
// this once; it is idempotent only in the sense that a second call would
// append a stray trailer, so callers must call it exactly once.
func (e *Encoder) Finish() error {
	var prevSize [4]byte
	binary.BigEndian.PutUint32(prevSize[:], e.lastTagStructureSize)
	_, err := e.w.Write(prevSize[:])
	return err
}
