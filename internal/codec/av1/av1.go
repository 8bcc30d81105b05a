// Package av1 implements the AV1CodecConfigurationRecord binary layout
// from the "AV1 Codec ISOBMFF Binding" specification section 2.3.3.
package av1

import "fmt"

// ConfigurationRecord is a structured view over an AV1CodecConfigurationRecord.
type ConfigurationRecord struct {
	SeqProfile                      uint8
	SeqLevelIdx0                    uint8
	SeqTier0                        bool
	HighBitdepth                    bool
	TwelveBit                       bool
	Monochrome                      bool
	ChromaSubsamplingX              bool
	ChromaSubsamplingY              bool
	ChromaSamplePosition            uint8
	InitialPresentationDelayPresent bool
	InitialPresentationDelayMinusOne uint8

	// ConfigOBUs holds the raw sequence header OBU(s) that must precede any
	// coded frame, stored verbatim.
	ConfigOBUs []byte
}

const recordVersion = 1

// Size returns the exact byte length Mux would produce.
func (r ConfigurationRecord) Size() int {
	return 4 + len(r.ConfigOBUs)
}

// Mux serializes the record to its binary form.
func (r ConfigurationRecord) Mux() ([]byte, error) {
	buf := make([]byte, 4, r.Size())
	buf[0] = 0x80 | recordVersion // marker=1, version=1

	buf[1] = (r.SeqProfile & 0x07 << 5) | (r.SeqLevelIdx0 & 0x1F)

	b2 := boolBit(r.SeqTier0, 7) | boolBit(r.HighBitdepth, 6) | boolBit(r.TwelveBit, 5) |
		boolBit(r.Monochrome, 4) | boolBit(r.ChromaSubsamplingX, 3) | boolBit(r.ChromaSubsamplingY, 2) |
		(r.ChromaSamplePosition & 0x03)
	buf[2] = b2

	b3 := boolBit(r.InitialPresentationDelayPresent, 4)
	if r.InitialPresentationDelayPresent {
		b3 |= r.InitialPresentationDelayMinusOne & 0x0F
	}
	buf[3] = b3

	buf = append(buf, r.ConfigOBUs...)
	return buf, nil
}

// Demux parses a binary AV1CodecConfigurationRecord.
func Demux(data []byte) (ConfigurationRecord, error) {
	if len(data) < 4 {
		return ConfigurationRecord{}, fmt.Errorf("av1: record too short: %d bytes", len(data))
	}
	if data[0]&0x80 == 0 {
		return ConfigurationRecord{}, fmt.Errorf("av1: marker bit not set")
	}
	var r ConfigurationRecord
	r.SeqProfile = data[1] >> 5 & 0x07
	r.SeqLevelIdx0 = data[1] & 0x1F

	b2 := data[2]
	r.SeqTier0 = b2&0x80 != 0
	r.HighBitdepth = b2&0x40 != 0
	r.TwelveBit = b2&0x20 != 0
	r.Monochrome = b2&0x10 != 0
	r.ChromaSubsamplingX = b2&0x08 != 0
	r.ChromaSubsamplingY = b2&0x04 != 0
	r.ChromaSamplePosition = b2 & 0x03

	b3 := data[3]
	r.InitialPresentationDelayPresent = b3&0x10 != 0
	if r.InitialPresentationDelayPresent {
		r.InitialPresentationDelayMinusOne = b3 & 0x0F
	}

	if len(data) > 4 {
		r.ConfigOBUs = data[4:]
	}
	return r, nil
}

func boolBit(v bool, shift uint) uint8 {
	if v {
		return 1 << shift
	}
	return 0
}
