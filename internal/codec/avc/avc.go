// Package avc implements the AVCDecoderConfigurationRecord binary layout
// from ISO/IEC 14496-15, used as the FLV/MP4 AVC sequence header payload.
package avc

import (
	"encoding/binary"
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
)

// extendedProfiles lists AVCProfileIndication values that carry the optional
// chroma/bit-depth trailer fields (ISO/IEC 14496-15 5.2.4.1.1).
var extendedProfiles = map[uint8]bool{
	100: true, 110: true, 122: true, 144: true,
}

// ConfigurationRecord is a structured view over an AVCDecoderConfigurationRecord.
type ConfigurationRecord struct {
	ConfigurationVersion uint8
	ProfileIndication    uint8
	ProfileCompatibility uint8
	LevelIndication      uint8
	LengthSizeMinusOne   uint8 // NALU length-prefix size - 1, almost always 3
	SPS                  [][]byte
	PPS                  [][]byte

	// Extended fields, only present for ProfileIndication in extendedProfiles.
	HasExtendedFields bool
	ChromaFormat      uint8
	BitDepthLumaMinus8 uint8
	BitDepthChromaMinus8 uint8
	SPSExt             [][]byte
}

// Size returns the exact byte length Mux would produce.
func (r ConfigurationRecord) Size() int {
	n := 6 // version, profile, compat, level, length-size byte, num-sps byte
	for _, s := range r.SPS {
		n += 2 + len(s)
	}
	n++ // num-pps byte
	for _, p := range r.PPS {
		n += 2 + len(p)
	}
	if r.HasExtendedFields {
		n += 4 // chroma/bitdepth bytes + num-sps-ext byte
		for _, s := range r.SPSExt {
			n += 2 + len(s)
		}
	}
	return n
}

// Mux serializes the record to its binary form.
func (r ConfigurationRecord) Mux() ([]byte, error) {
	if len(r.SPS) == 0 {
		return nil, fmt.Errorf("avc: configuration record requires at least one SPS")
	}
	if len(r.SPS) > 31 {
		return nil, fmt.Errorf("avc: too many SPS NALUs: %d", len(r.SPS))
	}
	if len(r.PPS) > 255 {
		return nil, fmt.Errorf("avc: too many PPS NALUs: %d", len(r.PPS))
	}

	buf := make([]byte, 0, r.Size())
	buf = append(buf, 1) // configurationVersion is always 1
	buf = append(buf, r.ProfileIndication, r.ProfileCompatibility, r.LevelIndication)
	buf = append(buf, 0xFC|(r.LengthSizeMinusOne&0x03))
	buf = append(buf, 0xE0|uint8(len(r.SPS)&0x1F))
	for _, s := range r.SPS {
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, s...)
	}
	buf = append(buf, uint8(len(r.PPS)))
	for _, p := range r.PPS {
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(p)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, p...)
	}

	if r.HasExtendedFields {
		buf = append(buf, 0xFC|(r.ChromaFormat&0x03))
		buf = append(buf, 0xF8|(r.BitDepthLumaMinus8&0x07))
		buf = append(buf, 0xF8|(r.BitDepthChromaMinus8&0x07))
		buf = append(buf, uint8(len(r.SPSExt)))
		for _, s := range r.SPSExt {
			var lenBuf [2]byte
			binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s)))
			buf = append(buf, lenBuf[:]...)
			buf = append(buf, s...)
		}
	}
	return buf, nil
}

// Demux parses a binary AVCDecoderConfigurationRecord.
func Demux(data []byte) (ConfigurationRecord, error) {
	if len(data) < 6 {
		return ConfigurationRecord{}, fmt.Errorf("avc: record too short: %d bytes", len(data))
	}
	r := ConfigurationRecord{
		ConfigurationVersion: data[0],
		ProfileIndication:    data[1],
		ProfileCompatibility: data[2],
		LevelIndication:      data[3],
		LengthSizeMinusOne:   data[4] & 0x03,
	}
	pos := 5
	numSPS := int(data[pos] & 0x1F)
	pos++
	for i := 0; i < numSPS; i++ {
		if pos+2 > len(data) {
			return ConfigurationRecord{}, fmt.Errorf("avc: truncated SPS length at entry %d", i)
		}
		l := int(binary.BigEndian.Uint16(data[pos : pos+2]))
		pos += 2
		if pos+l > len(data) {
			return ConfigurationRecord{}, fmt.Errorf("avc: truncated SPS data at entry %d", i)
		}
		r.SPS = append(r.SPS, data[pos:pos+l])
		pos += l
	}
	if pos >= len(data) {
		return ConfigurationRecord{}, fmt.Errorf("avc: truncated before PPS count")
	}
	numPPS := int(data[pos])
	pos++
	for i := 0; i < numPPS; i++ {
		if pos+2 > len(data) {
			return ConfigurationRecord{}, fmt.Errorf("avc: truncated PPS length at entry %d", i)
		}
		l := int(binary.BigEndian.Uint16(data[pos : pos+2]))
		pos += 2
		if pos+l > len(data) {
			return ConfigurationRecord{}, fmt.Errorf("avc: truncated PPS data at entry %d", i)
		}
		r.PPS = append(r.PPS, data[pos:pos+l])
		pos += l
	}

	if extendedProfiles[r.ProfileIndication] && pos < len(data) {
		if pos+4 > len(data) {
			return r, nil // tolerate encoders that omit the trailer even on extended profiles
		}
		r.HasExtendedFields = true
		r.ChromaFormat = data[pos] & 0x03
		r.BitDepthLumaMinus8 = data[pos+1] & 0x07
		r.BitDepthChromaMinus8 = data[pos+2] & 0x07
		numSPSExt := int(data[pos+3])
		pos += 4
		for i := 0; i < numSPSExt; i++ {
			if pos+2 > len(data) {
				break
			}
			l := int(binary.BigEndian.Uint16(data[pos : pos+2]))
			pos += 2
			if pos+l > len(data) {
				break
			}
			r.SPSExt = append(r.SPSExt, data[pos:pos+l])
			pos += l
		}
	}
	return r, nil
}

// Resolution parses the first SPS and returns its decoded width/height. It
// reports ok=false rather than an error since resolution is best-effort
// metadata, not required for correct mux/demux round-tripping.
func (r ConfigurationRecord) Resolution() (width, height int, ok bool) {
	if len(r.SPS) == 0 {
		return 0, 0, false
	}
	var sps h264.SPS
	if err := sps.Unmarshal(r.SPS[0]); err != nil {
		return 0, 0, false
	}
	return sps.Width(), sps.Height(), true
}
