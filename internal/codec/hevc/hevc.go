// Package hevc implements the HEVCDecoderConfigurationRecord binary layout
// from ISO/IEC 14496-15 section 8.3.3.1.2.
package hevc

import (
	"encoding/binary"
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"
)

// NALUArray is one grouped run of NAL units of a single type, as stored in
// the configuration record (e.g. all VPS NALUs together, then all SPS, PPS).
type NALUArray struct {
	ArrayCompleteness bool
	NALUnitType       uint8
	NALUs             [][]byte
}

// ConfigurationRecord is a structured view over an HEVCDecoderConfigurationRecord.
type ConfigurationRecord struct {
	GeneralProfileSpace              uint8
	GeneralTierFlag                  bool
	GeneralProfileIDC                uint8
	GeneralProfileCompatibilityFlags uint32
	GeneralConstraintIndicatorFlags  uint64 // low 48 bits significant
	GeneralLevelIDC                  uint8
	MinSpatialSegmentationIDC        uint16
	ParallelismType                  uint8
	ChromaFormat                     uint8
	BitDepthLumaMinus8               uint8
	BitDepthChromaMinus8             uint8
	AvgFrameRate                     uint16
	ConstantFrameRate                uint8
	NumTemporalLayers                uint8
	TemporalIDNested                 bool
	LengthSizeMinusOne               uint8
	Arrays                           []NALUArray
}

// Size returns the exact byte length Mux would produce.
func (r ConfigurationRecord) Size() int {
	n := 23 // fixed header through numOfArrays
	for _, a := range r.Arrays {
		n += 3 // array header byte + numNalus(2)
		for _, nalu := range a.NALUs {
			n += 2 + len(nalu)
		}
	}
	return n
}

// Mux serializes the record to its binary form.
func (r ConfigurationRecord) Mux() ([]byte, error) {
	if len(r.Arrays) > 255 {
		return nil, fmt.Errorf("hevc: too many NALU arrays: %d", len(r.Arrays))
	}
	buf := make([]byte, 0, r.Size())
	buf = append(buf, 1) // configurationVersion

	b := (r.GeneralProfileSpace&0x03)<<6 | boolBit(r.GeneralTierFlag, 5) | (r.GeneralProfileIDC & 0x1F)
	buf = append(buf, b)

	var compat [4]byte
	binary.BigEndian.PutUint32(compat[:], r.GeneralProfileCompatibilityFlags)
	buf = append(buf, compat[:]...)

	var constraint [8]byte
	binary.BigEndian.PutUint64(constraint[:], r.GeneralConstraintIndicatorFlags<<16)
	buf = append(buf, constraint[:6]...)

	buf = append(buf, r.GeneralLevelIDC)

	var minSpatial [2]byte
	binary.BigEndian.PutUint16(minSpatial[:], 0xF000|(r.MinSpatialSegmentationIDC&0x0FFF))
	buf = append(buf, minSpatial[:]...)

	buf = append(buf, 0xFC|(r.ParallelismType&0x03))
	buf = append(buf, 0xFC|(r.ChromaFormat&0x03))
	buf = append(buf, 0xF8|(r.BitDepthLumaMinus8&0x07))
	buf = append(buf, 0xF8|(r.BitDepthChromaMinus8&0x07))

	var avgFrameRate [2]byte
	binary.BigEndian.PutUint16(avgFrameRate[:], r.AvgFrameRate)
	buf = append(buf, avgFrameRate[:]...)

	last := (r.ConstantFrameRate&0x03)<<6 | (r.NumTemporalLayers&0x07)<<3 | boolBit(r.TemporalIDNested, 2) | (r.LengthSizeMinusOne & 0x03)
	buf = append(buf, last)

	buf = append(buf, uint8(len(r.Arrays)))
	for _, a := range r.Arrays {
		if len(a.NALUs) > 65535 {
			return nil, fmt.Errorf("hevc: too many NALUs in array type %d", a.NALUnitType)
		}
		header := boolBit(a.ArrayCompleteness, 7) | (a.NALUnitType & 0x3F)
		buf = append(buf, header)
		var countBuf [2]byte
		binary.BigEndian.PutUint16(countBuf[:], uint16(len(a.NALUs)))
		buf = append(buf, countBuf[:]...)
		for _, nalu := range a.NALUs {
			var lenBuf [2]byte
			binary.BigEndian.PutUint16(lenBuf[:], uint16(len(nalu)))
			buf = append(buf, lenBuf[:]...)
			buf = append(buf, nalu...)
		}
	}
	return buf, nil
}

// Demux parses a binary HEVCDecoderConfigurationRecord.
func Demux(data []byte) (ConfigurationRecord, error) {
	if len(data) < 23 {
		return ConfigurationRecord{}, fmt.Errorf("hevc: record too short: %d bytes", len(data))
	}
	var r ConfigurationRecord
	r.GeneralProfileSpace = data[1] >> 6 & 0x03
	r.GeneralTierFlag = data[1]&0x20 != 0
	r.GeneralProfileIDC = data[1] & 0x1F
	r.GeneralProfileCompatibilityFlags = binary.BigEndian.Uint32(data[2:6])

	var constraint [8]byte
	copy(constraint[:6], data[6:12])
	r.GeneralConstraintIndicatorFlags = binary.BigEndian.Uint64(constraint[:]) >> 16

	r.GeneralLevelIDC = data[12]
	r.MinSpatialSegmentationIDC = binary.BigEndian.Uint16(data[13:15]) & 0x0FFF
	r.ParallelismType = data[15] & 0x03
	r.ChromaFormat = data[16] & 0x03
	r.BitDepthLumaMinus8 = data[17] & 0x07
	r.BitDepthChromaMinus8 = data[18] & 0x07
	r.AvgFrameRate = binary.BigEndian.Uint16(data[19:21])
	r.ConstantFrameRate = data[21] >> 6 & 0x03
	r.NumTemporalLayers = data[21] >> 3 & 0x07
	r.TemporalIDNested = data[21]&0x04 != 0
	r.LengthSizeMinusOne = data[21] & 0x03

	numArrays := int(data[22])
	pos := 23
	for i := 0; i < numArrays; i++ {
		if pos+3 > len(data) {
			return r, fmt.Errorf("hevc: truncated array header at entry %d", i)
		}
		arr := NALUArray{
			ArrayCompleteness: data[pos]&0x80 != 0,
			NALUnitType:       data[pos] & 0x3F,
		}
		numNalus := int(binary.BigEndian.Uint16(data[pos+1 : pos+3]))
		pos += 3
		for j := 0; j < numNalus; j++ {
			if pos+2 > len(data) {
				return r, fmt.Errorf("hevc: truncated NALU length in array %d entry %d", i, j)
			}
			l := int(binary.BigEndian.Uint16(data[pos : pos+2]))
			pos += 2
			if pos+l > len(data) {
				return r, fmt.Errorf("hevc: truncated NALU data in array %d entry %d", i, j)
			}
			arr.NALUs = append(arr.NALUs, data[pos:pos+l])
			pos += l
		}
		r.Arrays = append(r.Arrays, arr)
	}
	return r, nil
}

func boolBit(v bool, shift uint) uint8 {
	if v {
		return 1 << shift
	}
	return 0
}

// spsNALUs returns the NALUs of the SPS array (NAL unit type 33), if present.
func (r ConfigurationRecord) spsNALUs() [][]byte {
	for _, a := range r.Arrays {
		if a.NALUnitType == 33 {
			return a.NALUs
		}
	}
	return nil
}

// Resolution parses the first SPS NALU and returns its decoded width/height.
// It reports ok=false rather than an error since resolution is best-effort
// metadata, not required for correct mux/demux round-tripping.
func (r ConfigurationRecord) Resolution() (width, height int, ok bool) {
	sps := r.spsNALUs()
	if len(sps) == 0 {
		return 0, 0, false
	}
	var parsed h265.SPS
	if err := parsed.Unmarshal(sps[0]); err != nil {
		return 0, 0, false
	}
	return parsed.Width(), parsed.Height(), true
}
