package ts

import (
	"encoding/binary"
	"fmt"
)

// StreamType identifies the elementary stream coding per the MPEG-TS stream
// type registry (the values this system cares about for codec detection).
type StreamType uint8

// Stream types used by StreamProfile derivation.
const (
	StreamTypeH264      StreamType = 0x1B
	StreamTypeH265      StreamType = 0x24
	StreamTypeAAC       StreamType = 0x0F
	StreamTypeAACLATM   StreamType = 0x11
	StreamTypeAC3       StreamType = 0x81
	StreamTypeEAC3      StreamType = 0x87
	StreamTypeMPEGAudio StreamType = 0x03
)

// PMT is a zero-copy view over a parsed Program Map Table section.
type PMT struct {
	data []byte

	TableID              uint8
	ProgramNumber        uint16
	VersionNumber        uint8
	CurrentNextIndicator bool
	SectionNumber        uint8
	LastSectionNumber    uint8
	PCRPID               uint16

	programInfoOffset int
	programInfoLength int
	streamsOffset     int
	streamsLength     int
}

// PMTStream is one elementary stream entry from a PMT.
type PMTStream struct {
	StreamType   StreamType
	ElementaryPID uint16
	ESInfo       []byte
}

// ParsePMT parses a PMT from a PSI section (pointer field already removed).
func ParsePMT(data []byte) (PMT, error) {
	if len(data) < 12 {
		return PMT{}, fmt.Errorf("ts: PMT section too short: %d bytes", len(data))
	}
	tableID := data[0]
	if tableID != 0x02 {
		return PMT{}, fmt.Errorf("ts: expected PMT table id 0x02, got 0x%02x", tableID)
	}
	b1 := data[1]
	if b1&0x80 == 0 {
		return PMT{}, fmt.Errorf("ts: PMT must have section syntax indicator set")
	}
	sectionLength := (uint16(b1&0x0F) << 8) | uint16(data[2])
	if sectionLength < 13 {
		return PMT{}, fmt.Errorf("ts: PMT section length too small: %d", sectionLength)
	}
	if len(data) < 3+int(sectionLength) {
		return PMT{}, fmt.Errorf("ts: PMT section truncated")
	}
	programNumber := binary.BigEndian.Uint16(data[3:5])
	b5 := data[5]
	versionNumber := (b5 >> 1) & 0x1F
	currentNext := b5&0x01 != 0
	sectionNumber := data[6]
	lastSectionNumber := data[7]
	pcrPID := (uint16(data[8]&0x1F) << 8) | uint16(data[9])
	programInfoLength := int((uint16(data[10]&0x0F) << 8) | uint16(data[11]))

	if int(sectionLength) < 9+programInfoLength+4 {
		return PMT{}, fmt.Errorf("ts: PMT section length inconsistent with program info length")
	}

	programInfoOffset := 12
	streamsOffset := 12 + programInfoLength
	streamsEnd := 3 + int(sectionLength) - 4
	if streamsEnd < streamsOffset {
		return PMT{}, fmt.Errorf("ts: PMT streams region inconsistent")
	}

	return PMT{
		data:                 data,
		TableID:              tableID,
		ProgramNumber:        programNumber,
		VersionNumber:        versionNumber,
		CurrentNextIndicator: currentNext,
		SectionNumber:        sectionNumber,
		LastSectionNumber:    lastSectionNumber,
		PCRPID:               pcrPID,
		programInfoOffset:    programInfoOffset,
		programInfoLength:    programInfoLength,
		streamsOffset:        streamsOffset,
		streamsLength:        streamsEnd - streamsOffset,
	}, nil
}

// ProgramInfo returns the program-level descriptor bytes.
func (p PMT) ProgramInfo() []byte {
	return p.data[p.programInfoOffset : p.programInfoOffset+p.programInfoLength]
}

// Streams parses and returns every elementary stream entry. A malformed
// trailing entry stops iteration and returns the error alongside whatever
// streams were already parsed.
func (p PMT) Streams() ([]PMTStream, error) {
	base := p.data[p.streamsOffset : p.streamsOffset+p.streamsLength]
	var out []PMTStream
	for len(base) >= 5 {
		streamType := StreamType(base[0])
		elementaryPID := (uint16(base[1]&0x1F) << 8) | uint16(base[2])
		esInfoLength := int((uint16(base[3]&0x0F) << 8) | uint16(base[4]))
		base = base[5:]
		if len(base) < esInfoLength {
			return out, fmt.Errorf("ts: PMT stream entry es_info truncated")
		}
		out = append(out, PMTStream{
			StreamType:    streamType,
			ElementaryPID: elementaryPID,
			ESInfo:        base[:esInfoLength],
		})
		base = base[esInfoLength:]
	}
	return out, nil
}
