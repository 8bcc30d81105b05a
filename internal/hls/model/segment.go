// Package model defines the typed representation of HLS segment data that
// flows through the acquisition engine and repair pipeline: TS segments,
// fMP4 init/media segments, and the end-of-playlist marker.
package model

import "time"

// SegmentType distinguishes the shapes of data the decoder and repair
// pipeline pass around.
type SegmentType int

// Segment kinds.
const (
	SegmentTypeTS SegmentType = iota
	SegmentTypeM4sInit
	SegmentTypeM4sMedia
	SegmentTypeEndMarker
)

func (k SegmentType) String() string {
	switch k {
	case SegmentTypeTS:
		return "ts"
	case SegmentTypeM4sInit:
		return "m4s-init"
	case SegmentTypeM4sMedia:
		return "m4s-media"
	case SegmentTypeEndMarker:
		return "end-marker"
	default:
		return "unknown"
	}
}

// ByteRange is an HTTP range request, per RFC 8216's EXT-X-BYTERANGE.
// Offset is -1 when the range is contiguous with the previous segment's
// range (the playlist omitted the offset).
type ByteRange struct {
	Length int64
	Offset int64
}

// Key describes a segment's decryption key, per EXT-X-KEY.
type Key struct {
	Method string // "AES-128" or "NONE"
	URI    string
	IV     [16]byte
	HasIV  bool
}

// MediaSegment is the metadata a playlist entry carries, independent of the
// segment's downloaded bytes: everything the scheduler, fetcher, decryptor
// and reorder stage need to act on a single playlist line.
type MediaSegment struct {
	URI                   string
	MediaSequence         uint64
	DiscontinuitySequence uint64
	Duration              time.Duration
	Key                   *Key
	ByteRange             *ByteRange
	Discontinuity         bool
	MapURI                string // fMP4 EXT-X-MAP URI; empty for TS segments
	IsAd                  bool
	IsInitSegment         bool
}

// Data is the sum type flowing through the HLS repair pipeline: a TS
// segment, an fMP4 init segment, an fMP4 media segment, or an end marker.
type Data struct {
	Kind    SegmentType
	Segment MediaSegment
	Bytes   []byte
}

// NewTSSegment wraps decrypted TS segment bytes with their playlist metadata.
func NewTSSegment(seg MediaSegment, data []byte) Data {
	return Data{Kind: SegmentTypeTS, Segment: seg, Bytes: data}
}

// NewInitSegment wraps an fMP4 init segment's bytes with its metadata.
func NewInitSegment(seg MediaSegment, data []byte) Data {
	seg.IsInitSegment = true
	return Data{Kind: SegmentTypeM4sInit, Segment: seg, Bytes: data}
}

// NewMediaSegment wraps an fMP4 media segment's bytes with its metadata.
func NewMediaSegment(seg MediaSegment, data []byte) Data {
	return Data{Kind: SegmentTypeM4sMedia, Segment: seg, Bytes: data}
}

// EndMarker signals the end of the current playlist (or a forced repair
// split); it carries no segment metadata or bytes.
var EndMarker = Data{Kind: SegmentTypeEndMarker}

// Size returns the byte length of the wrapped segment data.
func (d Data) Size() int { return len(d.Bytes) }

// IsM4s reports whether d is either flavor of fMP4 segment.
func (d Data) IsM4s() bool {
	return d.Kind == SegmentTypeM4sInit || d.Kind == SegmentTypeM4sMedia
}
