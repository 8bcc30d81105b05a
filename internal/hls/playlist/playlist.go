// Package playlist parses and tracks HTTP Live Streaming playlists: master
// playlists enumerating variant streams, and media playlists enumerating
// segments. It also implements the live-refresh loop that turns repeated
// media-playlist fetches into a stream of newly discovered segment jobs.
package playlist

import "time"

// Key describes the encryption applied to the segments that follow an
// #EXT-X-KEY tag, mirroring the subset of RFC 8216 attributes the engine
// needs to fetch and decrypt a segment.
type Key struct {
	Method string
	URI    string
	IV     string
}

// ByteRange mirrors an #EXT-X-BYTERANGE tag: Length bytes, starting at
// Offset. Offset is nil when the range is contiguous with the previous
// segment's range, per RFC 8216 section 4.3.2.2.
type ByteRange struct {
	Length int64
	Offset *int64
}

// Segment is one entry of a media playlist: a fetchable URI plus the
// metadata needed to schedule, decrypt and order it.
type Segment struct {
	URI            string
	Title          string
	Duration       time.Duration
	MediaSequence  uint64
	ByteRange      *ByteRange
	Key            *Key
	MapURI         string
	Discontinuity  bool
	IsInitSegment  bool
	IsAd           bool
}

// MediaPlaylistDetails is the parsed body of a media playlist.
type MediaPlaylistDetails struct {
	TargetDuration        time.Duration
	MediaSequence         uint64
	DiscontinuitySequence int
	EndList               bool
	Segments              []Segment
}

// Variant is one #EXT-X-STREAM-INF entry of a master playlist.
type Variant struct {
	URI              string
	Bandwidth        int
	AverageBandwidth int
	Resolution       string
	Codecs           string
	FrameRate        float64
	Name             string
	Audio            string
	Video            string
}

// MasterPlaylistDetails is the parsed body of a master playlist.
type MasterPlaylistDetails struct {
	Variants []Variant
}

// Kind distinguishes a master playlist from a media playlist.
type Kind int

const (
	KindMedia Kind = iota
	KindMaster
)

// InitialPlaylist is the sum of the two playlist shapes a fetch can return,
// keyed by which tags were present in the body.
type InitialPlaylist struct {
	Kind   Kind
	Media  MediaPlaylistDetails
	Master MasterPlaylistDetails
}
