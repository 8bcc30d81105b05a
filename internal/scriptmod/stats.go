// Package scriptmod rewrites a closed FLV file's onMetaData script tag with
// the final statistics a recording only knows once it stops: true duration,
// file size, data rates, resolution, codec identifiers, and the full
// keyframe index. ScriptKeyframesFiller (internal/flvrepair) writes the
// placeholder this package replaces while the file is still open.
package scriptmod

// Keyframe is one entry of the final keyframe index: the tag's timestamp in
// seconds and its byte offset within the file.
type Keyframe struct {
	TimestampSeconds float64
	FilePosition     uint64
}

// Stats carries the values a completed recording computes about itself,
// enough to rewrite every key in flvrepair.NaturalMetadataKeyOrder. Width,
// Height, VideoCodecID, and AudioCodecID are nil when unknown (no video or
// audio, or a codec the repair chain never managed to identify); the
// rewrite preserves whatever the placeholder tag already held for an unset
// field rather than clobbering it with a zero.
type Stats struct {
	DurationSeconds float64
	FileSize        uint64

	Width  *uint32
	Height *uint32

	VideoCodecID  *uint8
	VideoDataRate float64
	FrameRate     float64

	AudioCodecID    *uint8
	AudioDataRate   float64
	AudioSampleRate float64
	AudioSampleSize float64
	Stereo          bool

	LastTimestampMs         uint32
	LastKeyframeLocation    uint64
	LastKeyframeTimestampMs uint32

	Keyframes []Keyframe
}
