package scriptmod

import (
	"bytes"

	"github.com/jmylchreest/streamvault/internal/amf0"
	"github.com/jmylchreest/streamvault/internal/flvrepair"
)

// buildPayload encodes the full script tag payload ("onMetaData" name plus
// the metadata object) for stats, preserving any custom property from
// original that flvrepair.NaturalMetadataKeyOrder doesn't name.
// positionAdjustment shifts every keyframe file position, needed once the
// rewritten tag's size differs from the placeholder it replaces.
func buildPayload(stats Stats, original amf0.Value, positionAdjustment int64) ([]byte, error) {
	var buf bytes.Buffer
	if err := amf0.EncodeTo(&buf, amf0.String("onMetaData")); err != nil {
		return nil, err
	}
	metadata := buildMetadataValue(stats, original, positionAdjustment)
	if err := amf0.EncodeTo(&buf, metadata); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildMetadataValue(stats Stats, original amf0.Value, positionAdjustment int64) amf0.Value {
	seen := make(map[string]bool, len(flvrepair.NaturalMetadataKeyOrder))
	props := make([]amf0.Property, 0, len(flvrepair.NaturalMetadataKeyOrder)+len(original.Properties))
	for _, key := range flvrepair.NaturalMetadataKeyOrder {
		seen[key] = true
		props = append(props, amf0.Property{Key: key, Value: metadataValueFor(key, stats, original, positionAdjustment)})
	}
	// Some streams carry custom onMetaData keys beyond the natural order;
	// preserve them verbatim, in their original order, after the fixed set.
	for _, p := range original.Properties {
		if !seen[p.Key] {
			props = append(props, p)
		}
	}
	return amf0.EcmaArray(props...)
}

func metadataValueFor(key string, stats Stats, original amf0.Value, positionAdjustment int64) amf0.Value {
	switch key {
	case "duration":
		return amf0.Number(stats.DurationSeconds)
	case "fileSize":
		return amf0.Number(float64(stats.FileSize))
	case "width":
		if stats.Width != nil {
			return amf0.Number(float64(*stats.Width))
		}
		return originalOrZero(original, key)
	case "height":
		if stats.Height != nil {
			return amf0.Number(float64(*stats.Height))
		}
		return originalOrZero(original, key)
	case "videoCodecId":
		if stats.VideoCodecID != nil {
			return amf0.Number(float64(*stats.VideoCodecID))
		}
		return originalOrZero(original, key)
	case "videoDataRate":
		return amf0.Number(stats.VideoDataRate)
	case "framerate":
		return amf0.Number(stats.FrameRate)
	case "audioCodecId":
		if stats.AudioCodecID != nil {
			return amf0.Number(float64(*stats.AudioCodecID))
		}
		return originalOrZero(original, key)
	case "audioDataRate":
		return amf0.Number(stats.AudioDataRate)
	case "audiosamplerate":
		return amf0.Number(stats.AudioSampleRate)
	case "audiosamplesize":
		return amf0.Number(stats.AudioSampleSize)
	case "stereo":
		return amf0.Boolean(stats.Stereo)
	case "lasttimestamp":
		return amf0.Number(float64(stats.LastTimestampMs))
	case "lastkeyframelocation":
		return amf0.Number(float64(stats.LastKeyframeLocation))
	case "lastkeyframetimestamp":
		return amf0.Number(float64(stats.LastKeyframeTimestampMs))
	case "keyframes":
		return buildKeyframesValue(stats.Keyframes, positionAdjustment)
	default:
		return originalOrZero(original, key)
	}
}

// originalOrZero looks up key in original's properties, falling back to a
// zero-valued number if original never carried it either.
func originalOrZero(original amf0.Value, key string) amf0.Value {
	if v, ok := original.Get(key); ok {
		return v
	}
	return amf0.Number(0)
}

// buildKeyframesValue encodes the keyframes object: parallel "times" and
// "filepositions" strict arrays, with every position shifted by
// positionAdjustment. A shift that would make a position negative (possible
// only from a malformed original index) leaves that one entry unadjusted
// rather than writing a nonsensical offset.
func buildKeyframesValue(keyframes []Keyframe, positionAdjustment int64) amf0.Value {
	times := make([]amf0.Value, len(keyframes))
	positions := make([]amf0.Value, len(keyframes))
	for i, kf := range keyframes {
		times[i] = amf0.Number(kf.TimestampSeconds)
		adjusted := int64(kf.FilePosition) + positionAdjustment
		if adjusted < 0 {
			adjusted = int64(kf.FilePosition)
		}
		positions[i] = amf0.Number(float64(adjusted))
	}
	return amf0.Object(
		amf0.Property{Key: "times", Value: amf0.StrictArray(times...)},
		amf0.Property{Key: "filepositions", Value: amf0.StrictArray(positions...)},
	)
}
