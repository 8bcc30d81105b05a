package scriptmod

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/jmylchreest/streamvault/internal/amf0"
	"github.com/jmylchreest/streamvault/internal/flv"
)

// scriptTagOffset is where the first tag's 11-byte header begins: the
// 9-byte FLV header plus the 4-byte initial (always zero) previous-tag-size.
const scriptTagOffset = 13

// Rewrite reads path's first tag, which must be the onMetaData placeholder
// ScriptKeyframesFiller wrote, and replaces it with stats's final values.
// If the rewritten tag is the same size as the placeholder it overwrites in
// place; otherwise it shifts every following byte by the size delta (using
// the direction that never overlaps unread source data) and truncates or
// grows the file to match.
func Rewrite(path string, stats Stats) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("scriptmod: opening %s: %w", path, err)
	}
	defer f.Close()

	dec := flv.NewDecoder(f)
	if _, err := dec.DecodeHeader(); err != nil {
		return fmt.Errorf("scriptmod: reading header: %w", err)
	}
	scriptTag, err := dec.DecodeTag()
	if err == io.EOF {
		// A file with no tags at all has no metadata to fix up.
		return nil
	}
	if err != nil {
		return fmt.Errorf("scriptmod: reading first tag: %w", err)
	}
	if !flv.IsScriptTag(scriptTag) {
		return fmt.Errorf("scriptmod: first tag in %s is not a script tag", path)
	}

	// DecodeTag already consumed this tag's trailing previous-tag-size, so
	// the file is now positioned exactly where the next tag's header (if
	// any) begins.
	nextTagPosOld, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("scriptmod: locating trailing content: %w", err)
	}

	values, err := amf0.NewDecoder(scriptTag.Data).DecodeAll()
	if err != nil {
		return fmt.Errorf("scriptmod: decoding script data: %w", err)
	}
	if len(values) < 2 || values[0].Str != "onMetaData" {
		return fmt.Errorf("scriptmod: first script tag in %s is not onMetaData", path)
	}
	original := values[1]

	originalPayloadSize := int64(len(scriptTag.Data))

	// AMF0 numbers and booleans encode at a fixed width regardless of
	// value, so only a keyframe-count change can move the payload size;
	// one draft pass (with no position adjustment yet) is enough to learn
	// whether that happened.
	draft, err := buildPayload(stats, original, 0)
	if err != nil {
		return fmt.Errorf("scriptmod: building metadata: %w", err)
	}
	sizeDiff := int64(len(draft)) - originalPayloadSize
	finalPayload := draft
	if sizeDiff != 0 {
		finalPayload, err = buildPayload(stats, original, sizeDiff)
		if err != nil {
			return fmt.Errorf("scriptmod: building adjusted metadata: %w", err)
		}
	}

	newTagBytes := encodeTagAndTrailer(scriptTag.Type, scriptTag.Timestamp, scriptTag.StreamID, finalPayload)

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("scriptmod: stat %s: %w", path, err)
	}
	fileSize := info.Size()

	switch {
	case sizeDiff == 0:
		if _, err := f.WriteAt(newTagBytes, scriptTagOffset); err != nil {
			return fmt.Errorf("scriptmod: writing tag in place: %w", err)
		}
	case sizeDiff > 0:
		if err := shiftForward(f, nextTagPosOld, fileSize, sizeDiff); err != nil {
			return err
		}
		if _, err := f.WriteAt(newTagBytes, scriptTagOffset); err != nil {
			return fmt.Errorf("scriptmod: writing expanded tag: %w", err)
		}
	default:
		if _, err := f.WriteAt(newTagBytes, scriptTagOffset); err != nil {
			return fmt.Errorf("scriptmod: writing shrunk tag: %w", err)
		}
		newNextTagPos := scriptTagOffset + int64(len(newTagBytes))
		if err := shiftBackward(f, nextTagPosOld, newNextTagPos, fileSize); err != nil {
			return err
		}
		if err := f.Truncate(fileSize + sizeDiff); err != nil {
			return fmt.Errorf("scriptmod: truncating %s: %w", path, err)
		}
	}
	return nil
}

// encodeTagAndTrailer builds the 11-byte tag header, payload, and trailing
// previous-tag-size for a single tag written at an arbitrary file offset
// (unlike flv.Encoder, which only ever appends to a growing stream).
func encodeTagAndTrailer(tagType flv.TagType, timestamp int32, streamID uint32, payload []byte) []byte {
	out := make([]byte, 11+len(payload)+4)

	dataSize := uint32(len(payload))
	out[0] = byte(tagType)
	out[1] = byte(dataSize >> 16)
	out[2] = byte(dataSize >> 8)
	out[3] = byte(dataSize)
	ts := uint32(timestamp)
	out[4] = byte(ts >> 16)
	out[5] = byte(ts >> 8)
	out[6] = byte(ts)
	out[7] = byte(ts >> 24)
	out[8] = byte(streamID >> 16)
	out[9] = byte(streamID >> 8)
	out[10] = byte(streamID)

	copy(out[11:], payload)

	binary.BigEndian.PutUint32(out[11+len(payload):], 4+11+dataSize)
	return out
}
