package scriptmod

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jmylchreest/streamvault/internal/amf0"
	"github.com/jmylchreest/streamvault/internal/flv"
	"github.com/jmylchreest/streamvault/internal/flvrepair"
	"github.com/stretchr/testify/require"
)

// buildFixture writes a minimal FLV file: header, a placeholder onMetaData
// tag shaped exactly like ScriptKeyframesFiller's (with keyframeCount
// placeholder slots and the given placeholder width), one trailing video
// tag, and a final previous-tag-size trailer.
func buildFixture(t *testing.T, path string, keyframeCount int, placeholderWidth float64, trailingData []byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := flv.NewEncoder(f)
	require.NoError(t, enc.WriteHeader(flv.Header{Version: 1, HasAudio: true, HasVideo: true}))

	times := make([]amf0.Value, keyframeCount)
	positions := make([]amf0.Value, keyframeCount)
	for i := range times {
		times[i] = amf0.Number(0)
		positions[i] = amf0.Number(0)
	}

	props := make([]amf0.Property, 0, len(flvrepair.NaturalMetadataKeyOrder)+1)
	for _, key := range flvrepair.NaturalMetadataKeyOrder {
		switch key {
		case "keyframes":
			props = append(props, amf0.Property{Key: key, Value: amf0.Object(
				amf0.Property{Key: "times", Value: amf0.StrictArray(times...)},
				amf0.Property{Key: "filepositions", Value: amf0.StrictArray(positions...)},
			)})
		case "stereo":
			props = append(props, amf0.Property{Key: key, Value: amf0.Boolean(false)})
		case "width":
			props = append(props, amf0.Property{Key: key, Value: amf0.Number(placeholderWidth)})
		default:
			props = append(props, amf0.Property{Key: key, Value: amf0.Number(0)})
		}
	}
	props = append(props, amf0.Property{Key: "customTag", Value: amf0.String("keepme")})
	metadata := amf0.EcmaArray(props...)

	var payload []byte
	namePart, err := amf0.Encode(amf0.String("onMetaData"))
	require.NoError(t, err)
	metaPart, err := amf0.Encode(metadata)
	require.NoError(t, err)
	payload = append(payload, namePart...)
	payload = append(payload, metaPart...)

	require.NoError(t, enc.WriteTag(flv.Tag{Type: flv.TagTypeScript, Timestamp: 0, Data: payload}))
	require.NoError(t, enc.WriteTag(flv.Tag{Type: flv.TagTypeVideo, Timestamp: 40, Data: trailingData}))
	require.NoError(t, enc.Finish())
}

// readBack decodes the rewritten file's script and trailing tags, failing
// the test if the previous-tag-size chain is inconsistent anywhere.
func readBack(t *testing.T, path string) (scriptValues []amf0.Value, trailing flv.Tag) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := flv.NewDecoder(f)
	_, err = dec.DecodeHeader()
	require.NoError(t, err)

	scriptTag, err := dec.DecodeTag()
	require.NoError(t, err)
	require.True(t, flv.IsScriptTag(scriptTag))

	values, err := amf0.NewDecoder(scriptTag.Data).DecodeAll()
	require.NoError(t, err)

	videoTag, err := dec.DecodeTag()
	require.NoError(t, err)
	return values, videoTag
}

func TestRewriteSameKeyframeCountOverwritesInPlace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.flv")
	buildFixture(t, path, 2, 0, []byte{1, 2, 3, 4})

	stats := Stats{
		DurationSeconds: 12.5,
		FileSize:        9999,
		VideoDataRate:   512,
		Keyframes: []Keyframe{
			{TimestampSeconds: 0, FilePosition: 13},
			{TimestampSeconds: 6.25, FilePosition: 500},
		},
	}
	require.NoError(t, Rewrite(path, stats))

	values, videoTag := readBack(t, path)
	require.Equal(t, []byte{1, 2, 3, 4}, videoTag.Data)
	require.Equal(t, int32(40), videoTag.Timestamp)

	metadata := values[1]
	duration, ok := metadata.Get("duration")
	require.True(t, ok)
	require.Equal(t, 12.5, duration.Number)

	keyframes, ok := metadata.Get("keyframes")
	require.True(t, ok)
	positions, ok := keyframes.Get("filepositions")
	require.True(t, ok)
	require.Len(t, positions.Elements, 2)
	require.Equal(t, float64(13), positions.Elements[0].Number)
	require.Equal(t, float64(500), positions.Elements[1].Number)

	custom, ok := metadata.Get("customTag")
	require.True(t, ok)
	require.Equal(t, "keepme", custom.Str)
}

func TestRewriteFewerKeyframesShrinksAndShiftsBackward(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.flv")
	buildFixture(t, path, 5, 1920, []byte{9, 9, 9, 9, 9})

	beforeInfo, err := os.Stat(path)
	require.NoError(t, err)

	stats := Stats{
		DurationSeconds: 3,
		Keyframes:       []Keyframe{{TimestampSeconds: 0, FilePosition: 13}},
	}
	require.NoError(t, Rewrite(path, stats))

	afterInfo, err := os.Stat(path)
	require.NoError(t, err)
	// Four fewer keyframe slots: 4 * (9 bytes time + 9 bytes position).
	require.Equal(t, beforeInfo.Size()-4*18, afterInfo.Size())

	values, videoTag := readBack(t, path)
	require.Equal(t, []byte{9, 9, 9, 9, 9}, videoTag.Data)

	metadata := values[1]
	width, ok := metadata.Get("width")
	require.True(t, ok)
	require.Equal(t, 1920.0, width.Number, "width left untouched since Stats.Width is nil")

	keyframes, _ := metadata.Get("keyframes")
	times, _ := keyframes.Get("times")
	require.Len(t, times.Elements, 1)

	// The shrink's position delta (-72) would carry position 13 negative;
	// buildKeyframesValue leaves a would-go-negative position unadjusted.
	positions, _ := keyframes.Get("filepositions")
	require.Equal(t, float64(13), positions.Elements[0].Number)
}

func TestRewriteMoreKeyframesGrowsAndShiftsForward(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.flv")
	buildFixture(t, path, 1, 0, []byte{7, 7, 7})

	beforeInfo, err := os.Stat(path)
	require.NoError(t, err)

	stats := Stats{
		Keyframes: []Keyframe{
			{TimestampSeconds: 0, FilePosition: 13},
			{TimestampSeconds: 2, FilePosition: 1000},
			{TimestampSeconds: 4, FilePosition: 2000},
		},
	}
	require.NoError(t, Rewrite(path, stats))

	afterInfo, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, beforeInfo.Size()+2*18, afterInfo.Size())

	values, videoTag := readBack(t, path)
	require.Equal(t, []byte{7, 7, 7}, videoTag.Data)

	metadata := values[1]
	keyframes, _ := metadata.Get("keyframes")
	positions, _ := keyframes.Get("filepositions")
	require.Len(t, positions.Elements, 3)
	// The size grew, so every keyframe's stored position has the delta
	// already folded in.
	delta := afterInfo.Size() - beforeInfo.Size()
	require.Equal(t, float64(1000+delta), positions.Elements[1].Number)
}
