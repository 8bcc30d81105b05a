package flvrepair

import (
	"bytes"

	"github.com/jmylchreest/streamvault/internal/amf0"
	"github.com/jmylchreest/streamvault/internal/flv"
)

// defaultExpectedKeyframeCount is used when no duration cap is configured,
// so the placeholder arrays still have reasonable headroom.
const defaultExpectedKeyframeCount = 1000

// keyframeCountSlack is added to the duration-derived estimate so that a
// stream running slightly over its configured cap doesn't outgrow the
// placeholder arrays before the script modifier rewrites them for real.
const keyframeCountSlack = 16

// ScriptKeyframesFiller emits a synthetic onMetaData tag, carrying
// placeholder keyframe index arrays sized for the expected recording
// length, before the first media tag of every new file. The real values are
// filled in by the script modifier after the file closes.
type ScriptKeyframesFiller struct {
	maxDurationMs      int64
	keyframeIntervalMs int64
	needsFiller        bool
}

// NewScriptKeyframesFiller constructs a ScriptKeyframesFiller stage.
func NewScriptKeyframesFiller(maxDurationMs, keyframeIntervalMs int64) *ScriptKeyframesFiller {
	return &ScriptKeyframesFiller{maxDurationMs: maxDurationMs, keyframeIntervalMs: keyframeIntervalMs, needsFiller: true}
}

func (s *ScriptKeyframesFiller) Name() string { return "ScriptKeyframesFiller" }

func (s *ScriptKeyframesFiller) Process(item Data, emit func(Data) error) error {
	switch item.Kind {
	case flv.DataKindHeader, flv.DataKindEndOfSequence:
		s.needsFiller = true
		return emit(item)
	}

	if s.needsFiller && item.Kind == flv.DataKindTag && item.Tag.Type != flv.TagTypeScript {
		filler, err := s.buildFillerTag()
		if err != nil {
			return err
		}
		s.needsFiller = false
		if err := emit(filler); err != nil {
			return err
		}
	}
	return emit(item)
}

func (s *ScriptKeyframesFiller) Finish(emit func(Data) error) error { return nil }

func (s *ScriptKeyframesFiller) expectedKeyframeCount() int {
	if s.maxDurationMs > 0 && s.keyframeIntervalMs > 0 {
		return int(s.maxDurationMs/s.keyframeIntervalMs) + keyframeCountSlack
	}
	return defaultExpectedKeyframeCount
}

func (s *ScriptKeyframesFiller) buildFillerTag() (Data, error) {
	n := s.expectedKeyframeCount()
	times := make([]amf0.Value, n)
	positions := make([]amf0.Value, n)
	for i := range times {
		times[i] = amf0.Number(0)
		positions[i] = amf0.Number(0)
	}

	keyframesValue := amf0.Object(
		amf0.Property{Key: "times", Value: amf0.StrictArray(times...)},
		amf0.Property{Key: "filepositions", Value: amf0.StrictArray(positions...)},
	)

	props := make([]amf0.Property, 0, len(NaturalMetadataKeyOrder))
	for _, key := range NaturalMetadataKeyOrder {
		switch key {
		case "keyframes":
			props = append(props, amf0.Property{Key: key, Value: keyframesValue})
		case "stereo":
			props = append(props, amf0.Property{Key: key, Value: amf0.Boolean(false)})
		default:
			props = append(props, amf0.Property{Key: key, Value: amf0.Number(0)})
		}
	}
	metadata := amf0.EcmaArray(props...)

	var buf bytes.Buffer
	if err := amf0.EncodeTo(&buf, amf0.String("onMetaData")); err != nil {
		return Data{}, err
	}
	if err := amf0.EncodeTo(&buf, metadata); err != nil {
		return Data{}, err
	}

	return flv.NewTagData(flv.Tag{Type: flv.TagTypeScript, Timestamp: 0, Data: buf.Bytes()}), nil
}
