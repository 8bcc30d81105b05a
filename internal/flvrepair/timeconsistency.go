package flvrepair

import "github.com/jmylchreest/streamvault/internal/flv"

// TimeConsistency maintains a monotonic timestamp offset across stream
// splits so that timelines stay continuous (or cleanly reset) whenever a
// new segment starts. It runs twice in the chain: once before Limit, once
// after, so rotations inserted by Limit retain timeline continuity too.
type TimeConsistency struct {
	mode TimingMode

	atSegmentStart bool
	haveLastTs     bool
	lastTs         int32
	offset         int32
}

// NewTimeConsistency constructs a TimeConsistency stage in the given mode.
func NewTimeConsistency(mode TimingMode) *TimeConsistency {
	return &TimeConsistency{mode: mode, atSegmentStart: true}
}

func (t *TimeConsistency) Name() string { return "TimeConsistency" }

func (t *TimeConsistency) Process(item Data, emit func(Data) error) error {
	switch item.Kind {
	case flv.DataKindHeader:
		t.atSegmentStart = true
		return emit(item)
	case flv.DataKindEndOfSequence:
		t.atSegmentStart = true
		return emit(item)
	}

	tag := item.Tag

	if flv.IsVideoSequenceHeader(tag) || flv.IsAudioSequenceHeader(tag) {
		if t.atSegmentStart {
			tag.Timestamp = 0
			item.Tag = tag
		}
		return emit(item)
	}
	if flv.IsScriptTag(tag) && t.atSegmentStart {
		tag.Timestamp = 0
		item.Tag = tag
		return emit(item)
	}

	if t.atSegmentStart {
		switch {
		case t.mode == TimingModeReset:
			t.offset = -tag.Timestamp
		case t.haveLastTs:
			t.offset = t.lastTs - tag.Timestamp
		default:
			t.offset = 0
		}
		t.atSegmentStart = false
	}

	corrected := tag.Timestamp + t.offset
	if corrected < 0 {
		corrected = 0
	}
	tag.Timestamp = corrected
	item.Tag = tag

	t.lastTs = corrected
	t.haveLastTs = true
	return emit(item)
}

func (t *TimeConsistency) Finish(emit func(Data) error) error { return nil }
