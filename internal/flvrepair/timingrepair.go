package flvrepair

import (
	"fmt"

	"github.com/jmylchreest/streamvault/internal/flv"
)

// TimingRepair corrects timestamp anomalies within a segment: negative
// timestamps are clamped to zero, and forward jumps larger than
// maxJumpMs are either rejected (RepairModeStrict) or smoothed to the last
// known timestamp (RepairModeRelaxed). It tracks state only within the
// current segment; TimeConsistency is responsible for continuity across
// segment boundaries.
type TimingRepair struct {
	mode      RepairMode
	maxJumpMs int64

	haveLastTs bool
	lastTs     int32
}

// NewTimingRepair constructs a TimingRepair stage.
func NewTimingRepair(mode RepairMode, maxJumpMs int64) *TimingRepair {
	return &TimingRepair{mode: mode, maxJumpMs: maxJumpMs}
}

func (r *TimingRepair) Name() string { return "TimingRepair" }

func (r *TimingRepair) Process(item Data, emit func(Data) error) error {
	switch item.Kind {
	case flv.DataKindHeader, flv.DataKindEndOfSequence:
		r.haveLastTs = false
		return emit(item)
	}

	tag := item.Tag
	if flv.IsVideoSequenceHeader(tag) || flv.IsAudioSequenceHeader(tag) || flv.IsScriptTag(tag) {
		return emit(item)
	}

	corrected := tag.Timestamp
	if corrected < 0 {
		corrected = 0
	}

	if r.haveLastTs {
		jump := int64(corrected) - int64(r.lastTs)
		if corrected < r.lastTs || (r.maxJumpMs > 0 && jump > r.maxJumpMs) {
			if r.mode == RepairModeStrict {
				return fmt.Errorf("timingrepair: timestamp anomaly: last=%d new=%d", r.lastTs, corrected)
			}
			corrected = r.lastTs
		}
	}

	tag.Timestamp = corrected
	item.Tag = tag
	r.lastTs = corrected
	r.haveLastTs = true
	return emit(item)
}

func (r *TimingRepair) Finish(emit func(Data) error) error { return nil }
