package flvrepair

import "github.com/jmylchreest/streamvault/internal/flv"

// Limit maintains running byte and duration totals for the current output
// file. When either configured cap is exceeded it inserts an EndOfSequence
// marker — deferred until the next video keyframe when splitAtKeyframesOnly
// is set, so a rotation never lands mid-GOP.
type Limit struct {
	maxSizeBytes int64
	maxDuration  int64
	keyframeOnly bool

	bytesWritten int64
	firstTs      int32
	haveFirstTs  bool
	pendingSplit bool
}

// NewLimit constructs a Limit stage. Zero caps disable the corresponding check.
func NewLimit(maxSizeBytes, maxDurationMs int64, splitAtKeyframesOnly bool) *Limit {
	return &Limit{maxSizeBytes: maxSizeBytes, maxDuration: maxDurationMs, keyframeOnly: splitAtKeyframesOnly}
}

func (l *Limit) Name() string { return "Limit" }

func (l *Limit) Process(item Data, emit func(Data) error) error {
	switch item.Kind {
	case flv.DataKindHeader:
		l.reset()
		return emit(item)
	case flv.DataKindEndOfSequence:
		l.reset()
		return emit(item)
	}

	tag := item.Tag
	if !l.haveFirstTs {
		l.firstTs = tag.Timestamp
		l.haveFirstTs = true
	}
	l.bytesWritten += int64(len(tag.Data)) + 15 // tag header + prev-size trailer

	if l.exceedsCap(tag.Timestamp) {
		l.pendingSplit = true
	}

	if l.pendingSplit && (!l.keyframeOnly || flv.IsKeyframeNALU(tag)) {
		l.pendingSplit = false
		l.reset()
		if err := emit(flv.EndOfSequence); err != nil {
			return err
		}
		l.firstTs = tag.Timestamp
		l.haveFirstTs = true
		l.bytesWritten = int64(len(tag.Data)) + 15
	}

	return emit(item)
}

func (l *Limit) exceedsCap(currentTs int32) bool {
	if l.maxSizeBytes > 0 && l.bytesWritten > l.maxSizeBytes {
		return true
	}
	if l.maxDuration > 0 && l.haveFirstTs && int64(currentTs-l.firstTs) > l.maxDuration {
		return true
	}
	return false
}

func (l *Limit) reset() {
	l.bytesWritten = 0
	l.haveFirstTs = false
	l.pendingSplit = false
}

func (l *Limit) Finish(emit func(Data) error) error { return nil }
