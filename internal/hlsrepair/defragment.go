// Package hlsrepair implements the HLS-side counterparts of the FLV repair
// operators: gating output on complete segment structure and splitting the
// output file when the underlying stream's shape changes.
package hlsrepair

import "github.com/jmylchreest/streamvault/internal/hls/model"

const (
	minBufferSegments   = 5 // fMP4: init + enough media segments to call it a segment
	minTSBufferSegments = 3 // TS: PAT/PMT-bearing packet plus at least one keyframe-bearing packet
	maxBufferSegments   = 50
)

// Defragment buffers incoming HLS data until it has collected a structurally
// complete segment, then flushes it as a unit. For TS it waits for a
// PAT/PMT-bearing chunk before gathering; for fMP4 it waits for an init
// segment before passing media segments through.
type Defragment struct {
	segmentType    *model.SegmentType
	gathering      bool
	hasInitSegment bool
	buffer         []model.Data
	haveProfile    bool
	profileHasAV   bool
}

// NewDefragment constructs a Defragment stage.
func NewDefragment() *Defragment { return &Defragment{} }

func (d *Defragment) Name() string { return "Defragment" }

func (d *Defragment) Process(item model.Data, emit func(model.Data) error) error {
	if item.Kind == model.SegmentTypeEndMarker {
		return d.flushBoundary(emit)
	}

	kind := item.Kind
	switch {
	case d.segmentType == nil:
		k := kind
		d.segmentType = &k
	case *d.segmentType != kind:
		transition := isM4sTransition(*d.segmentType, kind)
		k := kind
		d.segmentType = &k
		if !transition {
			if err := d.flushBoundary(emit); err != nil {
				return err
			}
		}
	}

	if kind == model.SegmentTypeM4sInit {
		if len(d.buffer) > 0 {
			d.buffer = nil
		}
		d.gathering = true
		d.buffer = append(d.buffer, item)
		d.hasInitSegment = true
		return nil
	}

	if (kind == model.SegmentTypeM4sInit || kind == model.SegmentTypeM4sMedia) && !d.hasInitSegment {
		if len(d.buffer) == 0 {
			d.gathering = true
		}
		if len(d.buffer) >= maxBufferSegments {
			d.buffer = nil
		}
		d.buffer = append(d.buffer, item)
		return nil
	}

	if kind == model.SegmentTypeTS && !d.gathering {
		if !item.HasPSITables() {
			return nil
		}
		d.gathering = true
		if profile, ok := item.StreamProfile(); ok {
			d.haveProfile = true
			d.profileHasAV = profile.HasVideo || profile.HasAudio
		}
		d.buffer = append(d.buffer, item)
	} else if kind == model.SegmentTypeTS {
		if len(d.buffer) >= minTSBufferSegments {
			for _, buffered := range d.buffer {
				if err := emit(buffered); err != nil {
					return err
				}
			}
			d.buffer = d.buffer[:0]
		}
		d.buffer = append(d.buffer, item)
		return nil
	} else {
		if d.gathering {
			d.buffer = append(d.buffer, item)
		} else {
			return emit(item)
		}
	}

	return d.maybeComplete(emit)
}

func (d *Defragment) Finish(emit func(model.Data) error) error {
	if len(d.buffer) == 0 {
		return nil
	}
	valid := len(d.buffer) >= d.minRequired()
	if valid && d.segmentType != nil && *d.segmentType == model.SegmentTypeTS {
		valid = d.profileHasAV || len(d.buffer) >= minBufferSegments
	}
	if valid {
		for _, item := range d.buffer {
			if err := emit(item); err != nil {
				return err
			}
		}
	}
	d.buffer = nil
	d.gathering = false
	return nil
}

func (d *Defragment) flushBoundary(emit func(model.Data) error) error {
	if len(d.buffer) >= d.minRequired() {
		for _, item := range d.buffer {
			if err := emit(item); err != nil {
				return err
			}
		}
	}
	d.buffer = nil
	d.gathering = false
	return emit(model.EndMarker)
}

func (d *Defragment) maybeComplete(emit func(model.Data) error) error {
	if !d.gathering || len(d.buffer) == 0 {
		return nil
	}
	minRequired := d.minRequired()
	if len(d.buffer) < minRequired {
		return nil
	}

	complete := false
	if d.segmentType != nil {
		switch *d.segmentType {
		case model.SegmentTypeTS:
			complete = true
		case model.SegmentTypeM4sInit, model.SegmentTypeM4sMedia:
			complete = d.hasInitSegment || *d.segmentType != model.SegmentTypeM4sMedia
		}
	}
	if !complete {
		return nil
	}

	for _, item := range d.buffer {
		if err := emit(item); err != nil {
			return err
		}
	}
	d.buffer = nil
	d.gathering = false
	return nil
}

func (d *Defragment) minRequired() int {
	if d.segmentType == nil {
		return minBufferSegments
	}
	switch *d.segmentType {
	case model.SegmentTypeTS:
		return minTSBufferSegments
	case model.SegmentTypeEndMarker:
		return 0
	default:
		return minBufferSegments
	}
}

func isM4sTransition(a, b model.SegmentType) bool {
	isM4s := func(k model.SegmentType) bool {
		return k == model.SegmentTypeM4sInit || k == model.SegmentTypeM4sMedia
	}
	return isM4s(a) && isM4s(b)
}
