package hlsrepair

import (
	"hash/crc32"

	"github.com/jmylchreest/streamvault/internal/hls/model"
	"github.com/jmylchreest/streamvault/internal/ts"
)

// SegmentSplit detects stream-shape changes that require starting a new
// output file: an fMP4 init segment whose bytes changed, or a TS program
// table showing a different transport-stream id, program count, PID
// layout, or codec. On a change it emits an EndMarker ahead of the
// triggering item; if the change wasn't itself carried by an init segment
// it also re-emits the last known init segment so the new file stays
// self-contained.
type SegmentSplit struct {
	lastInitCRC    *uint32
	lastInit       *model.Data
	lastStreamInfo *ts.StreamInfo
	lastProfile    *ts.StreamProfile
}

// NewSegmentSplit constructs a SegmentSplit stage.
func NewSegmentSplit() *SegmentSplit { return &SegmentSplit{} }

func (s *SegmentSplit) Name() string { return "SegmentSplit" }

func (s *SegmentSplit) Process(item model.Data, emit func(model.Data) error) error {
	if item.Kind == model.SegmentTypeEndMarker {
		return emit(item)
	}

	var needsSplit bool
	switch item.Kind {
	case model.SegmentTypeM4sInit:
		needsSplit = s.handleInitSegment(item)
	case model.SegmentTypeTS:
		needsSplit = s.handleTSSegment(item)
	}

	if needsSplit {
		if err := emit(model.EndMarker); err != nil {
			return err
		}
		if item.Kind != model.SegmentTypeM4sInit && s.lastInit != nil {
			if err := emit(*s.lastInit); err != nil {
				return err
			}
		}
	}
	return emit(item)
}

func (s *SegmentSplit) Finish(emit func(model.Data) error) error { return nil }

func (s *SegmentSplit) handleInitSegment(item model.Data) bool {
	crc := crc32.ChecksumIEEE(item.Bytes)
	split := s.lastInitCRC != nil && *s.lastInitCRC != crc
	s.lastInitCRC = &crc
	cp := item
	s.lastInit = &cp
	return split
}

func (s *SegmentSplit) handleTSSegment(item model.Data) bool {
	info, ok := item.StreamInfo()
	if !ok {
		return false
	}

	split := false
	if prev := s.lastStreamInfo; prev != nil {
		switch {
		case prev.ProgramCount != info.ProgramCount:
			split = true
		case prev.TransportStreamID != info.TransportStreamID:
			split = true
		case len(prev.Programs) != len(info.Programs):
			split = true
		default:
			n := len(prev.Programs)
			for i := 0; i < n && !split; i++ {
				split = programChanged(prev.Programs[i], info.Programs[i])
			}
		}
	}
	infoCopy := info
	s.lastStreamInfo = &infoCopy

	if profile, ok := item.StreamProfile(); ok {
		if prev := s.lastProfile; prev != nil && !split {
			split = profileChanged(*prev, profile)
		}
		profileCopy := profile
		s.lastProfile = &profileCopy
	}
	return split
}

func programChanged(a, b ts.ProgramStreamInfo) bool {
	if a.ProgramNumber != b.ProgramNumber || a.PCRPID != b.PCRPID {
		return true
	}
	if len(a.VideoStreams)+len(a.AudioStreams)+len(a.OtherStreams) !=
		len(b.VideoStreams)+len(b.AudioStreams)+len(b.OtherStreams) {
		return true
	}
	return streamTypesDiffer(a.VideoStreams, b.VideoStreams) || streamTypesDiffer(a.AudioStreams, b.AudioStreams)
}

func streamTypesDiffer(a, b []ts.PMTStream) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i].StreamType != b[i].StreamType {
			return true
		}
	}
	return false
}

func profileChanged(a, b ts.StreamProfile) bool {
	return a.HasH264 != b.HasH264 || a.HasH265 != b.HasH265 ||
		a.HasAAC != b.HasAAC || a.HasAC3 != b.HasAC3 ||
		a.HasVideo != b.HasVideo || a.HasAudio != b.HasAudio
}
