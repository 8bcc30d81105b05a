package model

import "github.com/jmylchreest/streamvault/internal/ts"

// HasPSITables reports whether a TS segment's bytes carry a PAT (and
// therefore plausibly a complete program table set). Non-TS data, or a
// segment too short to contain a full packet, reports false.
func (d Data) HasPSITables() bool {
	if d.Kind != SegmentTypeTS {
		return false
	}
	found := false
	_ = ts.NewParser().ParsePackets(d.Bytes, ts.Callbacks{
		OnPAT: func(ts.PAT) error {
			found = true
			return nil
		},
	})
	return found
}

// StreamProfile derives a StreamProfile from a TS segment's PMT, if any is
// present. The second return value is false when no PMT could be found
// (e.g. the segment carries only a PAT, or isn't a TS segment at all).
func (d Data) StreamProfile() (ts.StreamProfile, bool) {
	if d.Kind != SegmentTypeTS {
		return ts.StreamProfile{}, false
	}
	var profile ts.StreamProfile
	found := false
	_ = ts.NewParser().ParsePackets(d.Bytes, ts.Callbacks{
		OnPMT: func(pmt ts.PMT) error {
			p, err := ts.DeriveStreamProfile(pmt)
			if err != nil {
				return nil
			}
			profile = p
			found = true
			return nil
		},
	})
	return profile, found
}

// StreamInfo parses every PAT/PMT pair in a TS segment into a StreamInfo,
// the richer per-program view segment-split change detection compares
// across segments. The second return value is false when the segment
// carries no PAT.
func (d Data) StreamInfo() (ts.StreamInfo, bool) {
	if d.Kind != SegmentTypeTS {
		return ts.StreamInfo{}, false
	}
	var info ts.StreamInfo
	haveTransportStreamID := false
	_ = ts.NewParser().ParsePackets(d.Bytes, ts.Callbacks{
		OnPAT: func(pat ts.PAT) error {
			if !haveTransportStreamID {
				info.TransportStreamID = pat.TransportStreamID
				haveTransportStreamID = true
			}
			info.ProgramCount = len(pat.Programs())
			return nil
		},
		OnPMT: func(pmt ts.PMT) error {
			prog, err := ts.NewProgramStreamInfo(pmt)
			if err != nil {
				return nil
			}
			info.Programs = append(info.Programs, prog)
			return nil
		},
	})
	return info, haveTransportStreamID
}
