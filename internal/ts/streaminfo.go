package ts

// ProgramStreamInfo summarizes one program's PMT: its PCR PID and the
// elementary streams grouped by media kind, the shape segment-split change
// detection compares across segments.
type ProgramStreamInfo struct {
	ProgramNumber uint16
	PCRPID        uint16
	VideoStreams  []PMTStream
	AudioStreams  []PMTStream
	OtherStreams  []PMTStream
}

// StreamInfo aggregates every program discovered in a transport stream's
// PAT/PMT tables.
type StreamInfo struct {
	TransportStreamID uint16
	ProgramCount      int
	Programs          []ProgramStreamInfo
}

func classifyStream(s PMTStream) (isVideo, isAudio bool) {
	switch s.StreamType {
	case StreamTypeH264, StreamTypeH265:
		return true, false
	case StreamTypeAAC, StreamTypeAACLATM, StreamTypeAC3, StreamTypeEAC3, StreamTypeMPEGAudio:
		return false, true
	default:
		return false, false
	}
}

// NewProgramStreamInfo groups a PMT's elementary streams by media kind.
func NewProgramStreamInfo(pmt PMT) (ProgramStreamInfo, error) {
	streams, err := pmt.Streams()
	if err != nil {
		return ProgramStreamInfo{}, err
	}
	info := ProgramStreamInfo{ProgramNumber: pmt.ProgramNumber, PCRPID: pmt.PCRPID}
	for _, s := range streams {
		switch isVideo, isAudio := classifyStream(s); {
		case isVideo:
			info.VideoStreams = append(info.VideoStreams, s)
		case isAudio:
			info.AudioStreams = append(info.AudioStreams, s)
		default:
			info.OtherStreams = append(info.OtherStreams, s)
		}
	}
	return info, nil
}
