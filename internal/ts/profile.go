package ts

// StreamProfile summarizes the codecs and resolution present in a program,
// derived from its PMT's elementary streams. Resolution is left zero when it
// cannot be decoded from the PMT alone (it generally requires parsing the
// video sequence header, which is the video config codec's job).
type StreamProfile struct {
	HasVideo bool
	HasAudio bool
	HasH264  bool
	HasH265  bool
	HasAAC   bool
	HasAC3   bool
	Width    int
	Height   int
}

// Summary returns a short human-readable description, e.g. "h264+aac".
func (p StreamProfile) Summary() string {
	var parts []string
	if p.HasH264 {
		parts = append(parts, "h264")
	}
	if p.HasH265 {
		parts = append(parts, "h265")
	}
	if p.HasAAC {
		parts = append(parts, "aac")
	}
	if p.HasAC3 {
		parts = append(parts, "ac3")
	}
	if len(parts) == 0 {
		return "unknown"
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += "+" + p
	}
	return out
}

// DeriveStreamProfile builds a StreamProfile from a PMT's elementary streams.
func DeriveStreamProfile(pmt PMT) (StreamProfile, error) {
	streams, err := pmt.Streams()
	if err != nil {
		return StreamProfile{}, err
	}
	var profile StreamProfile
	for _, s := range streams {
		switch s.StreamType {
		case StreamTypeH264:
			profile.HasVideo = true
			profile.HasH264 = true
		case StreamTypeH265:
			profile.HasVideo = true
			profile.HasH265 = true
		case StreamTypeAAC, StreamTypeAACLATM:
			profile.HasAudio = true
			profile.HasAAC = true
		case StreamTypeAC3, StreamTypeEAC3:
			profile.HasAudio = true
			profile.HasAC3 = true
		case StreamTypeMPEGAudio:
			profile.HasAudio = true
		}
	}
	return profile, nil
}
