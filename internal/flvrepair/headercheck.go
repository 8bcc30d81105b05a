package flvrepair

import "github.com/jmylchreest/streamvault/internal/flv"

// HeaderCheck ensures the first item the downstream pipeline sees is a
// Header. If a bare tag arrives first, a synthetic header is prepended with
// its audio/video flags derived from that tag's type.
type HeaderCheck struct {
	seenFirst bool
}

// NewHeaderCheck constructs a HeaderCheck stage.
func NewHeaderCheck() *HeaderCheck { return &HeaderCheck{} }

func (h *HeaderCheck) Name() string { return "HeaderCheck" }

func (h *HeaderCheck) Process(item Data, emit func(Data) error) error {
	if h.seenFirst {
		return emit(item)
	}
	h.seenFirst = true

	if item.Kind == flv.DataKindHeader {
		return emit(item)
	}

	synthetic := flv.Header{Version: 1}
	if item.Kind == flv.DataKindTag {
		switch item.Tag.Type {
		case flv.TagTypeAudio:
			synthetic.HasAudio = true
		case flv.TagTypeVideo:
			synthetic.HasVideo = true
		}
	}
	if err := emit(flv.NewHeaderData(synthetic)); err != nil {
		return err
	}
	return emit(item)
}

func (h *HeaderCheck) Finish(emit func(Data) error) error { return nil }
