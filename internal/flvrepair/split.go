package flvrepair

import (
	"bytes"

	"github.com/jmylchreest/streamvault/internal/flv"
)

// Split inserts an EndOfSequence marker before items that must begin a new
// output file: a detected change in the video sequence header (codec or
// parameter change) or an externally triggered split request.
type Split struct {
	lastVideoSeqHeader []byte
	triggered          bool
}

// NewSplit constructs a Split stage.
func NewSplit() *Split { return &Split{} }

func (s *Split) Name() string { return "Split" }

// TriggerSplit requests that the next item processed be preceded by an
// EndOfSequence marker. Used for externally triggered splits (e.g. a
// scheduled rotation) that don't originate from a stream-content change.
func (s *Split) TriggerSplit() { s.triggered = true }

func (s *Split) Process(item Data, emit func(Data) error) error {
	needsSplit := s.triggered
	s.triggered = false

	if item.Kind == flv.DataKindTag && flv.IsVideoSequenceHeader(item.Tag) {
		if s.lastVideoSeqHeader != nil && !bytes.Equal(s.lastVideoSeqHeader, item.Tag.Data) {
			needsSplit = true
		}
		s.lastVideoSeqHeader = append([]byte(nil), item.Tag.Data...)
	}

	if needsSplit {
		if err := emit(flv.EndOfSequence); err != nil {
			return err
		}
	}
	return emit(item)
}

func (s *Split) Finish(emit func(Data) error) error { return nil }
