package flvrepair

import "github.com/jmylchreest/streamvault/internal/flv"

// ScriptFilter drops any onMetaData script tag beyond the first one seen in
// a file — some source streams inject periodic metadata updates that would
// otherwise corrupt the keyframe index the script modifier maintains.
type ScriptFilter struct {
	seenScript bool
}

// NewScriptFilter constructs a ScriptFilter stage.
func NewScriptFilter() *ScriptFilter { return &ScriptFilter{} }

func (s *ScriptFilter) Name() string { return "ScriptFilter" }

func (s *ScriptFilter) Process(item Data, emit func(Data) error) error {
	switch item.Kind {
	case flv.DataKindHeader, flv.DataKindEndOfSequence:
		s.seenScript = false
		return emit(item)
	}

	if item.Kind == flv.DataKindTag && flv.IsScriptTag(item.Tag) {
		if s.seenScript {
			return nil
		}
		s.seenScript = true
	}
	return emit(item)
}

func (s *ScriptFilter) Finish(emit func(Data) error) error { return nil }
