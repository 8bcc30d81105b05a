package hlsrepair

import (
	"github.com/jmylchreest/streamvault/internal/hls/model"
	"github.com/jmylchreest/streamvault/internal/pipeline/core"
)

// NewChain wires the HLS repair stages in order: Defragment gates output on
// structurally complete segments, then SegmentSplit watches the gated
// stream for changes that require starting a new output file.
func NewChain() *core.Chain[model.Data] {
	return core.NewChain[model.Data](
		NewDefragment(),
		NewSegmentSplit(),
	)
}
