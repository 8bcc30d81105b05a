// Package flvrepair implements the FLV stream-repair operator chain: a
// sequence of core.Processor[flv.Data] stages that buffer, reorder, and
// normalize tags decoded from a live FLV source before they reach the
// writer task.
package flvrepair

import (
	"github.com/jmylchreest/streamvault/internal/flv"
	"github.com/jmylchreest/streamvault/internal/pipeline/core"
)

// Data is the item type flowing through the repair chain: an FLV header,
// tag, or split marker.
type Data = flv.Data

// TimingMode selects how TimeConsistency computes the offset applied at the
// start of a new segment.
type TimingMode int

const (
	// TimingModeContinuous carries the previous segment's final timestamp
	// forward, so the new segment's tags continue the existing timeline.
	TimingModeContinuous TimingMode = iota
	// TimingModeReset restarts the timeline at zero for every new segment.
	TimingModeReset
)

// RepairMode selects how TimingRepair reacts to an out-of-order or
// excessively large timestamp jump within a segment.
type RepairMode int

const (
	// RepairModeRelaxed smooths anomalies by clamping to the last known
	// timestamp rather than failing the recording.
	RepairModeRelaxed RepairMode = iota
	// RepairModeStrict treats an anomaly as a hard pipeline error.
	RepairModeStrict
)

// Config collects every tunable the repair chain needs.
type Config struct {
	// DefragmentMinBufferTS is how many media tags Defragment accumulates
	// before starting to forward output.
	DefragmentMinBufferTS int

	// MaxSizeBytes and MaxDurationMs bound each output file; zero disables
	// the corresponding check. SplitAtKeyframesOnly defers a triggered
	// split until the next video keyframe rather than cutting mid-GOP.
	MaxSizeBytes          int64
	MaxDurationMs         int64
	SplitAtKeyframesOnly bool

	TimingMode TimingMode
	RepairMode RepairMode

	// MaxTimestampJumpMs is the largest forward jump TimingRepair tolerates
	// before treating it as an anomaly.
	MaxTimestampJumpMs int64

	// ExpectedKeyframeIntervalMs sizes ScriptKeyframesFiller's placeholder
	// keyframe index arrays: capacity = MaxDurationMs / interval, plus slack.
	ExpectedKeyframeIntervalMs int64
}

// DefaultConfig returns the documented defaults for every tunable.
func DefaultConfig() Config {
	return Config{
		DefragmentMinBufferTS:      5,
		SplitAtKeyframesOnly:       true,
		TimingMode:                 TimingModeContinuous,
		RepairMode:                 RepairModeRelaxed,
		MaxTimestampJumpMs:         5000,
		ExpectedKeyframeIntervalMs: 2000,
	}
}

// NewChain wires the nine repair operators into their spec-mandated order:
// Defragment, HeaderCheck, Split, GopSort, TimeConsistency (pass 1),
// TimingRepair, Limit, TimeConsistency (pass 2), ScriptKeyframesFiller,
// ScriptFilter.
func NewChain(cfg Config) *core.Chain[Data] {
	return core.NewChain[Data](
		NewDefragment(cfg.DefragmentMinBufferTS),
		NewHeaderCheck(),
		NewSplit(),
		NewGopSort(),
		NewTimeConsistency(cfg.TimingMode),
		NewTimingRepair(cfg.RepairMode, cfg.MaxTimestampJumpMs),
		NewLimit(cfg.MaxSizeBytes, cfg.MaxDurationMs, cfg.SplitAtKeyframesOnly),
		NewTimeConsistency(cfg.TimingMode),
		NewScriptKeyframesFiller(cfg.MaxDurationMs, cfg.ExpectedKeyframeIntervalMs),
		NewScriptFilter(),
	)
}
