package acquire

import (
	"context"
	"time"

	"github.com/jmylchreest/streamvault/internal/pipeline/core"
)

// ErrStalled is returned by Reorder.Run when no segment has been emitted
// for longer than the configured overall stall duration. It is the
// shared core.ErrStall sentinel so callers across the FLV and HLS paths
// can check for a stall with a single errors.Is.
var ErrStalled = core.ErrStall

// ReorderConfig bounds the reorder buffer and names the thresholds for
// declaring a missing segment lost rather than waiting for it forever.
type ReorderConfig struct {
	MaxBufferCount          int
	MaxBufferDuration       time.Duration
	GapSkipThresholdSegments int
	MaxOverallStallDuration time.Duration
}

// DefaultReorderConfig bounds the reorder buffer to a handful of segments
// and a short stall before giving up and skipping the gap.
func DefaultReorderConfig() ReorderConfig {
	return ReorderConfig{
		MaxBufferCount:           50,
		MaxBufferDuration:        60 * time.Second,
		GapSkipThresholdSegments: 5,
		MaxOverallStallDuration:  30 * time.Second,
	}
}

// Reorder buffers out-of-order FetchResults and emits them in strictly
// increasing media-sequence-number order, starting at startSeq (normally
// the playlist's #EXT-X-MEDIA-SEQUENCE value at the time acquisition
// began).
type Reorder struct {
	cfg ReorderConfig

	nextSeq     uint64
	buffer      map[uint64]FetchResult
	bufferedDur time.Duration
}

// NewReorder constructs a reorder stage expecting startSeq next.
func NewReorder(cfg ReorderConfig, startSeq uint64) *Reorder {
	return &Reorder{cfg: cfg, nextSeq: startSeq, buffer: make(map[uint64]FetchResult)}
}

// Run drains in, emitting results in media-sequence order, until in closes,
// ctx is cancelled, or the stall timeout fires.
func (r *Reorder) Run(ctx context.Context, in <-chan FetchResult, emit func(FetchResult) error) error {
	stallTimer := time.NewTimer(r.cfg.MaxOverallStallDuration)
	defer stallTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-stallTimer.C:
			return ErrStalled

		case result, ok := <-in:
			if !ok {
				return r.drainRemaining(emit)
			}

			r.accept(result)
			emitted, err := r.drainReady(emit)
			if err != nil {
				return err
			}
			if emitted {
				if !stallTimer.Stop() {
					<-stallTimer.C
				}
				stallTimer.Reset(r.cfg.MaxOverallStallDuration)
			}
		}
	}
}

func (r *Reorder) accept(result FetchResult) {
	if result.Job.MediaSequence < r.nextSeq {
		return
	}
	if _, exists := r.buffer[result.Job.MediaSequence]; exists {
		return
	}
	r.buffer[result.Job.MediaSequence] = result
	r.bufferedDur += result.Job.Duration
}

// drainReady emits every contiguous result starting at nextSeq, then skips
// forward over a gap once skipGap declares it lost.
func (r *Reorder) drainReady(emit func(FetchResult) error) (bool, error) {
	emittedAny := false
	for {
		for {
			result, ok := r.buffer[r.nextSeq]
			if !ok {
				break
			}
			delete(r.buffer, r.nextSeq)
			r.bufferedDur -= result.Job.Duration
			if err := emit(result); err != nil {
				return emittedAny, err
			}
			emittedAny = true
			r.nextSeq++
		}

		if !r.skipGap() {
			return emittedAny, nil
		}
	}
}

func (r *Reorder) bufferOverflowing() bool {
	return len(r.buffer) > r.cfg.MaxBufferCount || r.bufferedDur > r.cfg.MaxBufferDuration
}

// skipGap declares r.nextSeq lost if at least GapSkipThresholdSegments newer
// segments have already accumulated in the buffer, or if the buffer has
// grown past its count/duration bounds, advancing nextSeq by one so the
// next drainReady pass can make progress again.
func (r *Reorder) skipGap() bool {
	newer := 0
	for seq := range r.buffer {
		if seq > r.nextSeq {
			newer++
		}
	}
	if newer == 0 {
		return false
	}
	if newer < r.cfg.GapSkipThresholdSegments && !r.bufferOverflowing() {
		return false
	}
	r.nextSeq++
	return true
}

// drainRemaining flushes everything left in the buffer once the input
// channel has closed: no more completions are coming, so any gap at
// nextSeq is forced lost rather than waiting on the configured threshold.
func (r *Reorder) drainRemaining(emit func(FetchResult) error) error {
	for len(r.buffer) > 0 {
		result, ok := r.buffer[r.nextSeq]
		if ok {
			delete(r.buffer, r.nextSeq)
			r.bufferedDur -= result.Job.Duration
			if err := emit(result); err != nil {
				return err
			}
			r.nextSeq++
			continue
		}
		r.nextSeq++
	}
	return nil
}
