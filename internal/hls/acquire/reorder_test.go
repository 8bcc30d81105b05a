package acquire

import (
	"context"
	"testing"
	"time"

	"github.com/jmylchreest/streamvault/internal/hls/playlist"
	"github.com/stretchr/testify/require"
)

func job(seq uint64) FetchResult {
	return FetchResult{Job: playlist.ScheduledSegmentJob{MediaSequence: seq, Duration: time.Second}, Bytes: []byte{byte(seq)}}
}

func TestReorderEmitsStrictlyIncreasingSequence(t *testing.T) {
	cfg := DefaultReorderConfig()
	r := NewReorder(cfg, 0)

	in := make(chan FetchResult, 8)
	in <- job(2)
	in <- job(0)
	in <- job(1)
	close(in)

	var out []uint64
	err := r.Run(context.Background(), in, func(res FetchResult) error {
		out = append(out, res.Job.MediaSequence)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1, 2}, out)
}

func TestReorderSkipsGapAfterThreshold(t *testing.T) {
	cfg := DefaultReorderConfig()
	cfg.GapSkipThresholdSegments = 2
	r := NewReorder(cfg, 0)

	in := make(chan FetchResult, 8)
	// seq 0 never arrives; once 2 newer segments (1, 2) have piled up, 0 is
	// declared lost and emission resumes from 1.
	in <- job(1)
	in <- job(2)
	close(in)

	var out []uint64
	err := r.Run(context.Background(), in, func(res FetchResult) error {
		out = append(out, res.Job.MediaSequence)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, out)
}

func TestReorderDeduplicatesRepeatedSequence(t *testing.T) {
	r := NewReorder(DefaultReorderConfig(), 0)

	in := make(chan FetchResult, 8)
	in <- job(0)
	in <- job(0)
	in <- job(1)
	close(in)

	var out []uint64
	err := r.Run(context.Background(), in, func(res FetchResult) error {
		out = append(out, res.Job.MediaSequence)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1}, out)
}

func TestReorderStallTimeout(t *testing.T) {
	cfg := DefaultReorderConfig()
	cfg.MaxOverallStallDuration = 20 * time.Millisecond
	r := NewReorder(cfg, 0)

	in := make(chan FetchResult)
	err := r.Run(context.Background(), in, func(res FetchResult) error { return nil })
	require.ErrorIs(t, err, ErrStalled)
}
