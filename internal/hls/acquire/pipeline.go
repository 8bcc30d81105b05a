package acquire

import (
	"context"
	"fmt"

	"github.com/jmylchreest/streamvault/internal/hls/playlist"
)

// PipelineConfig bundles the scheduler and reorder tuning for a full
// acquisition run.
type PipelineConfig struct {
	Scheduler SchedulerConfig
	Reorder   ReorderConfig
}

// DefaultPipelineConfig matches the component defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Scheduler: DefaultSchedulerConfig(),
		Reorder:   DefaultReorderConfig(),
	}
}

// Pipeline composes a playlist engine, a fetch scheduler, and a reorder
// stage into one live-acquisition run: poll the playlist, fan fetches out
// to a worker pool, fan results back in in strictly increasing
// media-sequence order.
type Pipeline struct {
	engine    *playlist.Engine
	scheduler *Scheduler
	cfg       PipelineConfig
}

// NewPipeline constructs a pipeline from an already-configured playlist
// engine and segment fetcher.
func NewPipeline(engine *playlist.Engine, fetcher *Fetcher, cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		engine:    engine,
		scheduler: NewScheduler(fetcher, cfg.Scheduler),
		cfg:       cfg,
	}
}

// Run drives acquisition of playlistURL until ctx is cancelled, the
// playlist reaches #EXT-X-ENDLIST, or the reorder stage stalls. Segments
// are delivered to emit in strictly increasing media-sequence order.
//
// The first poll happens inline so the reorder stage can be seeded with
// the playlist's actual starting #EXT-X-MEDIA-SEQUENCE value rather than
// guessing it from whichever fetch happens to complete first; the
// playlist engine then takes over polling for everything after.
func (p *Pipeline) Run(ctx context.Context, playlistURL string, emit func(FetchResult) error) error {
	initialJobs, _, err := p.engine.Poll(ctx, playlistURL)
	if err != nil {
		return fmt.Errorf("polling initial playlist: %w", err)
	}

	jobs := make(chan playlist.ScheduledSegmentJob, p.cfg.Scheduler.QueueDepth)
	engineErr := make(chan error, 1)

	go func() {
		defer close(jobs)
		for _, job := range initialJobs {
			select {
			case jobs <- job:
			case <-ctx.Done():
				engineErr <- ctx.Err()
				return
			}
		}
		engineErr <- p.engine.Run(ctx, playlistURL, func(job playlist.ScheduledSegmentJob) error {
			select {
			case jobs <- job:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	results := p.scheduler.Run(ctx, jobs)
	reorder := NewReorder(p.cfg.Reorder, startSequenceOf(initialJobs))
	reorderErr := reorder.Run(ctx, results, emit)

	if runErr := <-engineErr; runErr != nil && reorderErr == nil {
		return runErr
	}
	return reorderErr
}

func startSequenceOf(jobs []playlist.ScheduledSegmentJob) uint64 {
	if len(jobs) == 0 {
		return 0
	}
	start := jobs[0].MediaSequence
	for _, job := range jobs[1:] {
		if job.MediaSequence < start {
			start = job.MediaSequence
		}
	}
	return start
}
