package acquire

import (
	"context"
	"sync"

	"github.com/jmylchreest/streamvault/internal/hls/playlist"
)

// SchedulerConfig tunes the worker pool.
type SchedulerConfig struct {
	// Concurrency is the number of worker goroutines pulling jobs.
	Concurrency int
	// QueueDepth bounds the job channel, providing backpressure against the
	// playlist engine when workers fall behind.
	QueueDepth int
}

// DefaultSchedulerConfig uses a small, fixed worker count.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{Concurrency: 4, QueueDepth: 32}
}

// Scheduler fans a stream of ScheduledSegmentJobs out to a bounded pool of
// worker goroutines, each invoking the fetcher and routing its completion
// to a single results channel tagged with the originating job.
type Scheduler struct {
	fetcher *Fetcher
	cfg     SchedulerConfig
}

// NewScheduler constructs a scheduler backed by fetcher.
func NewScheduler(fetcher *Fetcher, cfg SchedulerConfig) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = cfg.Concurrency
	}
	return &Scheduler{fetcher: fetcher, cfg: cfg}
}

// Run reads jobs from the in channel until it closes or ctx is cancelled,
// dispatches them to cfg.Concurrency workers, and emits one FetchResult per
// job on the returned channel. The returned channel closes once every
// worker has drained and exited.
func (s *Scheduler) Run(ctx context.Context, in <-chan playlist.ScheduledSegmentJob) <-chan FetchResult {
	out := make(chan FetchResult, s.cfg.QueueDepth)

	var wg sync.WaitGroup
	wg.Add(s.cfg.Concurrency)
	for i := 0; i < s.cfg.Concurrency; i++ {
		go func() {
			defer wg.Done()
			s.worker(ctx, in, out)
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

func (s *Scheduler) worker(ctx context.Context, in <-chan playlist.ScheduledSegmentJob, out chan<- FetchResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-in:
			if !ok {
				return
			}
			bytes, err := s.fetcher.Fetch(ctx, job)
			result := FetchResult{Job: job, Bytes: bytes, Err: err}
			select {
			case out <- result:
			case <-ctx.Done():
				return
			}
		}
	}
}
