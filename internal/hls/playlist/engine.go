package playlist

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// ScheduledSegmentJob is everything the acquisition scheduler needs to
// fetch, decrypt, and place one segment.
type ScheduledSegmentJob struct {
	URI           string
	BaseURL       string
	MediaSequence uint64
	Duration      time.Duration
	Key           *Key
	ByteRange     *ByteRange
	Discontinuity bool
	IsInitSegment bool
}

// Fetcher retrieves a playlist body. httpclient.Client satisfies this
// through a thin adapter that reads the response body into memory.
type Fetcher interface {
	FetchPlaylist(ctx context.Context, playlistURL string) ([]byte, error)
}

// EngineConfig tunes the live-refresh loop.
type EngineConfig struct {
	MinRefreshInterval time.Duration
	RetryDelay         time.Duration
	MaxRefreshRetries  int
	SeenSetCapacity    int
}

// DefaultEngineConfig matches the refresh defaults described for the
// playlist engine: a conservative floor on polling frequency and a small
// bounded retry budget before giving up on a dead playlist.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MinRefreshInterval: 2 * time.Second,
		RetryDelay:         1 * time.Second,
		MaxRefreshRetries:  5,
		SeenSetCapacity:    30,
	}
}

// Engine polls a media playlist URL and turns newly discovered segments
// into ScheduledSegmentJobs.
type Engine struct {
	fetcher Fetcher
	cfg     EngineConfig
	seen    *seenSet
	logger  *slog.Logger

	lastBody           []byte
	lastEndList        bool
	lastTargetDuration time.Duration
}

// NewEngine constructs a playlist engine. logger may be nil, in which case
// slog.Default() is used.
func NewEngine(fetcher Fetcher, cfg EngineConfig, logger *slog.Logger) *Engine {
	if cfg.SeenSetCapacity == 0 {
		cfg.SeenSetCapacity = 30
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		fetcher: fetcher,
		cfg:     cfg,
		seen:    newSeenSet(cfg.SeenSetCapacity),
		logger:  logger,
	}
}

// Poll fetches and parses the playlist once. unchanged reports whether the
// body was byte-identical to the previous fetch, in which case parsing (and
// job emission) was skipped entirely.
func (e *Engine) Poll(ctx context.Context, playlistURL string) (jobs []ScheduledSegmentJob, unchanged bool, err error) {
	body, err := e.fetcher.FetchPlaylist(ctx, playlistURL)
	if err != nil {
		return nil, false, fmt.Errorf("fetching playlist: %w", err)
	}

	if e.lastBody != nil && len(body) == len(e.lastBody) && bytes.Equal(body, e.lastBody) {
		return nil, true, nil
	}
	e.lastBody = body

	parsed, err := Parse(bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("parsing playlist: %w", err)
	}
	if parsed.Kind != KindMedia {
		return nil, false, fmt.Errorf("expected a media playlist, got a master playlist")
	}
	e.lastEndList = parsed.Media.EndList
	e.lastTargetDuration = parsed.Media.TargetDuration

	base, err := url.Parse(playlistURL)
	if err != nil {
		return nil, false, fmt.Errorf("parsing playlist base url: %w", err)
	}

	for _, seg := range parsed.Media.Segments {
		abs := resolveURI(base, seg.URI)
		if !e.seen.addIfNew(abs) {
			continue
		}
		if seg.IsAd && !seg.IsInitSegment {
			e.logger.Debug("skipping ad segment", "uri", abs)
			continue
		}
		jobs = append(jobs, ScheduledSegmentJob{
			URI:           abs,
			BaseURL:       base.String(),
			MediaSequence: seg.MediaSequence,
			Duration:      seg.Duration,
			Key:           seg.Key,
			ByteRange:     seg.ByteRange,
			Discontinuity: seg.Discontinuity,
			IsInitSegment: seg.IsInitSegment,
		})
	}

	return jobs, false, nil
}

func resolveURI(base *url.URL, ref string) string {
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(refURL).String()
}

// refreshInterval computes the polling interval: the configured minimum,
// or half the playlist's target duration, whichever is larger.
func (e *Engine) refreshInterval(targetDuration time.Duration) time.Duration {
	half := targetDuration / 2
	if half > e.cfg.MinRefreshInterval {
		return half
	}
	return e.cfg.MinRefreshInterval
}

// Run polls playlistURL until ctx is cancelled, the playlist reaches
// #EXT-X-ENDLIST, or the retry budget on consecutive fetch failures is
// exhausted. Each newly scheduled job is delivered to emit in discovery
// order.
func (e *Engine) Run(ctx context.Context, playlistURL string, emit func(ScheduledSegmentJob) error) error {
	retries := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		jobs, unchanged, err := e.Poll(ctx, playlistURL)
		if err != nil {
			retries++
			if retries > e.cfg.MaxRefreshRetries {
				return fmt.Errorf("giving up after %d refresh retries: %w", retries-1, err)
			}
			if sleepErr := sleepCtx(ctx, e.cfg.RetryDelay*time.Duration(retries)); sleepErr != nil {
				return sleepErr
			}
			continue
		}
		retries = 0

		if !unchanged {
			for _, job := range jobs {
				if err := emit(job); err != nil {
					return err
				}
			}
		}

		if e.lastEndList {
			return nil
		}

		if sleepErr := sleepCtx(ctx, e.refreshInterval(e.lastTargetDuration)); sleepErr != nil {
			return sleepErr
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
