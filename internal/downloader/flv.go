// Package downloader implements the FLV-over-HTTP acquisition path: a
// plain HTTP GET (no Range header is sent; each reconnect requests the
// whole resource again) feeding a streaming FLV decoder into the repair
// pipeline, with source fail-over and an optional response-metadata
// cache for conditional revalidation on reconnect.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmylchreest/streamvault/internal/cache"
	"github.com/jmylchreest/streamvault/internal/flv"
	"github.com/jmylchreest/streamvault/internal/pipeline/core"
	"github.com/jmylchreest/streamvault/internal/source"
	"github.com/jmylchreest/streamvault/pkg/httpclient"
)

// ErrNoSource is returned when the source manager has no active source to
// attempt a connection against.
var ErrNoSource = core.ErrNoActiveSources

// Sink receives decoded FLV items as they arrive, in order. It is typically
// a flvrepair chain's Feed method.
type Sink func(flv.Data) error

// Config tunes the downloader's reconnect policy.
type Config struct {
	// MaxReconnectAttempts bounds how many times Run fails over to another
	// source before giving up. Zero means a single attempt, no retry.
	MaxReconnectAttempts int
	// ReconnectDelay is slept between a failed attempt and the next.
	ReconnectDelay time.Duration
}

// DefaultConfig returns sane defaults for the outer reconnect loop: up to
// five reconnects after the first attempt (six attempts in all) across the
// source list, with a two second backoff between them.
func DefaultConfig() Config {
	return Config{MaxReconnectAttempts: 5, ReconnectDelay: 2 * time.Second}
}

// Downloader drives one recording: selecting a source, streaming its body
// through an FLV decoder into sink, and failing over to the next source on
// a connection error until the reconnect budget is exhausted.
type Downloader struct {
	client  *httpclient.Client
	sources *source.Manager
	cache   cache.Provider // optional; nil disables conditional revalidation
	cfg     Config
	logger  *slog.Logger
}

// New constructs a Downloader. cacheProvider may be nil.
func New(client *httpclient.Client, sources *source.Manager, cacheProvider cache.Provider, cfg Config, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{client: client, sources: sources, cache: cacheProvider, cfg: cfg, logger: logger}
}

// Stats summarizes one Run invocation for the caller to persist.
type Stats struct {
	SourceURL string
	Bytes     int64
	Started   time.Time
	Ended     time.Time
}

// Run streams decoded FLV items into sink until the body ends cleanly, the
// context is cancelled, or the reconnect budget is exhausted. It returns the
// cumulative stats across every attempt made.
func (d *Downloader) Run(ctx context.Context, sink Sink) (Stats, error) {
	stats := Stats{Started: time.Now()}

	attempt := 0
	for {
		if ctx.Err() != nil {
			stats.Ended = time.Now()
			return stats, core.ErrShutdown
		}

		src, ok := d.sources.Select()
		if !ok {
			stats.Ended = time.Now()
			return stats, ErrNoSource
		}
		stats.SourceURL = src.URL

		n, err := d.attempt(ctx, src.URL, sink)
		stats.Bytes += n

		if err == nil {
			stats.Ended = time.Now()
			return stats, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			stats.Ended = time.Now()
			return stats, core.ErrShutdown
		}

		attempt++
		d.logger.Warn("flv downloader attempt failed",
			slog.String("source", src.URL),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))

		if attempt > d.cfg.MaxReconnectAttempts {
			stats.Ended = time.Now()
			return stats, fmt.Errorf("downloader: exhausted %d reconnect attempts: %w", d.cfg.MaxReconnectAttempts, err)
		}

		select {
		case <-ctx.Done():
			stats.Ended = time.Now()
			return stats, core.ErrShutdown
		case <-time.After(d.cfg.ReconnectDelay):
		}
	}
}

// attempt performs a single connect-decode-feed pass against url, returning
// the number of body bytes consumed before failure or clean EOF.
func (d *Downloader) attempt(ctx context.Context, url string, sink Sink) (int64, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	if etag, ok := d.cachedETag(url); ok {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := d.client.DoWithContext(ctx, req)
	if err != nil {
		d.sources.RecordFailure(url, 0, time.Since(start))
		return 0, fmt.Errorf("connecting to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		d.sources.RecordFailure(url, resp.StatusCode, time.Since(start))
		return 0, fmt.Errorf("source %s returned status %d", url, resp.StatusCode)
	}
	d.cacheMetadata(url, resp)

	counting := &countingReader{r: resp.Body}
	dec := flv.NewDecoder(counting)

	header, err := dec.DecodeHeader()
	if err != nil {
		d.sources.RecordFailure(url, 0, time.Since(start))
		return counting.n, fmt.Errorf("decoding flv header from %s: %w", url, err)
	}
	if err := sink(flv.NewHeaderData(header)); err != nil {
		return counting.n, err
	}

	for {
		if ctx.Err() != nil {
			return counting.n, ctx.Err()
		}
		tag, err := dec.DecodeTag()
		if err != nil {
			if isCleanEOF(err) {
				d.sources.RecordSuccess(url, time.Since(start))
				return counting.n, nil
			}
			d.sources.RecordFailure(url, 0, time.Since(start))
			return counting.n, fmt.Errorf("decoding flv tag from %s: %w", url, err)
		}
		if err := sink(flv.NewTagData(tag)); err != nil {
			return counting.n, err
		}
	}
}

func (d *Downloader) cachedETag(url string) (string, bool) {
	if d.cache == nil {
		return "", false
	}
	_, meta, status := d.cache.Get(url)
	if status == cache.Miss || meta.ETag == "" {
		return "", false
	}
	return meta.ETag, true
}

func (d *Downloader) cacheMetadata(url string, resp *http.Response) {
	if d.cache == nil {
		return
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		return
	}
	_ = d.cache.Put(url, nil, cache.Metadata{ETag: etag, CachedAt: time.Now()})
}

// isCleanEOF reports whether err signals a tag-boundary-aligned end of
// stream. io.ErrUnexpectedEOF (a drop mid-tag) is treated as a connection
// failure instead, so the outer loop reconnects rather than silently
// truncating the recording.
func isCleanEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

// countingReader wraps an io.Reader to track total bytes read, since the
// decoder consumes through an unexported cursor with no byte-count accessor.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
