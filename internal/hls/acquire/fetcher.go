// Package acquire implements the concurrent side of HLS ingestion: a
// bounded worker pool that fetches scheduled segment jobs, decrypts them,
// and a reorder stage that turns the workers' out-of-order completions
// back into a strictly increasing media-sequence stream.
package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jmylchreest/streamvault/internal/hls/decrypt"
	"github.com/jmylchreest/streamvault/internal/hls/playlist"
	"github.com/jmylchreest/streamvault/pkg/httpclient"
)

// FetchResult is a completed (or failed) segment fetch, tagged with its
// originating job so the reorder stage can place it.
type FetchResult struct {
	Job   playlist.ScheduledSegmentJob
	Bytes []byte
	Err   error
}

// FetcherConfig tunes per-segment retry behaviour and the raw-bytes cache
// that lets a retry reuse a successful-but-later-discarded fetch.
type FetcherConfig struct {
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	RawCacheTTL  time.Duration
}

// DefaultFetcherConfig allows up to MaxRetries retries after the first
// attempt; retry n (counting from 1) waits BaseDelay × 2^(n-1), capped at
// MaxDelay.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		MaxRetries:  3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		RawCacheTTL: 10 * time.Second,
	}
}

type rawCacheEntry struct {
	bytes     []byte
	expiresAt time.Time
}

// Fetcher resolves a job's decryption key (if any), fetches its bytes with
// a range request when the job carries a byte range, retries transient
// HTTP errors with exponential backoff, and decrypts the result.
type Fetcher struct {
	client   *httpclient.Client
	keyCache *decrypt.KeyCache
	cfg      FetcherConfig

	mu       sync.Mutex
	rawCache map[string]rawCacheEntry
}

// NewFetcher constructs a segment fetcher. keyCache may be nil for
// playlists that never carry #EXT-X-KEY.
func NewFetcher(client *httpclient.Client, keyCache *decrypt.KeyCache, cfg FetcherConfig) *Fetcher {
	return &Fetcher{
		client:   client,
		keyCache: keyCache,
		cfg:      cfg,
		rawCache: make(map[string]rawCacheEntry),
	}
}

// Fetch retrieves, and if necessary decrypts, one scheduled segment.
func (f *Fetcher) Fetch(ctx context.Context, job playlist.ScheduledSegmentJob) ([]byte, error) {
	raw, err := f.fetchRawWithRetry(ctx, job)
	if err != nil {
		return nil, err
	}

	if job.Key == nil {
		return raw, nil
	}

	keyBytes, err := f.resolveKey(ctx, *job.Key)
	if err != nil {
		return nil, fmt.Errorf("resolving decryption key: %w", err)
	}

	iv := resolveIV(*job.Key, job.MediaSequence)
	plaintext, err := decrypt.CBC(keyBytes, iv, raw)
	if err != nil {
		return nil, fmt.Errorf("decrypting segment %s: %w", job.URI, err)
	}
	return plaintext, nil
}

func (f *Fetcher) resolveKey(ctx context.Context, key playlist.Key) ([]byte, error) {
	if f.keyCache == nil {
		return nil, fmt.Errorf("segment is encrypted but no key cache is configured")
	}
	return f.keyCache.Get(ctx, key.URI)
}

func resolveIV(key playlist.Key, mediaSequence uint64) []byte {
	if key.IV != "" {
		if iv, ok := parseHexIV(key.IV); ok {
			return iv
		}
	}
	derived := decrypt.DeriveIV(mediaSequence)
	return derived[:]
}

func parseHexIV(s string) ([]byte, bool) {
	s = trimHexPrefix(s)
	if len(s) != 32 {
		return nil, false
	}
	out := make([]byte, 16)
	for i := 0; i < 16; i++ {
		hi, ok1 := hexNibble(s[i*2])
		lo, ok2 := hexNibble(s[i*2+1])
		if !ok1 || !ok2 {
			return nil, false
		}
		out[i] = hi<<4 | lo
	}
	return out, true
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		return s[2:]
	}
	return s
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

func (f *Fetcher) fetchRawWithRetry(ctx context.Context, job playlist.ScheduledSegmentJob) ([]byte, error) {
	if cached, ok := f.cachedRaw(job.URI); ok {
		return cached, nil
	}

	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := f.cfg.BaseDelay * time.Duration(1<<uint(attempt-1))
			if delay > f.cfg.MaxDelay {
				delay = f.cfg.MaxDelay
			}
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
		}

		raw, err := f.fetchRaw(ctx, job)
		if err == nil {
			f.cacheRaw(job.URI, raw)
			return raw, nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}
	return nil, fmt.Errorf("fetching segment %s: %w", job.URI, lastErr)
}

func (f *Fetcher) fetchRaw(ctx context.Context, job playlist.ScheduledSegmentJob) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URI, nil)
	if err != nil {
		return nil, err
	}
	if job.ByteRange != nil {
		req.Header.Set("Range", rangeHeader(*job.ByteRange))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func rangeHeader(br playlist.ByteRange) string {
	offset := int64(0)
	if br.Offset != nil {
		offset = *br.Offset
	}
	return fmt.Sprintf("bytes=%d-%d", offset, offset+br.Length-1)
}

func isRetryable(err error) bool {
	return err != nil
}

func (f *Fetcher) cachedRaw(uri string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.rawCache[uri]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.bytes, true
}

func (f *Fetcher) cacheRaw(uri string, bytes []byte) {
	if f.cfg.RawCacheTTL <= 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rawCache[uri] = rawCacheEntry{bytes: bytes, expiresAt: time.Now().Add(f.cfg.RawCacheTTL)}
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
