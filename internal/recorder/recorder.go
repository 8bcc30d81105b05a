// Package recorder drives one end-to-end recording, FLV or HLS, from
// source selection through the repair chain to the rotating output
// writer, and persists the result to the store when one is configured.
// It is the shared engine behind both the "record" and "serve" commands.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmylchreest/streamvault/internal/cache"
	"github.com/jmylchreest/streamvault/internal/downloader"
	"github.com/jmylchreest/streamvault/internal/flv"
	"github.com/jmylchreest/streamvault/internal/flvrepair"
	"github.com/jmylchreest/streamvault/internal/hls/acquire"
	"github.com/jmylchreest/streamvault/internal/hls/decrypt"
	"github.com/jmylchreest/streamvault/internal/hls/model"
	"github.com/jmylchreest/streamvault/internal/hls/playlist"
	"github.com/jmylchreest/streamvault/internal/hlsrepair"
	"github.com/jmylchreest/streamvault/internal/pipeline/core"
	"github.com/jmylchreest/streamvault/internal/source"
	"github.com/jmylchreest/streamvault/internal/store"
	"github.com/jmylchreest/streamvault/internal/writer"
	"github.com/jmylchreest/streamvault/pkg/httpclient"
)

// Kind selects which acquisition path a recording takes.
type Kind int

const (
	// KindFLV pulls a single long-lived FLV-over-HTTP body.
	KindFLV Kind = iota
	// KindHLS polls and reassembles an HLS media playlist.
	KindHLS
)

// ParseKind maps a source URL to the acquisition path it needs: an
// ".m3u8" suffix means HLS, anything else is treated as FLV-over-HTTP.
func ParseKind(url string) Kind {
	if strings.HasSuffix(strings.ToLower(strings.Split(url, "?")[0]), ".m3u8") {
		return KindHLS
	}
	return KindFLV
}

// Options collects everything one recording run needs.
type Options struct {
	// ID, if set, is used as the recording's store/control-plane id
	// instead of generating a fresh one. Leave empty to let Run assign
	// one.
	ID       string
	Kind     Kind
	Sources  []source.Source
	Strategy source.SelectionStrategy

	Client *httpclient.Client
	Cache  cache.Provider // optional

	Reconnect downloader.Config

	FLVRepair  flvrepair.Config
	FLVWriter  writer.Config
	FLVFormat  writer.FLVConfig

	FetcherConfig  acquire.FetcherConfig
	EngineConfig   playlist.EngineConfig
	SchedulerConfig acquire.SchedulerConfig
	ReorderConfig  acquire.ReorderConfig
	KeyCacheTTL    time.Duration
	HLSWriter      writer.Config
	HLSFormat      writer.HLSRawConfig

	Store  *store.Store // optional; nil disables persistence
	Logger *slog.Logger

	// OnStart, if set, is called once with the recording's generated id and
	// its live source manager, before acquisition begins. A control plane
	// uses this to register the manager for health queries and the id for
	// cancellation while the recording is still running.
	OnStart func(id string, sources *source.Manager)
}

// Result summarizes a completed (or failed) recording run.
type Result struct {
	ID          string
	SourceURL   string
	OutputFiles []string
	TotalBytes  int64
	Duration    time.Duration
	Err         error
}

// Run drives one recording per opts.Kind until the source list is
// exhausted, the context is cancelled, or the stream ends cleanly.
func Run(ctx context.Context, opts Options) Result {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mgr := source.NewManager(opts.Strategy, opts.Sources)
	startedAt := time.Now()

	rec := store.NewRecording(primaryURL(opts.Sources), startedAt)
	if opts.ID != "" {
		rec.ID = opts.ID
	}
	if opts.OnStart != nil {
		opts.OnStart(rec.ID, mgr)
	}
	if opts.Store != nil {
		if err := opts.Store.CreateRecording(ctx, &rec); err != nil {
			logger.Warn("recorder: failed to persist recording start", slog.String("error", err.Error()))
		}
	}

	var (
		outputFiles []string
		totalBytes  int64
		runErr      error
	)
	switch opts.Kind {
	case KindHLS:
		outputFiles, totalBytes, runErr = runHLS(ctx, opts, mgr, logger)
	default:
		outputFiles, totalBytes, runErr = runFLV(ctx, opts, mgr, logger)
	}

	result := Result{
		ID:          rec.ID,
		SourceURL:   rec.SourceURL,
		OutputFiles: outputFiles,
		TotalBytes:  totalBytes,
		Duration:    time.Since(startedAt),
		Err:         runErr,
	}

	if opts.Store != nil {
		reason := "completed"
		if runErr != nil {
			reason = runErr.Error()
		}
		finish := store.RecordingFinish{
			EndedAt:           time.Now(),
			TerminationReason: reason,
			OutputFiles:       outputFiles,
			TotalBytes:        totalBytes,
			TotalDurationMs:   time.Since(startedAt).Milliseconds(),
		}
		if err := opts.Store.FinishRecording(ctx, rec.ID, finish); err != nil {
			logger.Warn("recorder: failed to persist recording end", slog.String("error", err.Error()))
		}
		for url, health := range mgr.AllHealth() {
			snapshot := store.SourceHealthSnapshot{
				URL:             url,
				RecordingID:     rec.ID,
				Successes:       health.Successes,
				Failures:        health.Failures,
				AvgResponseTime: health.AvgResponseTime,
				Score:           health.Score,
				Active:          health.Active,
				UpdatedAt:       time.Now(),
			}
			if err := opts.Store.UpsertSourceHealth(ctx, rec.ID, snapshot); err != nil {
				logger.Warn("recorder: failed to persist source health", slog.String("source", url), slog.String("error", err.Error()))
			}
		}
	}

	return result
}

func primaryURL(sources []source.Source) string {
	if len(sources) == 0 {
		return ""
	}
	return sources[0].URL
}

// runFLV wires the downloader, repair chain, and rotating writer for the
// FLV-over-HTTP path.
func runFLV(ctx context.Context, opts Options, mgr *source.Manager, logger *slog.Logger) ([]string, int64, error) {
	task, err := writer.NewTask[flv.Data](opts.FLVWriter, writer.NewFLVStrategy(opts.FLVFormat))
	if err != nil {
		return nil, 0, fmt.Errorf("recorder: opening flv writer: %w", err)
	}
	var openedFiles []string
	task.SetOnFileOpen(func(path string, _ uint32) { openedFiles = append(openedFiles, path) })
	defer task.Close()

	chain := flvrepair.NewChain(opts.FLVRepair)
	sink := func(item flv.Data) error {
		return chain.Feed(item, func(out flv.Data) error {
			return task.ProcessItem(out)
		})
	}

	dl := downloader.New(opts.Client, mgr, opts.Cache, opts.Reconnect, logger)
	stats, runErr := dl.Run(ctx, sink)

	if finishErr := chain.FinishAll(func(out flv.Data) error {
		return task.ProcessItem(out)
	}); finishErr != nil && runErr == nil {
		runErr = finishErr
	}

	return openedFiles, stats.Bytes, runErr
}

// runHLS wires the playlist engine, segment fetcher, reorder stage, repair
// chain, and rotating writer for the HLS path, failing over across
// opts.Sources on an unrecoverable playlist error in the same spirit as the
// FLV downloader's reconnect loop.
func runHLS(ctx context.Context, opts Options, mgr *source.Manager, logger *slog.Logger) ([]string, int64, error) {
	task, err := writer.NewTask[model.Data](opts.HLSWriter, writer.NewHLSRawStrategy(opts.HLSFormat))
	if err != nil {
		return nil, 0, fmt.Errorf("recorder: opening hls writer: %w", err)
	}
	var openedFiles []string
	task.SetOnFileOpen(func(path string, _ uint32) { openedFiles = append(openedFiles, path) })
	defer task.Close()

	chain := hlsrepair.NewChain()
	var totalBytes int64
	sink := func(item model.Data) error {
		totalBytes += int64(item.Size())
		return chain.Feed(item, func(out model.Data) error {
			return task.ProcessItem(out)
		})
	}

	keyFetcher := decrypt.NewHTTPKeyFetcher(opts.Client)
	keyCache := decrypt.NewKeyCache(keyFetcher, opts.KeyCacheTTL)
	segFetcher := acquire.NewFetcher(opts.Client, keyCache, opts.FetcherConfig)
	plFetcher := httpPlaylistFetcher{client: opts.Client}

	attempt := 0
	for {
		if ctx.Err() != nil {
			return openedFiles, totalBytes, core.ErrShutdown
		}
		src, ok := mgr.Select()
		if !ok {
			return openedFiles, totalBytes, downloader.ErrNoSource
		}

		start := time.Now()
		engine := playlist.NewEngine(plFetcher, opts.EngineConfig, logger)
		pipeline := acquire.NewPipeline(engine, segFetcher, acquire.PipelineConfig{
			Scheduler: opts.SchedulerConfig,
			Reorder:   opts.ReorderConfig,
		})

		runErr := pipeline.Run(ctx, src.URL, func(result acquire.FetchResult) error {
			if result.Err != nil {
				return result.Err
			}
			return sink(toModelData(result))
		})

		if finishErr := chain.FinishAll(func(out model.Data) error {
			return task.ProcessItem(out)
		}); finishErr != nil && runErr == nil {
			runErr = finishErr
		}

		if runErr == nil {
			mgr.RecordSuccess(src.URL, time.Since(start))
			return openedFiles, totalBytes, nil
		}
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			return openedFiles, totalBytes, core.ErrShutdown
		}

		mgr.RecordFailure(src.URL, 0, time.Since(start))
		attempt++
		logger.Warn("hls recording attempt failed",
			slog.String("source", src.URL),
			slog.Int("attempt", attempt),
			slog.String("error", runErr.Error()))

		if attempt > opts.Reconnect.MaxReconnectAttempts {
			return openedFiles, totalBytes, fmt.Errorf("recorder: exhausted %d hls reconnect attempts: %w", opts.Reconnect.MaxReconnectAttempts, runErr)
		}
		select {
		case <-ctx.Done():
			return openedFiles, totalBytes, core.ErrShutdown
		case <-time.After(opts.Reconnect.ReconnectDelay):
		}
	}
}

// toModelData converts a completed segment fetch into the repair chain's
// item type. The init/media distinction for fMP4 segments comes from the
// job's IsInitSegment flag (set by the playlist engine from EXT-X-MAP);
// everything else falls back to a plain TS segment unless the URI carries
// the conventional ".m4s" extension.
func toModelData(result acquire.FetchResult) model.Data {
	seg := model.MediaSegment{
		URI:           result.Job.URI,
		MediaSequence: result.Job.MediaSequence,
		Duration:      result.Job.Duration,
		Discontinuity: result.Job.Discontinuity,
		IsInitSegment: result.Job.IsInitSegment,
	}
	switch {
	case result.Job.IsInitSegment:
		return model.NewInitSegment(seg, result.Bytes)
	case strings.HasSuffix(strings.ToLower(result.Job.URI), ".m4s"):
		return model.NewMediaSegment(seg, result.Bytes)
	default:
		return model.NewTSSegment(seg, result.Bytes)
	}
}

// httpPlaylistFetcher adapts pkg/httpclient.Client to playlist.Fetcher.
type httpPlaylistFetcher struct {
	client *httpclient.Client
}

func (f httpPlaylistFetcher) FetchPlaylist(ctx context.Context, playlistURL string) ([]byte, error) {
	resp, err := f.client.Get(ctx, playlistURL)
	if err != nil {
		return nil, fmt.Errorf("fetching playlist %s: %w", playlistURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("playlist %s returned status %d", playlistURL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading playlist %s: %w", playlistURL, err)
	}
	return body, nil
}
