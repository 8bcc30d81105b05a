package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/streamvault/internal/cache"
	"github.com/jmylchreest/streamvault/internal/config"
	"github.com/jmylchreest/streamvault/internal/downloader"
	"github.com/jmylchreest/streamvault/internal/flvrepair"
	"github.com/jmylchreest/streamvault/internal/hls/acquire"
	"github.com/jmylchreest/streamvault/internal/hls/playlist"
	"github.com/jmylchreest/streamvault/internal/recorder"
	"github.com/jmylchreest/streamvault/internal/source"
	"github.com/jmylchreest/streamvault/internal/store"
	"github.com/jmylchreest/streamvault/internal/writer"
	"github.com/jmylchreest/streamvault/pkg/httpclient"
)

var recordSourceURLs []string

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Run a single recording to completion",
	Long: `record pulls one stream, FLV-over-HTTP or HLS, against a list of
fail-over source URLs until the stream ends cleanly, the process is
interrupted, or every source has been exhausted.

The first --source's URL decides the acquisition path: a playlist URL
ending in .m3u8 is treated as HLS, anything else as FLV-over-HTTP.`,
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringArrayVar(&recordSourceURLs, "source", nil, "source URL, repeatable in priority order (required)")
	recordCmd.Flags().Bool("persist", false, "persist recording bookkeeping and source health to the configured store")
	mustBindPFlag("record.persist", recordCmd.Flags().Lookup("persist"))
	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	if len(recordSourceURLs) == 0 {
		return fmt.Errorf("at least one --source is required")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	sources := make([]source.Source, len(recordSourceURLs))
	for i, url := range recordSourceURLs {
		sources[i] = source.Source{URL: url, Priority: i}
	}
	strategy, err := source.ParseStrategy(cfg.Source.Strategy)
	if err != nil {
		return fmt.Errorf("source.strategy: %w", err)
	}

	cacheProvider, err := buildCacheProvider(cfg)
	if err != nil {
		return fmt.Errorf("building cache provider: %w", err)
	}

	var st *store.Store
	if viper.GetBool("record.persist") {
		st, err = store.Open(store.Config{
			Driver:          cfg.Store.Driver,
			DSN:             cfg.Store.DSN,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
			LogLevel:        cfg.Store.LogLevel,
		}, slog.Default())
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := buildRecorderOptions(cfg, sources, strategy, recorder.ParseKind(sources[0].URL), httpclient.New(httpclient.DefaultConfig()), cacheProvider, st)

	result := recorder.Run(ctx, opts)
	if result.Err != nil {
		return fmt.Errorf("recording: %w", result.Err)
	}

	slog.Info("recording finished",
		slog.String("id", result.ID),
		slog.String("source", result.SourceURL),
		slog.Int("files", len(result.OutputFiles)),
		slog.Int64("bytes", result.TotalBytes),
		slog.Duration("duration", result.Duration))
	return nil
}

func buildCacheProvider(cfg *config.Config) (cache.Provider, error) {
	switch cfg.Cache.Provider {
	case "disk":
		return cache.NewDiskProvider(cfg.Storage.CachePath())
	case "none":
		return nil, nil
	default:
		return cache.NewMemoryProvider(cache.MemoryConfig{
			MaxSizeBytes: cfg.Cache.MaxSizeBytes.Bytes(),
			DefaultTTL:   cfg.Cache.DefaultTTL,
		}), nil
	}
}

// buildRecorderOptions translates the layered configuration into the
// recorder engine's options, for one recording against sources.
func buildRecorderOptions(cfg *config.Config, sources []source.Source, strategy source.SelectionStrategy, kind recorder.Kind, client *httpclient.Client, cacheProvider cache.Provider, st *store.Store) recorder.Options {
	return recorder.Options{
		Kind:     kind,
		Sources:  sources,
		Strategy: strategy,
		Client:   client,
		Cache:    cacheProvider,
		Reconnect: downloader.DefaultConfig(),
		FLVRepair: flvrepair.Config{
			DefragmentMinBufferTS:      cfg.Pipeline.DefragmentMinBufferTS,
			MaxSizeBytes:               cfg.Pipeline.MaxSizeBytes.Bytes(),
			MaxDurationMs:              cfg.Pipeline.MaxDurationMs,
			SplitAtKeyframesOnly:       cfg.Pipeline.SplitAtKeyframesOnly,
			TimingMode:                 parseTimingMode(cfg.Pipeline.TimingMode),
			RepairMode:                 parseRepairMode(cfg.Pipeline.RepairMode),
			MaxTimestampJumpMs:         cfg.Pipeline.MaxTimestampJumpMs,
			ExpectedKeyframeIntervalMs: cfg.Pipeline.ExpectedKeyframeIntervalMs,
		},
		FLVWriter: writer.Config{
			BasePath:         cfg.Storage.OutputPath(),
			FileNameTemplate: "recording-%i",
			FileExtension:    "flv",
		},
		FLVFormat: writer.FLVConfig{
			MaxSizeBytes: cfg.Pipeline.MaxSizeBytes.Bytes(),
			MaxDuration:  time.Duration(cfg.Pipeline.MaxDurationMs) * time.Millisecond,
			HasAudio:     true,
			HasVideo:     true,
		},
		FetcherConfig: acquire.FetcherConfig{
			MaxRetries:  cfg.HLS.FetchMaxRetries,
			BaseDelay:   cfg.HLS.FetchBaseDelay,
			MaxDelay:    cfg.HLS.FetchMaxDelay,
			RawCacheTTL: cfg.HLS.RawCacheTTL,
		},
		EngineConfig: playlist.EngineConfig{
			MinRefreshInterval: cfg.HLS.MinRefreshInterval,
			RetryDelay:         cfg.HLS.PlaylistRetryDelay,
			MaxRefreshRetries:  cfg.HLS.MaxRefreshRetries,
			SeenSetCapacity:    cfg.HLS.SeenSetCapacity,
		},
		SchedulerConfig: acquire.SchedulerConfig{
			Concurrency: cfg.HLS.Concurrency,
			QueueDepth:  cfg.HLS.QueueDepth,
		},
		ReorderConfig: acquire.ReorderConfig{
			MaxBufferCount:           cfg.HLS.ReorderMaxBufferCount,
			MaxBufferDuration:        cfg.HLS.ReorderMaxBufferDuration,
			GapSkipThresholdSegments: cfg.HLS.GapSkipThresholdSegments,
			MaxOverallStallDuration:  time.Duration(cfg.HLS.MaxOverallStallDurationMs) * time.Millisecond,
		},
		KeyCacheTTL: cfg.HLS.RawCacheTTL,
		HLSWriter: writer.Config{
			BasePath:         cfg.Storage.OutputPath(),
			FileNameTemplate: "recording-%i",
			FileExtension:    "ts",
		},
		HLSFormat: writer.HLSRawConfig{
			MaxSizeBytes: cfg.Pipeline.MaxSizeBytes.Bytes(),
			MaxDuration:  time.Duration(cfg.Pipeline.MaxDurationMs) * time.Millisecond,
		},
		Store:  st,
		Logger: slog.Default(),
	}
}

func parseTimingMode(s string) flvrepair.TimingMode {
	if s == "reset" {
		return flvrepair.TimingModeReset
	}
	return flvrepair.TimingModeContinuous
}

func parseRepairMode(s string) flvrepair.RepairMode {
	if s == "strict" {
		return flvrepair.RepairModeStrict
	}
	return flvrepair.RepairModeRelaxed
}
