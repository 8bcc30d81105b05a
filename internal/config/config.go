// Package config provides configuration management for streamvault using
// Viper. It supports configuration from files, environment variables, and
// defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort          = 8080
	defaultServerTimeout       = 30 * time.Second
	defaultShutdownTimeout     = 10 * time.Second
	defaultMaxOpenConns        = 25
	defaultMaxIdleConns        = 10
	defaultConnMaxIdleTime     = 30 * time.Minute
	defaultDefragmentMinBuffer = 5
	defaultMaxTimestampJumpMs  = 5000
	defaultKeyframeIntervalMs  = 2000
	defaultMaxSizeBytes        = 1 * 1024 * 1024 * 1024 // 1GB
	defaultMaxDurationMs       = int64(60 * time.Minute / time.Millisecond)
	defaultHLSConcurrency      = 4
	defaultHLSQueueDepth       = 32
	defaultFetchMaxRetries     = 3
	defaultFetchBaseDelay      = 250 * time.Millisecond
	defaultFetchMaxDelay       = 5 * time.Second
	defaultRawCacheTTL         = 10 * time.Second
	defaultMinRefreshInterval  = 2 * time.Second
	defaultPlaylistRetryDelay  = 1 * time.Second
	defaultMaxRefreshRetries   = 5
	defaultSeenSetCapacity     = 30
	defaultReorderBufferCount  = 50
	defaultReorderBufferDur    = 60 * time.Second
	defaultGapSkipThreshold    = 3
	defaultOverallStallMs      = int64(2 * time.Minute / time.Millisecond)
	defaultCacheMaxSizeBytes   = 256 * 1024 * 1024 // 256MB
	defaultCacheTTL            = 5 * time.Minute
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
	Store   StoreConfig   `mapstructure:"store"`
	Source  SourceConfig  `mapstructure:"source"`
	Cache   CacheConfig   `mapstructure:"cache"`

	Pipeline PipelineConfig `mapstructure:"pipeline"`
	HLS      HLSConfig      `mapstructure:"hls"`
}

// ServerConfig holds control-plane HTTP server configuration for the serve
// daemon.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// StoreConfig holds persistence configuration, mirroring store.Config's
// shape so Load's result can be handed straight to store.Open.
type StoreConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds the output-file storage location.
type StorageConfig struct {
	BaseDir   string `mapstructure:"base_dir"`
	OutputDir string `mapstructure:"output_dir"`
	TempDir   string `mapstructure:"temp_dir"`
	CacheDir  string `mapstructure:"cache_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// SourceConfig configures the source manager's fail-over policy.
type SourceConfig struct {
	// Strategy selects how Select picks among active sources: priority,
	// round_robin, fastest_response, or random.
	Strategy string `mapstructure:"strategy"`
}

// CacheConfig configures the cache manager's provider and capacity.
type CacheConfig struct {
	// Provider selects "memory", "disk", or "none".
	Provider string `mapstructure:"provider"`
	// MaxSizeBytes supports human-readable values like "256MB", "1GB", or
	// raw byte counts.
	MaxSizeBytes ByteSize      `mapstructure:"max_size_bytes"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
}

// PipelineConfig holds the FLV/HLS repair chain tunables, mirroring
// flvrepair.Config's field names so Load's result maps directly onto it.
type PipelineConfig struct {
	DefragmentMinBufferTS int `mapstructure:"defragment_min_buffer_ts"`
	// MaxSizeBytes supports human-readable values like "1GB", or raw byte
	// counts.
	MaxSizeBytes               ByteSize      `mapstructure:"max_size_bytes"`
	MaxDurationMs              int64         `mapstructure:"max_duration_ms"`
	SplitAtKeyframesOnly       bool          `mapstructure:"split_at_keyframes_only"`
	TimingMode                 string        `mapstructure:"timing_mode"` // continuous, reset
	RepairMode                 string        `mapstructure:"repair_mode"` // relaxed, strict
	MaxTimestampJumpMs         int64         `mapstructure:"max_timestamp_jump_ms"`
	ExpectedKeyframeIntervalMs int64         `mapstructure:"expected_keyframe_interval_ms"`
}

// HLSConfig holds the HLS acquisition engine's tunables: playlist polling,
// fetch retry budget, and scheduler/reorder concurrency and stall bounds.
type HLSConfig struct {
	MinRefreshInterval time.Duration `mapstructure:"min_refresh_interval"`
	PlaylistRetryDelay time.Duration `mapstructure:"playlist_retry_delay"`
	MaxRefreshRetries  int           `mapstructure:"max_refresh_retries"`
	SeenSetCapacity    int           `mapstructure:"seen_set_capacity"`

	FetchMaxRetries int           `mapstructure:"fetch_max_retries"`
	FetchBaseDelay  time.Duration `mapstructure:"fetch_base_delay"`
	FetchMaxDelay   time.Duration `mapstructure:"fetch_max_delay"`
	RawCacheTTL     time.Duration `mapstructure:"raw_cache_ttl"`

	Concurrency int `mapstructure:"concurrency"`
	QueueDepth  int `mapstructure:"queue_depth"`

	ReorderMaxBufferCount     int           `mapstructure:"reorder_max_buffer_count"`
	ReorderMaxBufferDuration  time.Duration `mapstructure:"reorder_max_buffer_duration"`
	GapSkipThresholdSegments  int           `mapstructure:"gap_skip_threshold_segments"`
	MaxOverallStallDurationMs int64         `mapstructure:"max_overall_stall_duration_ms"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with STREAMVAULT_ and use underscores
// for nesting. Example: STREAMVAULT_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/streamvault")
		v.AddConfigPath("$HOME/.streamvault")
	}

	// Environment variable settings
	v.SetEnvPrefix("STREAMVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults
// are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.output_dir", "output")
	v.SetDefault("storage.temp_dir", "temp")
	v.SetDefault("storage.cache_dir", "cache")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Store defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "streamvault.db")
	v.SetDefault("store.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("store.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("store.conn_max_lifetime", time.Hour)
	v.SetDefault("store.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("store.log_level", "warn")

	// Source manager defaults
	v.SetDefault("source.strategy", "priority")

	// Cache defaults
	v.SetDefault("cache.provider", "memory")
	v.SetDefault("cache.max_size_bytes", defaultCacheMaxSizeBytes)
	v.SetDefault("cache.default_ttl", defaultCacheTTL)

	// Pipeline (repair chain) defaults
	v.SetDefault("pipeline.defragment_min_buffer_ts", defaultDefragmentMinBuffer)
	v.SetDefault("pipeline.max_size_bytes", defaultMaxSizeBytes)
	v.SetDefault("pipeline.max_duration_ms", defaultMaxDurationMs)
	v.SetDefault("pipeline.split_at_keyframes_only", true)
	v.SetDefault("pipeline.timing_mode", "continuous")
	v.SetDefault("pipeline.repair_mode", "relaxed")
	v.SetDefault("pipeline.max_timestamp_jump_ms", defaultMaxTimestampJumpMs)
	v.SetDefault("pipeline.expected_keyframe_interval_ms", defaultKeyframeIntervalMs)

	// HLS acquisition defaults
	v.SetDefault("hls.min_refresh_interval", defaultMinRefreshInterval)
	v.SetDefault("hls.playlist_retry_delay", defaultPlaylistRetryDelay)
	v.SetDefault("hls.max_refresh_retries", defaultMaxRefreshRetries)
	v.SetDefault("hls.seen_set_capacity", defaultSeenSetCapacity)
	v.SetDefault("hls.fetch_max_retries", defaultFetchMaxRetries)
	v.SetDefault("hls.fetch_base_delay", defaultFetchBaseDelay)
	v.SetDefault("hls.fetch_max_delay", defaultFetchMaxDelay)
	v.SetDefault("hls.raw_cache_ttl", defaultRawCacheTTL)
	v.SetDefault("hls.concurrency", defaultHLSConcurrency)
	v.SetDefault("hls.queue_depth", defaultHLSQueueDepth)
	v.SetDefault("hls.reorder_max_buffer_count", defaultReorderBufferCount)
	v.SetDefault("hls.reorder_max_buffer_duration", defaultReorderBufferDur)
	v.SetDefault("hls.gap_skip_threshold_segments", defaultGapSkipThreshold)
	v.SetDefault("hls.max_overall_stall_duration_ms", defaultOverallStallMs)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	// Store validation
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Store.Driver] {
		return fmt.Errorf("store.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required")
	}

	// Storage validation
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Source manager validation
	validStrategies := map[string]bool{"priority": true, "round_robin": true, "fastest_response": true, "random": true}
	if !validStrategies[c.Source.Strategy] {
		return fmt.Errorf("source.strategy must be one of: priority, round_robin, fastest_response, random")
	}

	// Cache validation
	validProviders := map[string]bool{"memory": true, "disk": true, "none": true}
	if !validProviders[c.Cache.Provider] {
		return fmt.Errorf("cache.provider must be one of: memory, disk, none")
	}

	// Pipeline validation
	validTimingModes := map[string]bool{"continuous": true, "reset": true}
	if !validTimingModes[c.Pipeline.TimingMode] {
		return fmt.Errorf("pipeline.timing_mode must be one of: continuous, reset")
	}
	validRepairModes := map[string]bool{"relaxed": true, "strict": true}
	if !validRepairModes[c.Pipeline.RepairMode] {
		return fmt.Errorf("pipeline.repair_mode must be one of: relaxed, strict")
	}

	// HLS validation
	if c.HLS.Concurrency < 1 {
		return fmt.Errorf("hls.concurrency must be at least 1")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// OutputPath returns the full path to the output directory.
func (c *StorageConfig) OutputPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.OutputDir)
}

// TempPath returns the full path to the temp directory.
func (c *StorageConfig) TempPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.TempDir)
}

// CachePath returns the full path to the disk cache directory.
func (c *StorageConfig) CachePath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.CacheDir)
}
