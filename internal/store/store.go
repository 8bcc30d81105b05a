// Package store persists recording bookkeeping and source-health snapshots
// so they survive process restarts, via gorm.io/gorm with a pluggable
// driver: the pure-Go glebarez/sqlite by default, or postgres/mysql when
// configured for a shared deployment.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Config configures a database connection. It mirrors the shape
// internal/config's DatabaseConfig maps onto from file/env/flag layers.
type Config struct {
	Driver          string // sqlite, postgres, mysql
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	LogLevel        string // silent, error, warn, info
}

// Store wraps a GORM connection with the recording and source-health
// repositories.
type Store struct {
	db     *gorm.DB
	cfg    Config
	logger *slog.Logger
}

// Open opens a connection per cfg and runs AutoMigrate for Recording and
// SourceHealthSnapshot. Pass nil for log to use slog.Default().
func Open(cfg Config, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, fmt.Errorf("store: selecting driver: %w", err)
	}

	gormLogger := newSlogGormLogger(cfg.LogLevel, log)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: getting underlying sql.DB: %w", err)
	}

	maxOpen, maxIdle := cfg.MaxOpenConns, cfg.MaxIdleConns
	if cfg.Driver == "sqlite" {
		// SQLite in WAL mode allows concurrent readers but only one
		// writer; a handful of connections balances read concurrency
		// against lock contention without over-provisioning.
		maxOpen, maxIdle = 6, 3
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.AutoMigrate(&Recording{}, &SourceHealthSnapshot{}); err != nil {
		return nil, fmt.Errorf("store: running migrations: %w", err)
	}

	return &Store{db: db, cfg: cfg, logger: log}, nil
}

// dialectorFor returns the GORM dialector for cfg.Driver. SQLite's DSN gets
// a handful of PRAGMAs appended for the pure-Go driver: busy timeout, WAL
// journal mode, and foreign key enforcement.
func dialectorFor(cfg Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite", "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "streamvault.db"
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep +
			"_pragma=busy_timeout(30000)" +
			"&_pragma=journal_mode(WAL)" +
			"&_pragma=synchronous(NORMAL)" +
			"&_pragma=foreign_keys(ON)"
		return sqlite.Open(dsn), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("store: getting underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping verifies the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("store: getting underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Driver returns the configured driver name.
func (s *Store) Driver() string {
	return s.cfg.Driver
}

// Stats returns connection pool statistics for the daemon's stats endpoint.
func (s *Store) Stats() (map[string]any, error) {
	sqlDB, err := s.db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: getting underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return map[string]any{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration":        stats.WaitDuration.String(),
	}, nil
}
