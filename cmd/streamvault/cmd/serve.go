package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/streamvault/internal/config"
	"github.com/jmylchreest/streamvault/internal/httpapi"
	"github.com/jmylchreest/streamvault/internal/recorder"
	"github.com/jmylchreest/streamvault/internal/source"
	"github.com/jmylchreest/streamvault/internal/store"
	"github.com/jmylchreest/streamvault/pkg/httpclient"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recording daemon",
	Long: `serve runs streamvault as a long-lived daemon, accepting recording
jobs over HTTP and managing many concurrent recordings. Each job picks
its own sources and selection strategy; the daemon's configuration
supplies the acquisition client, repair chain, and writer settings every
recording shares.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	cacheProvider, err := buildCacheProvider(cfg)
	if err != nil {
		return fmt.Errorf("building cache provider: %w", err)
	}

	st, err := store.Open(store.Config{
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

	client := httpclient.New(httpclient.DefaultConfig())
	template := buildRecorderOptions(cfg, nil, source.Priority, recorder.KindFLV, client, cacheProvider, st)

	apiServer := httpapi.NewServer(recorder.Run, template,
		httpapi.WithStore(st),
		httpapi.WithCache(cacheProvider),
		httpapi.WithLogger(slog.Default()))

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("serve: listening", slog.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	}
}
