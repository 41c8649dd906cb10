package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/CoffeeShop-Development/watchtower/internal/alerts"
	"github.com/CoffeeShop-Development/watchtower/internal/api"
	"github.com/CoffeeShop-Development/watchtower/internal/config"
	"github.com/CoffeeShop-Development/watchtower/internal/history"
	"github.com/CoffeeShop-Development/watchtower/internal/logging"
	"github.com/CoffeeShop-Development/watchtower/internal/models"
	"github.com/CoffeeShop-Development/watchtower/internal/monitoring"
	"github.com/CoffeeShop-Development/watchtower/internal/websocket"
	"github.com/CoffeeShop-Development/watchtower/pkg/aggregator"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "watchtower",
	Short:   "Watchtower - host resource alerting and dashboard backend",
	Long:    `Watchtower polls a metrics aggregation server for per-host resource usage, evaluates it against configurable thresholds and serves the active alert set to the dashboard.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Watchtower %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer() {
	// Baseline logger for early startup messages.
	logging.Init(logging.Config{
		Format:    "auto",
		Level:     "info",
		Component: "watchtower",
	})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "watchtower",
	})

	log.Info().
		Str("version", Version).
		Str("source", cfg.SourceURL).
		Msg("Starting Watchtower alerting server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := aggregator.NewClient(aggregator.ClientConfig{
		BaseURL: cfg.SourceURL,
		Timeout: cfg.FetchTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create metrics source client")
	}

	thresholdStore := alerts.NewThresholdStore(alerts.Thresholds{
		models.KindCPU:    cfg.ThresholdCPU,
		models.KindMemory: cfg.ThresholdMemory,
		models.KindDisk:   cfg.ThresholdDisk,
	}, cfg.ThresholdsFile())
	alertStore := alerts.NewStore()

	var historyStore *history.Store
	if hs, err := history.NewStore(cfg.HistoryFile(), cfg.HistoryRetention); err != nil {
		log.Warn().Err(err).Msg("Alert history unavailable, continuing without it")
	} else {
		historyStore = hs
		defer historyStore.Close()
	}

	hub := websocket.NewHub(alertStore.Active)
	go hub.Run(ctx)

	poller := monitoring.New(client, thresholdStore, alertStore, monitoring.Options{
		Interval:     cfg.PollInterval,
		FetchTimeout: cfg.FetchTimeout,
		History:      historyStore,
		Broadcaster:  hub,
	})
	poller.Start(ctx)

	// Pick up manual edits to the persisted thresholds file.
	thresholdWatcher, err := config.NewFileWatcher(cfg.ThresholdsFile(), thresholdStore.Reload)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create thresholds watcher, external edits require restart")
	} else {
		if err := thresholdWatcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start thresholds watcher")
		}
		defer thresholdWatcher.Stop()
	}

	router := api.NewRouter(poller, client, thresholdStore, alertStore, historyStore, hub)
	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	metricsSrv := newMetricsServer(cfg.MetricsAddr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr()).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.MetricsAddr()).Msg("Metrics endpoint listening")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown error")
		}
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics server shutdown error")
		}
		return nil
	})

	sigChan := make(chan os.Signal, 1)
	reloadChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	signal.Notify(reloadChan, syscall.SIGHUP)

	for {
		select {
		case <-reloadChan:
			log.Info().Msg("Received SIGHUP, reloading thresholds from disk")
			thresholdStore.Reload()
			continue
		case <-sigChan:
			log.Info().Msg("Shutting down server...")
		case <-gctx.Done():
		}
		break
	}

	cancel()
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server exited with error")
	}

	// Let the poll loop finish its in-flight cycle before closing stores.
	select {
	case <-poller.Done():
	case <-time.After(cfg.FetchTimeout + time.Second):
		log.Warn().Msg("Poll loop did not stop in time")
	}

	log.Info().Msg("Server stopped")
}
