package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fenwick-io/taskpulse/pkg/aggregator"
	"github.com/fenwick-io/taskpulse/pkg/api"
	"github.com/fenwick-io/taskpulse/pkg/config"
	"github.com/fenwick-io/taskpulse/pkg/log"
	"github.com/fenwick-io/taskpulse/pkg/metrics"
)

// eventChannelCapacity bounds the producer-to-aggregator event queue
// (spec.md §5): producers that fill it trigger Flush rather than
// blocking.
const eventChannelCapacity = 4096

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the aggregator core behind a gRPC transport and metrics endpoint",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to a YAML config file")
	serveCmd.Flags().Duration("publish-interval", 0, "Cadence of the periodic publisher")
	serveCmd.Flags().Duration("retention", 0, "How long a closed task's stats survive past close")
	serveCmd.Flags().String("record", "", "Path to persist raw events for offline replay")
	serveCmd.Flags().String("grpc-addr", "", "Listen address for the gRPC transport")
	serveCmd.Flags().String("metrics-addr", "", "Listen address for /metrics, /health, /ready, /live")
	serveCmd.Flags().Bool("demo", false, "Feed the aggregator from a synthetic event generator instead of real instrumentation")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Default()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return err
		}
	}
	cfg.ApplyFlags(cmd.Flags())

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// initLogging (cobra.OnInitialize, main.go) only saw the
	// persistent --log-level/--log-json flags, not a config file: it
	// ran before this file even loaded. Re-init now that cfg reflects
	// flags-over-file-over-default, so a file-only logLevel/logJSON
	// actually takes effect.
	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})

	demo, _ := cmd.Flags().GetBool("demo")

	events := make(chan aggregator.Event, eventChannelCapacity)
	commands := make(chan aggregator.Command, 64)

	aggCfg := aggregator.Config{
		PublishInterval: cfg.PublishInterval,
		Retention:       cfg.Retention,
		EventDrainObserver: func(d time.Duration) {
			metrics.EventDrainDuration.Observe(d.Seconds())
		},
		PublishObserver: func(d time.Duration) {
			metrics.PublishDuration.Observe(d.Seconds())
		},
	}

	var recorder *aggregator.FileRecorder
	if cfg.RecordingPath != "" {
		f, err := os.Create(cfg.RecordingPath)
		if err != nil {
			return fmt.Errorf("open recording file: %w", err)
		}
		defer f.Close()
		recorder = aggregator.NewFileRecorder(f)
		aggCfg.Recorder = recorder
		log.WithComponent("cli").Info().Str("path", cfg.RecordingPath).Msg("recording raw events")
	}

	agg := aggregator.New(events, commands, aggCfg)

	server := api.NewServer(commands)
	metrics.SetVersion(Version)
	metrics.RegisterComponent("api", false, "starting")
	metrics.RegisterComponent("aggregator", false, "starting")

	collector := metrics.NewCollector(commands)
	collector.Start()
	defer collector.Stop()

	var demoSource *aggregator.DemoSource
	if demo {
		demoSource = aggregator.NewDemoSource(events, agg.Flush())
		demoSource.Start()
		defer demoSource.Stop()
		log.WithComponent("cli").Info().Msg("feeding aggregator from the demo event generator")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go agg.Run(ctx)
	server.MarkServing()
	metrics.RegisterComponent("aggregator", true, "")

	grpcErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.GRPCAddr); err != nil {
			grpcErrCh <- err
		}
	}()
	metrics.RegisterComponent("api", true, "")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	httpServer := &http.Server{
		Addr:         cfg.MetricsAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	httpErrCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			httpErrCh <- err
		}
	}()

	log.WithComponent("cli").Info().
		Str("grpc_addr", cfg.GRPCAddr).
		Str("metrics_addr", cfg.MetricsAddr).
		Dur("publish_interval", cfg.PublishInterval).
		Dur("retention", cfg.Retention).
		Msg("taskpulsed serving")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.WithComponent("cli").Info().Msg("shutting down")
	case err := <-grpcErrCh:
		log.WithComponent("cli").Error().Err(err).Msg("grpc server failed")
	case err := <-httpErrCh:
		log.WithComponent("cli").Error().Err(err).Msg("http server failed")
	}

	metrics.RegisterComponent("api", false, "shutting down")
	metrics.RegisterComponent("aggregator", false, "shutting down")
	server.MarkNotServing()
	cancel()
	server.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	return nil
}
