package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oriys/bloomd/internal/config"
	"github.com/oriys/bloomd/internal/filtmgr"
	"github.com/oriys/bloomd/internal/logging"
	"github.com/oriys/bloomd/internal/metrics"
	"github.com/oriys/bloomd/internal/observability"
	"github.com/spf13/cobra"
)

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	config.LoadFromEnv(cfg)
	if dataDir != "" {
		cfg.Daemon.DataDir = dataDir
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bloomd daemon",
		Long:  "Start the filter manager, the vacuum worker, and the admin HTTP surface (/metrics, /healthz)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Daemon.LogLevel = logLevel
			}

			logging.SetLevelFromString(cfg.Daemon.LogLevel)
			logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)

			if err := observability.Init(context.Background(), observability.Config{
				Enabled:     cfg.Observability.Tracing.Enabled,
				Exporter:    cfg.Observability.Tracing.Exporter,
				Endpoint:    cfg.Observability.Tracing.Endpoint,
				ServiceName: cfg.Observability.Tracing.ServiceName,
				SampleRate:  cfg.Observability.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(context.Background())

			if cfg.Observability.Metrics.Enabled {
				metrics.InitPrometheus(cfg.Observability.Metrics.Namespace, cfg.Observability.Metrics.HistogramBuckets)
			}
			metrics.MarkStart(time.Now())

			mgr, err := filtmgr.Init(cfg.Daemon.DataDir, bloomConfigFrom(cfg))
			if err != nil {
				return fmt.Errorf("init filter manager: %w", err)
			}

			workerCtx, cancelWorker := context.WithCancel(context.Background())
			mgr.StartWorker(workerCtx, cfg.Vacuum.Interval, cfg.Vacuum.CooldownPeriod)
			logging.Op().Info("bloomd: vacuum worker started", "tick", cfg.Vacuum.Interval, "cooldown", cfg.Vacuum.CooldownPeriod)

			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.HTTPMiddleware(metrics.PrometheusHandler()))
			mux.Handle("/debug/vars", observability.HTTPMiddleware(metrics.Global().JSONHandler()))
			mux.HandleFunc("/healthz", observability.TracingHandler("healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			}))

			server := &http.Server{Addr: cfg.Daemon.HTTPAddr, Handler: mux}
			go func() {
				logging.Op().Info("bloomd: admin HTTP listening", "addr", cfg.Daemon.HTTPAddr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logging.Op().Error("bloomd: admin HTTP server failed", "error", err)
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			logging.Op().Info("bloomd: shutdown signal received")

			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			_ = server.Shutdown(shutdownCtx)

			cancelWorker()
			mgr.StopWorker()
			if err := mgr.Destroy(); err != nil {
				logging.Op().Warn("bloomd: teardown reported errors", "error", err)
			}
			logging.Op().Info("bloomd: stopped", "uptime", time.Since(metrics.StartTime()))
			return nil
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")
	return cmd
}
