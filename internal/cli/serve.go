package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anything-ai/anything-ai/internal/handlers"
	"github.com/anything-ai/anything-ai/internal/i18n"
	"github.com/anything-ai/anything-ai/internal/middleware"
	"github.com/anything-ai/anything-ai/internal/queue"
	"github.com/anything-ai/anything-ai/internal/respond"
	"github.com/anything-ai/anything-ai/internal/seed"
	"github.com/anything-ai/anything-ai/internal/services/ai"
	"github.com/anything-ai/anything-ai/internal/services/auth"
	"github.com/anything-ai/anything-ai/internal/services/cache"
	"github.com/anything-ai/anything-ai/internal/services/lookup"
	"github.com/anything-ai/anything-ai/internal/services/storage"
	"github.com/anything-ai/anything-ai/internal/services/usage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveSeedFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API until SIGINT or SIGTERM.

With the memory backend nothing survives a restart; pass --seed to load
departments and users at startup.

Examples:
  anythingai serve
  anythingai serve --config configs/config.yaml --seed configs/seed.yaml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveSeedFile, "seed", "", "seed file applied before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	log.WithFields(logrus.Fields{
		"model":   cfg.Upstream.Model,
		"storage": cfg.Storage.Type,
		"queue":   cfg.Queue.Concurrency,
	}).Info("Starting Anything AI...")

	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		return fmt.Errorf("initialize i18n: %w", err)
	}

	metrics := middleware.NewMetrics()
	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	store, err := storage.NewManager(&cfg.Storage, log, metrics)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	defer store.Close()

	if serveSeedFile != "" {
		file, err := seed.Load(serveSeedFile)
		if err != nil {
			return err
		}
		if _, err := seed.Apply(cmd.Context(), store, file, log); err != nil {
			return fmt.Errorf("apply seed: %w", err)
		}
	}

	recorder, err := usage.NewRecorder(&cfg.Usage, metrics)
	if err != nil {
		return fmt.Errorf("open usage log: %w", err)
	}
	defer recorder.Close()

	q := queue.New(cfg.Queue.Concurrency)
	q.OnChange(func(s queue.Stats) {
		metrics.SetQueue(s.Active, s.Pending)
	})

	limiter := middleware.NewRateLimiter(&cfg.RateLimit, log)
	defer limiter.Stop()

	handler := handlers.NewHandler(handlers.Deps{
		Config:    cfg,
		Storage:   store,
		Generator: ai.NewClient(&cfg.Upstream, metrics, log),
		Providers: lookup.NewProviders(&cfg.Lookup, cache.NewCache(&cfg.Cache, log, metrics), log),
		Queue:     q,
		Tokens:    auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Usage:     recorder,
		Responder: respond.New(localizer, log),
		Metrics:   metrics,
		Logger:    log,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handlers.NewRouter(handler, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	// In-flight streams get until the timeout to finish
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("Graceful shutdown incomplete")
	}

	log.Info("Server stopped")
	return nil
}
