package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sifan077/HashURL/config"
	apprepository "github.com/sifan077/HashURL/internal/app/repository"
	appserver "github.com/sifan077/HashURL/internal/app/server"
	appservice "github.com/sifan077/HashURL/internal/app/service"
	"github.com/sifan077/HashURL/internal/infra/logger"
	infraNATS "github.com/sifan077/HashURL/internal/infra/nats"
	infraPrometheus "github.com/sifan077/HashURL/internal/infra/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log, err := logger.Init(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	log.Info("Configuration loaded successfully",
		zap.String("addr", cfg.Server.Addr),
		zap.String("default_algorithm", cfg.Server.DefaultAlgorithm),
		zap.Duration("retention", cfg.Links.Retention),
		zap.Bool("enforce_expiry", cfg.Links.EnforceExpiry),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
		zap.Bool("prometheus_enabled", cfg.Prometheus.Enabled),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := infraPrometheus.NewMetrics(registry)

	if cfg.Prometheus.Enabled {
		promServer := infraPrometheus.NewServer(cfg.Prometheus, registry)
		go func() {
			log.Info("Starting Prometheus metrics server", zap.String("addr", promServer.Addr))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Prometheus metrics server disabled")
	}

	links := appservice.NewLinkService(apprepository.NewMemoryLinkRepository(), appservice.Options{
		Logger:           log.Named("links"),
		Metrics:          metrics,
		Retention:        cfg.Links.Retention,
		EnforceExpiry:    cfg.Links.EnforceExpiry,
		DetectCollisions: cfg.Links.DetectCollisions,
	})

	deps := appserver.Dependencies{
		Logger:              log,
		Links:               links,
		DefaultAlgorithm:    cfg.Server.DefaultAlgorithm,
		DefaultRankingLimit: cfg.Server.DefaultRankingLimit,
		MaxRankingLimit:     cfg.Server.MaxRankingLimit,
	}

	if cfg.NATS.Enabled {
		natsConn, js, err := infraNATS.Connect(cfg.NATS, log.Named("nats"))
		if err != nil {
			return err
		}
		defer natsConn.Drain()
		log.Info("Connected to NATS successfully", zap.String("url", natsConn.ConnectedUrl()))

		if err := appservice.EnsureStream(js); err != nil {
			return err
		}
		deps.ClickPublisher = appservice.NewClickPublisher(js)

		if cfg.NATS.Consume {
			consumer := appservice.NewClickConsumer(js, log.Named("clicks"), metrics)
			if err := consumer.Start(ctx); err != nil {
				return err
			}
			log.Info("Click event consumer started")
		}
	}

	server := appserver.New(deps)

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", zap.String("addr", cfg.Server.Addr))
		errCh <- server.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown incomplete", zap.Error(err))
	}
	return nil
}
