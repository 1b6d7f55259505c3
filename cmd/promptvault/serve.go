package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/promptvault/promptvault/internal/civitai"
	"github.com/promptvault/promptvault/internal/ingestion"
	"github.com/promptvault/promptvault/internal/metrics"
	"github.com/promptvault/promptvault/internal/scheduler"
	"github.com/promptvault/promptvault/internal/server"
	"github.com/promptvault/promptvault/internal/transport"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run periodic ingestion alongside the admin HTTP server",
		Long: `Serve runs the ingestion pipeline on a fixed interval and exposes the
admin endpoints (/healthz, /metrics, /api/status) until SIGINT or
SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("ensuring schema: %w", err)
			}

			registry := prometheus.NewRegistry()
			ingestMetrics, err := metrics.NewIngestCollector(registry)
			if err != nil {
				return fmt.Errorf("registering ingest metrics: %w", err)
			}
			httpMetrics, err := metrics.NewHTTPCollector(registry)
			if err != nil {
				return fmt.Errorf("registering http metrics: %w", err)
			}

			cursors := ingestion.NewFileCursorStore(cfg.Cursor.Path, logger)
			httpClient := transport.NewClient(transport.DefaultPolicy(), cfg.Civitai.Timeout)
			fetcher := civitai.NewClient(cfg.Civitai, httpClient, logger)
			coordinator := ingestion.NewCoordinator(store, buildEmbedder(cfg, logger), logger)
			pipeline := ingestion.NewPipeline(fetcher, coordinator, cursors, ingestMetrics, cfg.Ingest, logger)

			sched := scheduler.NewIngestScheduler(pipeline, cfg.Ingest.Interval, logger)
			handler := server.NewHandler(store, cursors, sched, cfg.Auth, registry, httpMetrics, logger)
			srv := server.New(cfg.Server, logger, handler)

			logger.Info("starting promptvault",
				"port", cfg.Server.Port,
				"ingest_interval", cfg.Ingest.Interval,
				"sink_driver", cfg.Sink.Driver)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				sched.Start(gctx)
				return nil
			})
			g.Go(func() error {
				return srv.Run(gctx)
			})

			if err := g.Wait(); err != nil {
				return err
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
}
