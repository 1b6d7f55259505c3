package main

import (
	"fmt"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/promptvault/promptvault/internal/civitai"
	"github.com/promptvault/promptvault/internal/ingestion"
	"github.com/promptvault/promptvault/internal/metrics"
	"github.com/promptvault/promptvault/internal/models"
	"github.com/promptvault/promptvault/internal/transport"
)

func newIngestCmd() *cobra.Command {
	var (
		target      int
		resetCursor bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run a single ingestion pass",
		Long: `Ingest fetches pages from the Civitai images API, keeps records that
carry a prompt and a supported base model, and stores them with prompt
embeddings. The run resumes from the saved cursor and stops when
pagination ends or the target count is reached.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("target") {
				cfg.Ingest.TargetCount = target
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

			cursors := ingestion.NewFileCursorStore(cfg.Cursor.Path, logger)
			if resetCursor {
				if err := cursors.Save(ctx, ingestion.CursorState{}); err != nil {
					return fmt.Errorf("resetting cursor: %w", err)
				}
				logger.Info("cursor reset, starting from the first page")
			}

			registry := prometheus.NewRegistry()
			collector, err := metrics.NewIngestCollector(registry)
			if err != nil {
				return fmt.Errorf("registering metrics: %w", err)
			}

			httpClient := transport.NewClient(transport.DefaultPolicy(), cfg.Civitai.Timeout)
			fetcher := civitai.NewClient(cfg.Civitai, httpClient, logger)
			coordinator := ingestion.NewCoordinator(store, buildEmbedder(cfg, logger), logger)
			pipeline := ingestion.NewPipeline(fetcher, coordinator, cursors, collector, cfg.Ingest, logger)

			summary, runErr := pipeline.Run(ctx)
			printRunSummary(summary)
			return runErr
		},
	}

	cmd.Flags().IntVar(&target, "target", 0, "Stop after this many records were processed (0 = run until pagination ends)")
	cmd.Flags().BoolVar(&resetCursor, "reset-cursor", false, "Discard the saved cursor and start from the first page")

	return cmd
}

func printRunSummary(summary *models.RunSummary) {
	if summary == nil {
		return
	}
	if jsonOutput {
		printJSON(summary)
		return
	}

	fmt.Printf("Run %s %s in %s\n", summary.RunID, summary.Status, summary.Duration().Round(time.Millisecond))
	fmt.Printf("  Pages:    %d\n", summary.Pages)
	fmt.Printf("  Fetched:  %d\n", summary.Fetched)
	fmt.Printf("  Inserted: %d\n", summary.Inserted)
	fmt.Printf("  Skipped:  %d\n", summary.Skipped)
	fmt.Printf("  Failed:   %d\n", summary.Failed)
	if len(summary.Rejected) > 0 {
		reasons := make([]string, 0, len(summary.Rejected))
		for reason := range summary.Rejected {
			reasons = append(reasons, string(reason))
		}
		sort.Strings(reasons)
		fmt.Printf("  Rejected: %d\n", summary.RejectedTotal())
		for _, reason := range reasons {
			fmt.Printf("    %s: %d\n", reason, summary.Rejected[models.RejectReason(reason)])
		}
	}
}
