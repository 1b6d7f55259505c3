package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/promptvault/promptvault/internal/civitai"
	"github.com/promptvault/promptvault/internal/config"
	"github.com/promptvault/promptvault/internal/metrics"
	"github.com/promptvault/promptvault/internal/models"
)

// Run terminal statuses reported to metrics and logs.
const (
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCanceled  = "canceled"
)

// PageFetcher is the slice of the provider client the pipeline depends on.
type PageFetcher interface {
	// FetchPage retrieves one page of raw items for the given cursor.
	// An empty cursor requests the first page.
	FetchPage(ctx context.Context, cursor string) (*civitai.Page, error)
}

// Pipeline drives one ingestion run at a time: fetch a page, normalize its
// items, ingest the batch, save the cursor, repeat. Pages are processed
// strictly sequentially.
type Pipeline struct {
	fetcher     PageFetcher
	coordinator *Coordinator
	cursors     CursorStore
	collector   *metrics.IngestCollector
	limiter     *rate.Limiter
	target      int
	logger      *slog.Logger
}

// NewPipeline wires a pipeline from its collaborators.
func NewPipeline(
	fetcher PageFetcher,
	coordinator *Coordinator,
	cursors CursorStore,
	collector *metrics.IngestCollector,
	cfg config.IngestConfig,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		fetcher:     fetcher,
		coordinator: coordinator,
		cursors:     cursors,
		collector:   collector,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		target:      cfg.TargetCount,
		logger:      logger,
	}
}

// Run executes one ingestion run. It stops cleanly when pagination ends,
// the target count is reached, or the context is canceled. Fetch and
// cursor I/O failures end the run without advancing the cursor, so the
// next run resumes from the last fully processed page.
//
// The returned summary is valid even when the error is non-nil: it covers
// everything processed up to the failure.
func (p *Pipeline) Run(ctx context.Context) (*models.RunSummary, error) {
	summary := &models.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Rejected:  make(map[models.RejectReason]int),
	}
	p.logger.Info("starting ingestion run",
		"run_id", summary.RunID,
		"target", p.target)

	state, err := p.cursors.Load(ctx)
	if err != nil {
		return p.finish(summary, err)
	}
	cursor := state.Cursor
	stored := state.TotalProcessed
	if cursor != "" {
		p.logger.Info("resuming from saved cursor",
			"cursor", cursor,
			"total_processed", stored)
	}

	// The run's own processed count. The persisted total keeps
	// accumulating across runs; the target bounds only this run.
	processed := 0

	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return p.finish(summary, fmt.Errorf("waiting for rate limiter: %w", err))
		}

		start := time.Now()
		page, err := p.fetcher.FetchPage(ctx, cursor)
		if err != nil {
			return p.finish(summary, err)
		}
		p.collector.ObservePage(len(page.Items), time.Since(start))
		summary.Pages++
		summary.Fetched += len(page.Items)

		records, rejected := NormalizeBatch(page.Items)
		for reason, n := range rejected {
			summary.Rejected[reason] += n
		}

		result := p.coordinator.IngestBatch(ctx, records)
		p.collector.ObserveBatch(result, rejected)
		summary.Inserted += result.Inserted
		summary.Skipped += result.Skipped
		summary.Failed += result.Failed
		processed += result.Total()

		// The cursor is saved after every page, including pages that
		// normalized to zero valid records. A crash between ingest and
		// save re-fetches one page, which the id check absorbs.
		cursor = page.NextCursor
		state = CursorState{
			Cursor:         cursor,
			TotalProcessed: stored + int64(processed),
		}
		if err := p.cursors.Save(ctx, state); err != nil {
			return p.finish(summary, err)
		}
		summary.Cursor = cursor

		p.logger.Info("page ingested",
			"page", summary.Pages,
			"items", len(page.Items),
			"inserted", result.Inserted,
			"skipped", result.Skipped,
			"failed", result.Failed,
			"rejected", len(page.Items)-len(records))

		if len(page.Items) == 0 {
			p.logger.Info("no items received, stopping run")
			break
		}
		if cursor == "" {
			p.logger.Info("no next cursor, pagination complete")
			break
		}
		if p.target > 0 && processed >= p.target {
			p.logger.Info("target count reached",
				"processed", processed,
				"target", p.target)
			break
		}
	}

	return p.finish(summary, nil)
}

// finish stamps the summary, records run metrics, and logs the outcome.
func (p *Pipeline) finish(summary *models.RunSummary, err error) (*models.RunSummary, error) {
	summary.FinishedAt = time.Now().UTC()

	status := RunCompleted
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		status = RunCanceled
	case err != nil:
		status = RunFailed
	}
	summary.Status = status
	p.collector.ObserveRun(status)

	log := p.logger.Info
	if status == RunFailed {
		log = p.logger.Error
	}
	log("ingestion run finished",
		"run_id", summary.RunID,
		"status", status,
		"pages", summary.Pages,
		"fetched", summary.Fetched,
		"inserted", summary.Inserted,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"rejected", summary.RejectedTotal(),
		"duration_ms", summary.Duration().Milliseconds())
	return summary, err
}
