package ingestion

import (
	"context"
	"log/slog"

	"github.com/promptvault/promptvault/internal/embedding"
	"github.com/promptvault/promptvault/internal/models"
	"github.com/promptvault/promptvault/internal/vectorstore"
)

// Coordinator writes normalized records into the sink, skipping ids that
// are already present. The first write for an id wins permanently.
type Coordinator struct {
	store    vectorstore.Store
	embedder embedding.Embedder
	logger   *slog.Logger
}

// NewCoordinator creates a coordinator over the given sink and embedder.
func NewCoordinator(store vectorstore.Store, embedder embedding.Embedder, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		embedder: embedder,
		logger:   logger,
	}
}

// IngestBatch inserts the records that are new and skips the rest. Records
// are handled independently: a failed existence check, embedding, or write
// counts that one record as failed and never aborts the batch. Duplicate
// ids within the batch collapse to their first occurrence.
func (c *Coordinator) IngestBatch(ctx context.Context, records []models.ImageRecord) models.IngestResult {
	var result models.IngestResult
	seen := make(map[int64]bool, len(records))

	for _, record := range records {
		if seen[record.ID] {
			result.Skipped++
			continue
		}
		seen[record.ID] = true

		exists, err := c.store.Exists(ctx, record.ID)
		if err != nil {
			// Presence is unknown; do not write and do not count a skip.
			c.logger.Error("existence check failed", "id", record.ID, "error", err)
			result.Failed++
			continue
		}
		if exists {
			c.logger.Debug("record already stored, skipping", "id", record.ID)
			result.Skipped++
			continue
		}

		vector, err := c.embedder.Embed(ctx, record.Prompt)
		if err != nil {
			c.logger.Error("failed to embed prompt", "id", record.ID, "error", err)
			result.Failed++
			continue
		}

		if err := c.store.Insert(ctx, vectorstore.Point{Record: record, Vector: vector}); err != nil {
			c.logger.Error("failed to insert record", "id", record.ID, "error", err)
			result.Failed++
			continue
		}
		result.Inserted++
	}

	c.logger.Debug("batch ingested",
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"failed", result.Failed)
	return result
}
