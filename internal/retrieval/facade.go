package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/promptvault/promptvault/internal/embedding"
	"github.com/promptvault/promptvault/internal/models"
	"github.com/promptvault/promptvault/internal/vectorstore"
)

// defaultSearchK bounds similarity searches that did not ask for a size.
const defaultSearchK = 10

// Facade is the read path over the sink for downstream consumers. It adds
// no policy of its own beyond input validation.
type Facade struct {
	store    vectorstore.Store
	embedder embedding.Embedder
	logger   *slog.Logger
}

// NewFacade creates a facade over the given sink and embedder.
func NewFacade(store vectorstore.Store, embedder embedding.Embedder, logger *slog.Logger) *Facade {
	return &Facade{
		store:    store,
		embedder: embedder,
		logger:   logger,
	}
}

// Records returns stored records matching the query, newest first.
func (f *Facade) Records(ctx context.Context, query models.RecordQuery) ([]models.ImageRecord, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	records, err := f.store.List(ctx, vectorstore.Filter{BaseModel: query.BaseModel}, query.Limit)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	f.logger.Debug("records listed",
		"base_model", query.BaseModel,
		"limit", query.Limit,
		"returned", len(records))
	return records, nil
}

// SimilarPrompts embeds the query prompt and returns the k stored prompts
// closest to it by cosine similarity, best first. An empty baseModel
// searches across all base models.
func (f *Facade) SimilarPrompts(ctx context.Context, prompt, baseModel string, k int) ([]models.PromptMatch, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("prompt must not be empty")
	}
	if baseModel != "" {
		canonical, ok := models.CanonicalBaseModel(baseModel)
		if !ok {
			return nil, fmt.Errorf("unsupported base model %q (supported: %v)", baseModel, models.AllowedBaseModels())
		}
		baseModel = canonical
	}
	if k <= 0 {
		k = defaultSearchK
	}

	vector, err := f.embedder.Embed(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("embedding query prompt: %w", err)
	}

	matches, err := f.store.Search(ctx, vector, vectorstore.Filter{BaseModel: baseModel}, k)
	if err != nil {
		return nil, fmt.Errorf("searching prompts: %w", err)
	}

	f.logger.Debug("similar prompts searched",
		"base_model", baseModel,
		"k", k,
		"returned", len(matches))
	return matches, nil
}

// Count returns the number of records in the sink.
func (f *Facade) Count(ctx context.Context) (int64, error) {
	return f.store.Count(ctx)
}
