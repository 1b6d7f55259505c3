package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/promptvault/promptvault/internal/config"
)

// OpenAIEmbedder computes prompt embeddings with the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dim    int
	logger *slog.Logger
}

// NewOpenAIEmbedder creates an embedder for the configured model. dim must
// match what the sink's vector columns were provisioned with.
func NewOpenAIEmbedder(cfg config.EmbeddingConfig, dim int, logger *slog.Logger) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: openai.NewClient(cfg.APIKey),
		model:  cfg.Model,
		dim:    dim,
		logger: logger,
	}
}

// Embed returns the embedding vector for one text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	apiCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	request := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	}
	// Dimension shortening is only supported by the v3 embedding models.
	if strings.HasPrefix(e.model, "text-embedding-3") {
		request.Dimensions = e.dim
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(apiCtx, request)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings call failed: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned from model %s", e.model)
	}

	vector := resp.Data[0].Embedding
	if len(vector) != e.dim {
		return nil, fmt.Errorf("embedding dimension mismatch: model %s returned %d, sink expects %d", e.model, len(vector), e.dim)
	}

	e.logger.Debug("embedded text",
		"model", e.model,
		"chars", len(text),
		"duration_ms", time.Since(start).Milliseconds())

	return vector, nil
}

// Dimension returns the configured vector width.
func (e *OpenAIEmbedder) Dimension() int {
	return e.dim
}
