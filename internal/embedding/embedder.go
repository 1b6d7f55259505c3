package embedding

import (
	"context"
)

// Embedder turns prompt text into a fixed-width vector. The pipeline embeds
// one prompt per record so a single failure stays isolated to that record.
type Embedder interface {
	// Embed computes the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the width every Embed result has.
	Dimension() int
}
