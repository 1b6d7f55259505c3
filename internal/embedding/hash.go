package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// HashEmbedder is a deterministic, dependency-free embedder for tests and
// keyless local runs. It feature-hashes lowercased tokens into a fixed-width
// signed vector and L2-normalizes it, so texts sharing tokens land closer
// together under cosine similarity. Not a substitute for a real model.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a hash embedder producing vectors of width dim.
func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{dim: dim}
}

// Embed computes the token-hash vector for text. It never fails.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vector := make([]float32, e.dim)

	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(token))
		sum := h.Sum32()

		idx := int(sum % uint32(e.dim))
		if sum&0x80000000 != 0 {
			vector[idx]--
		} else {
			vector[idx]++
		}
	}

	normalize(vector)
	return vector, nil
}

// Dimension returns the configured vector width.
func (e *HashEmbedder) Dimension() int {
	return e.dim
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		// Empty text still needs a unit vector so stores never see zeros.
		v[0] = 1
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
