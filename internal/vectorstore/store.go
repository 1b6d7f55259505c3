package vectorstore

import (
	"context"
	"errors"

	"github.com/promptvault/promptvault/internal/models"
)

// Point pairs a normalized record with its prompt embedding.
type Point struct {
	Record models.ImageRecord
	Vector []float32
}

// Filter narrows List and Search results. Zero value matches everything.
type Filter struct {
	BaseModel string
}

// ErrNotFound is returned by Get for ids that were never stored.
var ErrNotFound = errors.New("record not found")

// Store persists normalized records with their embeddings. Insert is
// insert-if-absent: the first write for an id wins and later writes are
// silent no-ops, which keeps re-ingestion of already-processed pages safe.
type Store interface {
	// EnsureSchema provisions the collection (table, indexes).
	EnsureSchema(ctx context.Context) error

	// Exists reports whether a record with the given id is already stored.
	Exists(ctx context.Context, id int64) (bool, error)

	// Insert stores a point unless its id is already present.
	Insert(ctx context.Context, point Point) error

	// Get retrieves a record by id, ErrNotFound when absent.
	Get(ctx context.Context, id int64) (*models.ImageRecord, error)

	// List returns stored records matching the filter, newest first.
	List(ctx context.Context, filter Filter, limit int) ([]models.ImageRecord, error)

	// Search returns the k records closest to the vector by cosine
	// similarity, best first.
	Search(ctx context.Context, vector []float32, filter Filter, k int) ([]models.PromptMatch, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
