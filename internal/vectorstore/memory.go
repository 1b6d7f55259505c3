package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/promptvault/promptvault/internal/models"
)

// MemoryStore implements an in-memory Store for testing and the "memory"
// sink driver. Search is a brute-force cosine scan, fine at test scale.
type MemoryStore struct {
	mu     sync.RWMutex
	points map[int64]Point
	order  []int64 // insertion order, oldest first
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		points: make(map[int64]Point),
	}
}

// EnsureSchema is a no-op for the in-memory store.
func (s *MemoryStore) EnsureSchema(ctx context.Context) error {
	return nil
}

// Exists reports whether the id is stored.
func (s *MemoryStore) Exists(ctx context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.points[id]
	return ok, nil
}

// Insert stores the point unless the id is already present.
func (s *MemoryStore) Insert(ctx context.Context, point Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.points[point.Record.ID]; ok {
		return nil
	}

	s.points[point.Record.ID] = point
	s.order = append(s.order, point.Record.ID)
	return nil
}

// Get retrieves a record by id.
func (s *MemoryStore) Get(ctx context.Context, id int64) (*models.ImageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	point, ok := s.points[id]
	if !ok {
		return nil, ErrNotFound
	}

	record := point.Record
	return &record, nil
}

// List returns stored records matching the filter, newest first.
func (s *MemoryStore) List(ctx context.Context, filter Filter, limit int) ([]models.ImageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.ImageRecord, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(result) < limit; i-- {
		point := s.points[s.order[i]]
		if filter.BaseModel != "" && point.Record.BaseModel != filter.BaseModel {
			continue
		}
		result = append(result, point.Record)
	}

	return result, nil
}

// Search returns the k closest records by cosine similarity, best first.
func (s *MemoryStore) Search(ctx context.Context, vector []float32, filter Filter, k int) ([]models.PromptMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 {
		k = 10
	}

	matches := make([]models.PromptMatch, 0, len(s.points))
	for _, point := range s.points {
		if filter.BaseModel != "" && point.Record.BaseModel != filter.BaseModel {
			continue
		}
		matches = append(matches, models.PromptMatch{
			Record: point.Record,
			Score:  cosineSimilarity(vector, point.Vector),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Record.ID < matches[j].Record.ID
	})

	if len(matches) > k {
		matches = matches[:k]
	}

	return matches, nil
}

// Count returns the number of stored records.
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.points)), nil
}

// HealthCheck always succeeds for the in-memory store.
func (s *MemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
