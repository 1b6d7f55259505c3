package ingestion

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/promptvault/promptvault/internal/models"
	"github.com/promptvault/promptvault/internal/vectorstore"
)

// stubEmbedder returns a fixed vector, failing only for one chosen prompt.
type stubEmbedder struct {
	failOn string
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.failOn != "" && text == e.failOn {
		return nil, errors.New("embedding backend unavailable")
	}
	return []float32{1, 0, 0, 0}, nil
}

func (e *stubEmbedder) Dimension() int { return 4 }

// faultyStore injects failures for chosen ids on top of a memory store.
type faultyStore struct {
	*vectorstore.MemoryStore
	failInsertID int64
	failExistsID int64
}

func (s *faultyStore) Insert(ctx context.Context, point vectorstore.Point) error {
	if point.Record.ID == s.failInsertID {
		return errors.New("write rejected")
	}
	return s.MemoryStore.Insert(ctx, point)
}

func (s *faultyStore) Exists(ctx context.Context, id int64) (bool, error) {
	if id == s.failExistsID {
		return false, errors.New("connection reset")
	}
	return s.MemoryStore.Exists(ctx, id)
}

func makeRecord(id int64, prompt string) models.ImageRecord {
	return models.ImageRecord{
		ID:         id,
		ImageURL:   fmt.Sprintf("https://image.civitai.com/%d.jpeg", id),
		Prompt:     prompt,
		BaseModel:  models.BaseModelPony,
		IngestedAt: time.Now().UTC(),
	}
}

func TestIngestBatch_InsertsNewRecords(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	coord := NewCoordinator(store, &stubEmbedder{}, testLogger())
	ctx := context.Background()

	result := coord.IngestBatch(ctx, []models.ImageRecord{
		makeRecord(1, "castle on a cliff"),
		makeRecord(2, "castle in the clouds"),
	})

	want := models.IngestResult{Inserted: 2}
	if result != want {
		t.Errorf("IngestBatch() = %+v, want %+v", result, want)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("stored count = %d, want 2", count)
	}
}

func TestIngestBatch_SecondRunInsertsNothing(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	coord := NewCoordinator(store, &stubEmbedder{}, testLogger())
	ctx := context.Background()

	batch := []models.ImageRecord{
		makeRecord(1, "castle on a cliff"),
		makeRecord(2, "castle in the clouds"),
		makeRecord(3, "castle underwater"),
	}

	first := coord.IngestBatch(ctx, batch)
	if first.Inserted != 3 {
		t.Fatalf("first run Inserted = %d, want 3", first.Inserted)
	}

	// Same page again, different order.
	second := coord.IngestBatch(ctx, []models.ImageRecord{batch[2], batch[0], batch[1]})
	want := models.IngestResult{Inserted: 0, Skipped: 3}
	if second != want {
		t.Errorf("second run = %+v, want %+v", second, want)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 3 {
		t.Errorf("stored count = %d, want 3", count)
	}
}

func TestIngestBatch_FirstWriteWins(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	coord := NewCoordinator(store, &stubEmbedder{}, testLogger())
	ctx := context.Background()

	coord.IngestBatch(ctx, []models.ImageRecord{makeRecord(7, "original prompt")})

	altered := makeRecord(7, "rewritten prompt")
	result := coord.IngestBatch(ctx, []models.ImageRecord{altered})
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}

	stored, err := store.Get(ctx, 7)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.Prompt != "original prompt" {
		t.Errorf("stored prompt = %q, want the first write preserved", stored.Prompt)
	}
}

func TestIngestBatch_CollapsesDuplicateIDs(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	coord := NewCoordinator(store, &stubEmbedder{}, testLogger())

	result := coord.IngestBatch(context.Background(), []models.ImageRecord{
		makeRecord(1, "first occurrence"),
		makeRecord(1, "duplicate in the same page"),
		makeRecord(2, "another record"),
	})

	want := models.IngestResult{Inserted: 2, Skipped: 1}
	if result != want {
		t.Errorf("IngestBatch() = %+v, want %+v", result, want)
	}

	stored, err := store.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.Prompt != "first occurrence" {
		t.Errorf("stored prompt = %q, want first occurrence to win", stored.Prompt)
	}
}

func TestIngestBatch_WriteFailureDoesNotAbortBatch(t *testing.T) {
	store := &faultyStore{MemoryStore: vectorstore.NewMemoryStore(), failInsertID: 3}
	coord := NewCoordinator(store, &stubEmbedder{}, testLogger())
	ctx := context.Background()

	batch := make([]models.ImageRecord, 0, 5)
	for i := int64(1); i <= 5; i++ {
		batch = append(batch, makeRecord(i, fmt.Sprintf("prompt %d", i)))
	}

	result := coord.IngestBatch(ctx, batch)
	want := models.IngestResult{Inserted: 4, Skipped: 0, Failed: 1}
	if result != want {
		t.Errorf("IngestBatch() = %+v, want %+v", result, want)
	}
}

func TestIngestBatch_EmbedFailureIsolated(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	coord := NewCoordinator(store, &stubEmbedder{failOn: "poison prompt"}, testLogger())
	ctx := context.Background()

	result := coord.IngestBatch(ctx, []models.ImageRecord{
		makeRecord(1, "fine prompt"),
		makeRecord(2, "poison prompt"),
		makeRecord(3, "another fine prompt"),
	})

	want := models.IngestResult{Inserted: 2, Failed: 1}
	if result != want {
		t.Errorf("IngestBatch() = %+v, want %+v", result, want)
	}
	if exists, _ := store.Exists(ctx, 2); exists {
		t.Error("record 2 was stored despite its embedding failing")
	}
}

func TestIngestBatch_ExistsErrorCountsAsFailed(t *testing.T) {
	store := &faultyStore{MemoryStore: vectorstore.NewMemoryStore(), failExistsID: 2}
	coord := NewCoordinator(store, &stubEmbedder{}, testLogger())
	ctx := context.Background()

	result := coord.IngestBatch(ctx, []models.ImageRecord{
		makeRecord(1, "prompt one"),
		makeRecord(2, "prompt two"),
	})

	want := models.IngestResult{Inserted: 1, Failed: 1}
	if result != want {
		t.Errorf("IngestBatch() = %+v, want %+v", result, want)
	}
	if exists, _ := store.MemoryStore.Exists(ctx, 2); exists {
		t.Error("record 2 was written despite its existence check failing")
	}
}
