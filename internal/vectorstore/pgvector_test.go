package vectorstore

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/promptvault/promptvault/internal/config"
	"github.com/promptvault/promptvault/internal/models"
)

func TestToVectorLiteral(t *testing.T) {
	tests := []struct {
		name      string
		embedding []float32
		dim       int
		expected  string
		wantErr   bool
	}{
		{"Simple vector", []float32{0.5, -1, 2}, 3, "[0.5,-1,2]", false},
		{"Dimension check passes", []float32{1, 2}, 2, "[1,2]", false},
		{"Dimension mismatch", []float32{1, 2}, 3, "", true},
		{"Empty embedding", nil, 3, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toVectorLiteral(tt.embedding, tt.dim)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("toVectorLiteral returned error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("toVectorLiteral = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestNewPgVectorStoreFromDB_Validation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if _, err := NewPgVectorStoreFromDB(nil, "civitai_images", 1536, logger); err == nil {
		t.Error("expected error for nil db")
	}
}

func TestCollectionNameValidation(t *testing.T) {
	tests := []struct {
		name  string
		table string
		valid bool
	}{
		{"Plain identifier", "civitai_images", true},
		{"Leading underscore", "_staging", true},
		{"Uppercase", "Images2024", true},
		{"Leading digit", "2024_images", false},
		{"Quoting attempt", `images"; DROP TABLE x; --`, false},
		{"Hyphenated", "civitai-images", false},
		{"Empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validCollection.MatchString(tt.table); got != tt.valid {
				t.Errorf("validCollection(%q) = %v, want %v", tt.table, got, tt.valid)
			}
		})
	}
}

// Requires a Postgres instance with pgvector installed. Supply
// TEST_DATABASE_URL to run, e.g. postgres://localhost/promptvault_test.
func TestPgVectorStore_RoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; requires Postgres with pgvector")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	store, err := NewPgVectorStore(ctx, config.SinkConfig{
		Driver:       "postgres",
		DatabaseURL:  dsn,
		Collection:   "promptvault_roundtrip_test",
		EmbeddingDim: 3,
	}, logger)
	if err != nil {
		t.Fatalf("NewPgVectorStore returned error: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema returned error: %v", err)
	}

	rec := models.ImageRecord{
		ID:             60535375,
		ImageURL:       "https://image.example/60535375.jpeg",
		Prompt:         "a lighthouse at dusk",
		NegativePrompt: "blurry",
		BaseModel:      models.BaseModelFlux1D,
		Metadata:       map[string]any{"seed": float64(1234), "sampler": "Euler"},
	}

	if err := store.Insert(ctx, Point{Record: rec, Vector: []float32{1, 0, 0}}); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	// Same id again: no error, no overwrite.
	changed := rec
	changed.Prompt = "changed"
	if err := store.Insert(ctx, Point{Record: changed, Vector: []float32{0, 1, 0}}); err != nil {
		t.Fatalf("second Insert returned error: %v", err)
	}

	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Prompt != "a lighthouse at dusk" {
		t.Errorf("Prompt = %q, first write must win", got.Prompt)
	}

	exists, err := store.Exists(ctx, rec.ID)
	if err != nil || !exists {
		t.Errorf("Exists = %v, %v; want true, nil", exists, err)
	}

	matches, err := store.Search(ctx, []float32{1, 0, 0}, Filter{BaseModel: models.BaseModelFlux1D}, 5)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(matches) == 0 || matches[0].Record.ID != rec.ID {
		t.Errorf("Search did not return the inserted record: %+v", matches)
	}
}
