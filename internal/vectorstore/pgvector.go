package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/promptvault/promptvault/internal/config"
	"github.com/promptvault/promptvault/internal/models"
)

const (
	maxConnections     = 25
	maxIdleConnections = 5
	connMaxLifetime    = 30 * time.Minute
	connectTimeout     = 10 * time.Second
)

// Collection names end up in DDL, so they are restricted to plain
// identifiers.
var validCollection = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PgVectorStore implements Store backed by Postgres with the pgvector
// extension. The extension must already be installed in the target
// database.
type PgVectorStore struct {
	db     *sql.DB
	table  string
	dim    int
	logger *slog.Logger
}

// NewPgVectorStore connects to Postgres and verifies the connection.
// EnsureSchema still has to run before the first write.
func NewPgVectorStore(ctx context.Context, cfg config.SinkConfig, logger *slog.Logger) (*PgVectorStore, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxConnections)
	db.SetMaxIdleConns(maxIdleConnections)
	db.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store, err := NewPgVectorStoreFromDB(db, cfg.Collection, cfg.EmbeddingDim, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewPgVectorStoreFromDB reuses an existing handle, mainly for tests.
func NewPgVectorStoreFromDB(db *sql.DB, collection string, dimension int, logger *slog.Logger) (*PgVectorStore, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if !validCollection.MatchString(collection) {
		return nil, fmt.Errorf("invalid collection name %q", collection)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dimension)
	}

	return &PgVectorStore{
		db:     db,
		table:  collection,
		dim:    dimension,
		logger: logger,
	}, nil
}

// EnsureSchema creates the collection table and its indexes.
func (s *PgVectorStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
  id              bigint PRIMARY KEY,
  image_url       text NOT NULL,
  prompt          text NOT NULL,
  negative_prompt text NOT NULL DEFAULT '',
  base_model      text NOT NULL,
  metadata        jsonb,
  embedding       vector(%[2]d),
  ingested_at     timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS %[1]s_base_model_idx ON %[1]s (base_model);
CREATE INDEX IF NOT EXISTS %[1]s_embedding_idx ON %[1]s USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`, s.table, s.dim)

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensuring schema for %s: %w", s.table, err)
	}

	s.logger.Debug("schema ensured", "collection", s.table, "dimension", s.dim)
	return nil
}

// Exists reports whether a record with the given id is already stored.
func (s *PgVectorStore) Exists(ctx context.Context, id int64) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)`, s.table)

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking existence of %d: %w", id, err)
	}
	return exists, nil
}

// Insert stores a point unless its id is already present. Conflicts are
// resolved at the database so concurrent writers can never overwrite an
// existing record.
func (s *PgVectorStore) Insert(ctx context.Context, point Point) error {
	embedding, err := toVectorLiteral(point.Vector, s.dim)
	if err != nil {
		return err
	}

	metadata, err := json.Marshal(point.Record.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata for %d: %w", point.Record.ID, err)
	}

	ingestedAt := point.Record.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = time.Now().UTC()
	}

	stmt := fmt.Sprintf(`
INSERT INTO %s (id, image_url, prompt, negative_prompt, base_model, metadata, embedding, ingested_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::vector, $8)
ON CONFLICT (id) DO NOTHING`, s.table)

	if _, err := s.db.ExecContext(ctx, stmt,
		point.Record.ID,
		point.Record.ImageURL,
		point.Record.Prompt,
		point.Record.NegativePrompt,
		point.Record.BaseModel,
		metadata,
		embedding,
		ingestedAt,
	); err != nil {
		return fmt.Errorf("inserting record %d: %w", point.Record.ID, err)
	}

	return nil
}

// Get retrieves a record by id.
func (s *PgVectorStore) Get(ctx context.Context, id int64) (*models.ImageRecord, error) {
	query := fmt.Sprintf(`
SELECT id, image_url, prompt, negative_prompt, base_model, metadata, ingested_at
FROM %s WHERE id = $1`, s.table)

	record, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting record %d: %w", id, err)
	}
	return record, nil
}

// List returns stored records matching the filter, newest first.
func (s *PgVectorStore) List(ctx context.Context, filter Filter, limit int) ([]models.ImageRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	where := ""
	args := []any{}
	if filter.BaseModel != "" {
		where = "WHERE base_model = $1"
		args = append(args, filter.BaseModel)
	}

	query := fmt.Sprintf(`
SELECT id, image_url, prompt, negative_prompt, base_model, metadata, ingested_at
FROM %s %s
ORDER BY ingested_at DESC, id DESC
LIMIT %d`, s.table, where, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var records []models.ImageRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// Search returns the k records closest to the vector by cosine similarity.
func (s *PgVectorStore) Search(ctx context.Context, vector []float32, filter Filter, k int) ([]models.PromptMatch, error) {
	if k <= 0 {
		k = 10
	}

	embedding, err := toVectorLiteral(vector, s.dim)
	if err != nil {
		return nil, err
	}

	where := ""
	args := []any{embedding}
	if filter.BaseModel != "" {
		where = "WHERE base_model = $2"
		args = append(args, filter.BaseModel)
	}

	query := fmt.Sprintf(`
SELECT id, image_url, prompt, negative_prompt, base_model, metadata, ingested_at,
       1 - (embedding <=> $1::vector) AS score
FROM %s %s
ORDER BY embedding <=> $1::vector
LIMIT %d`, s.table, where, k)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching records: %w", err)
	}
	defer rows.Close()

	var matches []models.PromptMatch
	for rows.Next() {
		var record models.ImageRecord
		var metadata []byte
		var score float64
		if err := rows.Scan(
			&record.ID,
			&record.ImageURL,
			&record.Prompt,
			&record.NegativePrompt,
			&record.BaseModel,
			&metadata,
			&record.IngestedAt,
			&score,
		); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		unmarshalMetadata(metadata, &record)
		matches = append(matches, models.PromptMatch{Record: record, Score: score})
	}
	return matches, rows.Err()
}

// Count returns the number of stored records.
func (s *PgVectorStore) Count(ctx context.Context) (int64, error) {
	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return count, nil
}

// HealthCheck verifies database responsiveness.
func (s *PgVectorStore) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PgVectorStore) Close() error {
	return s.db.Close()
}

// Stats exposes connection pool statistics for the status endpoint.
func (s *PgVectorStore) Stats() map[string]any {
	stats := s.db.Stats()
	return map[string]any{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.ImageRecord, error) {
	var record models.ImageRecord
	var metadata []byte
	if err := row.Scan(
		&record.ID,
		&record.ImageURL,
		&record.Prompt,
		&record.NegativePrompt,
		&record.BaseModel,
		&metadata,
		&record.IngestedAt,
	); err != nil {
		return nil, err
	}
	unmarshalMetadata(metadata, &record)
	return &record, nil
}

func unmarshalMetadata(raw []byte, record *models.ImageRecord) {
	if len(raw) == 0 {
		return
	}
	// Metadata is best-effort on the way in and on the way out.
	_ = json.Unmarshal(raw, &record.Metadata)
}

func toVectorLiteral(embedding []float32, dim int) (string, error) {
	if len(embedding) == 0 {
		return "", errors.New("embedding is required")
	}
	if dim > 0 && len(embedding) != dim {
		return "", fmt.Errorf("embedding length %d does not match dimension %d", len(embedding), dim)
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ",")), nil
}
