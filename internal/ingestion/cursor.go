package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CursorState is the resumable position of the pipeline: the provider's
// opaque pagination token plus a running total of records processed.
type CursorState struct {
	Cursor         string    `json:"cursor"`
	TotalProcessed int64     `json:"total_processed"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CursorIOError wraps a cursor read or write failure. Without a reliable
// cursor the run cannot resume safely, so callers must treat it as fatal
// rather than risk silently re-scanning or skipping pages.
type CursorIOError struct {
	Op   string // "load" or "save"
	Path string
	Err  error
}

func (e *CursorIOError) Error() string {
	return fmt.Sprintf("cursor %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CursorIOError) Unwrap() error {
	return e.Err
}

// CursorStore persists pagination state between runs.
type CursorStore interface {
	// Load returns the saved state, or a zero state on first run.
	Load(ctx context.Context) (CursorState, error)

	// Save persists the state. It must only be called after the page the
	// state refers to has been fully ingested.
	Save(ctx context.Context, state CursorState) error
}

// FileCursorStore keeps cursor state in a small JSON file on disk.
type FileCursorStore struct {
	path   string
	logger *slog.Logger
}

// NewFileCursorStore creates a file-backed cursor store. The parent
// directory is created on first save.
func NewFileCursorStore(path string, logger *slog.Logger) *FileCursorStore {
	return &FileCursorStore{
		path:   path,
		logger: logger,
	}
}

// Load reads the saved state. A missing file is a fresh start, not an
// error; anything else that prevents reading a valid state is fatal.
func (s *FileCursorStore) Load(ctx context.Context) (CursorState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("no cursor file found, starting from the beginning", "path", s.path)
		return CursorState{}, nil
	}
	if err != nil {
		return CursorState{}, &CursorIOError{Op: "load", Path: s.path, Err: err}
	}

	var state CursorState
	if err := json.Unmarshal(data, &state); err != nil {
		return CursorState{}, &CursorIOError{Op: "load", Path: s.path, Err: err}
	}

	s.logger.Info("cursor loaded",
		"cursor", state.Cursor,
		"total_processed", state.TotalProcessed)
	return state, nil
}

// Save writes the state through a temp file and rename so a crash mid-write
// never leaves a torn cursor behind.
func (s *FileCursorStore) Save(ctx context.Context, state CursorState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return &CursorIOError{Op: "save", Path: s.path, Err: err}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &CursorIOError{Op: "save", Path: s.path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp")
	if err != nil {
		return &CursorIOError{Op: "save", Path: s.path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &CursorIOError{Op: "save", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &CursorIOError{Op: "save", Path: s.path, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return &CursorIOError{Op: "save", Path: s.path, Err: err}
	}

	s.logger.Debug("cursor saved",
		"cursor", state.Cursor,
		"total_processed", state.TotalProcessed)
	return nil
}

// MemoryCursorStore keeps cursor state in memory for tests and one-off runs.
type MemoryCursorStore struct {
	mu    sync.Mutex
	state CursorState
	saves int
}

// NewMemoryCursorStore creates an empty in-memory cursor store.
func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{}
}

// Load returns the last saved state.
func (s *MemoryCursorStore) Load(ctx context.Context) (CursorState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

// Save replaces the stored state.
func (s *MemoryCursorStore) Save(ctx context.Context, state CursorState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}
	s.state = state
	s.saves++
	return nil
}

// Saves reports how many times Save has been called.
func (s *MemoryCursorStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
