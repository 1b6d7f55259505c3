package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/promptvault/promptvault/internal/models"
)

// Runner is the slice of the ingestion pipeline the scheduler drives.
type Runner interface {
	Run(ctx context.Context) (*models.RunSummary, error)
}

// IngestScheduler runs the ingestion pipeline on a fixed interval. A failed
// run is logged and retried on the next tick; the process keeps serving.
type IngestScheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger
	stopChan chan struct{}

	mu      sync.RWMutex
	lastRun *models.RunSummary
	running bool
}

// NewIngestScheduler creates a scheduler that triggers the runner every
// interval.
func NewIngestScheduler(runner Runner, interval time.Duration, logger *slog.Logger) *IngestScheduler {
	return &IngestScheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the scheduler loop. It runs one ingestion immediately, then
// again on every tick, and blocks until Stop is called or the context ends.
func (s *IngestScheduler) Start(ctx context.Context) {
	s.logger.Info("starting ingest scheduler", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.stopChan:
			s.logger.Info("ingest scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("ingest scheduler stopping, context canceled")
			return
		}
	}
}

// Stop stops the scheduler loop.
func (s *IngestScheduler) Stop() {
	close(s.stopChan)
}

// LastRun returns the most recent run summary, nil before the first run
// has finished.
func (s *IngestScheduler) LastRun() *models.RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// Running reports whether an ingestion run is currently in progress.
func (s *IngestScheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *IngestScheduler) runOnce(ctx context.Context) {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	summary, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("scheduled ingestion run failed", "error", err)
	}

	s.mu.Lock()
	s.lastRun = summary
	s.running = false
	s.mu.Unlock()
}
