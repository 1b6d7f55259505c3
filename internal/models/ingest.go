package models

import (
	"time"
)

// IngestResult reports the outcome of ingesting a single batch of records.
// Every record lands in exactly one bucket: Inserted (newly stored),
// Skipped (already present, left untouched), or Failed (write path failed,
// remaining records unaffected).
type IngestResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Total returns the number of records the batch accounted for.
func (r IngestResult) Total() int {
	return r.Inserted + r.Skipped + r.Failed
}

// RunSummary aggregates a single ingestion run across all pages it consumed.
type RunSummary struct {
	RunID      string               `json:"run_id"`
	Status     string               `json:"status,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Pages      int                  `json:"pages"`
	Fetched    int                  `json:"fetched"`
	Inserted   int                  `json:"inserted"`
	Skipped    int                  `json:"skipped"`
	Failed     int                  `json:"failed"`
	Rejected   map[RejectReason]int `json:"rejected,omitempty"`
	Cursor     string               `json:"cursor,omitempty"`
}

// RejectedTotal returns the number of items dropped at normalization.
func (s *RunSummary) RejectedTotal() int {
	total := 0
	for _, n := range s.Rejected {
		total += n
	}
	return total
}

// Duration returns the wall-clock time the run took.
func (s *RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
