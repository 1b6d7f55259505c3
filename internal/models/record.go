package models

import (
	"time"
)

// ImageRecord is a normalized image-generation record, the only shape the
// store ever sees. Every persisted record carries a non-zero ID, a non-empty
// ImageURL and Prompt, and a canonical BaseModel label.
type ImageRecord struct {
	ID             int64          `json:"id"`
	ImageURL       string         `json:"image_url"`
	Prompt         string         `json:"prompt"`
	NegativePrompt string         `json:"negative_prompt"`
	BaseModel      string         `json:"base_model"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	IngestedAt     time.Time      `json:"ingested_at"`
}

// Valid reports whether the record satisfies the persistence invariants.
func (r *ImageRecord) Valid() bool {
	if r.ID <= 0 || r.ImageURL == "" || r.Prompt == "" {
		return false
	}
	_, ok := CanonicalBaseModel(r.BaseModel)
	return ok
}

// MetadataValue returns a metadata field, or nil when absent.
func (r *ImageRecord) MetadataValue(key string) any {
	if r.Metadata == nil {
		return nil
	}
	return r.Metadata[key]
}

// RejectReason classifies why a raw provider item was dropped during
// normalization. Rejections are counted, never fatal.
type RejectReason string

const (
	RejectMissingID            RejectReason = "missing_id"
	RejectMissingURL           RejectReason = "missing_url"
	RejectMissingPrompt        RejectReason = "missing_prompt"
	RejectUnsupportedBaseModel RejectReason = "unsupported_base_model"
)
