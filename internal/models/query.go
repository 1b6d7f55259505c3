package models

import (
	"fmt"
)

// RecordQuery represents filters and bounds for listing stored records.
type RecordQuery struct {
	BaseModel string `json:"base_model,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// Validate applies defaults, bounds the limit, and canonicalizes the base
// model filter. An unsupported base model is an error rather than an empty
// result, so typos surface immediately.
func (q *RecordQuery) Validate() error {
	if q.Limit < 1 {
		q.Limit = 20
	}
	if q.Limit > 1000 {
		q.Limit = 1000
	}
	if q.BaseModel != "" {
		canonical, ok := CanonicalBaseModel(q.BaseModel)
		if !ok {
			return fmt.Errorf("unsupported base model %q (supported: %v)", q.BaseModel, AllowedBaseModels())
		}
		q.BaseModel = canonical
	}
	return nil
}

// PromptMatch is a single similarity-search hit. Score is cosine similarity
// in [0, 1], higher is closer.
type PromptMatch struct {
	Record ImageRecord `json:"record"`
	Score  float64     `json:"score"`
}
