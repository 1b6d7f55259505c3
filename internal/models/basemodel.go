package models

import (
	"strings"
)

// Canonical labels of the base models whose records are retained. Anything
// else is rejected at normalization time.
const (
	BaseModelIllustrious = "Illustrious"
	BaseModelFlux1D      = "Flux.1 D"
	BaseModelPony        = "Pony"
)

// AllowedBaseModels returns the canonical labels of supported base models.
func AllowedBaseModels() []string {
	return []string{BaseModelIllustrious, BaseModelFlux1D, BaseModelPony}
}

// CanonicalBaseModel maps a raw provider label to its canonical form.
// Matching is case-insensitive and collapses surrounding and repeated
// whitespace, so "flux.1  d" and "FLUX.1 D" both resolve to BaseModelFlux1D.
// The second return value reports whether the label is supported.
func CanonicalBaseModel(raw string) (string, bool) {
	switch normalizeLabel(raw) {
	case "illustrious":
		return BaseModelIllustrious, true
	case "flux.1 d":
		return BaseModelFlux1D, true
	case "pony":
		return BaseModelPony, true
	}
	return "", false
}

func normalizeLabel(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
