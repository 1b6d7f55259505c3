package ingestion

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/promptvault/promptvault/internal/civitai"
	"github.com/promptvault/promptvault/internal/models"
)

// RejectError reports why a raw item was dropped during normalization.
// Rejections are expected, counted for observability, and never fatal.
type RejectError struct {
	ID     int64 // provider id when one could be parsed, 0 otherwise
	Reason models.RejectReason
}

func (e *RejectError) Error() string {
	if e.ID > 0 {
		return fmt.Sprintf("item %d rejected: %s", e.ID, e.Reason)
	}
	return fmt.Sprintf("item rejected: %s", e.Reason)
}

// Normalize converts one raw provider item into an ImageRecord. It is a pure
// function applied independently per item; the only error it returns is
// *RejectError. No other component ever sees the raw provider shape.
func Normalize(item civitai.RawItem) (models.ImageRecord, error) {
	id, ok := parseID(item["id"])
	if !ok {
		return models.ImageRecord{}, &RejectError{Reason: models.RejectMissingID}
	}

	imageURL, _ := item["url"].(string)
	if imageURL == "" {
		return models.ImageRecord{}, &RejectError{ID: id, Reason: models.RejectMissingURL}
	}

	// The prompt lives in the nested meta object. Items without one are
	// dropped entirely, never stored with a placeholder.
	meta, _ := item["meta"].(map[string]any)
	prompt := stringField(meta, "prompt")
	if strings.TrimSpace(prompt) == "" {
		return models.ImageRecord{}, &RejectError{ID: id, Reason: models.RejectMissingPrompt}
	}

	rawModel := stringField(meta, "baseModel")
	if rawModel == "" {
		rawModel = stringField(item, "baseModel")
	}
	baseModel, ok := models.CanonicalBaseModel(rawModel)
	if !ok {
		return models.ImageRecord{}, &RejectError{ID: id, Reason: models.RejectUnsupportedBaseModel}
	}

	return models.ImageRecord{
		ID:             id,
		ImageURL:       imageURL,
		Prompt:         prompt,
		NegativePrompt: stringField(meta, "negativePrompt"),
		BaseModel:      baseModel,
		Metadata:       buildMetadata(item, meta),
		IngestedAt:     time.Now().UTC(),
	}, nil
}

// NormalizeBatch runs Normalize over a page of raw items, returning the
// records that survived and a tally of rejections by reason.
func NormalizeBatch(items []civitai.RawItem) ([]models.ImageRecord, map[models.RejectReason]int) {
	records := make([]models.ImageRecord, 0, len(items))
	rejected := make(map[models.RejectReason]int)

	for _, item := range items {
		record, err := Normalize(item)
		if err != nil {
			var rej *RejectError
			if errors.As(err, &rej) {
				rejected[rej.Reason]++
			}
			continue
		}
		records = append(records, record)
	}

	return records, rejected
}

// parseID coerces the provider id into a positive int64. The API normally
// sends a JSON number but numeric strings show up in older payloads.
func parseID(v any) (int64, bool) {
	switch id := v.(type) {
	case float64:
		if id <= 0 || id != math.Trunc(id) {
			return 0, false
		}
		return int64(id), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// buildMetadata copies the recognized auxiliary fields opportunistically.
// Absence of any of them never causes rejection.
func buildMetadata(item, meta map[string]any) map[string]any {
	md := make(map[string]any)

	copyField := func(dst string, v any) {
		if v != nil {
			md[dst] = v
		}
	}
	copyField("width", meta["width"])
	copyField("height", meta["height"])
	copyField("seed", meta["seed"])
	copyField("steps", meta["steps"])
	copyField("cfg_scale", meta["cfgScale"])
	copyField("sampler", meta["sampler"])

	// Stored raw. The provider is known to emit malformed timestamp
	// strings, so created_at is never parsed.
	if s, _ := item["createdAt"].(string); s != "" {
		md["created_at"] = s
	}
	if stats, ok := item["stats"].(map[string]any); ok {
		md["stats"] = stats
	}
	if username, _ := item["username"].(string); username != "" {
		md["username"] = username
	}
	if res, ok := meta["civitaiResources"]; ok && res != nil {
		md["resources"] = res
	} else if res, ok := meta["resources"]; ok && res != nil {
		md["resources"] = res
	}

	if len(md) == 0 {
		return nil
	}
	return md
}
