package extract

import (
	"encoding/json"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/scopewell/scope-copilot/internal/model"
)

// parseCandidates parses the model's JSON reply into candidates. Fields
// not in the schema are kept here and dropped later by the merge engine,
// which owns that decision and records it in the trace.
func parseCandidates(text string, schema *model.Schema) []model.Candidate {
	cleaned := cleanJSON(text)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		zap.L().Warn("extract: failed to parse extraction JSON", zap.Error(err))
		return nil
	}

	// Emit in schema order first so downstream trace output is stable,
	// then any extra keys the model produced.
	var candidates []model.Candidate
	seen := make(map[string]bool, len(raw))
	emit := func(field string) {
		blob, ok := raw[field]
		if !ok || seen[field] {
			return
		}
		seen[field] = true
		if c, ok := parseOne(field, blob); ok {
			candidates = append(candidates, c)
		}
	}

	for i := range schema.Fields {
		emit(schema.Fields[i].Name)
	}
	extra := make([]string, 0, len(raw))
	for field := range raw {
		if !seen[field] {
			extra = append(extra, field)
		}
	}
	sort.Strings(extra)
	for _, field := range extra {
		emit(field)
	}

	return candidates
}

func parseOne(field string, blob json.RawMessage) (model.Candidate, bool) {
	var body struct {
		Value      any     `json:"value"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal(blob, &body); err != nil || body.Value == nil {
		// Tolerate a bare value with no wrapper object.
		var bare any
		if err := json.Unmarshal(blob, &bare); err != nil || bare == nil {
			return model.Candidate{}, false
		}
		return model.Candidate{Field: field, Value: bare, Confidence: 0.5}, true
	}
	return model.Candidate{
		Field:      field,
		Value:      body.Value,
		Confidence: body.Confidence,
		Reasoning:  body.Reasoning,
	}, true
}

// cleanJSON strips markdown code fences and surrounding prose, returning
// the outermost JSON object in the text.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
