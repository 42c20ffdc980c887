// Package extract adapts the black-box language backend into a structured
// candidate extractor for the scoping engine.
package extract

import (
	"context"

	"github.com/scopewell/scope-copilot/internal/model"
)

// Request carries everything the extraction backend needs for one turn:
// the field list to fill, the utterance, and a snapshot of what the
// session already believes.
type Request struct {
	Schema    *model.Schema
	Utterance string
	Snapshot  map[string]model.Entry
	History   []model.Message
}

// Extractor converts a free-form utterance into candidate field values.
// Implementations must be idempotent-safe to retry: a failed call leaves no
// partial state with the caller.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*model.ExtractionResult, error)
}
