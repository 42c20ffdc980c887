package scope

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/scopewell/scope-copilot/internal/model"
)

// ApplyFeedback applies one explicit user correction to the store and
// returns the resulting entry plus the immutable feedback record to
// persist.
//
//   - accept: keep the current value, provenance confirmed, confidence 1.0.
//   - reject: clear the entry entirely.
//   - override: replace the value (validated first), provenance corrected,
//     confidence 1.0.
func ApplyFeedback(store *ConfidenceStore, schema *model.Schema, threadID, field string, action model.FeedbackAction, newValue any, turnID int) (model.Entry, model.FeedbackRecord, error) {
	def := schema.Field(field)
	if def == nil {
		return model.Entry{}, model.FeedbackRecord{},
			eris.Wrapf(model.ErrUnknownField, "feedback: %s has no field %q", schema.Platform, field)
	}

	prior, _ := store.Get(field)
	rec := model.FeedbackRecord{
		ID:              uuid.New().String(),
		ThreadID:        threadID,
		TurnID:          turnID,
		Field:           field,
		Action:          action,
		PriorValue:      prior.Value,
		PriorConfidence: prior.Confidence,
		CreatedAt:       time.Now().UTC(),
	}

	switch action {
	case model.FeedbackAccept:
		if err := store.Confirm(field, turnID); err != nil {
			return model.Entry{}, model.FeedbackRecord{}, err
		}

	case model.FeedbackReject:
		store.Clear(field, turnID)

	case model.FeedbackOverride:
		if newValue == nil {
			return model.Entry{}, model.FeedbackRecord{},
				eris.Wrapf(model.ErrValidation, "feedback: override of %s requires a value", field)
		}
		value, err := def.Normalize(newValue)
		if err == nil {
			err = def.Validate(value)
		}
		if err != nil {
			return model.Entry{}, model.FeedbackRecord{},
				eris.Wrapf(model.ErrValidation, "feedback: override of %s: %v", field, err)
		}
		if err := store.Set(field, value, 1.0, turnID, model.ProvenanceCorrected, "user override"); err != nil {
			return model.Entry{}, model.FeedbackRecord{}, err
		}

	default:
		return model.Entry{}, model.FeedbackRecord{},
			eris.Wrapf(model.ErrValidation, "feedback: unknown action %q", action)
	}

	entry, _ := store.Get(field)
	rec.NewValue = entry.Value
	rec.NewConfidence = entry.Confidence
	return entry, rec, nil
}
