package scope

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/scopewell/scope-copilot/internal/model"
)

// MergeOutcome summarizes what one merge pass did, for the reasoning trace.
type MergeOutcome struct {
	Deltas  []model.FieldDelta
	Dropped []string // human-readable reasons, one per discarded candidate
}

// Changed reports whether the merge touched the store.
func (m MergeOutcome) Changed() bool {
	return len(m.Deltas) > 0
}

// Merge folds extraction candidates into the store under the ceiling and
// stickiness rules:
//
//   - invalid or unknown-field candidates are dropped, never raised;
//   - a sticky (confirmed/corrected) entry only admits a matching candidate
//     as reinforcement, with confidence unchanged;
//   - otherwise effective confidence = min(raw, field ceiling), and the
//     entry is overwritten as inferred only when effective >= current.
//
// Each candidate's update is all-or-nothing: validation happens before any
// write, so a failure leaves the entry exactly as it was. Applying the same
// extraction result twice yields no change the second time.
func Merge(store *ConfidenceStore, schema *model.Schema, candidates []model.Candidate, turnID int) MergeOutcome {
	var out MergeOutcome

	for _, cand := range candidates {
		def := schema.Field(cand.Field)
		if def == nil {
			out.Dropped = append(out.Dropped, fmt.Sprintf("%s: unknown field", cand.Field))
			zap.L().Debug("merge: dropping candidate for unknown field",
				zap.String("platform", schema.Platform),
				zap.String("field", cand.Field),
			)
			continue
		}

		value, err := def.Normalize(cand.Value)
		if err == nil {
			err = def.Validate(value)
		}
		if err != nil {
			out.Dropped = append(out.Dropped, fmt.Sprintf("%s: invalid candidate", cand.Field))
			zap.L().Debug("merge: dropping invalid candidate",
				zap.String("field", cand.Field),
				zap.Error(err),
			)
			continue
		}

		raw := clamp01(cand.Confidence)
		cur, present := store.Get(cand.Field)

		if cur.Provenance.Sticky() {
			if def.ValueEqual(cur.Value, value) {
				// Reinforcement of a user-confirmed answer. Confidence is
				// already pinned at 1.0; nothing to record.
				continue
			}
			out.Dropped = append(out.Dropped, fmt.Sprintf("%s: conflicts with %s value", cand.Field, cur.Provenance))
			continue
		}

		effective := raw
		if effective > def.Ceiling {
			effective = def.Ceiling
		}
		// A present value must carry positive confidence; a zero-confidence
		// candidate can never beat even an absent entry.
		if effective == 0 {
			out.Dropped = append(out.Dropped, fmt.Sprintf("%s: zero confidence", cand.Field))
			continue
		}
		if present && effective < cur.Confidence {
			continue
		}
		if present && effective == cur.Confidence && def.ValueEqual(cur.Value, value) {
			// Identical re-application; keep the original turn attribution.
			continue
		}

		if err := store.Set(cand.Field, value, effective, turnID, model.ProvenanceInferred, cand.Reasoning); err != nil {
			out.Dropped = append(out.Dropped, fmt.Sprintf("%s: %v", cand.Field, err))
			continue
		}

		out.Deltas = append(out.Deltas, model.FieldDelta{
			Field:         cand.Field,
			OldValue:      cur.Value,
			NewValue:      value,
			OldConfidence: cur.Confidence,
			NewConfidence: effective,
			Provenance:    model.ProvenanceInferred,
		})
	}

	return out
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
