// Package scope implements the scoping dialogue engine: the per-session
// confidence store, the merge rules that fold extraction candidates into
// it, explicit feedback handling, and the dialogue state machine that
// drives a session from collecting to scoped.
package scope

import (
	"github.com/rotisserie/eris"

	"github.com/scopewell/scope-copilot/internal/model"
)

// ConfidenceStore maps field names to confidence-annotated values for one
// session. It is not safe for concurrent use; the owning session serializes
// access.
type ConfidenceStore struct {
	entries map[string]model.Entry
}

// NewConfidenceStore returns an empty store.
func NewConfidenceStore() *ConfidenceStore {
	return &ConfidenceStore{entries: make(map[string]model.Entry)}
}

// Get returns the entry for field and whether it holds a value.
func (c *ConfidenceStore) Get(field string) (model.Entry, bool) {
	e, ok := c.entries[field]
	if !ok || !e.Present() {
		return e, false
	}
	return e, true
}

// Set records a value for field. It enforces the store invariants:
// confidence stays in [0,1], sticky provenance pins confidence at 1.0, and
// an inferred write cannot displace a confirmed or corrected entry — that
// attempt fails with ErrInvalidProvenanceTransition and leaves the entry
// untouched.
func (c *ConfidenceStore) Set(field string, value any, confidence float64, turnID int, prov model.Provenance, note string) error {
	if value == nil {
		return eris.Errorf("confidence: nil value for %s (use Clear)", field)
	}
	if confidence < 0 || confidence > 1 {
		return eris.Errorf("confidence: %v outside [0,1] for %s", confidence, field)
	}
	if prov.Sticky() {
		confidence = 1.0
	}

	if cur, ok := c.entries[field]; ok && cur.Provenance.Sticky() && !prov.Sticky() {
		return eris.Wrapf(model.ErrInvalidProvenanceTransition,
			"confidence: field %s is %s and only explicit correction may change it", field, cur.Provenance)
	}

	c.entries[field] = model.Entry{
		Value:      value,
		Confidence: confidence,
		TurnID:     turnID,
		Provenance: prov,
		Note:       note,
	}
	return nil
}

// Clear empties the entry for field: value absent, confidence zero,
// provenance default. Used by explicit rejection, which may clear sticky
// entries.
func (c *ConfidenceStore) Clear(field string, turnID int) {
	c.entries[field] = model.Entry{
		Confidence: 0,
		TurnID:     turnID,
		Provenance: model.ProvenanceDefault,
	}
}

// Confirm promotes an existing entry to confirmed provenance at full
// confidence, keeping its value.
func (c *ConfidenceStore) Confirm(field string, turnID int) error {
	cur, ok := c.Get(field)
	if !ok {
		return eris.Wrapf(model.ErrValidation, "confidence: cannot confirm absent field %s", field)
	}
	c.entries[field] = model.Entry{
		Value:      cur.Value,
		Confidence: 1.0,
		TurnID:     turnID,
		Provenance: model.ProvenanceConfirmed,
		Note:       cur.Note,
	}
	return nil
}

// MissingRequired lists required fields whose confidence is below the
// completion threshold, in schema declaration order. Deterministic: the
// same store and schema always produce the same list.
func (c *ConfidenceStore) MissingRequired(schema *model.Schema, threshold float64) []string {
	var missing []string
	for _, f := range schema.Required() {
		e, ok := c.Get(f.Name)
		if !ok || e.Confidence < threshold {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// AverageRequiredConfidence returns the mean confidence across the
// schema's required fields, counting absent entries as zero.
func (c *ConfidenceStore) AverageRequiredConfidence(schema *model.Schema) float64 {
	required := schema.Required()
	if len(required) == 0 {
		return 0
	}
	var sum float64
	for _, f := range required {
		if e, ok := c.Get(f.Name); ok {
			sum += e.Confidence
		}
	}
	return sum / float64(len(required))
}

// Snapshot returns a copy of all present entries, keyed by field name.
func (c *ConfidenceStore) Snapshot() map[string]model.Entry {
	out := make(map[string]model.Entry, len(c.entries))
	for k, e := range c.entries {
		if e.Present() {
			out[k] = e
		}
	}
	return out
}
