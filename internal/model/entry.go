package model

// Provenance records how a field's current value was obtained.
type Provenance string

const (
	// ProvenanceDefault marks an empty entry that no turn has touched, or
	// one cleared by an explicit rejection.
	ProvenanceDefault Provenance = "default"
	// ProvenanceInferred marks a value merged from an extraction result.
	ProvenanceInferred Provenance = "inferred"
	// ProvenanceConfirmed marks a value the user explicitly accepted.
	ProvenanceConfirmed Provenance = "confirmed"
	// ProvenanceCorrected marks a value the user explicitly overrode.
	ProvenanceCorrected Provenance = "corrected"
)

// Sticky reports whether the provenance protects the entry from being
// overwritten by inference. Confirmed and corrected values only change via
// another explicit correction.
func (p Provenance) Sticky() bool {
	return p == ProvenanceConfirmed || p == ProvenanceCorrected
}

// Entry is a confidence-annotated field value inside one session.
// Invariants: Confidence in [0,1]; Value == nil implies Confidence == 0;
// sticky provenance implies Confidence == 1.
type Entry struct {
	Value      any        `json:"value,omitempty"`
	Confidence float64    `json:"confidence"`
	TurnID     int        `json:"turn_id"`
	Provenance Provenance `json:"provenance"`
	Note       string     `json:"note,omitempty"`
}

// Present reports whether the entry holds a value.
func (e Entry) Present() bool {
	return e.Value != nil
}
