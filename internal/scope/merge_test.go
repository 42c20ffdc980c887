package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopewell/scope-copilot/internal/model"
)

func TestMerge_CeilingCapsConfidence(t *testing.T) {
	s := testSchema(t)
	c := NewConfidenceStore()

	// "I want to build a task management app" style extraction.
	out := Merge(c, s, []model.Candidate{
		{Field: "title", Value: "task management app", Confidence: 0.8},
	}, 1)

	require.True(t, out.Changed())
	require.Len(t, out.Deltas, 1)
	assert.Equal(t, 0.7, out.Deltas[0].NewConfidence, "capped at the field ceiling")

	e, ok := c.Get("title")
	require.True(t, ok)
	assert.Equal(t, "task management app", e.Value)
	assert.Equal(t, 0.7, e.Confidence)
	assert.Equal(t, model.ProvenanceInferred, e.Provenance)

	_, ok = c.Get("category")
	assert.False(t, ok, "category still absent")
}

func TestMerge_DropsUnknownAndInvalid(t *testing.T) {
	s := testSchema(t)
	c := NewConfidenceStore()

	out := Merge(c, s, []model.Candidate{
		{Field: "favorite_color", Value: "mauve", Confidence: 0.9},
		{Field: "category", Value: "spaceship", Confidence: 0.9},
		{Field: "budget", Value: "lots", Confidence: 0.9},
	}, 1)

	assert.False(t, out.Changed())
	assert.Len(t, out.Dropped, 3)
	assert.Empty(t, c.Snapshot(), "no candidate touched the store")
}

func TestMerge_LowerConfidenceDoesNotOverwrite(t *testing.T) {
	s := testSchema(t)
	c := NewConfidenceStore()

	Merge(c, s, []model.Candidate{{Field: "title", Value: "first", Confidence: 0.6}}, 1)
	out := Merge(c, s, []model.Candidate{{Field: "title", Value: "second", Confidence: 0.3}}, 2)

	assert.False(t, out.Changed())
	e, _ := c.Get("title")
	assert.Equal(t, "first", e.Value)
	assert.Equal(t, 1, e.TurnID)
}

func TestMerge_EqualConfidenceOverwrites(t *testing.T) {
	s := testSchema(t)
	c := NewConfidenceStore()

	Merge(c, s, []model.Candidate{{Field: "title", Value: "first", Confidence: 0.6}}, 1)
	out := Merge(c, s, []model.Candidate{{Field: "title", Value: "second", Confidence: 0.6}}, 2)

	require.True(t, out.Changed())
	e, _ := c.Get("title")
	assert.Equal(t, "second", e.Value)
}

func TestMerge_Idempotent(t *testing.T) {
	s := testSchema(t)
	c := NewConfidenceStore()

	candidates := []model.Candidate{
		{Field: "title", Value: "task management app", Confidence: 0.8},
		{Field: "category", Value: "web application", Confidence: 0.9},
		{Field: "tech_stack", Value: []any{"go", "react"}, Confidence: 0.7},
	}

	first := Merge(c, s, candidates, 1)
	require.Len(t, first.Deltas, 3)
	snap := c.Snapshot()

	second := Merge(c, s, candidates, 2)
	assert.False(t, second.Changed(), "re-applying the same extraction is a no-op")
	assert.Equal(t, snap, c.Snapshot())
}

func TestMerge_StickyProtection(t *testing.T) {
	s := testSchema(t)
	c := NewConfidenceStore()
	require.NoError(t, c.Set("category", "team collaboration", 1.0, 1, model.ProvenanceCorrected, ""))

	// Conflicting inference is dropped.
	out := Merge(c, s, []model.Candidate{{Field: "category", Value: "web application", Confidence: 0.95}}, 2)
	assert.False(t, out.Changed())
	assert.Len(t, out.Dropped, 1)

	e, _ := c.Get("category")
	assert.Equal(t, "team collaboration", e.Value)
	assert.Equal(t, 1.0, e.Confidence)

	// Matching inference is reinforcement: accepted silently, confidence unchanged.
	out = Merge(c, s, []model.Candidate{{Field: "category", Value: "Team Collaboration", Confidence: 0.5}}, 3)
	assert.False(t, out.Changed())
	assert.Empty(t, out.Dropped)
	e, _ = c.Get("category")
	assert.Equal(t, 1.0, e.Confidence)
}

func TestMerge_ZeroConfidenceNeverStored(t *testing.T) {
	s := testSchema(t)
	c := NewConfidenceStore()

	// An extraction wrapper that omits the confidence key yields raw 0; it
	// must not land a present value at confidence 0.
	out := Merge(c, s, []model.Candidate{
		{Field: "title", Value: "task app", Confidence: 0},
		{Field: "category", Value: "web application", Confidence: -0.4},
	}, 1)

	assert.False(t, out.Changed())
	assert.Len(t, out.Dropped, 2)
	assert.Empty(t, c.Snapshot())

	// A settled entry is untouched by a later zero-confidence candidate.
	Merge(c, s, []model.Candidate{{Field: "title", Value: "first", Confidence: 0.6}}, 2)
	out = Merge(c, s, []model.Candidate{{Field: "title", Value: "second", Confidence: 0}}, 3)
	assert.False(t, out.Changed())
	e, _ := c.Get("title")
	assert.Equal(t, "first", e.Value)
	assert.Equal(t, 0.6, e.Confidence)
}

func TestMerge_RawConfidenceClamped(t *testing.T) {
	s := testSchema(t)
	c := NewConfidenceStore()

	out := Merge(c, s, []model.Candidate{{Field: "title", Value: "x", Confidence: 4.2}}, 1)
	require.Len(t, out.Deltas, 1)
	e, _ := c.Get("title")
	assert.Equal(t, 0.7, e.Confidence, "clamped then capped")
}
