package scope

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scopewell/scope-copilot/internal/model"
)

// nextQuestion formulates the clarifying question for the first missing
// field, folding suggestions from retrieval hits into the wording when
// the hits carry something relevant to that field.
func nextQuestion(def *model.FieldDef, hits []model.RetrievalHit) string {
	q := def.QuestionText()

	switch def.Name {
	case "tech_stack":
		if techs := suggestTechStack(hits); len(techs) > 0 {
			q += fmt.Sprintf(" Similar past projects used %s.", strings.Join(techs, ", "))
		}
	case "timeline_days":
		if days := suggestTimeline(hits); days > 0 {
			q += fmt.Sprintf(" Similar past projects ran for about %d days.", days)
		}
	}

	return q
}

// confirmationSummary renders the filled schema for final user sign-off,
// fields in declaration order.
func confirmationSummary(schema *model.Schema, store *ConfidenceStore) string {
	var b strings.Builder
	b.WriteString("Here is the scope I have so far:\n")
	for i := range schema.Fields {
		f := &schema.Fields[i]
		e, ok := store.Get(f.Name)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", f.Name, renderValue(e.Value))
	}
	b.WriteString("Does this look right? Reply yes to confirm, or tell me what to change.")
	return b.String()
}

// correctionAck acknowledges which fields a correction changed.
func correctionAck(deltas []model.FieldDelta) string {
	if len(deltas) == 0 {
		return "I didn't catch a concrete change there. Which field should I update, and to what?"
	}
	var parts []string
	for _, d := range deltas {
		parts = append(parts, fmt.Sprintf("%s is now %s", d.Field, renderValue(d.NewValue)))
	}
	return fmt.Sprintf("Got it: %s. Anything else to adjust?", strings.Join(parts, "; "))
}

func renderValue(v any) string {
	switch t := v.(type) {
	case []string:
		return strings.Join(t, ", ")
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// suggestTechStack returns the most common technologies across hits, at
// most five, mirroring how past-project stacks inform new scopes.
func suggestTechStack(hits []model.RetrievalHit) []string {
	counts := make(map[string]int)
	for _, h := range hits {
		for _, t := range h.TechStack {
			counts[t]++
		}
	}
	if len(counts) == 0 {
		return nil
	}
	techs := make([]string, 0, len(counts))
	for t := range counts {
		techs = append(techs, t)
	}
	sort.Slice(techs, func(i, j int) bool {
		if counts[techs[i]] != counts[techs[j]] {
			return counts[techs[i]] > counts[techs[j]]
		}
		return techs[i] < techs[j]
	})
	if len(techs) > 5 {
		techs = techs[:5]
	}
	return techs
}

// suggestTimeline averages the timeline of hits that carry one.
func suggestTimeline(hits []model.RetrievalHit) int {
	var sum, n int
	for _, h := range hits {
		if h.TimelineDays > 0 {
			sum += h.TimelineDays
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}
