package model

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
)

// FieldKind enumerates the value types a scope field may hold.
type FieldKind string

const (
	KindText   FieldKind = "text"
	KindEnum   FieldKind = "enum"
	KindNumber FieldKind = "number"
	KindSet    FieldKind = "set"
)

// FieldDef describes one field of a platform schema. Definitions are
// immutable after registry load.
type FieldDef struct {
	Name     string    `yaml:"name" json:"name"`
	Required bool      `yaml:"required" json:"required"`
	Kind     FieldKind `yaml:"kind" json:"kind"`

	// Enum lists the allowed values for KindEnum fields, in canonical form.
	Enum []string `yaml:"enum,omitempty" json:"enum,omitempty"`

	// Pattern is an optional validation regex for KindText fields.
	Pattern      string         `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	PatternRegex *regexp.Regexp `yaml:"-" json:"-"` // compiled from Pattern at schema build

	// Min/Max bound KindNumber values when non-nil.
	Min *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty" json:"max,omitempty"`

	// Ceiling caps the confidence an inferred value may reach for this
	// field. Only explicit user confirmation or correction reaches 1.0.
	Ceiling float64 `yaml:"ceiling" json:"ceiling"`

	// Question is the clarifying question template asked when the field
	// is still missing.
	Question string `yaml:"question,omitempty" json:"question,omitempty"`
}

var enumCaser = cases.Fold()

// Normalize converts a candidate value (typically generic JSON decoding
// output) into the field's typed payload. It returns an error when the
// candidate cannot represent the field's kind; callers drop such candidates
// rather than coercing them.
func (f *FieldDef) Normalize(value any) (any, error) {
	switch f.Kind {
	case KindText:
		s, ok := value.(string)
		if !ok {
			return nil, eris.Errorf("field %s: expected text, got %T", f.Name, value)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, eris.Errorf("field %s: empty text", f.Name)
		}
		return s, nil

	case KindEnum:
		s, ok := value.(string)
		if !ok {
			return nil, eris.Errorf("field %s: expected enum string, got %T", f.Name, value)
		}
		folded := enumCaser.String(strings.TrimSpace(s))
		for _, allowed := range f.Enum {
			if enumCaser.String(allowed) == folded {
				return allowed, nil
			}
		}
		return nil, eris.Errorf("field %s: %q is not an allowed value", f.Name, s)

	case KindNumber:
		switch n := value.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		default:
			return nil, eris.Errorf("field %s: expected number, got %T", f.Name, value)
		}

	case KindSet:
		switch v := value.(type) {
		case []string:
			return normalizeSet(f.Name, v)
		case []any:
			elems := make([]string, 0, len(v))
			for _, e := range v {
				s, ok := e.(string)
				if !ok {
					return nil, eris.Errorf("field %s: set element is %T, not string", f.Name, e)
				}
				elems = append(elems, s)
			}
			return normalizeSet(f.Name, elems)
		case string:
			// Extractors occasionally return a comma-joined list.
			return normalizeSet(f.Name, strings.Split(v, ","))
		default:
			return nil, eris.Errorf("field %s: expected set of strings, got %T", f.Name, value)
		}
	}

	return nil, eris.Errorf("field %s: unknown kind %q", f.Name, f.Kind)
}

func normalizeSet(field string, elems []string) ([]string, error) {
	seen := make(map[string]bool, len(elems))
	var out []string
	for _, e := range elems {
		e = strings.TrimSpace(e)
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, eris.Errorf("field %s: empty set", field)
	}
	sort.Strings(out)
	return out, nil
}

// Validate checks a normalized value against the field's constraints.
func (f *FieldDef) Validate(value any) error {
	switch f.Kind {
	case KindText:
		s, ok := value.(string)
		if !ok {
			return eris.Wrapf(ErrValidation, "field %s: not text", f.Name)
		}
		if f.PatternRegex != nil && !f.PatternRegex.MatchString(s) {
			return eris.Wrapf(ErrValidation, "field %s: %q does not match pattern", f.Name, s)
		}
	case KindNumber:
		n, ok := value.(float64)
		if !ok {
			return eris.Wrapf(ErrValidation, "field %s: not a number", f.Name)
		}
		if f.Min != nil && n < *f.Min {
			return eris.Wrapf(ErrValidation, "field %s: %v below minimum %v", f.Name, n, *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return eris.Wrapf(ErrValidation, "field %s: %v above maximum %v", f.Name, n, *f.Max)
		}
	case KindEnum, KindSet:
		// Normalize already enforces membership and element types.
	}
	return nil
}

// ValueEqual reports whether two normalized values of this field are the
// same. Sets compare order-insensitively (Normalize sorts them).
func (f *FieldDef) ValueEqual(a, b any) bool {
	as, aok := a.([]string)
	bs, bok := b.([]string)
	if aok && bok {
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if as[i] != bs[i] {
				return false
			}
		}
		return true
	}
	return a == b
}

// QuestionText returns the clarifying question for the field, falling back
// to a generic prompt when the schema author left Question empty.
func (f *FieldDef) QuestionText() string {
	if f.Question != "" {
		return f.Question
	}
	name := strings.ReplaceAll(f.Name, "_", " ")
	switch f.Kind {
	case KindEnum:
		return fmt.Sprintf("What %s fits best? Options: %s.", name, strings.Join(f.Enum, ", "))
	case KindSet:
		return fmt.Sprintf("Which %s should we include? List as many as apply.", name)
	case KindNumber:
		return fmt.Sprintf("What %s are you aiming for?", name)
	default:
		return fmt.Sprintf("Can you tell me the %s for this project?", name)
	}
}
