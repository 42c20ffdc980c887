package model

import (
	"regexp"

	"github.com/rotisserie/eris"
)

// Schema is the ordered field set for one platform. Field order is the
// declaration order and drives the deterministic missing-field ordering.
type Schema struct {
	Platform string     `yaml:"platform" json:"platform"`
	Fields   []FieldDef `yaml:"fields" json:"fields"`

	byName map[string]*FieldDef
}

// defaultCeiling applies when a schema author omits a field ceiling.
// Inference alone never reaches full confidence.
const defaultCeiling = 0.8

// NewSchema builds a Schema with indexed lookups, compiling validation
// patterns and applying ceiling defaults. It rejects schemas with duplicate
// field names, no required fields, or out-of-range ceilings.
func NewSchema(platform string, fields []FieldDef) (*Schema, error) {
	if platform == "" {
		return nil, eris.New("schema: empty platform")
	}
	if len(fields) == 0 {
		return nil, eris.Errorf("schema %s: no fields", platform)
	}

	s := &Schema{
		Platform: platform,
		Fields:   fields,
		byName:   make(map[string]*FieldDef, len(fields)),
	}

	var hasRequired bool
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Name == "" {
			return nil, eris.Errorf("schema %s: field %d has no name", platform, i)
		}
		if _, dup := s.byName[f.Name]; dup {
			return nil, eris.Errorf("schema %s: duplicate field %s", platform, f.Name)
		}
		if f.Kind == "" {
			f.Kind = KindText
		}
		if f.Kind == KindEnum && len(f.Enum) == 0 {
			return nil, eris.Errorf("schema %s: enum field %s has no values", platform, f.Name)
		}
		if f.Ceiling == 0 {
			f.Ceiling = defaultCeiling
		}
		if f.Ceiling <= 0 || f.Ceiling >= 1 {
			return nil, eris.Errorf("schema %s: field %s ceiling %v outside (0,1)", platform, f.Name, f.Ceiling)
		}
		if f.Pattern != "" {
			re, err := regexp.Compile(f.Pattern)
			if err != nil {
				return nil, eris.Wrapf(err, "schema %s: field %s pattern", platform, f.Name)
			}
			f.PatternRegex = re
		}
		if f.Required {
			hasRequired = true
		}
		s.byName[f.Name] = f
	}

	if !hasRequired {
		return nil, eris.Errorf("schema %s: at least one required field expected", platform)
	}

	return s, nil
}

// Field returns the definition for name, or nil if the schema has no such
// field.
func (s *Schema) Field(name string) *FieldDef {
	return s.byName[name]
}

// Required returns the required field definitions in declaration order.
func (s *Schema) Required() []*FieldDef {
	var out []*FieldDef
	for i := range s.Fields {
		if s.Fields[i].Required {
			out = append(out, &s.Fields[i])
		}
	}
	return out
}
