package schema

import "strings"

// FieldType enumerates the closed set of input kinds a field can declare.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeURL      FieldType = "url"
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeDropdown FieldType = "dropdown"
	FieldTypeFile     FieldType = "file"
)

// FieldTypes lists every supported FieldType in declaration order.
func FieldTypes() []FieldType {
	return []FieldType{
		FieldTypeText,
		FieldTypeURL,
		FieldTypeTextarea,
		FieldTypeDropdown,
		FieldTypeFile,
	}
}

// Valid reports whether t belongs to the closed set of field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeURL, FieldTypeTextarea, FieldTypeDropdown, FieldTypeFile:
		return true
	default:
		return false
	}
}

// Field describes a single input. Label, HelperText and Placeholder are
// presentation-only.
type Field struct {
	ID          string     `json:"id" yaml:"id"`
	Label       string     `json:"label" yaml:"label"`
	Type        FieldType  `json:"type" yaml:"type"`
	Required    bool       `json:"required,omitempty" yaml:"required,omitempty"`
	Options     []string   `json:"options,omitempty" yaml:"options,omitempty"`
	VisibleIf   *Condition `json:"visibleIf,omitempty" yaml:"visibleIf,omitempty"`
	VisibleWhen string     `json:"visibleWhen,omitempty" yaml:"visibleWhen,omitempty"`
	HelperText  string     `json:"helperText,omitempty" yaml:"helperText,omitempty"`
	Placeholder string     `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
}

// IsChoice reports whether the field picks from a fixed option list.
func (f Field) IsChoice() bool {
	return f.Type == FieldTypeDropdown
}

// Conditional reports whether the field declares any visibility gate.
func (f Field) Conditional() bool {
	return f.VisibleIf != nil || strings.TrimSpace(f.VisibleWhen) != ""
}

// HasOption reports whether value is one of the declared options.
func (f Field) HasOption(value string) bool {
	for _, option := range f.Options {
		if option == value {
			return true
		}
	}
	return false
}

// Step groups fields rendered together. Index is assigned from the step's
// position when the schema is normalised and never changes afterwards.
type Step struct {
	Index  int     `json:"-" yaml:"-"`
	Name   string  `json:"name" yaml:"name"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// Schema is the whole form definition.
type Schema struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []Step `json:"steps" yaml:"steps"`
}

// New builds a normalised schema from the provided steps.
func New(id string, steps ...Step) *Schema {
	s := &Schema{ID: id, Steps: steps}
	s.normalize()
	return s
}

func (s *Schema) normalize() {
	if s == nil {
		return
	}
	s.ID = strings.TrimSpace(s.ID)
	for i := range s.Steps {
		s.Steps[i].Index = i
	}
}

// LastIndex returns the index of the final step, or -1 for an empty schema.
func (s *Schema) LastIndex() int {
	if s == nil {
		return -1
	}
	return len(s.Steps) - 1
}

// Step returns the step at index i.
func (s *Schema) Step(i int) (Step, bool) {
	if s == nil || i < 0 || i >= len(s.Steps) {
		return Step{}, false
	}
	return s.Steps[i], true
}

// Field looks up a field by id across every step.
func (s *Schema) Field(id string) (Field, bool) {
	field, _, ok := s.Lookup(id)
	return field, ok
}

// Lookup returns the field with the supplied id together with the index of
// the step declaring it.
func (s *Schema) Lookup(id string) (Field, int, bool) {
	if s == nil {
		return Field{}, -1, false
	}
	for _, step := range s.Steps {
		for _, field := range step.Fields {
			if field.ID == id {
				return field, step.Index, true
			}
		}
	}
	return Field{}, -1, false
}

// Fields returns every field in schema order.
func (s *Schema) Fields() []Field {
	if s == nil {
		return nil
	}
	var out []Field
	for _, step := range s.Steps {
		out = append(out, step.Fields...)
	}
	return out
}

// ConditionKeys lists the ids referenced by visibleIf conditions, in order of
// first reference. These are the selector fields that drive visibility.
func (s *Schema) ConditionKeys() []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var keys []string
	for _, field := range s.Fields() {
		if field.VisibleIf == nil || field.VisibleIf.Key == "" {
			continue
		}
		if _, ok := seen[field.VisibleIf.Key]; ok {
			continue
		}
		seen[field.VisibleIf.Key] = struct{}{}
		keys = append(keys, field.VisibleIf.Key)
	}
	return keys
}

// Clone returns a deep copy so callers can hand schemas to concurrent
// sessions without sharing slices.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	out := *s
	out.Steps = make([]Step, len(s.Steps))
	for i, step := range s.Steps {
		copied := step
		copied.Fields = make([]Field, len(step.Fields))
		for j, field := range step.Fields {
			f := field
			f.Options = append([]string(nil), field.Options...)
			if field.VisibleIf != nil {
				cond := *field.VisibleIf
				cond.Expected = append([]any(nil), field.VisibleIf.Expected...)
				f.VisibleIf = &cond
			}
			copied.Fields[j] = f
		}
		out.Steps[i] = copied
	}
	return &out
}
