package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// ErrInvalidSchema wraps every problem reported by Validate.
var ErrInvalidSchema = errors.New("schema: invalid schema")

// FieldError locates a validation problem. Step is -1 for schema-level
// problems and Field is empty for step-level ones.
type FieldError struct {
	Step    int
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	switch {
	case e.Step < 0:
		return "schema: " + e.Message
	case e.Field == "":
		return fmt.Sprintf("schema: step %d: %s", e.Step, e.Message)
	default:
		return fmt.Sprintf("schema: step %d field %q: %s", e.Step, e.Field, e.Message)
	}
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidSchema
}

// Validate checks the structural invariants of the schema and returns every
// problem found, joined. A nil return means the schema can back a session.
func (s *Schema) Validate() error {
	if s == nil {
		return &FieldError{Step: -1, Message: "schema is nil"}
	}

	var problems []error
	report := func(step int, field, format string, args ...any) {
		problems = append(problems, &FieldError{Step: step, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if len(s.Steps) == 0 {
		report(-1, "", "at least one step is required")
	}

	ids := make(map[string]struct{})
	for _, step := range s.Steps {
		for _, field := range step.Fields {
			id := strings.TrimSpace(field.ID)
			if id == "" {
				continue
			}
			if _, dup := ids[id]; dup {
				report(step.Index, id, "duplicate field id")
				continue
			}
			ids[id] = struct{}{}
		}
	}

	for _, step := range s.Steps {
		if len(step.Fields) == 0 {
			report(step.Index, "", "step %q declares no fields", step.Name)
		}
		for pos, field := range step.Fields {
			if strings.TrimSpace(field.ID) == "" {
				report(step.Index, "", "field at position %d has an empty id", pos)
				continue
			}
			if field.ID != strings.TrimSpace(field.ID) {
				report(step.Index, field.ID, "id has surrounding whitespace")
			}
			validateField(step.Index, field, ids, report)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.Join(problems...)
}

func validateField(step int, field Field, ids map[string]struct{}, report func(int, string, string, ...any)) {
	if !field.Type.Valid() {
		report(step, field.ID, "unknown type %q", field.Type)
	}

	switch {
	case field.Type == FieldTypeDropdown && len(field.Options) == 0:
		report(step, field.ID, "dropdown requires at least one option")
	case field.Type != FieldTypeDropdown && len(field.Options) > 0:
		report(step, field.ID, "options are only allowed on dropdown fields")
	}
	seen := make(map[string]struct{}, len(field.Options))
	for _, option := range field.Options {
		if option == "" {
			report(step, field.ID, "options must not be empty strings")
			continue
		}
		if _, dup := seen[option]; dup {
			report(step, field.ID, "duplicate option %q", option)
		}
		seen[option] = struct{}{}
	}

	if cond := field.VisibleIf; cond != nil {
		switch {
		case cond.Key == "":
			report(step, field.ID, "visibleIf key is empty")
		case cond.Key == field.ID:
			report(step, field.ID, "visibleIf must not reference the field itself")
		default:
			if _, ok := ids[cond.Key]; !ok {
				report(step, field.ID, "visibleIf references unknown field %q", cond.Key)
			}
		}
		if len(cond.Expected) == 0 {
			report(step, field.ID, "visibleIf declares no expected value")
		}
	}

	if rule := strings.TrimSpace(field.VisibleWhen); rule != "" {
		if err := CompileRule(rule); err != nil {
			report(step, field.ID, "visibleWhen: %v", err)
		}
	}
}

// CompileRule checks that a visibleWhen rule parses and yields a boolean.
// Unknown identifiers are allowed: they resolve to nil while the referenced
// field is unanswered.
func CompileRule(rule string) error {
	_, err := expr.Compile(rule, expr.AsBool(), expr.AllowUndefinedVariables())
	return err
}
