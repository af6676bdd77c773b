package form

import (
	"github.com/goliatone/go-onboard/pkg/answers"
	"github.com/goliatone/go-onboard/pkg/schema"
)

// StepState is the indicator state of a step.
type StepState string

const (
	StepPending  StepState = "pending"
	StepActive   StepState = "active"
	StepComplete StepState = "complete"
)

// StepStatus is one entry of the step indicator.
type StepStatus struct {
	Index int       `json:"index"`
	Name  string    `json:"name"`
	State StepState `json:"state"`
}

// Progress reports the indicator state of every step: earlier steps are
// complete, the active one is active and the rest pending. After submit every
// step is complete.
func (s Session) Progress() []StepStatus {
	out := make([]StepStatus, 0, len(s.schema.Steps))
	for _, step := range s.schema.Steps {
		state := StepPending
		switch {
		case s.submitted || step.Index < s.step:
			state = StepComplete
		case step.Index == s.step:
			state = StepActive
		}
		out = append(out, StepStatus{Index: step.Index, Name: step.Name, State: state})
	}
	return out
}

// FieldView pairs a visible field with its current answer.
type FieldView struct {
	Field    schema.Field  `json:"field"`
	Value    answers.Value `json:"value"`
	Answered bool          `json:"answered"`
	Missing  bool          `json:"missing"`
}

// View is a read-only projection of a session for presentation layers.
type View struct {
	SchemaID    string         `json:"schemaId,omitempty"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Progress    []StepStatus   `json:"progress"`
	StepIndex   int            `json:"stepIndex"`
	StepName    string         `json:"stepName"`
	StepCount   int            `json:"stepCount"`
	Fields      []FieldView    `json:"fields"`
	Values      map[string]any `json:"values"`
	Missing     []string       `json:"missing,omitempty"`
	CanAdvance  bool           `json:"canAdvance"`
	CanGoBack   bool           `json:"canGoBack"`
	IsLast      bool           `json:"isLast"`
	Submitted   bool           `json:"submitted"`
}

// View builds the projection of the active step.
func (s Session) View() View {
	missing := s.Missing()
	missingSet := make(map[string]struct{}, len(missing))
	for _, id := range missing {
		missingSet[id] = struct{}{}
	}

	visible := s.VisibleFields()
	fields := make([]FieldView, 0, len(visible))
	for _, field := range visible {
		value, ok := s.answers[field.ID]
		_, isMissing := missingSet[field.ID]
		fields = append(fields, FieldView{Field: field, Value: value, Answered: ok, Missing: isMissing})
	}

	step := s.Step()
	return View{
		SchemaID:    s.schema.ID,
		Title:       s.schema.Title,
		Description: s.schema.Description,
		Progress:    s.Progress(),
		StepIndex:   s.step,
		StepName:    step.Name,
		StepCount:   len(s.schema.Steps),
		Fields:      fields,
		Values:      s.answers.Scalars(),
		Missing:     missing,
		CanAdvance:  !s.submitted && len(missing) == 0,
		CanGoBack:   !s.submitted && !s.IsFirst(),
		IsLast:      s.IsLast(),
		Submitted:   s.submitted,
	}
}
