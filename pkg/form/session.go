package form

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-onboard/pkg/answers"
	"github.com/goliatone/go-onboard/pkg/schema"
	"github.com/goliatone/go-onboard/pkg/visibility"
	vexpr "github.com/goliatone/go-onboard/pkg/visibility/expr"
)

// Session is the state of one onboarding run: the schema, the answers so far
// and the active step. The zero Session is not usable; build one with New or
// Restore.
type Session struct {
	schema    *schema.Schema
	answers   answers.Answers
	step      int
	submitted bool
	checker   visibility.Checker
}

// Option configures a Session.
type Option func(*config)

type config struct {
	rules   visibility.Evaluator
	extras  map[string]any
	initial answers.Answers
}

// WithEvaluator replaces the visibleWhen rule evaluator. Passing nil hides
// every field that declares a rule.
func WithEvaluator(rules visibility.Evaluator) Option {
	return func(c *config) {
		c.rules = rules
	}
}

// WithExtras exposes extra context to visibleWhen rules under `extras`.
func WithExtras(extras map[string]any) Option {
	return func(c *config) {
		c.extras = extras
	}
}

// WithAnswers seeds the session with prefilled answers.
func WithAnswers(initial answers.Answers) Option {
	return func(c *config) {
		c.initial = initial
	}
}

var defaultRules = vexpr.New()

// New starts a session at step 0. The schema must validate.
func New(s *schema.Schema, opts ...Option) (Session, error) {
	if s == nil {
		return Session{}, errors.New("form: schema is required")
	}
	if err := s.Validate(); err != nil {
		return Session{}, fmt.Errorf("form: %w", err)
	}

	cfg := config{rules: defaultRules}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	var checkerOpts []visibility.Option
	if cfg.extras != nil {
		checkerOpts = append(checkerOpts, visibility.WithExtras(cfg.extras))
	}

	initial := answers.Answers{}
	if cfg.initial != nil {
		initial = cfg.initial.Clone()
	}

	return Session{
		schema:  s,
		answers: initial,
		checker: visibility.New(cfg.rules, checkerOpts...),
	}, nil
}

// MustNew panics when New fails. Intended for built-in schemas and tests.
func MustNew(s *schema.Schema, opts ...Option) Session {
	session, err := New(s, opts...)
	if err != nil {
		panic(err)
	}
	return session
}

func (s Session) Schema() *schema.Schema { return s.schema }

// StepIndex returns the active step index.
func (s Session) StepIndex() int { return s.step }

// Submitted reports whether the session reached the terminal state.
func (s Session) Submitted() bool { return s.submitted }

// Step returns the active step.
func (s Session) Step() schema.Step {
	step, _ := s.schema.Step(s.step)
	return step
}

// IsFirst reports whether the active step is the first one.
func (s Session) IsFirst() bool { return s.step == 0 }

// IsLast reports whether the active step is the last one.
func (s Session) IsLast() bool { return s.step == s.schema.LastIndex() }

// Answers returns a copy of the collected answers.
func (s Session) Answers() answers.Answers { return s.answers.Clone() }

// Answer returns the value stored for id.
func (s Session) Answer(id string) (answers.Value, bool) { return s.answers.Get(id) }

// IsVisible evaluates field against the session answers.
func (s Session) IsVisible(field schema.Field) bool {
	return s.checker.IsVisible(field, s.answers)
}

// VisibleFields returns the active step's visible fields in schema order.
func (s Session) VisibleFields() []schema.Field {
	return s.checker.Filter(s.Step().Fields, s.answers)
}

// SetAnswer returns a session with id set to value. The value is stored as
// given; shape checks belong to the caller (see answers.Coerce).
func (s Session) SetAnswer(id string, value answers.Value) Session {
	next := s
	next.answers = s.answers.With(id, value)
	return next
}

// ClearAnswer returns a session without an answer for id.
func (s Session) ClearAnswer(id string) Session {
	next := s
	next.answers = s.answers.Without(id)
	return next
}

// Missing lists the visible required fields of the active step that have no
// value yet.
func (s Session) Missing() []string {
	var missing []string
	for _, field := range s.VisibleFields() {
		if !field.Required {
			continue
		}
		if value, ok := s.answers[field.ID]; !ok || value.Empty() {
			missing = append(missing, field.ID)
		}
	}
	return missing
}

// CanAdvance reports whether every visible required field of the active step
// is answered. Hidden required fields are exempt.
func (s Session) CanAdvance() bool {
	return len(s.Missing()) == 0
}

// Next moves to the following step.
func (s Session) Next() (Session, error) {
	switch {
	case s.submitted:
		return s, reject(OpNext, s.step, "session already submitted")
	case s.IsLast():
		return s, reject(OpNext, s.step, "already at the last step")
	case !s.CanAdvance():
		return s, reject(OpNext, s.step, "missing required fields: %s", strings.Join(s.Missing(), ", "))
	}
	next := s
	next.step++
	return next, nil
}

// Back moves to the previous step. Answers are kept.
func (s Session) Back() (Session, error) {
	switch {
	case s.submitted:
		return s, reject(OpBack, s.step, "session already submitted")
	case s.IsFirst():
		return s, reject(OpBack, s.step, "already at the first step")
	}
	next := s
	next.step--
	return next, nil
}

// Submit finalises the session. It succeeds only on the last step when
// CanAdvance holds, returning the payload and the terminal session.
func (s Session) Submit() (Payload, Session, error) {
	switch {
	case s.submitted:
		return Payload{}, s, reject(OpSubmit, s.step, "session already submitted")
	case !s.IsLast():
		return Payload{}, s, reject(OpSubmit, s.step, "not at the last step")
	case !s.CanAdvance():
		return Payload{}, s, reject(OpSubmit, s.step, "missing required fields: %s", strings.Join(s.Missing(), ", "))
	}

	payload := s.payload()
	next := s
	next.submitted = true
	return payload, next, nil
}

// GoTo jumps back to an earlier step. Forward jumps are rejected; they would
// skip the required checks of the steps in between.
func (s Session) GoTo(index int) (Session, error) {
	switch {
	case s.submitted:
		return s, reject(OpGoTo, s.step, "session already submitted")
	case index < 0 || index > s.step:
		return s, reject(OpGoTo, s.step, "cannot jump to step %d", index)
	}
	next := s
	next.step = index
	return next, nil
}
