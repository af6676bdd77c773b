// Package visibility decides which fields of a step are shown for the current
// answers. The single-key visibleIf condition is evaluated here; compound
// visibleWhen rules are delegated to an Evaluator such as visibility/expr.
package visibility

import (
	"strings"

	"github.com/goliatone/go-onboard/pkg/answers"
	"github.com/goliatone/go-onboard/pkg/schema"
)

// Evaluator determines whether a field should be visible based on a rule
// string and the current answers.
type Evaluator interface {
	Eval(fieldID, rule string, ctx Context) (bool, error)
}

// Context provides inputs to an Evaluator. Values holds answer scalars keyed
// by field id while Extras lets callers inject arbitrary context such as
// feature flags.
type Context struct {
	Values map[string]any
	Extras map[string]any
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(fieldID, rule string, ctx Context) (bool, error)

// Eval delegates to the underlying function.
func (fn EvaluatorFunc) Eval(fieldID, rule string, ctx Context) (bool, error) {
	return fn(fieldID, rule, ctx)
}

// Checker combines the visibleIf condition with an optional rule evaluator.
// The zero Checker has no evaluator: fields carrying a visibleWhen rule are
// then hidden.
type Checker struct {
	rules  Evaluator
	extras map[string]any
}

// Option configures a Checker.
type Option func(*Checker)

// WithExtras exposes additional context to visibleWhen rules.
func WithExtras(extras map[string]any) Option {
	return func(c *Checker) {
		c.extras = extras
	}
}

// New builds a Checker delegating visibleWhen rules to rules.
func New(rules Evaluator, opts ...Option) Checker {
	c := Checker{rules: rules}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return c
}

// IsVisible evaluates field against ans without a rule evaluator.
func IsVisible(field schema.Field, ans answers.Answers) bool {
	return Checker{}.IsVisible(field, ans)
}

// Matches evaluates only the visibleIf condition. Fields without one are
// visible; an unanswered key never matches.
func Matches(field schema.Field, ans answers.Answers) bool {
	cond := field.VisibleIf
	if cond == nil {
		return true
	}
	if cond.Key == "" {
		return false
	}
	current, ok := ans[cond.Key]
	if !ok {
		return false
	}
	return cond.Matches(current.Scalar())
}

// IsVisible reports whether field is shown. It never fails: rules that cannot
// be evaluated hide the field.
func (c Checker) IsVisible(field schema.Field, ans answers.Answers) bool {
	if !Matches(field, ans) {
		return false
	}
	rule := strings.TrimSpace(field.VisibleWhen)
	if rule == "" {
		return true
	}
	if c.rules == nil {
		return false
	}
	ok, err := c.rules.Eval(field.ID, rule, Context{Values: ans.Scalars(), Extras: c.extras})
	return err == nil && ok
}

// Filter returns the visible subset of fields, preserving order.
func (c Checker) Filter(fields []schema.Field, ans answers.Answers) []schema.Field {
	out := make([]schema.Field, 0, len(fields))
	for _, field := range fields {
		if c.IsVisible(field, ans) {
			out = append(out, field)
		}
	}
	return out
}
