// Package expr evaluates visibleWhen rules with expr-lang. Rules see every
// answered field as a top-level variable (unanswered fields are nil), answers
// whose ids are not identifiers through $env["some-id"], and caller supplied
// context under `extras`.
package expr

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"go.uber.org/zap"

	"github.com/goliatone/go-onboard/pkg/visibility"
)

// Evaluator compiles rules once and caches the programs.
type Evaluator struct {
	logger   *zap.Logger
	programs sync.Map // rule -> *vm.Program
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger logs evaluation failures at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func New(opts ...Option) *Evaluator {
	e := &Evaluator{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

var _ visibility.Evaluator = (*Evaluator)(nil)

func (e *Evaluator) Eval(fieldID, rule string, ctx visibility.Context) (bool, error) {
	trimmed := strings.TrimSpace(rule)
	if trimmed == "" {
		return true, nil
	}

	program, err := e.compile(trimmed)
	if err != nil {
		e.logger.Debug("visibility rule does not compile",
			zap.String("field", fieldID), zap.String("rule", trimmed), zap.Error(err))
		return false, err
	}

	out, err := expr.Run(program, env(ctx))
	if err != nil {
		e.logger.Debug("visibility rule failed",
			zap.String("field", fieldID), zap.String("rule", trimmed), zap.Error(err))
		return false, fmt.Errorf("visibility/expr: field %q: %w", fieldID, err)
	}
	visible, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("visibility/expr: field %q: rule yielded %T, want bool", fieldID, out)
	}
	return visible, nil
}

func (e *Evaluator) compile(rule string) (*vm.Program, error) {
	if cached, ok := e.programs.Load(rule); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(rule, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("visibility/expr: compile %q: %w", rule, err)
	}
	actual, _ := e.programs.LoadOrStore(rule, program)
	return actual.(*vm.Program), nil
}

func env(ctx visibility.Context) map[string]any {
	out := make(map[string]any, len(ctx.Values)+1)
	for key, value := range ctx.Values {
		out[key] = value
	}
	if _, taken := out["extras"]; !taken {
		extras := ctx.Extras
		if extras == nil {
			extras = map[string]any{}
		}
		out["extras"] = extras
	}
	return out
}
