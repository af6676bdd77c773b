// Package tui runs onboarding sessions in a terminal with survey prompts.
// Renderer.Render prompts the fields of one step and returns the collected
// answers; Renderer.Run drives a whole session through a form.Controller.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-onboard/pkg/answers"
	"github.com/goliatone/go-onboard/pkg/form"
	"github.com/goliatone/go-onboard/pkg/render"
	"github.com/goliatone/go-onboard/pkg/schema"
	"github.com/goliatone/go-onboard/pkg/submission"
	"github.com/goliatone/go-onboard/pkg/widgets"
)

const skipOption = "(none)"

// Renderer implements render.Renderer for terminal sessions.
type Renderer struct {
	driver       PromptDriver
	outputFormat submission.Format
	files        FileResolver
	widgets      *widgets.Registry
	maxAttempts  int
	logger       *zap.Logger
	theme        Theme
}

var _ render.Renderer = (*Renderer)(nil)

// New constructs a terminal renderer with defaults (survey driver, JSON
// output, local file resolution).
func New(options ...Option) (*Renderer, error) {
	r := &Renderer{
		outputFormat: submission.FormatJSON,
		files:        LocalFiles,
		widgets:      widgets.NewRegistry(),
		maxAttempts:  5,
		logger:       zap.NewNop(),
		theme: Theme{
			StepPrefix:  "==>",
			ErrorPrefix: "!",
		},
	}

	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}

	if r.driver == nil {
		r.driver = NewSurveyDriver(nil)
	}
	return r, nil
}

// Name reports the renderer identifier.
func (r *Renderer) Name() string {
	return "tui"
}

// ContentType reports the serialisation format used by Render.
func (r *Renderer) ContentType() string {
	return r.outputFormat.ContentType()
}

// Render prompts every field of view and returns the collected answers
// encoded with the configured output format. Fields left blank are omitted.
func (r *Renderer) Render(ctx context.Context, view form.View, opts render.RenderOptions) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("tui: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	render.ApplySubset(&view, opts.Subset)
	render.LocalizeView(&view, opts)

	for _, message := range opts.FormErrors {
		if err := r.errorf(ctx, "%s", message); err != nil {
			return nil, err
		}
	}

	collected := answers.Answers{}
	for _, fv := range view.Fields {
		value, clear, err := r.promptField(ctx, fv, opts.Errors[fv.Field.ID])
		if err != nil {
			return nil, err
		}
		if !clear {
			collected[fv.Field.ID] = value
		}
	}

	encoder := submission.NewEncoder(r.outputFormat)
	return encoder.Encode(form.NewPayload(view.SchemaID, collected, nil))
}

// Run drives the controller until the session is submitted and returns the
// payload. Each step prompts its visible fields, re-evaluating visibility
// after every answer, then asks where to go next.
func (r *Renderer) Run(ctx context.Context, ctrl *form.Controller) (form.Payload, error) {
	if ctrl == nil {
		return form.Payload{}, errors.New("tui: controller is required")
	}
	for {
		if err := ctx.Err(); err != nil {
			return form.Payload{}, err
		}
		view := ctrl.View()
		if view.Submitted {
			return form.Payload{}, fmt.Errorf("tui: session already submitted")
		}
		if err := r.info(ctx, "%s Step %d/%d: %s", r.theme.StepPrefix, view.StepIndex+1, view.StepCount, view.StepName); err != nil {
			return form.Payload{}, err
		}
		if err := r.promptStep(ctx, ctrl); err != nil {
			return form.Payload{}, err
		}

		action, err := r.chooseAction(ctx, ctrl.View())
		if err != nil {
			return form.Payload{}, err
		}
		switch action {
		case actionGoTo:
			if err := r.jump(ctx, ctrl); err != nil {
				return form.Payload{}, err
			}
		case actionBack:
			if err := ctrl.Back(); err != nil {
				if err := r.errorf(ctx, "%v", err); err != nil {
					return form.Payload{}, err
				}
			}
		case actionNext:
			if err := ctrl.Next(); err != nil {
				if err := r.reportMissing(ctx, ctrl.View(), err); err != nil {
					return form.Payload{}, err
				}
			}
		case actionSubmit:
			payload, err := ctrl.Submit()
			if err == nil {
				r.logger.Info("wizard submitted", zap.String("schema", payload.SchemaID), zap.Int("answers", payload.Len()))
				return payload, nil
			}
			if err := r.reportMissing(ctx, ctrl.View(), err); err != nil {
				return form.Payload{}, err
			}
		}
	}
}

func (r *Renderer) promptStep(ctx context.Context, ctrl *form.Controller) error {
	prompted := make(map[string]struct{})
	for {
		view := ctrl.View()
		var next *form.FieldView
		for i := range view.Fields {
			if _, done := prompted[view.Fields[i].Field.ID]; !done {
				next = &view.Fields[i]
				break
			}
		}
		if next == nil {
			return nil
		}
		prompted[next.Field.ID] = struct{}{}

		value, clear, err := r.promptField(ctx, *next, nil)
		if err != nil {
			return err
		}
		if clear {
			if next.Answered {
				ctrl.ClearAnswer(next.Field.ID)
			}
			continue
		}
		ctrl.SetAnswer(next.Field.ID, value)
	}
}

type action string

const (
	actionNext   action = "Next"
	actionSubmit action = "Submit"
	actionBack   action = "Back"
	actionEdit   action = "Edit answers"
	actionGoTo   action = "Go to step"
)

func (r *Renderer) chooseAction(ctx context.Context, view form.View) (action, error) {
	choices := []action{actionNext}
	if view.IsLast {
		choices[0] = actionSubmit
	}
	choices = append(choices, actionEdit)
	if view.CanGoBack {
		choices = append(choices, actionBack)
	}
	// Back already covers the previous step.
	if view.StepIndex > 1 {
		choices = append(choices, actionGoTo)
	}
	options := make([]string, len(choices))
	for i, choice := range choices {
		options[i] = string(choice)
	}

	idx, err := r.driver.Select(ctx, SelectConfig{Message: "Continue", Options: options})
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(choices) {
		return actionEdit, nil
	}
	return choices[idx], nil
}

// jump lets the user pick an earlier step and moves the controller there.
func (r *Renderer) jump(ctx context.Context, ctrl *form.Controller) error {
	session := ctrl.Session()
	steps := session.Schema().Steps[:session.StepIndex()]
	options := make([]string, len(steps))
	for i, step := range steps {
		options[i] = fmt.Sprintf("%d. %s", i+1, step.Name)
	}
	idx, err := r.driver.Select(ctx, SelectConfig{Message: "Go to step", Options: options})
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(steps) {
		return nil
	}
	if err := ctrl.GoTo(idx); err != nil {
		return r.errorf(ctx, "%v", err)
	}
	return nil
}

func (r *Renderer) reportMissing(ctx context.Context, view form.View, err error) error {
	var te *form.TransitionError
	if !errors.As(err, &te) {
		return err
	}
	if err := r.errorf(ctx, "%s", te.Reason); err != nil {
		return err
	}
	for _, fv := range view.Fields {
		if fv.Missing {
			if err := r.errorf(ctx, "%s is required", fv.Field.Label); err != nil {
				return err
			}
		}
	}
	return nil
}

// promptField asks for one field until the input coerces. clear reports an
// optional field left blank.
func (r *Renderer) promptField(ctx context.Context, fv form.FieldView, errs []string) (answers.Value, bool, error) {
	field := fv.Field
	for _, message := range errs {
		if err := r.errorf(ctx, "%s: %s", field.Label, message); err != nil {
			return answers.Value{}, false, err
		}
	}

	for attempt := 1; ; attempt++ {
		value, clear, err := r.ask(ctx, fv)
		if err == nil {
			return value, clear, nil
		}

		var coerce *answers.CoerceError
		if !errors.As(err, &coerce) && !errors.Is(err, errRequired) {
			return answers.Value{}, false, err
		}
		r.logger.Debug("invalid answer", zap.String("field", field.ID), zap.Int("attempt", attempt), zap.Error(err))
		if r.maxAttempts > 0 && attempt >= r.maxAttempts {
			return answers.Value{}, false, fmt.Errorf("%w: %s", ErrTooManyAttempts, field.ID)
		}
		message := err.Error()
		if coerce != nil {
			message = coerce.Reason
		}
		if err := r.errorf(ctx, "%s: %s", field.Label, message); err != nil {
			return answers.Value{}, false, err
		}
	}
}

var errRequired = errors.New("this field is required")

func requiredValidator(required bool) func(string) error {
	if !required {
		return nil
	}
	return func(s string) error {
		if s == "" {
			return errRequired
		}
		return nil
	}
}

func (r *Renderer) ask(ctx context.Context, fv form.FieldView) (answers.Value, bool, error) {
	field := fv.Field
	message := field.Label
	if field.Required {
		message += " *"
	}
	current := ""
	if fv.Answered && fv.Value.Kind == answers.KindText {
		current = fv.Value.Text
	}

	var raw any
	switch r.widgets.ResolveOr(field, widgets.WidgetInput) {
	case widgets.WidgetSelect:
		options := append([]string(nil), field.Options...)
		if !field.Required {
			options = append([]string{skipOption}, options...)
		}
		idx, err := r.driver.Select(ctx, SelectConfig{
			Message:      message,
			Options:      options,
			DefaultIndex: indexOf(options, current),
			Help:         field.HelperText,
		})
		if err != nil {
			return answers.Value{}, false, err
		}
		if idx < 0 || idx >= len(options) {
			return answers.Value{}, false, &answers.CoerceError{Field: field.ID, Reason: "no option selected"}
		}
		if options[idx] == skipOption && !field.Required {
			return answers.Value{}, true, nil
		}
		raw = options[idx]

	case widgets.WidgetTextarea:
		text, err := r.driver.TextArea(ctx, TextAreaConfig{
			Message:   message,
			Default:   current,
			Help:      field.HelperText,
			Validator: requiredValidator(field.Required),
		})
		if err != nil {
			return answers.Value{}, false, err
		}
		raw = text

	case widgets.WidgetFile:
		def := ""
		if fv.Answered && fv.Value.File != nil {
			def = fv.Value.File.Name
		}
		path, err := r.driver.Input(ctx, InputConfig{
			Message:   message + " (path)",
			Default:   def,
			Help:      field.HelperText,
			Validator: requiredValidator(field.Required),
		})
		if err != nil {
			return answers.Value{}, false, err
		}
		path = strings.TrimSpace(path)
		if path != "" && path == def {
			return fv.Value, false, nil
		}
		if path != "" {
			ref, err := r.files(path)
			if err != nil {
				return answers.Value{}, false, &answers.CoerceError{Field: field.ID, Reason: err.Error()}
			}
			raw = ref
		} else {
			raw = ""
		}

	default:
		text, err := r.driver.Input(ctx, InputConfig{
			Message:   message,
			Default:   current,
			Help:      placeholderHelp(field),
			Validator: requiredValidator(field.Required),
		})
		if err != nil {
			return answers.Value{}, false, err
		}
		raw = text
	}

	if s, ok := raw.(string); ok && s == "" {
		if field.Required {
			return answers.Value{}, false, errRequired
		}
		return answers.Value{}, true, nil
	}
	value, err := answers.Coerce(field, raw)
	if err != nil {
		return answers.Value{}, false, err
	}
	return value, false, nil
}

func placeholderHelp(field schema.Field) string {
	switch {
	case field.HelperText != "" && field.Placeholder != "":
		return field.HelperText + " (" + field.Placeholder + ")"
	case field.Placeholder != "":
		return field.Placeholder
	default:
		return field.HelperText
	}
}

func (r *Renderer) info(ctx context.Context, format string, args ...any) error {
	return r.driver.Info(ctx, fmt.Sprintf(format, args...))
}

func (r *Renderer) errorf(ctx context.Context, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if r.theme.ErrorPrefix != "" {
		msg = r.theme.ErrorPrefix + " " + msg
	}
	return r.driver.Info(ctx, msg)
}
