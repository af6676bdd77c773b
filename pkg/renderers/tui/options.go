package tui

import (
	"go.uber.org/zap"

	"github.com/goliatone/go-onboard/pkg/submission"
	"github.com/goliatone/go-onboard/pkg/widgets"
)

// Theme captures optional message prefixes.
type Theme struct {
	StepPrefix  string
	ErrorPrefix string
}

// Option configures the terminal renderer.
type Option func(*Renderer)

// WithPromptDriver overrides the prompt driver used by the renderer.
func WithPromptDriver(driver PromptDriver) Option {
	return func(r *Renderer) {
		if driver != nil {
			r.driver = driver
		}
	}
}

// WithOutputFormat selects how Render serialises the answers it collected.
func WithOutputFormat(format submission.Format) Option {
	return func(r *Renderer) {
		if format != "" {
			r.outputFormat = format
		}
	}
}

// WithFileResolver replaces the resolver that turns typed paths into file
// references.
func WithFileResolver(resolver FileResolver) Option {
	return func(r *Renderer) {
		if resolver != nil {
			r.files = resolver
		}
	}
}

// WithWidgets replaces the widget registry used to pick prompts.
func WithWidgets(registry *widgets.Registry) Option {
	return func(r *Renderer) {
		if registry != nil {
			r.widgets = registry
		}
	}
}

// WithMaxAttempts bounds how often an invalid answer is re-prompted. Zero
// means unlimited.
func WithMaxAttempts(n int) Option {
	return func(r *Renderer) {
		if n >= 0 {
			r.maxAttempts = n
		}
	}
}

// WithLogger sets the logger used for wizard events.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTheme applies optional message prefixes.
func WithTheme(theme Theme) Option {
	return func(r *Renderer) {
		r.theme = theme
	}
}
