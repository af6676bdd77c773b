package orchestrator

import (
	"context"
	"errors"
	"fmt"

	theme "github.com/goliatone/go-theme"
	"go.uber.org/zap"

	internalLoader "github.com/goliatone/go-onboard/internal/schema/loader"
	"github.com/goliatone/go-onboard/pkg/answers"
	"github.com/goliatone/go-onboard/pkg/form"
	"github.com/goliatone/go-onboard/pkg/openapi"
	"github.com/goliatone/go-onboard/pkg/render"
	"github.com/goliatone/go-onboard/pkg/renderers/markdown"
	"github.com/goliatone/go-onboard/pkg/renderers/vanilla"
	"github.com/goliatone/go-onboard/pkg/schema"
	"github.com/goliatone/go-onboard/pkg/visibility"
)

const defaultRendererName = vanilla.Name

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithLoader injects a custom schema loader.
func WithLoader(loader schema.Loader) Option {
	return func(o *Orchestrator) {
		o.loader = loader
	}
}

// WithRegistry injects a renderer registry.
func WithRegistry(registry *render.Registry) Option {
	return func(o *Orchestrator) {
		o.registry = registry
	}
}

// WithDefaultRenderer overrides the renderer used when a request omits an
// explicit Renderer field.
func WithDefaultRenderer(name string) Option {
	return func(o *Orchestrator) {
		o.defaultRenderer = name
	}
}

// WithSchemaTransformer registers a Transformer that patches schemas after
// decoding and before validation.
func WithSchemaTransformer(t Transformer) Option {
	return func(o *Orchestrator) {
		o.transformer = t
	}
}

// WithEvaluator sets the visibleWhen evaluator used by sessions and
// contracts.
func WithEvaluator(rules visibility.Evaluator) Option {
	return func(o *Orchestrator) {
		o.rules = rules
	}
}

// WithThemeSelector enables theme resolution for requests naming a theme.
// fallbacks supplies partials a theme does not override.
func WithThemeSelector(selector theme.ThemeSelector, fallbacks map[string]string) Option {
	return func(o *Orchestrator) {
		o.themes = selector
		if fallbacks != nil {
			o.themeFallbacks = fallbacks
		}
	}
}

// WithLogger sets the logger for pipeline events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Orchestrator coordinates the pipeline from schema document to rendered
// step. Missing dependencies default to the built-in loader and a registry
// holding the html and markdown renderers.
type Orchestrator struct {
	loader          schema.Loader
	registry        *render.Registry
	defaultRenderer string
	transformer     Transformer
	rules           visibility.Evaluator
	themes          theme.ThemeSelector
	themeFallbacks  map[string]string
	logger          *zap.Logger
	initialiseErr   error
}

// New constructs an Orchestrator applying any provided options.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{
		defaultRenderer: defaultRendererName,
		themeFallbacks:  DefaultThemeFallbacks(),
		logger:          zap.NewNop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}
	o.applyDefaults()
	return o
}

// Request describes the inputs required to render a step.
type Request struct {
	// Source identifies where the schema document lives. Optional when Schema
	// is supplied.
	Source schema.Source

	// Schema bypasses the loader.
	Schema *schema.Schema

	// Answers pre-fills the session.
	Answers answers.Answers

	// Step advances the new session to this index. Every earlier step must
	// be completable with Answers.
	Step int

	// Renderer names the renderer to use. Empty selects the default.
	Renderer string

	ThemeName    string
	ThemeVariant string

	RenderOptions render.RenderOptions
}

// Registry exposes the renderer registry.
func (o *Orchestrator) Registry() *render.Registry { return o.registry }

// Load resolves src through the loader, applies the transformer and
// validates the result.
func (o *Orchestrator) Load(ctx context.Context, src schema.Source) (*schema.Schema, error) {
	if err := o.ready(ctx); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, errors.New("orchestrator: source is required")
	}
	doc, err := o.loader.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load schema: %w", err)
	}
	s, err := doc.Decode()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: decode schema: %w", err)
	}
	if err := o.prepare(ctx, s); err != nil {
		return nil, err
	}
	o.logger.Debug("schema loaded", zap.String("source", src.Location()), zap.String("schema", s.ID), zap.Int("steps", len(s.Steps)))
	return s, nil
}

// Start begins a session for s pre-filled with initial and advanced to step.
func (o *Orchestrator) Start(ctx context.Context, s *schema.Schema, initial answers.Answers, step int) (form.Session, error) {
	if err := o.ready(ctx); err != nil {
		return form.Session{}, err
	}
	session, err := form.New(s, o.sessionOptions(initial)...)
	if err != nil {
		return form.Session{}, fmt.Errorf("orchestrator: start session: %w", err)
	}
	for session.StepIndex() < step {
		next, err := session.Next()
		if err != nil {
			return form.Session{}, fmt.Errorf("orchestrator: advance to step %d: %w", step, err)
		}
		session = next
	}
	return session, nil
}

// Render renders the active step of session with the named renderer,
// resolving the theme when one is requested.
func (o *Orchestrator) Render(ctx context.Context, session form.Session, req Request) ([]byte, error) {
	if err := o.ready(ctx); err != nil {
		return nil, err
	}

	renderer, err := o.rendererFor(req.Renderer)
	if err != nil {
		return nil, err
	}

	opts := req.RenderOptions
	if opts.Theme == nil && req.ThemeName != "" {
		if o.themes == nil {
			return nil, fmt.Errorf("orchestrator: theme %q requested without a theme selector", req.ThemeName)
		}
		cfg, err := render.SelectTheme(o.themes, req.ThemeName, req.ThemeVariant, o.themeFallbacks)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: %w", err)
		}
		opts.Theme = cfg
	}

	output, err := renderer.Render(ctx, session.View(), opts)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: render output: %w", err)
	}
	return output, nil
}

// Generate executes load → validate → start → render and returns the
// rendered bytes (HTML for the default renderer).
func (o *Orchestrator) Generate(ctx context.Context, req Request) ([]byte, error) {
	s, err := o.resolveSchema(ctx, req)
	if err != nil {
		return nil, err
	}
	session, err := o.Start(ctx, s, req.Answers, req.Step)
	if err != nil {
		return nil, err
	}
	return o.Render(ctx, session, req)
}

// Contract builds the payload contract for s with the orchestrator's
// evaluator.
func (o *Orchestrator) Contract(s *schema.Schema, opts ...openapi.Option) (*openapi.Contract, error) {
	if o.rules != nil {
		opts = append([]openapi.Option{openapi.WithRules(o.rules)}, opts...)
	}
	return openapi.Build(s, opts...)
}

// SessionOptions returns the form options sessions started elsewhere (stores,
// servers) need to evaluate visibility like this orchestrator.
func (o *Orchestrator) SessionOptions() []form.Option {
	return o.sessionOptions(nil)
}

func (o *Orchestrator) sessionOptions(initial answers.Answers) []form.Option {
	var opts []form.Option
	if o.rules != nil {
		opts = append(opts, form.WithEvaluator(o.rules))
	}
	if initial != nil {
		opts = append(opts, form.WithAnswers(initial))
	}
	return opts
}

// Prepare runs the schema transformer and validation on a copy of s, the
// same steps Load applies to decoded documents.
func (o *Orchestrator) Prepare(ctx context.Context, s *schema.Schema) (*schema.Schema, error) {
	if s == nil {
		return nil, errors.New("orchestrator: schema is required")
	}
	if err := o.ready(ctx); err != nil {
		return nil, err
	}
	out := s.Clone()
	if err := o.prepare(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) resolveSchema(ctx context.Context, req Request) (*schema.Schema, error) {
	if req.Schema != nil {
		return o.Prepare(ctx, req.Schema)
	}
	if req.Source == nil {
		return nil, errors.New("orchestrator: source or schema is required")
	}
	return o.Load(ctx, req.Source)
}

func (o *Orchestrator) prepare(ctx context.Context, s *schema.Schema) error {
	if o.transformer != nil {
		if err := o.transformer.Transform(ctx, s); err != nil {
			return fmt.Errorf("orchestrator: transform schema: %w", err)
		}
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	return nil
}

func (o *Orchestrator) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("orchestrator: context is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return o.initialiseErr
}

// Renderer resolves the renderer Render would use for name. An empty name
// selects the default renderer.
func (o *Orchestrator) Renderer(name string) (render.Renderer, error) {
	return o.rendererFor(name)
}

func (o *Orchestrator) rendererFor(name string) (render.Renderer, error) {
	if o.registry == nil {
		return nil, errors.New("orchestrator: renderer registry is nil")
	}

	target := name
	if target == "" {
		target = o.defaultRenderer
	}

	if target != "" {
		renderer, err := o.registry.Get(target)
		if err == nil {
			return renderer, nil
		}
		if name != "" {
			return nil, fmt.Errorf("orchestrator: renderer %q: %w", name, err)
		}
	}

	renderer, err := o.registry.Resolve("")
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	return renderer, nil
}

func (o *Orchestrator) applyDefaults() {
	if o.loader == nil {
		o.loader = internalLoader.New(schema.NewLoaderOptions())
	}
	if o.registry == nil {
		o.registry = render.NewRegistry()
		html, err := vanilla.New()
		if err != nil {
			o.initialiseErr = fmt.Errorf("orchestrator: default renderer: %w", err)
			return
		}
		o.registry.MustRegister(html)
		o.registry.MustRegister(markdown.New())
	}
	if o.defaultRenderer == "" {
		o.defaultRenderer = defaultRendererName
	}
}
