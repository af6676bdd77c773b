// Package vanilla renders the active step of a session as a plain HTML form
// with pongo2 templates. Output works without JavaScript: every button posts
// the form with an "op" value of back, next or submit.
package vanilla

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-onboard/pkg/answers"
	"github.com/goliatone/go-onboard/pkg/form"
	"github.com/goliatone/go-onboard/pkg/render"
	rendertemplate "github.com/goliatone/go-onboard/pkg/render/template"
	"github.com/goliatone/go-onboard/pkg/render/template/pongo"
	"github.com/goliatone/go-onboard/pkg/renderers/vanilla/components"
	"github.com/goliatone/go-onboard/pkg/schema"
	"github.com/goliatone/go-onboard/pkg/widgets"
)

const (
	// Name is the registry name of the renderer.
	Name = "html"

	stepTemplate        = "templates/step.tmpl"
	stepPartialKey      = "onboard.step"
	stylesheetAssetKey  = "onboard.stylesheet"
	defaultSelectPrompt = "Select…"
)

type Option func(*config)

type config struct {
	templateFS       fs.FS
	templateRenderer rendertemplate.TemplateRenderer
	widgets          *widgets.Registry
	components       *components.Registry
	sanitizer        *bluemonday.Policy
	classes          ChromeClasses
	stylesheet       string
	inlineStyles     bool
}

// WithTemplatesFS supplies an alternate template bundle via fs.FS.
func WithTemplatesFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templateFS = files
	}
}

// WithTemplatesDir loads templates from a directory on disk.
func WithTemplatesDir(path string) Option {
	return func(cfg *config) {
		if path == "" {
			return
		}
		cfg.templateFS = os.DirFS(path)
	}
}

// WithTemplateRenderer injects a custom template renderer implementation.
func WithTemplateRenderer(renderer rendertemplate.TemplateRenderer) Option {
	return func(cfg *config) {
		if renderer != nil {
			cfg.templateRenderer = renderer
		}
	}
}

// WithWidgets replaces the widget registry used to pick field controls.
func WithWidgets(registry *widgets.Registry) Option {
	return func(cfg *config) {
		if registry != nil {
			cfg.widgets = registry
		}
	}
}

// WithComponents replaces the component registry.
func WithComponents(registry *components.Registry) Option {
	return func(cfg *config) {
		if registry != nil {
			cfg.components = registry
		}
	}
}

// WithSanitizer sets the policy applied to helper texts and the schema
// description, which may carry inline markup.
func WithSanitizer(policy *bluemonday.Policy) Option {
	return func(cfg *config) {
		if policy != nil {
			cfg.sanitizer = policy
		}
	}
}

// WithChromeClasses appends classes to the page chrome.
func WithChromeClasses(classes ChromeClasses) Option {
	return func(cfg *config) {
		cfg.classes = classes
	}
}

// WithStylesheet links an external stylesheet instead of inlining the
// default one. A theme stylesheet takes precedence.
func WithStylesheet(href string) Option {
	return func(cfg *config) {
		cfg.stylesheet = strings.TrimSpace(href)
	}
}

// WithInlineStyles toggles inlining of the embedded stylesheet when no
// stylesheet link is configured. It defaults to true.
func WithInlineStyles(enabled bool) Option {
	return func(cfg *config) {
		cfg.inlineStyles = enabled
	}
}

// Renderer implements render.Renderer for HTML output.
type Renderer struct {
	templates  rendertemplate.TemplateRenderer
	widgets    *widgets.Registry
	components *components.Registry
	sanitizer  *bluemonday.Policy
	classes    map[string]string
	stylesheet string
	inline     bool
}

var _ render.Renderer = (*Renderer)(nil)

// New constructs the renderer applying any provided options.
func New(options ...Option) (*Renderer, error) {
	cfg := config{templateFS: TemplatesFS(), inlineStyles: true}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	if cfg.templateFS == nil {
		cfg.templateFS = TemplatesFS()
	}

	templates := cfg.templateRenderer
	if templates == nil {
		engine, err := pongo.New(
			pongo.WithName("vanilla"),
			pongo.WithFS(cfg.templateFS),
			pongo.WithExtension(".tmpl"),
		)
		if err != nil {
			return nil, fmt.Errorf("vanilla renderer: configure template renderer: %w", err)
		}
		templates = engine
	}
	if cfg.widgets == nil {
		cfg.widgets = widgets.NewRegistry()
	}
	if cfg.components == nil {
		cfg.components = components.NewDefaultRegistry()
	}
	if cfg.sanitizer == nil {
		cfg.sanitizer = bluemonday.UGCPolicy()
	}

	return &Renderer{
		templates:  templates,
		widgets:    cfg.widgets,
		components: cfg.components,
		sanitizer:  cfg.sanitizer,
		classes:    cfg.classes.resolve(),
		stylesheet: cfg.stylesheet,
		inline:     cfg.inlineStyles,
	}, nil
}

func (r *Renderer) Name() string {
	return Name
}

func (r *Renderer) ContentType() string {
	return "text/html; charset=utf-8"
}

// Render draws the active step of view.
func (r *Renderer) Render(ctx context.Context, view form.View, opts render.RenderOptions) ([]byte, error) {
	if r.templates == nil {
		return nil, fmt.Errorf("vanilla renderer: template renderer is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	render.ApplySubset(&view, opts.Subset)
	render.LocalizeView(&view, opts)

	var partials map[string]string
	if opts.Theme != nil {
		partials = opts.Theme.Partials
	}

	prompt := render.Translate(opts, "onboard.select.prompt", defaultSelectPrompt)
	multipart := false
	fields := make([]map[string]any, 0, len(view.Fields))
	for _, fv := range view.Fields {
		field := r.fieldContext(fv, opts.Errors[fv.Field.ID], prompt)
		if fv.Field.Type == schema.FieldTypeFile {
			multipart = true
		}

		descriptor, ok := r.components.Descriptor(field.Widget)
		if !ok {
			return nil, fmt.Errorf("vanilla renderer: component %q not registered for field %q", field.Widget, field.ID)
		}
		var control bytes.Buffer
		if err := descriptor.Renderer(&control, field, components.ComponentData{
			Template:      r.templates,
			ThemePartials: partials,
		}); err != nil {
			return nil, fmt.Errorf("vanilla renderer: field %q: %w", field.ID, err)
		}

		fields = append(fields, map[string]any{
			"id":        field.ID,
			"controlId": field.ControlID,
			"label":     field.Label,
			"type":      field.Type,
			"required":  field.Required,
			"help":      field.Help,
			"errors":    field.Errors,
			"control":   strings.TrimSpace(control.String()),
		})
	}

	method, override := methodFor(opts.Method)
	hidden := make([]map[string]string, 0, len(opts.HiddenFields))
	for _, field := range render.SortedHiddenFields(opts.HiddenFields) {
		hidden = append(hidden, map[string]string{"name": field.Name, "value": field.Value})
	}

	progress := make([]map[string]any, 0, len(view.Progress))
	for _, status := range view.Progress {
		progress = append(progress, map[string]any{
			"index": status.Index,
			"name":  status.Name,
			"state": string(status.State),
		})
	}

	stylesheet, inlineStyle := r.styles(opts)
	themeCtx := map[string]any{}
	if opts.Theme != nil {
		themeCtx["name"] = opts.Theme.Theme
		themeCtx["variant"] = opts.Theme.Variant
	}

	data := map[string]any{
		"form": map[string]any{
			"schemaId":       view.SchemaID,
			"title":          view.Title,
			"description":    r.sanitize(view.Description),
			"action":         opts.Action,
			"method":         method,
			"methodOverride": override,
			"multipart":      multipart,
		},
		"step": map[string]any{
			"index": view.StepIndex,
			"name":  view.StepName,
		},
		"progress":     progress,
		"fields":       fields,
		"hiddenFields": hidden,
		"formErrors":   opts.FormErrors,
		"canGoBack":    view.CanGoBack,
		"isLast":       view.IsLast,
		"submitted":    view.Submitted,
		"classes":      r.classes,
		"stylesheet":   stylesheet,
		"inlineStyle":  inlineStyle,
		"theme":        themeCtx,
		"labels": map[string]string{
			"back":      render.Translate(opts, "onboard.actions.back", "Back"),
			"next":      render.Translate(opts, "onboard.actions.next", "Next"),
			"submit":    render.Translate(opts, "onboard.actions.submit", "Submit"),
			"submitted": render.Translate(opts, "onboard.submitted", "Thank you! Your onboarding details were submitted."),
		},
	}

	name := stepTemplate
	if candidate := strings.TrimSpace(partials[stepPartialKey]); candidate != "" {
		name = candidate
	}
	result, err := r.templates.RenderTemplate(name, data)
	if err != nil {
		return nil, fmt.Errorf("vanilla renderer: render template: %w", err)
	}
	return []byte(result), nil
}

func (r *Renderer) fieldContext(fv form.FieldView, errs []string, prompt string) components.Field {
	f := fv.Field
	field := components.Field{
		ID:          f.ID,
		ControlID:   controlID(f.ID),
		Label:       f.Label,
		Type:        string(f.Type),
		Widget:      r.widgets.ResolveOr(f, widgets.WidgetInput),
		Required:    f.Required,
		Missing:     fv.Missing,
		Answered:    fv.Answered,
		Placeholder: f.Placeholder,
		Help:        r.sanitize(f.HelperText),
		Errors:      errs,
	}

	switch fv.Value.Kind {
	case answers.KindText:
		field.Value = fv.Value.Text
	case answers.KindFile:
		if fv.Value.File != nil {
			field.FileName = fv.Value.File.Name
			field.FileSize = fv.Value.File.Size
		}
	}

	if f.IsChoice() {
		field.Prompt = prompt
		for _, option := range f.Options {
			field.Options = append(field.Options, components.Option{
				Value:    option,
				Label:    option,
				Selected: fv.Answered && fv.Value.Kind == answers.KindText && fv.Value.Text == option,
			})
		}
	}
	return field
}

func (r *Renderer) styles(opts render.RenderOptions) (stylesheet, inline string) {
	stylesheet = r.stylesheet
	var blocks []string
	if opts.Theme != nil {
		if opts.Theme.AssetURL != nil {
			if href := strings.TrimSpace(opts.Theme.AssetURL(stylesheetAssetKey)); href != "" {
				stylesheet = href
			}
		}
		if vars := render.CSSVarsStyle(opts.Theme.CSSVars); vars != "" {
			blocks = append(blocks, vars)
		}
	}
	if stylesheet == "" && r.inline {
		if css := strings.TrimSpace(defaultStylesheet()); css != "" {
			blocks = append(blocks, css)
		}
	}
	return stylesheet, strings.Join(blocks, "\n")
}

func (r *Renderer) sanitize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(r.sanitizer.Sanitize(trimmed))
}
