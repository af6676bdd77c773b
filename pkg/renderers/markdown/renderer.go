// Package markdown renders the active step of a session as a Markdown
// document, optionally styled for a terminal with glamour.
package markdown

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/goliatone/go-onboard/pkg/answers"
	"github.com/goliatone/go-onboard/pkg/form"
	"github.com/goliatone/go-onboard/pkg/render"
	"github.com/goliatone/go-onboard/pkg/schema"
)

const Name = "markdown"

// Renderer implements render.Renderer producing Markdown.
type Renderer struct {
	style string
	width int
}

var _ render.Renderer = (*Renderer)(nil)

// Option configures the renderer.
type Option func(*Renderer)

// WithTerminalStyle pipes the document through glamour using the named style
// ("auto", "dark", "light", "notty"). Width zero keeps glamour's default.
func WithTerminalStyle(style string, width int) Option {
	return func(r *Renderer) {
		r.style = strings.TrimSpace(style)
		r.width = width
	}
}

// New constructs a markdown renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Renderer) Name() string { return Name }

func (r *Renderer) ContentType() string {
	if r.style != "" {
		return "text/plain; charset=utf-8"
	}
	return "text/markdown; charset=utf-8"
}

// Render writes the header, step indicator, visible fields and the
// available actions of view.
func (r *Renderer) Render(ctx context.Context, view form.View, opts render.RenderOptions) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("markdown: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	render.ApplySubset(&view, opts.Subset)
	render.LocalizeView(&view, opts)

	md := document(view, opts)
	if r.style == "" {
		return []byte(md), nil
	}
	styled, err := r.terminal(md)
	if err != nil {
		return nil, fmt.Errorf("markdown: style output: %w", err)
	}
	return []byte(styled), nil
}

func document(view form.View, opts render.RenderOptions) string {
	var b strings.Builder

	if view.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", escape(view.Title))
	}
	if view.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", escape(view.Description))
	}

	for _, status := range view.Progress {
		mark := " "
		if status.State == form.StepComplete {
			mark = "x"
		}
		name := escape(status.Name)
		if status.State == form.StepActive {
			name = "**" + name + "**"
		}
		fmt.Fprintf(&b, "- [%s] %s\n", mark, name)
	}
	if len(view.Progress) > 0 {
		b.WriteString("\n")
	}

	if view.Submitted {
		b.WriteString(render.Translate(opts, "onboard.submitted", "Thank you! Your onboarding details were submitted.") + "\n")
		return b.String()
	}

	fmt.Fprintf(&b, "## Step %d/%d: %s\n\n", view.StepIndex+1, view.StepCount, escape(view.StepName))

	for _, message := range opts.FormErrors {
		fmt.Fprintf(&b, "> **Error:** %s\n", escape(message))
	}
	if len(opts.FormErrors) > 0 {
		b.WriteString("\n")
	}

	for _, fv := range view.Fields {
		writeField(&b, fv, opts.Errors[fv.Field.ID])
	}

	b.WriteString(actions(view, opts) + "\n")
	return b.String()
}

func writeField(b *strings.Builder, fv form.FieldView, errs []string) {
	field := fv.Field
	label := escape(field.Label)
	if label == "" {
		label = field.ID
	}
	if field.Required {
		label += " \\*"
	}
	fmt.Fprintf(b, "### %s\n\n", label)
	fmt.Fprintf(b, "`%s` · %s\n\n", field.ID, field.Type)
	if field.HelperText != "" {
		fmt.Fprintf(b, "_%s_\n\n", escape(field.HelperText))
	}
	if field.Type == schema.FieldTypeDropdown {
		fmt.Fprintf(b, "Options: %s\n\n", escape(strings.Join(field.Options, ", ")))
	}

	switch {
	case fv.Answered && !fv.Value.Empty():
		fmt.Fprintf(b, "Answer: %s\n\n", describe(fv.Value))
	case fv.Missing:
		b.WriteString("Answer: **missing**\n\n")
	default:
		b.WriteString("Answer: _none_\n\n")
	}
	for _, message := range errs {
		fmt.Fprintf(b, "- %s\n", escape(message))
	}
	if len(errs) > 0 {
		b.WriteString("\n")
	}
}

func actions(view form.View, opts render.RenderOptions) string {
	var items []string
	if view.CanGoBack {
		items = append(items, render.Translate(opts, "onboard.actions.back", "Back"))
	}
	if view.IsLast {
		items = append(items, render.Translate(opts, "onboard.actions.submit", "Submit"))
	} else {
		items = append(items, render.Translate(opts, "onboard.actions.next", "Next"))
	}
	for i, item := range items {
		items[i] = "[" + item + "]"
	}
	return strings.Join(items, " ")
}

func describe(value answers.Value) string {
	if value.Kind == answers.KindFile && value.File != nil {
		if value.File.Size > 0 {
			return fmt.Sprintf("`%s` (%d bytes)", value.File.Name, value.File.Size)
		}
		return "`" + value.File.Name + "`"
	}
	return escape(value.Text)
}

var escaper = strings.NewReplacer(
	"\\", "\\\\",
	"*", "\\*",
	"_", "\\_",
	"`", "\\`",
	"[", "\\[",
	"]", "\\]",
	"\n", " ",
)

func escape(s string) string {
	return escaper.Replace(s)
}

func (r *Renderer) terminal(md string) (string, error) {
	opts := []glamour.TermRendererOption{}
	if r.style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(r.style))
	}
	if r.width > 0 {
		opts = append(opts, glamour.WithWordWrap(r.width))
	}
	tr, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}
	return tr.Render(md)
}
