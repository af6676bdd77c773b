// Package submission encodes submitted payloads and hands them to sinks.
package submission

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/goliatone/go-onboard/pkg/answers"
	"github.com/goliatone/go-onboard/pkg/form"
	"github.com/goliatone/go-onboard/pkg/schema"
)

// Format controls how a payload is serialised.
type Format string

const (
	// FormatJSON emits the flat id to value object.
	FormatJSON Format = "json"
	// FormatEnvelope emits the payload wrapped with schema id and drivers.
	FormatEnvelope Format = "envelope"
	// FormatForm emits application/x-www-form-urlencoded pairs.
	FormatForm Format = "form"
	// FormatPretty emits one id=value line per answer.
	FormatPretty Format = "pretty"
	// FormatMarkdown emits a summary table.
	FormatMarkdown Format = "markdown"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatJSON, FormatEnvelope, FormatForm, FormatPretty, FormatMarkdown}
}

// ParseFormat maps a flag value onto a Format.
func ParseFormat(raw string) (Format, error) {
	candidate := Format(strings.ToLower(strings.TrimSpace(raw)))
	if candidate == "" {
		return FormatJSON, nil
	}
	for _, f := range Formats() {
		if f == candidate {
			return f, nil
		}
	}
	return "", fmt.Errorf("submission: unknown format %q", raw)
}

// ContentType reports the media type produced by f.
func (f Format) ContentType() string {
	switch f {
	case FormatForm:
		return "application/x-www-form-urlencoded"
	case FormatPretty:
		return "text/plain; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "application/json"
	}
}

// Extension is the file suffix used by FileSink.
func (f Format) Extension() string {
	switch f {
	case FormatForm:
		return ".txt"
	case FormatPretty:
		return ".txt"
	case FormatMarkdown:
		return ".md"
	default:
		return ".json"
	}
}

// Encoder serialises payloads. The schema, when set, supplies labels and
// field order for the human-readable formats.
type Encoder struct {
	format Format
	schema *schema.Schema
	style  string
	width  int
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithSchema supplies labels and ordering.
func WithSchema(s *schema.Schema) EncoderOption {
	return func(e *Encoder) {
		e.schema = s
	}
}

// WithTerminalStyle renders markdown output through glamour using the named
// style ("auto", "dark", "light", "notty").
func WithTerminalStyle(style string, width int) EncoderOption {
	return func(e *Encoder) {
		e.style = style
		e.width = width
	}
}

// NewEncoder builds an encoder for format.
func NewEncoder(format Format, opts ...EncoderOption) *Encoder {
	if format == "" {
		format = FormatJSON
	}
	e := &Encoder{format: format}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *Encoder) Format() Format { return e.format }

// Encode serialises p.
func (e *Encoder) Encode(p form.Payload) ([]byte, error) {
	switch e.format {
	case FormatJSON:
		return json.MarshalIndent(p, "", "  ")
	case FormatEnvelope:
		return json.MarshalIndent(p.Envelope(), "", "  ")
	case FormatForm:
		return []byte(e.formEncode(p)), nil
	case FormatPretty:
		return []byte(e.pretty(p)), nil
	case FormatMarkdown:
		md := e.markdown(p)
		if e.style == "" {
			return []byte(md), nil
		}
		out, err := e.terminal(md)
		if err != nil {
			return nil, fmt.Errorf("submission: render markdown: %w", err)
		}
		return []byte(out), nil
	default:
		return nil, fmt.Errorf("submission: unknown format %q", e.format)
	}
}

type entry struct {
	id    string
	label string
	value answers.Value
}

// entries lists payload answers in schema order when a schema is known, and
// lexical order otherwise.
func (e *Encoder) entries(p form.Payload) []entry {
	submitted := p.Answers()
	var out []entry
	if e.schema != nil {
		for _, field := range e.schema.Fields() {
			if value, ok := submitted[field.ID]; ok {
				out = append(out, entry{id: field.ID, label: field.Label, value: value})
				delete(submitted, field.ID)
			}
		}
	}
	for _, id := range submitted.IDs() {
		out = append(out, entry{id: id, label: id, value: submitted[id]})
	}
	return out
}

func (e *Encoder) formEncode(p form.Payload) string {
	values := url.Values{}
	for _, item := range e.entries(p) {
		values.Set(item.id, item.value.String())
	}
	return values.Encode()
}

func (e *Encoder) pretty(p form.Payload) string {
	var b strings.Builder
	for _, item := range e.entries(p) {
		fmt.Fprintf(&b, "%s=%s\n", item.id, describe(item.value))
	}
	return b.String()
}

func (e *Encoder) markdown(p form.Payload) string {
	var b strings.Builder
	heading := "Submission"
	if e.schema != nil && e.schema.Title != "" {
		heading = e.schema.Title
	}
	fmt.Fprintf(&b, "# %s\n\n", heading)

	drivers := p.Drivers()
	if len(drivers) > 0 {
		for _, id := range drivers.IDs() {
			fmt.Fprintf(&b, "- **%s:** %s\n", id, escapeCell(drivers[id].String()))
		}
		b.WriteString("\n")
	}

	b.WriteString("| Field | Value |\n| --- | --- |\n")
	for _, item := range e.entries(p) {
		label := item.label
		if label == "" {
			label = item.id
		}
		fmt.Fprintf(&b, "| %s | %s |\n", escapeCell(label), escapeCell(describe(item.value)))
	}
	return b.String()
}

func (e *Encoder) terminal(md string) (string, error) {
	opts := []glamour.TermRendererOption{}
	switch e.style {
	case "auto":
		opts = append(opts, glamour.WithAutoStyle())
	default:
		opts = append(opts, glamour.WithStandardStyle(e.style))
	}
	if e.width > 0 {
		opts = append(opts, glamour.WithWordWrap(e.width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}

func describe(value answers.Value) string {
	if value.Kind == answers.KindFile && value.File != nil && value.File.Size > 0 {
		return fmt.Sprintf("%s (%d bytes)", value.File.Name, value.File.Size)
	}
	return value.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", "<br>")
}
