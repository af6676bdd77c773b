package openapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-onboard/pkg/answers"
	"github.com/goliatone/go-onboard/pkg/schema"
	"github.com/goliatone/go-onboard/pkg/visibility"
	vexpr "github.com/goliatone/go-onboard/pkg/visibility/expr"
)

// ErrInvalidPayload wraps every payload validation failure.
var ErrInvalidPayload = errors.New("openapi: invalid payload")

// PayloadError locates a payload problem.
type PayloadError struct {
	Field   string
	Message string
}

func (e *PayloadError) Error() string {
	if e.Field == "" {
		return "openapi: payload: " + e.Message
	}
	return fmt.Sprintf("openapi: payload field %q: %s", e.Field, e.Message)
}

func (e *PayloadError) Unwrap() error { return ErrInvalidPayload }

const (
	defaultPath    = "/submissions"
	defaultVersion = "1.0.0"

	extStep      = "x-onboard-step"
	extVisibleIf = "x-onboard-visible-if"
	extRule      = "x-onboard-visible-when"
)

// Options tunes the generated document.
type Options struct {
	Path        string
	Version     string
	OperationID string
	Rules       visibility.Evaluator
}

// Option mutates Options.
type Option func(*Options)

// WithPath sets the submission path (default /submissions).
func WithPath(path string) Option {
	return func(o *Options) {
		if strings.TrimSpace(path) != "" {
			o.Path = path
		}
	}
}

// WithVersion sets info.version.
func WithVersion(version string) Option {
	return func(o *Options) {
		if strings.TrimSpace(version) != "" {
			o.Version = version
		}
	}
}

// WithRules replaces the visibleWhen evaluator used by Validate.
func WithRules(rules visibility.Evaluator) Option {
	return func(o *Options) {
		o.Rules = rules
	}
}

// Contract is the OpenAPI view of a schema's submission payload.
type Contract struct {
	schema  *schema.Schema
	doc     *openapi3.T
	payload *openapi3.Schema
	checker visibility.Checker
}

// Build generates the contract for s.
func Build(s *schema.Schema, opts ...Option) (*Contract, error) {
	if s == nil {
		return nil, errors.New("openapi: schema is required")
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("openapi: %w", err)
	}

	cfg := Options{Path: defaultPath, Version: defaultVersion}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.Rules == nil {
		cfg.Rules = vexpr.New()
	}
	if cfg.OperationID == "" {
		cfg.OperationID = "submit" + identifier(s.ID)
	}

	payload := PayloadSchema(s)

	op := openapi3.NewOperation()
	op.OperationID = cfg.OperationID
	op.Summary = "Submit " + title(s)
	op.RequestBody = &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(payload),
	}
	responses := openapi3.NewResponses()
	responses.Set("202", &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("accepted")})
	responses.Set("422", &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("payload rejected")})
	op.Responses = responses

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       title(s),
			Description: s.Description,
			Version:     cfg.Version,
		},
		Paths: openapi3.NewPaths(),
	}
	doc.Paths.Set(cfg.Path, &openapi3.PathItem{Post: op})

	return &Contract{
		schema:  s,
		doc:     doc,
		payload: payload,
		checker: visibility.New(cfg.Rules),
	}, nil
}

// PayloadSchema maps every field to a property. Only required fields without
// a visibility gate are listed as required; gated ones are checked by
// Validate once visibility is known.
func PayloadSchema(s *schema.Schema) *openapi3.Schema {
	obj := openapi3.NewObjectSchema()
	obj.Title = title(s)
	obj.AdditionalProperties = openapi3.AdditionalProperties{Has: openapi3.BoolPtr(false)}

	var required []string
	for _, step := range s.Steps {
		for _, field := range step.Fields {
			prop := fieldSchema(field)
			prop.Extensions = map[string]any{extStep: step.Index}
			if field.VisibleIf != nil {
				prop.Extensions[extVisibleIf] = field.VisibleIf
			}
			if rule := strings.TrimSpace(field.VisibleWhen); rule != "" {
				prop.Extensions[extRule] = rule
			}
			obj.WithProperty(field.ID, prop)
			if field.Required && !field.Conditional() {
				required = append(required, field.ID)
			}
		}
	}
	obj.Required = required
	return obj
}

func fieldSchema(field schema.Field) *openapi3.Schema {
	var out *openapi3.Schema
	switch field.Type {
	case schema.FieldTypeURL:
		out = openapi3.NewStringSchema().WithFormat("uri").WithMinLength(1)
	case schema.FieldTypeDropdown:
		options := make([]any, 0, len(field.Options))
		for _, option := range field.Options {
			options = append(options, option)
		}
		out = openapi3.NewStringSchema().WithEnum(options...)
	case schema.FieldTypeFile:
		out = fileSchema()
	default:
		out = openapi3.NewStringSchema().WithMinLength(1)
	}
	out.Title = field.Label
	out.Description = field.HelperText
	return out
}

func fileSchema() *openapi3.Schema {
	out := openapi3.NewObjectSchema().
		WithProperty("name", openapi3.NewStringSchema().WithMinLength(1)).
		WithProperty("size", openapi3.NewInt64Schema().WithMin(0)).
		WithProperty("contentType", openapi3.NewStringSchema())
	out.Required = []string{"name"}
	return out
}

// Document returns the generated OpenAPI document.
func (c *Contract) Document() *openapi3.T { return c.doc }

// Payload returns the payload JSON schema.
func (c *Contract) Payload() *openapi3.Schema { return c.payload }

// Check validates the generated document itself.
func (c *Contract) Check(ctx context.Context) error {
	return c.doc.Validate(ctx)
}

// JSON renders the document as indented JSON.
func (c *Contract) JSON() ([]byte, error) {
	return json.MarshalIndent(c.doc, "", "  ")
}

// YAML renders the document as block-style YAML, preserving key order.
func (c *Contract) YAML() ([]byte, error) {
	raw, err := json.Marshal(c.doc)
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, err
	}
	blockStyle(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func blockStyle(node *yaml.Node) {
	node.Style &^= yaml.FlowStyle
	if node.Kind == yaml.ScalarNode && node.Tag == "!!str" {
		node.Style &^= yaml.DoubleQuotedStyle
	}
	for _, child := range node.Content {
		blockStyle(child)
	}
}

// Validate checks a JSON payload: its shape against the OpenAPI schema, then
// the visibility rules of the schema.
func (c *Contract) Validate(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return &PayloadError{Message: "not valid JSON: " + err.Error()}
	}
	if err := c.payload.VisitJSON(answered(raw), openapi3.MultiErrors()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var submitted answers.Answers
	if err := json.Unmarshal(data, &submitted); err != nil {
		return &PayloadError{Message: err.Error()}
	}
	return c.ValidateAnswers(submitted)
}

// answered drops empty strings from a payload object so the shape check
// treats them as unanswered, the way sessions do.
func answered(raw any) any {
	obj, ok := raw.(map[string]any)
	if !ok {
		return raw
	}
	out := make(map[string]any, len(obj))
	for key, value := range obj {
		if s, isString := value.(string); isString && s == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// ValidateAnswers applies the visibility-dependent rules: every visible
// required field is answered and every answered URL parses. Answers to hidden
// fields are accepted since a submitted payload keeps them.
func (c *Contract) ValidateAnswers(submitted answers.Answers) error {
	var problems []error
	for _, field := range c.schema.Fields() {
		value, present := submitted[field.ID]
		visible := c.checker.IsVisible(field, submitted)
		switch {
		case visible && field.Required && (!present || value.Empty()):
			problems = append(problems, &PayloadError{Field: field.ID, Message: "required"})
		case present && field.Type == schema.FieldTypeURL && !value.Empty():
			if err := answers.CheckURL(value.Text); err != nil {
				problems = append(problems, &PayloadError{Field: field.ID, Message: err.Error()})
			}
		}
	}
	for id := range submitted {
		if _, ok := c.schema.Field(id); !ok {
			problems = append(problems, &PayloadError{Field: id, Message: "unknown field"})
		}
	}
	return errors.Join(problems...)
}

func title(s *schema.Schema) string {
	switch {
	case s.Title != "":
		return s.Title
	case s.ID != "":
		return s.ID
	default:
		return "Onboarding"
	}
}

func identifier(id string) string {
	var b strings.Builder
	upper := true
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
			if upper {
				r -= 'a' - 'A'
			}
			b.WriteRune(r)
			upper = false
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			upper = false
		default:
			upper = true
		}
	}
	if b.Len() == 0 {
		return "Onboarding"
	}
	return b.String()
}
