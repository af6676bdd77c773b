package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-onboard/pkg/schema"
)

// Transformer mutates a decoded schema before validation. Implementations can
// relabel fields, tighten requirements or add options.
type Transformer interface {
	Transform(ctx context.Context, s *schema.Schema) error
}

// TransformerFunc adapts plain functions to the Transformer interface.
type TransformerFunc func(ctx context.Context, s *schema.Schema) error

// Transform executes the wrapped function when non-nil.
func (fn TransformerFunc) Transform(ctx context.Context, s *schema.Schema) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, s)
}

// Chain runs transformers in order, stopping at the first error.
func Chain(transformers ...Transformer) Transformer {
	return TransformerFunc(func(ctx context.Context, s *schema.Schema) error {
		for _, t := range transformers {
			if t == nil {
				continue
			}
			if err := t.Transform(ctx, s); err != nil {
				return err
			}
		}
		return nil
	})
}

// PresetTransformer applies declarative overrides loaded from a JSON or YAML
// document:
//
//	title: Partner onboarding
//	steps:
//	  "0": {name: Company}
//	fields:
//	  company_name: {label: Legal name, placeholder: Acme Inc.}
//	  hq_location: {required: true}
//	  industry: {options: [D2C, SaaS]}
type PresetTransformer struct {
	document presetDocument
}

type presetDocument struct {
	Title       string                `json:"title" yaml:"title"`
	Description string                `json:"description" yaml:"description"`
	Steps       map[string]stepPatch  `json:"steps" yaml:"steps"`
	Fields      map[string]fieldPatch `json:"fields" yaml:"fields"`
}

type stepPatch struct {
	Name string `json:"name" yaml:"name"`
}

type fieldPatch struct {
	Label       string   `json:"label" yaml:"label"`
	HelperText  string   `json:"helperText" yaml:"helperText"`
	Placeholder string   `json:"placeholder" yaml:"placeholder"`
	Required    *bool    `json:"required" yaml:"required"`
	Options     []string `json:"options" yaml:"options"`
	VisibleWhen string   `json:"visibleWhen" yaml:"visibleWhen"`
}

// NewPresetTransformer constructs a transformer from raw JSON or YAML bytes.
func NewPresetTransformer(data []byte) (*PresetTransformer, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, errors.New("preset transformer: document is empty")
	}
	var document presetDocument
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(data, &document); err != nil {
			return nil, fmt.Errorf("preset transformer: parse document: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("preset transformer: parse document: %w", err)
	}
	return &PresetTransformer{document: document}, nil
}

// NewPresetTransformerFromFS loads a preset document from fsys.
func NewPresetTransformerFromFS(fsys fs.FS, path string) (*PresetTransformer, error) {
	if fsys == nil {
		return nil, errors.New("preset transformer: filesystem is nil")
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("preset transformer: path is required")
	}
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("preset transformer: read %s: %w", path, err)
	}
	return NewPresetTransformer(data)
}

// Transform applies the patches onto s. Unknown field ids and step indexes
// are errors.
func (t *PresetTransformer) Transform(ctx context.Context, s *schema.Schema) error {
	if s == nil {
		return errors.New("preset transformer: schema is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if t.document.Title != "" {
		s.Title = t.document.Title
	}
	if t.document.Description != "" {
		s.Description = t.document.Description
	}

	for key, patch := range t.document.Steps {
		idx := -1
		if _, err := fmt.Sscanf(key, "%d", &idx); err != nil || idx < 0 || idx >= len(s.Steps) {
			return fmt.Errorf("preset transformer: step %q not found", key)
		}
		if patch.Name != "" {
			s.Steps[idx].Name = patch.Name
		}
	}

	for id, patch := range t.document.Fields {
		if err := ctx.Err(); err != nil {
			return err
		}
		field := findField(s, id)
		if field == nil {
			return fmt.Errorf("preset transformer: field %q not found", id)
		}
		applyFieldPatch(field, patch)
	}
	return nil
}

func applyFieldPatch(field *schema.Field, patch fieldPatch) {
	if patch.Label != "" {
		field.Label = patch.Label
	}
	if patch.HelperText != "" {
		field.HelperText = patch.HelperText
	}
	if patch.Placeholder != "" {
		field.Placeholder = patch.Placeholder
	}
	if patch.Required != nil {
		field.Required = *patch.Required
	}
	if len(patch.Options) > 0 {
		field.Options = append([]string(nil), patch.Options...)
	}
	if strings.TrimSpace(patch.VisibleWhen) != "" {
		field.VisibleWhen = strings.TrimSpace(patch.VisibleWhen)
	}
}

func findField(s *schema.Schema, id string) *schema.Field {
	for i := range s.Steps {
		for j := range s.Steps[i].Fields {
			if s.Steps[i].Fields[j].ID == id {
				return &s.Steps[i].Fields[j]
			}
		}
	}
	return nil
}
