// Package widgets decides which input widget draws a field. HTML and terminal
// renderers share the resolution so both present a field the same way.
package widgets

import (
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-onboard/pkg/schema"
)

// Built-in widget identifiers exposed by the registry.
const (
	WidgetInput    = "input"
	WidgetURL      = "url"
	WidgetTextarea = "textarea"
	WidgetSelect   = "select"
	WidgetFile     = "file-upload"
)

// Matcher decides whether a widget should handle the supplied field.
type Matcher func(field schema.Field) bool

type rule struct {
	name     string
	priority int
	match    Matcher
	order    int
}

// Registry selects widgets for fields based on explicit per-field overrides
// or registered matchers. Higher priority wins; ties fall back to
// registration order. An empty registry never resolves a widget.
type Registry struct {
	mu        sync.RWMutex
	rules     []rule
	overrides map[string]string
}

// NewRegistry constructs a registry with the built-in matchers registered.
func NewRegistry() *Registry {
	reg := &Registry{}
	reg.registerBuiltins()
	return reg
}

// Register adds a widget matcher with the provided name and priority.
func (r *Registry) Register(name string, priority int, matcher Matcher) {
	if r == nil || matcher == nil {
		return
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules = append(r.rules, rule{
		name:     trimmed,
		priority: priority,
		match:    matcher,
		order:    len(r.rules),
	})
}

// Override pins the widget used for one field id regardless of matchers.
func (r *Registry) Override(fieldID, widget string) {
	if r == nil {
		return
	}
	fieldID, widget = strings.TrimSpace(fieldID), strings.TrimSpace(widget)
	if fieldID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.overrides == nil {
		r.overrides = make(map[string]string)
	}
	if widget == "" {
		delete(r.overrides, fieldID)
		return
	}
	r.overrides[fieldID] = widget
}

// Resolve returns the widget name for a field.
func (r *Registry) Resolve(field schema.Field) (string, bool) {
	if r == nil {
		return "", false
	}
	r.mu.RLock()
	if explicit := r.overrides[field.ID]; explicit != "" {
		r.mu.RUnlock()
		return explicit, true
	}
	if len(r.rules) == 0 {
		r.mu.RUnlock()
		return "", false
	}
	rules := append([]rule(nil), r.rules...)
	r.mu.RUnlock()

	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].priority == rules[j].priority {
			return rules[i].order < rules[j].order
		}
		return rules[i].priority > rules[j].priority
	})
	for _, entry := range rules {
		if entry.match(field) {
			return entry.name, true
		}
	}
	return "", false
}

// ResolveOr behaves like Resolve but returns fallback when nothing matches.
func (r *Registry) ResolveOr(field schema.Field, fallback string) string {
	if widget, ok := r.Resolve(field); ok {
		return widget
	}
	return fallback
}

// Widgets maps each field id to its widget.
func (r *Registry) Widgets(fields []schema.Field) map[string]string {
	out := make(map[string]string, len(fields))
	for _, field := range fields {
		if widget, ok := r.Resolve(field); ok {
			out[field.ID] = widget
		}
	}
	return out
}

func (r *Registry) registerBuiltins() {
	r.Register(WidgetSelect, 90, func(field schema.Field) bool {
		return field.Type == schema.FieldTypeDropdown
	})
	r.Register(WidgetFile, 80, func(field schema.Field) bool {
		return field.Type == schema.FieldTypeFile
	})
	r.Register(WidgetTextarea, 70, func(field schema.Field) bool {
		return field.Type == schema.FieldTypeTextarea
	})
	r.Register(WidgetURL, 60, func(field schema.Field) bool {
		return field.Type == schema.FieldTypeURL
	})
	r.Register(WidgetInput, 0, func(schema.Field) bool {
		return true
	})
}
