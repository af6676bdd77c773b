package components

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goliatone/go-onboard/pkg/widgets"
)

const templatePrefix = "templates/components/"

// NewDefaultRegistry registers a template-backed component for every
// built-in widget.
func NewDefaultRegistry() *Registry {
	registry := New()

	registry.MustRegister(widgets.WidgetInput, Descriptor{
		Renderer: templateComponentRenderer("onboard.input", templatePrefix+"input.tmpl"),
	})
	registry.MustRegister(widgets.WidgetURL, Descriptor{
		Renderer: templateComponentRenderer("onboard.url", templatePrefix+"input.tmpl"),
	})
	registry.MustRegister(widgets.WidgetTextarea, Descriptor{
		Renderer: templateComponentRenderer("onboard.textarea", templatePrefix+"textarea.tmpl"),
	})
	registry.MustRegister(widgets.WidgetSelect, Descriptor{
		Renderer: templateComponentRenderer("onboard.select", templatePrefix+"select.tmpl"),
	})
	registry.MustRegister(widgets.WidgetFile, Descriptor{
		Renderer: templateComponentRenderer("onboard.file", templatePrefix+"file.tmpl"),
	})

	return registry
}

// templateComponentRenderer renders templateName, or the theme partial
// registered under partialKey when the theme provides one.
func templateComponentRenderer(partialKey, templateName string) Renderer {
	return func(buf *bytes.Buffer, field Field, data ComponentData) error {
		if data.Template == nil {
			return fmt.Errorf("components: template renderer not configured for %q", templateName)
		}

		resolved := templateName
		if candidate := strings.TrimSpace(data.ThemePartials[partialKey]); candidate != "" {
			resolved = candidate
		}

		rendered, err := data.Template.RenderTemplate(resolved, map[string]any{"field": field})
		if err != nil {
			return fmt.Errorf("components: render template %q: %w", resolved, err)
		}
		buf.WriteString(rendered)
		return nil
	}
}
