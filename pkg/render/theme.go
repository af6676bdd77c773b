package render

import (
	"fmt"
	"sort"
	"strings"

	theme "github.com/goliatone/go-theme"
)

// ThemeConfig flattens a theme selection into the renderer configuration.
// Variant tokens, templates and asset files override the manifest defaults;
// fallbacks fill partials the theme does not define. Tokens are also exposed
// as CSS custom properties ("brand" becomes "--brand").
func ThemeConfig(selection *theme.Selection, fallbacks map[string]string) (*theme.RendererConfig, error) {
	if selection == nil || selection.Manifest == nil {
		return nil, fmt.Errorf("render: theme selection is empty")
	}
	manifest := selection.Manifest

	partials := make(map[string]string, len(fallbacks)+len(manifest.Templates))
	for key, value := range fallbacks {
		partials[key] = value
	}
	tokens := make(map[string]string, len(manifest.Tokens))
	files := make(map[string]string, len(manifest.Assets.Files))
	prefix := manifest.Assets.Prefix

	merge := func(dst, src map[string]string) {
		for key, value := range src {
			dst[key] = value
		}
	}
	merge(partials, manifest.Templates)
	merge(tokens, manifest.Tokens)
	merge(files, manifest.Assets.Files)

	if variant, ok := manifest.Variants[selection.Variant]; ok {
		merge(partials, variant.Templates)
		merge(tokens, variant.Tokens)
		merge(files, variant.Assets.Files)
		if variant.Assets.Prefix != "" {
			prefix = variant.Assets.Prefix
		}
	}

	cssVars := make(map[string]string, len(tokens))
	for key, value := range tokens {
		cssVars["--"+strings.TrimPrefix(key, "--")] = value
	}

	return &theme.RendererConfig{
		Theme:    selection.Theme,
		Variant:  selection.Variant,
		Partials: partials,
		Tokens:   tokens,
		CSSVars:  cssVars,
		AssetURL: func(key string) string {
			file, ok := files[key]
			if !ok || file == "" {
				return ""
			}
			if strings.Contains(file, "://") || strings.HasPrefix(file, "/") || prefix == "" {
				return file
			}
			return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(file, "/")
		},
	}, nil
}

// SelectTheme resolves name/variant with selector and flattens the result.
func SelectTheme(selector theme.ThemeSelector, name, variant string, fallbacks map[string]string) (*theme.RendererConfig, error) {
	if selector == nil {
		return nil, fmt.Errorf("render: theme selector is nil")
	}
	selection, err := selector.Select(name, variant)
	if err != nil {
		return nil, fmt.Errorf("render: select theme %q: %w", name, err)
	}
	return ThemeConfig(selection, fallbacks)
}

// CSSVarsStyle renders CSS variables as a :root block, sorted by name.
func CSSVarsStyle(vars map[string]string) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(":root {\n")
	for _, key := range keys {
		b.WriteString("  ")
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(vars[key])
		b.WriteString(";\n")
	}
	b.WriteString("}")
	return b.String()
}
