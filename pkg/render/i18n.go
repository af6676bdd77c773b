package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-onboard/pkg/form"
)

// Translator resolves message keys for a locale.
type Translator interface {
	Translate(locale, key string, args ...any) (string, error)
}

// TranslatorFunc adapts a function into a Translator.
type TranslatorFunc func(locale, key string, args ...any) (string, error)

func (fn TranslatorFunc) Translate(locale, key string, args ...any) (string, error) {
	return fn(locale, key, args...)
}

// MissingTranslationHandler decides what to print when a key has no
// translation. err is ErrMissingTranslator when no translator is configured.
type MissingTranslationHandler func(locale, key string, args []any, err error) string

// ErrMissingTranslator is reported when translation is requested without a
// Translator.
var ErrMissingTranslator = errors.New("render: translator not configured")

// MapTranslator is an in-memory translator keyed by locale then key.
type MapTranslator map[string]map[string]string

func (m MapTranslator) Translate(locale, key string, args ...any) (string, error) {
	messages, ok := m[locale]
	if !ok {
		return "", fmt.Errorf("render: locale %q not found", locale)
	}
	msg, ok := messages[key]
	if !ok {
		return "", fmt.Errorf("render: key %q not found for %q", key, locale)
	}
	if len(args) > 0 && strings.Contains(msg, "%") {
		return fmt.Sprintf(msg, args...), nil
	}
	return msg, nil
}

func missingTranslationDefault(_ string, key string, args []any, _ error) string {
	for _, arg := range args {
		if fallback, ok := arg.(map[string]any); ok {
			if def, ok := fallback["default"].(string); ok && strings.TrimSpace(def) != "" {
				return def
			}
		}
	}
	return key
}

// TranslationKey builds the key used for a schema string. Keys look like
// "seo-onboarding.fields.industry.label" or "seo-onboarding.steps.0.name".
func TranslationKey(schemaID string, parts ...string) string {
	segments := make([]string, 0, len(parts)+1)
	if schemaID != "" {
		segments = append(segments, schemaID)
	}
	segments = append(segments, parts...)
	return strings.Join(segments, ".")
}

// LocalizeView translates the presentation strings of view in place. Missing
// keys fall back to the schema text.
func LocalizeView(view *form.View, opts RenderOptions) {
	if view == nil || opts.Translator == nil {
		return
	}
	onMissing := opts.OnMissing
	if onMissing == nil {
		onMissing = missingTranslationDefault
	}
	tr := func(fallback string, parts ...string) string {
		return translate(opts.Locale, TranslationKey(view.SchemaID, parts...), fallback, opts.Translator, onMissing)
	}

	view.Title = tr(view.Title, "title")
	view.Description = tr(view.Description, "description")
	view.StepName = tr(view.StepName, "steps", fmt.Sprint(view.StepIndex), "name")

	progress := make([]form.StepStatus, len(view.Progress))
	for i, status := range view.Progress {
		status.Name = tr(status.Name, "steps", fmt.Sprint(status.Index), "name")
		progress[i] = status
	}
	view.Progress = progress

	fields := make([]form.FieldView, len(view.Fields))
	for i, fv := range view.Fields {
		id := fv.Field.ID
		fv.Field.Label = tr(fv.Field.Label, "fields", id, "label")
		if fv.Field.HelperText != "" {
			fv.Field.HelperText = tr(fv.Field.HelperText, "fields", id, "helperText")
		}
		if fv.Field.Placeholder != "" {
			fv.Field.Placeholder = tr(fv.Field.Placeholder, "fields", id, "placeholder")
		}
		fields[i] = fv
	}
	view.Fields = fields
}

func translate(locale, key, fallback string, t Translator, onMissing MissingTranslationHandler) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}

	if t == nil {
		if onMissing != nil {
			return onMissing(locale, key, []any{map[string]any{"default": fallback}}, ErrMissingTranslator)
		}
		if strings.TrimSpace(fallback) != "" {
			return fallback
		}
		return key
	}

	result, err := t.Translate(locale, key)
	if err == nil && strings.TrimSpace(result) != "" {
		return result
	}

	if onMissing != nil {
		return onMissing(locale, key, []any{map[string]any{"default": fallback}}, err)
	}
	if strings.TrimSpace(fallback) != "" {
		return fallback
	}
	return key
}

// Translate resolves a single key with the translator configured in opts.
// Without a translator the fallback is returned unchanged.
func Translate(opts RenderOptions, key, fallback string) string {
	if opts.Translator == nil {
		return fallback
	}
	onMissing := opts.OnMissing
	if onMissing == nil {
		onMissing = missingTranslationDefault
	}
	return translate(opts.Locale, key, fallback, opts.Translator, onMissing)
}
