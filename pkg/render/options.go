package render

import theme "github.com/goliatone/go-theme"

// RenderOptions describe per-request data that renderers can use to customise
// their output without touching the session.
type RenderOptions struct {
	// Action is the URL the rendered form posts to. Renderers without a form
	// element ignore it.
	Action string
	// Method overrides the submission verb. HTML renderers translate verbs
	// other than GET/POST into POST plus a hidden _method input.
	Method string
	// Errors surfaces server-side validation feedback keyed by field id.
	Errors map[string][]string
	// FormErrors carries messages that are not tied to a field, such as a
	// rejected transition.
	FormErrors []string
	// HiddenFields are emitted as hidden inputs (CSRF tokens, session ids).
	HiddenFields map[string]string
	// Subset limits the rendered fields.
	Subset FieldSubset
	// Locale and Translator localise labels, helper texts and step names.
	Locale     string
	Translator Translator
	OnMissing  MissingTranslationHandler
	// Theme carries resolved partials, tokens and asset URLs.
	Theme *theme.RendererConfig
}
