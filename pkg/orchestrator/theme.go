package orchestrator

// DefaultThemeFallbacks maps the partial keys understood by the html renderer
// to its embedded templates. Themes override individual keys.
func DefaultThemeFallbacks() map[string]string {
	return map[string]string{
		"onboard.step":     "templates/step.tmpl",
		"onboard.input":    "templates/components/input.tmpl",
		"onboard.url":      "templates/components/input.tmpl",
		"onboard.textarea": "templates/components/textarea.tmpl",
		"onboard.select":   "templates/components/select.tmpl",
		"onboard.file":     "templates/components/file.tmpl",
	}
}
