package vanilla

// ChromeClass is a typed identifier for semantic chrome CSS classes.
type ChromeClass string

const (
	ClassForm     ChromeClass = "onboard-form"
	ClassHeader   ChromeClass = "onboard-header"
	ClassProgress ChromeClass = "onboard-progress"
	ClassFieldset ChromeClass = "onboard-fieldset"
	ClassField    ChromeClass = "onboard-field"
	ClassActions  ChromeClass = "onboard-actions"
	ClassErrors   ChromeClass = "onboard-errors"
)

// ChromeClasses overrides the class attribute of the page chrome. Empty
// values keep the defaults.
type ChromeClasses struct {
	Form     string
	Header   string
	Progress string
	Fieldset string
	Field    string
	Actions  string
	Errors   string
}

func (c ChromeClasses) resolve() map[string]string {
	pick := func(override string, fallback ChromeClass) string {
		if cleaned := sanitizeClassList(override); cleaned != "" {
			return string(fallback) + " " + cleaned
		}
		return string(fallback)
	}
	return map[string]string{
		"form":     pick(c.Form, ClassForm),
		"header":   pick(c.Header, ClassHeader),
		"progress": pick(c.Progress, ClassProgress),
		"fieldset": pick(c.Fieldset, ClassFieldset),
		"field":    pick(c.Field, ClassField),
		"actions":  pick(c.Actions, ClassActions),
		"errors":   pick(c.Errors, ClassErrors),
	}
}
