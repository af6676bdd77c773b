package render

import (
	"errors"
	"strconv"
	"strings"

	"github.com/goliatone/go-onboard/pkg/answers"
	"github.com/goliatone/go-onboard/pkg/form"
	"github.com/goliatone/go-onboard/pkg/openapi"
)

// ErrorMapping splits error feedback into field-level and form-level
// messages keyed by field id.
type ErrorMapping struct {
	Fields map[string][]string
	Form   []string
}

// Apply merges the mapping into opts.
func (m ErrorMapping) Apply(opts RenderOptions) RenderOptions {
	if len(m.Fields) > 0 {
		merged := make(map[string][]string, len(opts.Errors)+len(m.Fields))
		for id, messages := range opts.Errors {
			merged[id] = append([]string(nil), messages...)
		}
		for id, messages := range m.Fields {
			merged[id] = normalizeMessages(append(merged[id], messages...))
		}
		opts.Errors = merged
	}
	opts.FormErrors = MergeFormErrors(opts.FormErrors, m.Form...)
	return opts
}

// MergeFormErrors concatenates and normalises form-level messages, trimming
// whitespace and removing duplicates while preserving order.
func MergeFormErrors(existing []string, extras ...string) []string {
	combined := make([]string, 0, len(existing)+len(extras))
	combined = append(combined, existing...)
	combined = append(combined, extras...)
	return normalizeMessages(combined)
}

// MapErrorPayload normalises error payloads keyed by JSON pointers or dotted
// paths ("/answers/industry", "body.industry", "industry") onto field ids of
// the view. Unknown paths become form-level messages so nothing is lost.
func MapErrorPayload(view form.View, payload map[string][]string) ErrorMapping {
	mapping := ErrorMapping{Fields: make(map[string][]string)}
	ids := make(map[string]struct{}, len(view.Fields))
	for _, field := range view.Fields {
		ids[field.Field.ID] = struct{}{}
	}

	for rawPath, messages := range payload {
		normalized := normalizeMessages(messages)
		if len(normalized) == 0 {
			continue
		}
		id, ok := mapErrorPath(rawPath, ids)
		if !ok {
			mapping.Form = append(mapping.Form, normalized...)
			continue
		}
		mapping.Fields[id] = append(mapping.Fields[id], normalized...)
	}

	if len(mapping.Fields) == 0 {
		mapping.Fields = nil
	}
	mapping.Form = normalizeMessages(mapping.Form)
	return mapping
}

// MapError turns errors raised while handling user input into feedback:
// coercion and payload problems attach to their field, rejected transitions
// list the missing fields and anything else becomes a form-level message.
func MapError(view form.View, err error) ErrorMapping {
	mapping := ErrorMapping{}
	if err == nil {
		return mapping
	}
	payload := make(map[string][]string)

	var transition *form.TransitionError
	if errors.As(err, &transition) {
		for _, id := range view.Missing {
			payload[id] = append(payload[id], "This field is required")
		}
		mapping.Form = append(mapping.Form, transition.Reason)
	} else {
		for _, single := range flatten(err) {
			var coerce *answers.CoerceError
			var payloadErr *openapi.PayloadError
			switch {
			case errors.As(single, &coerce):
				payload[coerce.Field] = append(payload[coerce.Field], coerce.Reason)
			case errors.As(single, &payloadErr) && payloadErr.Field != "":
				payload[payloadErr.Field] = append(payload[payloadErr.Field], payloadErr.Message)
			default:
				mapping.Form = append(mapping.Form, single.Error())
			}
		}
	}

	mapped := MapErrorPayload(view, payload)
	mapped.Form = MergeFormErrors(mapping.Form, mapped.Form...)
	return mapped
}

func flatten(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, inner := range joined.Unwrap() {
			out = append(out, flatten(inner)...)
		}
		return out
	}
	return []error{err}
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}

	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mapErrorPath(raw string, ids map[string]struct{}) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if isFormLevelKey(trimmed) {
		return "", false
	}
	segments := dropWrapperSegments(parsePathSegments(trimmed))
	for _, segment := range segments {
		if _, err := strconv.Atoi(segment); err == nil {
			continue
		}
		if _, ok := ids[segment]; ok {
			return segment, true
		}
	}
	return "", false
}

func parsePathSegments(path string) []string {
	clean := strings.TrimSpace(path)
	clean = strings.TrimPrefix(clean, "#/")
	clean = strings.TrimPrefix(clean, "$.")
	clean = strings.TrimLeft(clean, "#/.$")

	replacer := strings.NewReplacer("[", ".", "]", "", "//", "/")
	clean = strings.Trim(replacer.Replace(clean), "./")
	if clean == "" {
		return nil
	}

	parts := strings.FieldsFunc(clean, func(r rune) bool {
		return r == '.' || r == '/'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		segment := strings.TrimSpace(part)
		if segment == "" {
			continue
		}
		segment = strings.ReplaceAll(segment, "~1", "/")
		segment = strings.ReplaceAll(segment, "~0", "~")
		out = append(out, segment)
	}
	return out
}

func dropWrapperSegments(segments []string) []string {
	wrappers := map[string]struct{}{
		"body":    {},
		"request": {},
		"payload": {},
		"data":    {},
		"answers": {},
	}
	out := segments
	for len(out) > 1 {
		if _, ok := wrappers[strings.ToLower(out[0])]; !ok {
			break
		}
		out = out[1:]
	}
	return out
}

func isFormLevelKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "", ".", "/", "#", "$", "form", "__all__", "non_field_errors", "non-field-errors":
		return true
	default:
		return false
	}
}
