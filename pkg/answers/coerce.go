package answers

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/goliatone/go-onboard/pkg/schema"
)

// ErrInvalidValue marks raw input that cannot become a Value for a field.
var ErrInvalidValue = errors.New("answers: invalid value")

// CoerceError reports which field rejected the input.
type CoerceError struct {
	Field  string
	Reason string
}

func (e *CoerceError) Error() string {
	return fmt.Sprintf("answers: field %q: %s", e.Field, e.Reason)
}

func (e *CoerceError) Unwrap() error {
	return ErrInvalidValue
}

// Coerce converts raw input from a presentation surface (decoded JSON, form
// posts, terminal prompts) into a Value shaped by the field type. Empty
// strings are accepted for every type so a user can clear an answer.
func Coerce(field schema.Field, raw any) (Value, error) {
	fail := func(format string, args ...any) (Value, error) {
		return Value{}, &CoerceError{Field: field.ID, Reason: fmt.Sprintf(format, args...)}
	}

	if existing, ok := raw.(Value); ok {
		if field.Type == schema.FieldTypeFile && existing.Kind != KindFile {
			return Coerce(field, existing.Text)
		}
		if field.Type != schema.FieldTypeFile && existing.Kind == KindFile {
			return fail("expected text, got a file")
		}
		raw = existing.String()
	}

	if field.Type == schema.FieldTypeFile {
		ref, err := fileRef(raw)
		if err != nil {
			return fail("%v", err)
		}
		return File(ref), nil
	}

	text, ok := textOf(raw)
	if !ok {
		return fail("expected a string, got %T", raw)
	}
	if text == "" {
		return Text(""), nil
	}

	switch field.Type {
	case schema.FieldTypeURL:
		if err := CheckURL(text); err != nil {
			return fail("%v", err)
		}
	case schema.FieldTypeDropdown:
		if !field.HasOption(text) {
			return fail("%q is not one of %s", text, strings.Join(field.Options, ", "))
		}
	}
	return Text(text), nil
}

// CheckURL accepts absolute http(s) URLs with a host.
func CheckURL(raw string) error {
	parsed, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("not a valid URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}

func textOf(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case []string:
		if len(v) == 0 {
			return "", true
		}
		return v[0], true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}

func fileRef(raw any) (FileRef, error) {
	switch v := raw.(type) {
	case nil:
		return FileRef{}, nil
	case string:
		name := strings.TrimSpace(v)
		if name == "" {
			return FileRef{}, nil
		}
		return FileRef{Name: path.Base(strings.ReplaceAll(name, "\\", "/"))}, nil
	case []string:
		if len(v) == 0 {
			return FileRef{}, nil
		}
		return fileRef(v[0])
	case FileRef:
		return v, nil
	case *FileRef:
		if v == nil {
			return FileRef{}, nil
		}
		return *v, nil
	case map[string]any:
		ref := FileRef{}
		name, ok := v["name"].(string)
		if !ok {
			return FileRef{}, errors.New("file object requires a string name")
		}
		ref.Name = name
		switch size := v["size"].(type) {
		case nil:
		case float64:
			if size < 0 {
				return FileRef{}, errors.New("file size must not be negative")
			}
			ref.Size = int64(size)
		case int64:
			ref.Size = size
		case int:
			ref.Size = int64(size)
		default:
			return FileRef{}, fmt.Errorf("file size must be a number, got %T", size)
		}
		if ct, ok := v["contentType"].(string); ok {
			ref.ContentType = ct
		}
		return ref, nil
	default:
		return FileRef{}, fmt.Errorf("expected a file name or object, got %T", raw)
	}
}
