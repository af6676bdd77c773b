// Package answers models the values collected by an onboarding session. A
// Value is a tagged union keyed by the field type: free text for text, url,
// textarea and dropdown fields, and a file reference for file fields.
package answers

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind tags the shape held by a Value.
type Kind string

const (
	KindText Kind = "text"
	KindFile Kind = "file"
)

// FileRef identifies an uploaded document. Only the metadata travels through
// the session; the bytes stay with whoever received the upload.
type FileRef struct {
	Name        string `json:"name" yaml:"name"`
	Size        int64  `json:"size,omitempty" yaml:"size,omitempty"`
	ContentType string `json:"contentType,omitempty" yaml:"contentType,omitempty"`
}

// Value is a single answer.
type Value struct {
	Kind Kind
	Text string
	File *FileRef
}

// Text wraps a string answer.
func Text(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// File wraps a file reference.
func File(ref FileRef) Value {
	copied := ref
	return Value{Kind: KindFile, File: &copied}
}

// IsZero reports whether v carries no answer at all.
func (v Value) IsZero() bool {
	return v.Kind == ""
}

// Scalar returns the comparable token used by visibility conditions: the text
// itself, or the file name. The zero Value yields nil.
func (v Value) Scalar() any {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindFile:
		if v.File == nil {
			return ""
		}
		return v.File.Name
	default:
		return nil
	}
}

// Empty reports whether the value would fail a required check: empty text or
// a file reference without a name. Whitespace is content.
func (v Value) Empty() bool {
	switch v.Kind {
	case KindText:
		return v.Text == ""
	case KindFile:
		return v.File == nil || v.File.Name == ""
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindFile:
		if v.File == nil {
			return ""
		}
		return v.File.Name
	default:
		return ""
	}
}

// Equal compares two values including file metadata.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind || v.Text != other.Text {
		return false
	}
	switch {
	case v.File == nil && other.File == nil:
		return true
	case v.File == nil || other.File == nil:
		return false
	default:
		return *v.File == *other.File
	}
}

// MarshalJSON renders text as a JSON string and files as an object.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindText:
		return json.Marshal(v.Text)
	case KindFile:
		if v.File == nil {
			return json.Marshal(FileRef{})
		}
		return json.Marshal(v.File)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts the shapes produced by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		*v = Value{}
		return nil
	case len(trimmed) > 0 && trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	case len(trimmed) > 0 && trimmed[0] == '{':
		var ref FileRef
		if err := json.Unmarshal(trimmed, &ref); err != nil {
			return err
		}
		*v = File(ref)
		return nil
	default:
		return fmt.Errorf("answers: unsupported value %s", trimmed)
	}
}
