package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Condition gates a field on the value of another field. It holds exactly one
// key: documents declaring more than one key fail to decode rather than
// having the extras silently dropped.
type Condition struct {
	Key      string
	Expected []any
	// Set marks a list comparand (`{industry: [SaaS, EdTech]}`); membership is
	// tested instead of equality.
	Set bool
}

// Equals builds a scalar condition.
func Equals(key string, expected any) *Condition {
	return &Condition{Key: key, Expected: []any{expected}}
}

// OneOf builds a set condition.
func OneOf(key string, expected ...any) *Condition {
	return &Condition{Key: key, Expected: append([]any(nil), expected...), Set: true}
}

// Matches reports whether current satisfies the condition using exact type and
// value equality. Uncomparable values never match.
func (c Condition) Matches(current any) bool {
	if !c.Set && len(c.Expected) != 1 {
		return false
	}
	for _, expected := range c.Expected {
		if SameScalar(current, expected) {
			return true
		}
	}
	return false
}

// SameScalar compares two scalars without panicking on uncomparable dynamic
// types. Values of different Go types are never equal.
func SameScalar(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	default:
		return false
	}
}

func (c Condition) value() any {
	if c.Set {
		return append([]any(nil), c.Expected...)
	}
	if len(c.Expected) == 0 {
		return nil
	}
	return c.Expected[0]
}

// MarshalJSON renders the condition as a single-key object.
func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{c.Key: c.value()})
}

// UnmarshalJSON decodes `{key: scalar}` or `{key: [scalar, ...]}`.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("schema: visibleIf must be an object: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("schema: visibleIf must declare exactly one key, got %d", len(raw))
	}
	for key, payload := range raw {
		trimmed := bytes.TrimSpace(payload)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var list []any
			if err := json.Unmarshal(trimmed, &list); err != nil {
				return fmt.Errorf("schema: visibleIf %q: %w", key, err)
			}
			return c.assign(key, list, true)
		}
		var scalar any
		if err := json.Unmarshal(trimmed, &scalar); err != nil {
			return fmt.Errorf("schema: visibleIf %q: %w", key, err)
		}
		return c.assign(key, []any{scalar}, false)
	}
	return nil
}

// MarshalYAML renders the condition as a single-key mapping.
func (c Condition) MarshalYAML() (any, error) {
	return map[string]any{c.Key: c.value()}, nil
}

// UnmarshalYAML decodes the same shapes as UnmarshalJSON.
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return errors.New("schema: visibleIf must be a mapping")
	}
	if len(node.Content) != 2 {
		return fmt.Errorf("schema: visibleIf must declare exactly one key, got %d", len(node.Content)/2)
	}
	keyNode, valueNode := node.Content[0], node.Content[1]
	key := keyNode.Value

	switch valueNode.Kind {
	case yaml.SequenceNode:
		list := make([]any, 0, len(valueNode.Content))
		for _, item := range valueNode.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("schema: visibleIf %q: list entries must be scalars", key)
			}
			var scalar any
			if err := item.Decode(&scalar); err != nil {
				return fmt.Errorf("schema: visibleIf %q: %w", key, err)
			}
			list = append(list, scalar)
		}
		return c.assign(key, list, true)
	case yaml.ScalarNode:
		var scalar any
		if err := valueNode.Decode(&scalar); err != nil {
			return fmt.Errorf("schema: visibleIf %q: %w", key, err)
		}
		return c.assign(key, []any{scalar}, false)
	default:
		return fmt.Errorf("schema: visibleIf %q: expected a scalar or a list", key)
	}
}

func (c *Condition) assign(key string, expected []any, set bool) error {
	for i, value := range expected {
		// YAML decodes integers as int while JSON yields float64.
		switch n := value.(type) {
		case int:
			expected[i] = float64(n)
		case int64:
			expected[i] = float64(n)
		}
		if !isScalar(value) {
			return fmt.Errorf("schema: visibleIf %q: comparand %v is not a string, number or boolean", key, value)
		}
	}
	if set && len(expected) == 0 {
		return fmt.Errorf("schema: visibleIf %q: list is empty", key)
	}
	*c = Condition{Key: key, Expected: expected, Set: set}
	return nil
}

func isScalar(value any) bool {
	switch value.(type) {
	case string, bool, int, int64, float64:
		return true
	default:
		return false
	}
}
