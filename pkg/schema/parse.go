package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse decodes a JSON or YAML schema document, assigns step indexes and
// validates it. source only labels error messages.
func Parse(data []byte, source string) (*Schema, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("schema: document %s is empty", source)
	}

	var doc Schema
	jsonErr := json.Unmarshal(data, &doc)
	if jsonErr != nil {
		doc = Schema{}
		if yamlErr := yaml.Unmarshal(data, &doc); yamlErr != nil {
			if looksLikeJSON(data) {
				return nil, fmt.Errorf("schema: parse %s: %w", source, jsonErr)
			}
			return nil, fmt.Errorf("schema: parse %s: %w", source, yamlErr)
		}
	}

	doc.normalize()
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("schema: %s: %w", source, err)
	}
	return &doc, nil
}

func looksLikeJSON(data []byte) bool {
	trimmed := strings.TrimSpace(string(data))
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}
