package vanilla

import "strings"

func controlID(fieldID string) string {
	trimmed := strings.TrimSpace(fieldID)
	if trimmed == "" {
		return ""
	}
	return "onboard-" + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, trimmed)
}

// sanitizeClassList drops reserved "onboard-" tokens so overrides cannot
// collide with chrome hooks.
func sanitizeClassList(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	tokens := strings.Fields(value)
	keep := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if strings.HasPrefix(token, "onboard-") {
			continue
		}
		keep = append(keep, token)
	}
	return strings.Join(keep, " ")
}

func methodFor(raw string) (method, override string) {
	verb := strings.ToUpper(strings.TrimSpace(raw))
	switch verb {
	case "", "POST":
		return "post", ""
	case "GET":
		return "get", ""
	default:
		return "post", verb
	}
}
