package render

import (
	"strings"

	"github.com/goliatone/go-onboard/pkg/form"
	"github.com/goliatone/go-onboard/pkg/schema"
)

// FieldSubset restricts rendering to some fields of the active step. A field
// is kept when it matches any non-empty filter.
type FieldSubset struct {
	IDs   []string
	Types []schema.FieldType
	// Conditional keeps only fields gated by a visibility condition.
	Conditional bool
}

// Empty reports whether the subset filters nothing.
func (s FieldSubset) Empty() bool {
	return len(s.IDs) == 0 && len(s.Types) == 0 && !s.Conditional
}

// ParseSubset reads a comma separated id list such as a query parameter.
func ParseSubset(raw string) FieldSubset {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return FieldSubset{IDs: ids}
}

// ApplySubset removes fields that do not match subset. Missing ids are
// pruned to the kept fields so renderers do not flag fields they omit.
func ApplySubset(view *form.View, subset FieldSubset) {
	if view == nil || subset.Empty() {
		return
	}

	ids := make(map[string]struct{}, len(subset.IDs))
	for _, id := range subset.IDs {
		ids[id] = struct{}{}
	}
	types := make(map[schema.FieldType]struct{}, len(subset.Types))
	for _, t := range subset.Types {
		types[t] = struct{}{}
	}

	kept := make([]form.FieldView, 0, len(view.Fields))
	keptIDs := make(map[string]struct{}, len(view.Fields))
	for _, fv := range view.Fields {
		_, byID := ids[fv.Field.ID]
		_, byType := types[fv.Field.Type]
		if byID || byType || (subset.Conditional && fv.Field.Conditional()) {
			kept = append(kept, fv)
			keptIDs[fv.Field.ID] = struct{}{}
		}
	}
	view.Fields = kept

	var missing []string
	for _, id := range view.Missing {
		if _, ok := keptIDs[id]; ok {
			missing = append(missing, id)
		}
	}
	view.Missing = missing
}
