package answers

import "sort"

// Answers maps field ids to values. Absence of a key means unanswered. The
// map is treated as immutable: With and Without return modified copies.
type Answers map[string]Value

// Clone returns a shallow copy; Values hold no shared mutable state other
// than FileRef pointers, which are copied too.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for id, value := range a {
		if value.File != nil {
			ref := *value.File
			value.File = &ref
		}
		out[id] = value
	}
	return out
}

// With returns a copy of a with id set to value.
func (a Answers) With(id string, value Value) Answers {
	out := a.Clone()
	out[id] = value
	return out
}

// Without returns a copy of a with id removed.
func (a Answers) Without(id string) Answers {
	out := a.Clone()
	delete(out, id)
	return out
}

// Get returns the value stored for id.
func (a Answers) Get(id string) (Value, bool) {
	value, ok := a[id]
	return value, ok
}

// Scalar returns the comparable token for id, or nil when unanswered.
func (a Answers) Scalar(id string) any {
	value, ok := a[id]
	if !ok {
		return nil
	}
	return value.Scalar()
}

// Scalars flattens the answers into comparable tokens keyed by id.
func (a Answers) Scalars() map[string]any {
	out := make(map[string]any, len(a))
	for id, value := range a {
		out[id] = value.Scalar()
	}
	return out
}

// IDs lists answered ids in lexical order.
func (a Answers) IDs() []string {
	ids := make([]string, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Equal compares two answer sets.
func (a Answers) Equal(other Answers) bool {
	if len(a) != len(other) {
		return false
	}
	for id, value := range a {
		peer, ok := other[id]
		if !ok || !value.Equal(peer) {
			return false
		}
	}
	return true
}
