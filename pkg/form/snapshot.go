package form

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-onboard/pkg/answers"
	"github.com/goliatone/go-onboard/pkg/schema"
)

// ErrSchemaMismatch is returned when a snapshot was taken against another
// schema.
var ErrSchemaMismatch = errors.New("form: snapshot schema mismatch")

// Snapshot is the persistable state of a session. The schema itself is not
// stored; Restore re-attaches it by id.
type Snapshot struct {
	SchemaID  string          `json:"schemaId,omitempty"`
	Step      int             `json:"step"`
	Answers   answers.Answers `json:"answers"`
	Submitted bool            `json:"submitted,omitempty"`
}

// Snapshot captures the session state.
func (s Session) Snapshot() Snapshot {
	return Snapshot{
		SchemaID:  s.schema.ID,
		Step:      s.step,
		Answers:   s.answers.Clone(),
		Submitted: s.submitted,
	}
}

// Restore rebuilds a session from a snapshot taken against sch.
func Restore(sch *schema.Schema, snap Snapshot, opts ...Option) (Session, error) {
	session, err := New(sch, opts...)
	if err != nil {
		return Session{}, err
	}
	if snap.SchemaID != sch.ID {
		return Session{}, fmt.Errorf("%w: snapshot %q, schema %q", ErrSchemaMismatch, snap.SchemaID, sch.ID)
	}
	if snap.Step < 0 || snap.Step > sch.LastIndex() {
		return Session{}, fmt.Errorf("form: snapshot step %d out of range [0,%d]", snap.Step, sch.LastIndex())
	}
	if snap.Submitted && snap.Step != sch.LastIndex() {
		return Session{}, fmt.Errorf("form: submitted snapshot at step %d, want last step %d", snap.Step, sch.LastIndex())
	}

	session.step = snap.Step
	session.submitted = snap.Submitted
	if snap.Answers != nil {
		session.answers = snap.Answers.Clone()
	}
	return session, nil
}
