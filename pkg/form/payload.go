package form

import (
	"encoding/json"

	"github.com/goliatone/go-onboard/pkg/answers"
)

// Payload is the immutable result of a successful Submit: a copy of every
// answer the session holds, including answers to fields that are hidden at
// submit time. Fields never answered are absent. Visible narrows it to the
// fields shown at submit time.
type Payload struct {
	SchemaID string
	answers  answers.Answers
	drivers  answers.Answers
	visible  []string
}

func (s Session) payload() Payload {
	visible := []string{}
	for _, field := range s.schema.Fields() {
		if s.checker.IsVisible(field, s.answers) {
			visible = append(visible, field.ID)
		}
	}

	drivers := answers.Answers{}
	for _, key := range s.schema.ConditionKeys() {
		if value, ok := s.answers[key]; ok && !value.Empty() {
			drivers[key] = value
		}
	}

	return Payload{
		SchemaID: s.schema.ID,
		answers:  s.answers.Clone(),
		drivers:  drivers.Clone(),
		visible:  visible,
	}
}

// Visible returns a payload holding only the non-empty answers of fields that
// were visible at submit time. Payloads built with NewPayload are returned
// unchanged.
func (p Payload) Visible() Payload {
	if p.visible == nil {
		return p
	}
	kept := answers.Answers{}
	for _, id := range p.visible {
		if value, ok := p.answers[id]; ok && !value.Empty() {
			kept[id] = value
		}
	}
	return Payload{SchemaID: p.SchemaID, answers: kept, drivers: p.drivers.Clone(), visible: p.visible}
}

// Answers returns a copy of the submitted answers.
func (p Payload) Answers() answers.Answers {
	return p.answers.Clone()
}

// Drivers returns the selector answers that drove visibility, such as the
// chosen industry.
func (p Payload) Drivers() answers.Answers {
	return p.drivers.Clone()
}

// Values flattens the answers to scalars: strings for text and file names for
// files.
func (p Payload) Values() map[string]any {
	return p.answers.Scalars()
}

// Has reports whether id made it into the payload.
func (p Payload) Has(id string) bool {
	_, ok := p.answers[id]
	return ok
}

// Len returns the number of submitted answers.
func (p Payload) Len() int { return len(p.answers) }

// MarshalJSON emits the flat id to value mapping. File answers keep their
// metadata object.
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.answers == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.answers)
}

// Envelope is the delivery shape handed to sinks: the payload plus the
// schema id and drivers.
type Envelope struct {
	SchemaID string          `json:"schemaId,omitempty"`
	Answers  answers.Answers `json:"answers"`
	Drivers  answers.Answers `json:"drivers,omitempty"`
}

// Envelope wraps the payload for delivery.
func (p Payload) Envelope() Envelope {
	return Envelope{SchemaID: p.SchemaID, Answers: p.Answers(), Drivers: p.Drivers()}
}

// NewPayload builds a payload from a set of answers. Sinks and tests
// use it to rehydrate delivered envelopes.
func NewPayload(schemaID string, submitted, drivers answers.Answers) Payload {
	if submitted == nil {
		submitted = answers.Answers{}
	}
	if drivers == nil {
		drivers = answers.Answers{}
	}
	return Payload{SchemaID: schemaID, answers: submitted.Clone(), drivers: drivers.Clone()}
}
