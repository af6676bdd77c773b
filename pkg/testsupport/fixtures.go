// Package testsupport holds fixtures shared by renderer, server and
// orchestrator tests.
package testsupport

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-onboard/pkg/answers"
	"github.com/goliatone/go-onboard/pkg/form"
	"github.com/goliatone/go-onboard/pkg/schema"
)

// FirstStep answers the required fields of the built-in schema's first step.
var FirstStep = map[string]string{
	"industry":     "SaaS",
	"company_name": "Acme",
	"website_url":  "https://acme.test",
}

// LoadSchema parses a JSON or YAML schema fixture.
func LoadSchema(t testing.TB, path string) *schema.Schema {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read schema fixture: %v", err)
	}
	s, err := schema.Parse(data, path)
	if err != nil {
		t.Fatalf("parse schema fixture: %v", err)
	}
	return s
}

// Session starts a session for s, coerces values onto it and advances to
// step. Fixtures that cannot reach step fail the test.
func Session(t testing.TB, s *schema.Schema, values map[string]string, step int, opts ...form.Option) form.Session {
	t.Helper()

	session, err := form.New(s, opts...)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	for id, raw := range values {
		field, ok := s.Field(id)
		if !ok {
			t.Fatalf("fixture answers unknown field %q", id)
		}
		value, err := answers.Coerce(field, raw)
		if err != nil {
			t.Fatalf("fixture answer: %v", err)
		}
		session = session.SetAnswer(id, value)
	}
	for session.StepIndex() < step {
		next, err := session.Next()
		if err != nil {
			t.Fatalf("advance fixture to step %d: %v", step, err)
		}
		session = next
	}
	return session
}

// Onboarding is Session over the built-in schema. values are merged over
// FirstStep.
func Onboarding(t testing.TB, values map[string]string, step int) form.Session {
	t.Helper()

	merged := make(map[string]string, len(FirstStep)+len(values))
	for id, raw := range FirstStep {
		merged[id] = raw
	}
	for id, raw := range values {
		merged[id] = raw
	}
	return Session(t, schema.Onboarding(), merged, step)
}

// AssertValues compares the scalar answers of a payload or session with want.
func AssertValues(t testing.TB, want, got map[string]any) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}
