package schema

import (
	_ "embed"
	"sync"
)

//go:embed onboarding.yaml
var onboardingYAML []byte

var (
	onboardingOnce   sync.Once
	onboardingSchema *Schema
	onboardingErr    error
)

// OnboardingSource labels the embedded client onboarding schema.
const OnboardingSource = "builtin:onboarding.yaml"

// Onboarding returns a fresh copy of the built-in client onboarding schema:
// organisation details followed by an industry-dependent content inventory.
func Onboarding() *Schema {
	onboardingOnce.Do(func() {
		onboardingSchema, onboardingErr = Parse(onboardingYAML, OnboardingSource)
	})
	if onboardingErr != nil {
		panic(onboardingErr)
	}
	return onboardingSchema.Clone()
}

// OnboardingDocument exposes the raw embedded YAML.
func OnboardingDocument() []byte {
	return append([]byte(nil), onboardingYAML...)
}
