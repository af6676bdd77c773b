// Package openapi publishes the submission payload of an onboarding schema as
// an OpenAPI 3 document and validates delivered payloads against it. Static
// shape checks run through kin-openapi; visibility-dependent rules (required
// only when shown, hidden fields absent) are checked against the schema.
package openapi
