// Package schema describes onboarding forms as an ordered list of steps, each
// holding typed input fields. A schema is leaf data: it carries no behaviour
// beyond validation and lookup helpers, and is treated as immutable once
// loaded so sessions can share a single pointer.
//
// Fields may declare a single-key `visibleIf` condition (`{industry: D2C}` or
// `{industry: [SaaS, EdTech]}`) and an optional `visibleWhen` rule written in
// the expr-lang syntax for compound predicates. Schemas decode from JSON or
// YAML; see Parse and the Loader implementations under internal/schema/loader.
package schema
