// Package ir defines the compiled intermediate representation consumed by the
// WeaveFlow engine: providers, models, servers, capabilities, policies,
// schemas, agents and workflows, all reference-resolved and keyed by name.
//
// A Bundle is produced by an upstream compiler (or constructed directly in Go)
// and is immutable once loaded; it is shared read-only across concurrent runs.
// Step definitions form a closed sum type with one concrete variant per step
// kind, so kind-specific fields cannot leak across variants.
//
// Load reads a bundle from JSON (the compiler's canonical output) or YAML
// (hand-authored fixtures). Validate re-checks the structural invariants the
// compiler is supposed to guarantee: unique step ids, resolvable successor ids
// and name references.
package ir
