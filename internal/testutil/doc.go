// Package testutil contains fluent builders used across tests to reduce
// boilerplate when constructing bundles and workflow graphs. The builders
// apply sensible defaults and skip validation so tests can assemble both
// well-formed and deliberately broken fixtures. Not intended for production
// usage.
package testutil
