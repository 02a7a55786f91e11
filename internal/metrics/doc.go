// Package metrics implements the Metrics Aggregator: a read-only snapshot
// producer for dashboards and CLI reporting (spec.md §4.5). It never
// mutates the store.
package metrics
