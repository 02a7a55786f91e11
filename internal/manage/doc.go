// Package manage implements the Management API: the synchronous operations
// CLIs and embedding hosts use to create, inspect, and retire schedules
// (spec.md §4.4). Every operation validates its input, delegates cron
// parsing to internal/cron, and persistence to internal/store.
package manage
