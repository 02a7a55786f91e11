// Package store defines the Schedule Store contract: typed, transactional
// persistence for schedules, their materialized instances, and the
// annotation columns the scheduler owns on the external template-task row.
//
// The contract is backend-agnostic; internal/store/postgres and
// internal/store/sqlite provide concrete implementations sharing this
// package's domain types. Both implementations materialize the
// compare-and-swap advance of next_run_at described in spec.md §5 as a
// single UPDATE whose WHERE clause pins the previously observed
// next_run_at, so a losing concurrent writer affects zero rows instead of
// double-materializing.
package store
