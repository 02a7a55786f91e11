// Package loop implements the Scheduler Loop: the periodic driver that
// turns "time passed" into "instances materialized" (spec.md §4.3).
//
// Each tick lists due schedules from the store, resolves each one's
// overlap policy into a pure Action via Decide, and executes that action
// against the store. The tick itself is driven by
// internal/adapter/scheduler.Scheduler's ticker-job machinery, reused here
// exactly as the teacher built it (panic recovery, SkipIfRunning so a slow
// tick never overlaps itself, graceful StopContext shutdown).
package loop
