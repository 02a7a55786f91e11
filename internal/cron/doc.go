// Package cron implements the cron expression engine: a pure, stateless
// parser and evaluator for 5-field cron expressions with step, range, list,
// and named-alias support, plus next-firing computation in an arbitrary
// IANA timezone.
//
// Unlike github.com/robfig/cron/v3 (whose field-parsing shape this package's
// structure is cross-checked against, see DESIGN.md), this package does not
// run anything: it only parses expressions into per-field bitmasks and walks
// civil time forward to find firings. robfig/cron's parser accepts a
// six-field, seconds-first syntax and has no notion of day-of-month/
// day-of-week union semantics or a bounded Preview API, so it cannot serve
// the cron-expression semantics this package needs to expose to callers. The
// scheduler loop's own tick (internal/adapter/scheduler) runs on a plain
// time.Ticker, not robfig/cron, since its period is a fixed duration rather
// than a cron expression.
//
// Field order: minute (0-59), hour (0-23), day-of-month (1-31), month
// (1-12, aliases jan-dec), day-of-week (0-6, aliases sun-sat, 0 = Sunday;
// "7" is never accepted as Sunday). Each field accepts a literal integer,
// "*", a range "a-b", a step "base/step", named aliases for month and
// day-of-week, and comma-separated lists of the above.
package cron
