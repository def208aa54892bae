// Package scheduler runs monitoring rounds over the target registry.
//
// A round checks every target in order through the retry policy, hands
// each result to the notification gate and to the recorders, and applies
// the per-outcome cool-downs:
//   - after SLOTS_FOUND: the hit cool-down, so the operator can book
//   - after BLOCKED: the short block cool-down
//   - after a fault or panic: the error cool-down
//
// Rounds are separated by a random delay in
// [max(min, base-jitter), base+jitter].
//
// Design decision: The scheduler is strictly sequential. Only one browser
// session may exist at a time, so there is nothing to gain from running
// targets concurrently and a lot to lose in block risk.
package scheduler
