// Package retry wraps the navigation state machine with bounded retries
// and proxy recovery.
//
// Each attempt opens a fresh browser session, runs the navigator once and
// closes the session. Only a BLOCKED verdict triggers another attempt; the
// retry asks the proxy pool for a new egress descriptor so that the next
// session leaves through a different address. Exhausting every attempt
// while still blocked marks the report as a probable block.
//
// Design decision: A weighted semaphore of size one guards Check. The
// monitor is strictly sequential and a second Chrome instance would both
// double the fingerprint seen by the portal and exhaust small hosts, so
// concurrent callers queue instead of launching in parallel.
//
// Design decision: Session close is deferred inside the attempt, so it runs
// on every path, panics included. Panics are not recovered here; the round
// scheduler owns recovery and cool-down.
package retry
