// Package database stores the observation history of citawatch in SQLite.
//
// Every target check produces one row in the observations table: the
// outcome, the free time labels, the slot signature, the egress used and
// what the notification gate did with it. The history command and the
// reports read it back.
//
// Design decision: We use SQLite (via modernc.org/sqlite) so the history is
// a single CGO-free file next to the other per-user data, which keeps the
// monitor a single static binary on the small always-on hosts it runs on.
// WAL mode lets the history command read while the watch loop writes.
package database
