// Package report renders observation history for the history command.
//
// This package contains writers for different output formats:
//   - SimpleWriter: a table for terminal display
//   - JSONWriter: structured JSON for scripts and dashboards
//   - MarkdownWriter: a shareable summary with an outcome chart
//
// Design decision: Writers read a History value assembled by the caller
// from the database, so this package never opens the store itself and
// can be tested with literal observations.
package report
