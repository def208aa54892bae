// Package model defines the core data structures shared by the citawatch
// packages.
//
// This package contains the following main types:
//   - Target: one monitored booking flow and how to reach its calendar
//   - Outcome: the enumerated verdict of a single check
//   - Result: an immutable classification result with diagnostics and evidence
//   - Signature: a digest over the set of free time labels of a target
//   - ProxyDescriptor: a network egress identity handed to a browser session
//
// Design decision: We keep these types free of any browser, network or
// storage dependency. The navigator, classifier, retry policy, gate and
// history store all exchange these values, so centralizing them prevents
// import cycles and keeps the engine testable with fakes.
package model
