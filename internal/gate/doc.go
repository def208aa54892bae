// Package gate decides which check results reach the operator.
//
// The Gate keeps a TargetState per target: the signature of the last
// notified slot set and the number of consecutive blocked checks.
//
//   - SLOTS_FOUND with a new signature notifies and stores the signature
//   - SLOTS_FOUND with the stored signature is suppressed
//   - NO_SLOTS and TIMEOUT reset the blocked counter and keep the signature
//   - BLOCKED increments the counter; reaching the threshold raises one
//     probable-block alert and resets it
//
// Design decision: The stored signature survives NO_SLOTS rounds. A slot
// set that disappears for one round and comes back unchanged is the same
// set the operator was already told about.
package gate
