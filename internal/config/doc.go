// Package config loads the citawatch configuration: the YAML file with the
// monitored targets and tuning sections, secrets from the environment, and
// the flags of the command being run.
//
// Design decision: The file is decoded into plain section structs that
// mirror the YAML, and Config turns them into the immutable configuration
// values of each component (retry.Config, scheduler.Config, ...). Components
// never see the file, so each stays testable with literal values.
package config
