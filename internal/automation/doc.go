// Package automation provides the rule engine for Homewise Core.
//
// A rule pairs a trigger with a list of device actions. Three trigger
// kinds are supported:
//
//   - time: fires when the wall clock reaches HH:MM (minute resolution)
//   - device_state: fires when a named device transitions to a status
//   - sensor_threshold: fires when a sensor property crosses a comparator
//
// The engine evaluates time triggers on a minute ticker and the other two
// kinds in response to state change notifications from the device
// registry. Matching rules fire in ascending rule-ID order. Actions are
// submitted to the dispatcher as a batch with partial-failure semantics;
// execution_count only increments when every action in the batch applied,
// while last_executed records the attempt either way.
//
// Rules are persisted in SQLite and cached in memory, mirroring the
// device registry's repository/registry split.
package automation
