// Package device provides the Device Registry for Homewise Core.
//
// The Device Registry is the central catalogue of all controllable and
// monitorable entities in a Homewise installation. It manages device
// lifecycle and state, and provides query operations for the REST API,
// the rule engine, and the command interpreter.
//
// # Key Types
//
//   - Device: The core entity (light, air conditioner, sensor, switch, camera, door)
//   - Room: Fixed set of rooms a device can belong to
//   - Status: on / off / unknown
//   - Change: A validated state mutation (status and/or property writes)
//
// # State Mutation
//
// Apply is the single entry point for status/property changes. It is only
// invoked by the dispatcher, which serialises mutations per device. Apply
// validates the change, persists it with a bounded timeout, refreshes the
// in-memory cache, and notifies registered observers (rule engine,
// WebSocket hub, MQTT publisher, history writer).
//
// CRUD operations (create, update metadata, delete) are separate and do
// not flow through the dispatcher.
//
// # Thread Safety
//
// All public methods are safe for concurrent use. The cache hands out deep
// copies, so callers can never mutate registry-owned state.
package device
