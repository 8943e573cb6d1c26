// Package dispatch serialises device state mutations for Homewise Core.
//
// Every actor that wants to change device state (REST API, rule engine,
// scene executor, command interpreter, MQTT gateway events) submits
// actions through the Dispatcher rather than calling the registry
// directly. The dispatcher holds one mutex per device, so mutations on
// the same device are applied strictly in submission order while
// mutations on different devices proceed concurrently.
//
// Batches have partial-failure semantics: each action succeeds or fails
// independently, failures do not abort the remainder of the batch, and
// failed actions are never retried. The BatchResult reports the outcome
// of every action so callers can decide what a partial failure means for
// them.
package dispatch
