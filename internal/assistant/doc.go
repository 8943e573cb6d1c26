// Package assistant provides the natural-language command interpreter
// for Homewise Core.
//
// Interpret matches a Chinese utterance against a fixed, ordered chain of
// keyword predicates (lights on/off, air conditioner control, temperature
// setting, status query, sleep and arriving-home scenes). The first match
// wins and produces a CommandIntent: a reply string plus the device
// actions to dispatch. Intents are ephemeral; nothing is persisted.
//
// An optional Advisor can be plugged in to handle utterances no keyword
// rule matched. The advisor's suggestions are folded into the same action
// batch shape, so downstream dispatch does not care where an intent came
// from. Only the contract and a null implementation live here.
package assistant
