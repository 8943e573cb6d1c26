// Package scene provides named action presets for Homewise Core.
//
// A scene is a stateless template: a name plus an ordered list of device
// actions. Executing a scene submits its actions to the dispatcher as one
// batch with the usual partial-failure semantics; scenes keep no
// execution bookkeeping of their own.
//
// Scenes are persisted in SQLite and cached in memory, following the
// same repository/registry split as devices and rules.
package scene
