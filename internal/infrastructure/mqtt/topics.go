package mqtt

import "fmt"

// Topic prefixes for the Homewise MQTT hierarchy.
//
// All topics live under a single root: homewise/{category}/...
const (
	// TopicPrefix is the root of all Homewise topics.
	TopicPrefix = "homewise"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "homewise/system"
)

// Topics provides builders for Homewise MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("light_living")
//	// Returns: "homewise/state/light_living"
type Topics struct{}

// DeviceState returns the canonical device state topic.
// This is the authoritative state published by Core after every applied mutation.
//
// Example: homewise/state/light_living
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, deviceID)
}

// StateEvent returns the topic on which an external gateway reports a
// state change for a device. Reports flow through the dispatcher.
//
// Example: homewise/event/state/sensor_bedroom_temp
func (Topics) StateEvent(deviceID string) string {
	return fmt.Sprintf("%s/event/state/%s", TopicPrefix, deviceID)
}

// RuleFired returns the topic for automation rule trigger events.
//
// Example: homewise/rule/rule-7/fired
func (Topics) RuleFired(ruleID string) string {
	return fmt.Sprintf("%s/rule/%s/fired", TopicPrefix, ruleID)
}

// SceneActivated returns the topic for scene activation events.
//
// Example: homewise/scene/睡眠模式/activated
func (Topics) SceneActivated(sceneID string) string {
	return fmt.Sprintf("%s/scene/%s/activated", TopicPrefix, sceneID)
}

// SystemStatus returns the system status topic.
//
// Example: homewise/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceStates returns a pattern matching all canonical device states.
//
// Pattern: homewise/state/+
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefix)
}

// AllStateEvents returns a pattern matching all externally reported
// state changes.
//
// Pattern: homewise/event/state/+
func (Topics) AllStateEvents() string {
	return fmt.Sprintf("%s/event/state/+", TopicPrefix)
}

// AllTopics returns a pattern matching all Homewise topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: homewise/#
func (Topics) AllTopics() string {
	return "homewise/#"
}
