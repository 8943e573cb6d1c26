package device

import "time"

// Device represents a controllable or monitorable entity in the home.
// Status and Properties only change through Registry.Apply, which the
// dispatcher invokes under a per-device lock.
type Device struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Classification
	Type DeviceType `json:"type"`
	Room Room       `json:"room"`

	// Current state
	Status     Status     `json:"status"`
	Properties Properties `json:"properties"`

	// Timestamps. CreatedAt is immutable after creation; LastUpdated is
	// refreshed on every applied mutation.
	LastUpdated time.Time `json:"last_updated"`
	CreatedAt   time.Time `json:"created_at"`
}

// Properties holds type-specific device attributes as a JSON map.
//
// Examples:
//
//	light:           {"brightness": 80}
//	air_conditioner: {"temperature": 26.0, "mode": "auto", "fan_speed": 3}
//	sensor:          {"value": 25.5, "unit": "°C"}
type Properties map[string]any

// DeviceType classifies a device.
type DeviceType string

// Device types.
const (
	TypeLight          DeviceType = "light"
	TypeAirConditioner DeviceType = "air_conditioner"
	TypeSensor         DeviceType = "sensor"
	TypeSwitch         DeviceType = "switch"
	TypeCamera         DeviceType = "camera"
	TypeDoor           DeviceType = "door"
)

// AllDeviceTypes returns all valid device types.
func AllDeviceTypes() []DeviceType {
	return []DeviceType{
		TypeLight,
		TypeAirConditioner,
		TypeSensor,
		TypeSwitch,
		TypeCamera,
		TypeDoor,
	}
}

// Room identifies where a device is installed. Rooms are a closed set;
// there is no separate location entity.
type Room string

// Rooms.
const (
	RoomLivingRoom Room = "living_room"
	RoomBedroom    Room = "bedroom"
	RoomKitchen    Room = "kitchen"
	RoomBathroom   Room = "bathroom"
	RoomBalcony    Room = "balcony"
)

// AllRooms returns all valid rooms.
func AllRooms() []Room {
	return []Room{
		RoomLivingRoom,
		RoomBedroom,
		RoomKitchen,
		RoomBathroom,
		RoomBalcony,
	}
}

// Status is the coarse on/off state of a device.
type Status string

// Statuses.
const (
	StatusOn      Status = "on"
	StatusOff     Status = "off"
	StatusUnknown Status = "unknown"
)

// AllStatuses returns all valid statuses.
func AllStatuses() []Status {
	return []Status{StatusOn, StatusOff, StatusUnknown}
}

// Change is a validated state mutation applied to a single device.
// A nil Status leaves the status untouched; Properties are merged
// key-by-key into the device's existing properties.
type Change struct {
	Status     *Status
	Properties Properties
}

// DeepCopy creates a complete independent copy of the Device.
// All map fields are cloned so modifications to the copy do not affect
// the original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d // Shallow copy of value fields
	cpy.Properties = deepCopyMap(d.Properties)
	return &cpy
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives (string, bool, int, float64, etc.) are safe to copy by value
		return v
	}
}
