package device

import (
	"fmt"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength = 100

	// Brightness bounds are fixed; the valid temperature range is
	// installation-specific and carried in Limits.
	minBrightness = 0
	maxBrightness = 100
)

// Limits holds the configurable bounds for property mutations.
type Limits struct {
	MinTemperature float64
	MaxTemperature float64
}

// DefaultLimits returns the bounds used when none are configured.
func DefaultLimits() Limits {
	return Limits{MinTemperature: 16, MaxTemperature: 32}
}

// Pre-computed validation sets for O(1) lookups instead of linear search.
var (
	validDeviceTypes map[DeviceType]struct{}
	validRooms       map[Room]struct{}
	validStatuses    map[Status]struct{}
)

func init() {
	// Build validation sets once at startup
	validDeviceTypes = make(map[DeviceType]struct{}, len(AllDeviceTypes()))
	for _, t := range AllDeviceTypes() {
		validDeviceTypes[t] = struct{}{}
	}

	validRooms = make(map[Room]struct{}, len(AllRooms()))
	for _, r := range AllRooms() {
		validRooms[r] = struct{}{}
	}

	validStatuses = make(map[Status]struct{}, len(AllStatuses()))
	for _, s := range AllStatuses() {
		validStatuses[s] = struct{}{}
	}
}

// ValidateDevice performs validation on a device record.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}

	if err := ValidateName(d.Name); err != nil {
		return err
	}

	if _, ok := validDeviceTypes[d.Type]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidDeviceType, d.Type)
	}

	if _, ok := validRooms[d.Room]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidRoom, d.Room)
	}

	if d.Status != "" {
		if _, ok := validStatuses[d.Status]; !ok {
			return fmt.Errorf("%w: %q", ErrInvalidStatus, d.Status)
		}
	}

	return nil
}

// ValidateName checks that a device name is non-empty and within length limits.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateChange checks a state mutation against the property bounds.
// Invalid changes are rejected before storage is touched.
//
// Rules:
//   - Status, if set, must be a recognised value
//   - brightness must be numeric and within 0-100
//   - temperature must be numeric and within the configured range
func ValidateChange(change Change, limits Limits) error {
	if change.Status != nil {
		if _, ok := validStatuses[*change.Status]; !ok {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidMutation, *change.Status)
		}
	}

	for key, value := range change.Properties {
		switch key {
		case "brightness":
			v, ok := numericValue(value)
			if !ok {
				return fmt.Errorf("%w: brightness must be numeric", ErrInvalidMutation)
			}
			if v < minBrightness || v > maxBrightness {
				return fmt.Errorf("%w: brightness %v outside %d-%d", ErrInvalidMutation, v, minBrightness, maxBrightness)
			}
		case "temperature":
			v, ok := numericValue(value)
			if !ok {
				return fmt.Errorf("%w: temperature must be numeric", ErrInvalidMutation)
			}
			if v < limits.MinTemperature || v > limits.MaxTemperature {
				return fmt.Errorf("%w: temperature %v outside %g-%g", ErrInvalidMutation, v, limits.MinTemperature, limits.MaxTemperature)
			}
		}
	}

	return nil
}

// numericValue extracts a float64 from the numeric types that survive
// JSON decoding and Go literals.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// GenerateID creates a new unique device ID.
func GenerateID() string {
	return uuid.New().String()
}
