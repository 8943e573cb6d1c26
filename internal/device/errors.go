package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidDeviceType is returned when a device type is not recognised.
	ErrInvalidDeviceType = errors.New("device: invalid type")

	// ErrInvalidRoom is returned when a room value is not recognised.
	ErrInvalidRoom = errors.New("device: invalid room")

	// ErrInvalidStatus is returned when a status value is not recognised.
	ErrInvalidStatus = errors.New("device: invalid status")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidMutation is returned when a state change fails validation
	// (out-of-range brightness or temperature, unknown status). Storage is
	// never touched for an invalid mutation.
	ErrInvalidMutation = errors.New("device: invalid mutation")

	// ErrStorageTimeout is returned when persisting a state change exceeds
	// the configured storage timeout. The mutation is reported as failed
	// and never retried.
	ErrStorageTimeout = errors.New("device: storage timeout")
)
