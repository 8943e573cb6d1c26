package scene

import "errors"

// Domain errors for the scene package.
var (
	// ErrSceneNotFound is returned when a scene ID or name does not exist.
	ErrSceneNotFound = errors.New("scene: not found")

	// ErrSceneExists is returned when creating a scene whose ID or name is taken.
	ErrSceneExists = errors.New("scene: already exists")

	// ErrInvalidScene is returned when scene validation fails.
	ErrInvalidScene = errors.New("scene: invalid")
)
