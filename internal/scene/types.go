package scene

import (
	"time"

	"github.com/homewise/homewise-core/internal/dispatch"
)

// Scene is a named, ordered list of device actions.
type Scene struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Actions []dispatch.Action `json:"actions"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates an independent copy of the scene.
func (s *Scene) DeepCopy() *Scene {
	if s == nil {
		return nil
	}
	cpy := *s
	if s.Actions != nil {
		cpy.Actions = make([]dispatch.Action, len(s.Actions))
		copy(cpy.Actions, s.Actions)
	}
	return &cpy
}
