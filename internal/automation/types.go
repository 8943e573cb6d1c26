package automation

import (
	"time"

	"github.com/homewise/homewise-core/internal/device"
	"github.com/homewise/homewise-core/internal/dispatch"
)

// TriggerKind names the condition type a rule waits on.
type TriggerKind string

// Trigger kinds.
const (
	TriggerTime            TriggerKind = "time"
	TriggerDeviceState     TriggerKind = "device_state"
	TriggerSensorThreshold TriggerKind = "sensor_threshold"
)

// Comparator is a numeric comparison operator for sensor thresholds.
type Comparator string

// Comparators.
const (
	CmpGreater      Comparator = ">"
	CmpLess         Comparator = "<"
	CmpGreaterEqual Comparator = ">="
	CmpLessEqual    Comparator = "<="
	CmpEqual        Comparator = "=="
)

// Compare applies the comparator to actual vs threshold.
func (c Comparator) Compare(actual, threshold float64) bool {
	switch c {
	case CmpGreater:
		return actual > threshold
	case CmpLess:
		return actual < threshold
	case CmpGreaterEqual:
		return actual >= threshold
	case CmpLessEqual:
		return actual <= threshold
	case CmpEqual:
		return actual == threshold
	default:
		return false
	}
}

// Trigger is a tagged union selected by Kind.
//
// time:             At ("HH:MM", 24-hour)
// device_state:     DeviceID, Status
// sensor_threshold: DeviceID, Property (default "value"), Comparator, Value
type Trigger struct {
	Kind TriggerKind `json:"kind"`

	// time
	At string `json:"at,omitempty"`

	// device_state and sensor_threshold
	DeviceID string `json:"device_id,omitempty"`

	// device_state
	Status device.Status `json:"status,omitempty"`

	// sensor_threshold
	Property   string     `json:"property,omitempty"`
	Comparator Comparator `json:"comparator,omitempty"`
	Value      float64    `json:"value,omitempty"`
}

// Rule pairs a trigger with the actions to run when it fires.
type Rule struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Enabled bool    `json:"enabled"`
	Trigger Trigger `json:"trigger"`

	Actions []dispatch.Action `json:"actions"`

	// Execution bookkeeping. LastExecuted records the most recent firing
	// attempt, successful or not; ExecutionCount only counts firings
	// where every action applied.
	LastExecuted   *time.Time `json:"last_executed,omitempty"`
	ExecutionCount int        `json:"execution_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates an independent copy of the rule.
func (r *Rule) DeepCopy() *Rule {
	if r == nil {
		return nil
	}
	cpy := *r
	if r.LastExecuted != nil {
		t := *r.LastExecuted
		cpy.LastExecuted = &t
	}
	if r.Actions != nil {
		cpy.Actions = make([]dispatch.Action, len(r.Actions))
		copy(cpy.Actions, r.Actions)
	}
	return &cpy
}
