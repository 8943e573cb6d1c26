package automation

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/homewise/homewise-core/internal/dispatch"
)

const maxNameLength = 100

// timePattern matches 24-hour HH:MM trigger times.
var timePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

var validComparators = map[Comparator]struct{}{
	CmpGreater:      {},
	CmpLess:         {},
	CmpGreaterEqual: {},
	CmpLessEqual:    {},
	CmpEqual:        {},
}

var validOperations = map[dispatch.Operation]struct{}{
	dispatch.OpTurnOn:      {},
	dispatch.OpTurnOff:     {},
	dispatch.OpToggle:      {},
	dispatch.OpSetProperty: {},
}

// ValidateRule checks a rule's name, trigger, and actions.
func ValidateRule(r *Rule) error {
	if r == nil {
		return ErrInvalidRule
	}
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if len(r.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidRule, maxNameLength)
	}
	if err := ValidateTrigger(r.Trigger); err != nil {
		return err
	}
	if len(r.Actions) == 0 {
		return fmt.Errorf("%w: at least one action is required", ErrInvalidAction)
	}
	for i, a := range r.Actions {
		if err := validateAction(a); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

// ValidateTrigger checks a trigger definition against its kind.
func ValidateTrigger(t Trigger) error {
	switch t.Kind {
	case TriggerTime:
		if !timePattern.MatchString(t.At) {
			return fmt.Errorf("%w: at must be HH:MM, got %q", ErrInvalidTrigger, t.At)
		}
	case TriggerDeviceState:
		if t.DeviceID == "" {
			return fmt.Errorf("%w: device_id is required", ErrInvalidTrigger)
		}
		if t.Status == "" {
			return fmt.Errorf("%w: status is required", ErrInvalidTrigger)
		}
	case TriggerSensorThreshold:
		if t.DeviceID == "" {
			return fmt.Errorf("%w: device_id is required", ErrInvalidTrigger)
		}
		if _, ok := validComparators[t.Comparator]; !ok {
			return fmt.Errorf("%w: unknown comparator %q", ErrInvalidTrigger, t.Comparator)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTrigger, t.Kind)
	}
	return nil
}

func validateAction(a dispatch.Action) error {
	if a.DeviceID == "" {
		return fmt.Errorf("%w: device_id is required", ErrInvalidAction)
	}
	if _, ok := validOperations[a.Operation]; !ok {
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidAction, a.Operation)
	}
	if a.Operation == dispatch.OpSetProperty && a.Key == "" {
		return fmt.Errorf("%w: set_property requires a key", ErrInvalidAction)
	}
	return nil
}

// GenerateID creates a new unique rule ID.
func GenerateID() string {
	return uuid.New().String()
}
