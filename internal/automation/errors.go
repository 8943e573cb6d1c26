package automation

import "errors"

// Domain errors for the automation package.
var (
	// ErrRuleNotFound is returned when a rule ID does not exist.
	ErrRuleNotFound = errors.New("automation: rule not found")

	// ErrRuleExists is returned when creating a rule with an ID that already exists.
	ErrRuleExists = errors.New("automation: rule already exists")

	// ErrInvalidRule is returned when rule validation fails.
	ErrInvalidRule = errors.New("automation: invalid rule")

	// ErrInvalidTrigger is returned when a trigger definition fails validation.
	ErrInvalidTrigger = errors.New("automation: invalid trigger")

	// ErrInvalidAction is returned when a rule action fails validation.
	ErrInvalidAction = errors.New("automation: invalid action")
)
