package assistant

import (
	"context"

	"github.com/homewise/homewise-core/internal/device"
)

// Advisor suggests actions for utterances the keyword chain did not
// match. Implementations receive the raw utterance and a device snapshot
// and return an intent in the same shape keyword matches produce, so the
// caller dispatches both identically.
//
// A conversational model backend would implement this; none ships here.
type Advisor interface {
	Suggest(ctx context.Context, utterance string, devices []device.Device) (CommandIntent, error)
}

// NullAdvisor is the default Advisor: it never matches anything.
type NullAdvisor struct{}

// Suggest always returns an unmatched intent.
func (NullAdvisor) Suggest(ctx context.Context, utterance string, devices []device.Device) (CommandIntent, error) {
	return CommandIntent{Matched: false}, nil
}
