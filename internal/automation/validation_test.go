package automation

import (
	"errors"
	"testing"

	"github.com/homewise/homewise-core/internal/device"
)

func TestValidateTrigger(t *testing.T) {
	tests := []struct {
		name    string
		trigger Trigger
		wantErr bool
	}{
		{"time valid", Trigger{Kind: TriggerTime, At: "07:45"}, false},
		{"time midnight", Trigger{Kind: TriggerTime, At: "00:00"}, false},
		{"time end of day", Trigger{Kind: TriggerTime, At: "23:59"}, false},
		{"time bad hour", Trigger{Kind: TriggerTime, At: "24:00"}, true},
		{"time bad minute", Trigger{Kind: TriggerTime, At: "12:60"}, true},
		{"time no padding", Trigger{Kind: TriggerTime, At: "7:45"}, true},
		{"time empty", Trigger{Kind: TriggerTime}, true},
		{"device_state valid", Trigger{Kind: TriggerDeviceState, DeviceID: "d1", Status: device.StatusOn}, false},
		{"device_state no device", Trigger{Kind: TriggerDeviceState, Status: device.StatusOn}, true},
		{"device_state no status", Trigger{Kind: TriggerDeviceState, DeviceID: "d1"}, true},
		{"threshold valid", Trigger{Kind: TriggerSensorThreshold, DeviceID: "s1", Comparator: CmpGreater, Value: 28}, false},
		{"threshold no device", Trigger{Kind: TriggerSensorThreshold, Comparator: CmpGreater}, true},
		{"threshold bad comparator", Trigger{Kind: TriggerSensorThreshold, DeviceID: "s1", Comparator: "!="}, true},
		{"unknown kind", Trigger{Kind: "sunrise"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTrigger(tt.trigger)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTrigger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTrigger) {
				t.Errorf("ValidateTrigger() error = %v, want ErrInvalidTrigger", err)
			}
		})
	}
}

func TestComparatorCompare(t *testing.T) {
	tests := []struct {
		cmp       Comparator
		actual    float64
		threshold float64
		want      bool
	}{
		{CmpGreater, 30, 28, true},
		{CmpGreater, 28, 28, false},
		{CmpLess, 20, 28, true},
		{CmpLess, 28, 28, false},
		{CmpGreaterEqual, 28, 28, true},
		{CmpLessEqual, 28, 28, true},
		{CmpEqual, 28, 28, true},
		{CmpEqual, 28.1, 28, false},
		{Comparator("!="), 1, 2, false},
	}

	for _, tt := range tests {
		if got := tt.cmp.Compare(tt.actual, tt.threshold); got != tt.want {
			t.Errorf("(%v %s %v) = %v, want %v", tt.actual, tt.cmp, tt.threshold, got, tt.want)
		}
	}
}

func TestRuleDeepCopy(t *testing.T) {
	orig := validRule("r1")
	cpy := orig.DeepCopy()
	cpy.Actions[0].DeviceID = "other"

	if orig.Actions[0].DeviceID != "light_1" {
		t.Error("actions shared between rule copies")
	}

	var nilRule *Rule
	if nilRule.DeepCopy() != nil {
		t.Error("DeepCopy of nil should be nil")
	}
}
