package automation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/homewise/homewise-core/internal/device"
	"github.com/homewise/homewise-core/internal/dispatch"
)

// mockDispatcher records dispatched batches and returns canned outcomes.
type mockDispatcher struct {
	mu      sync.Mutex
	batches [][]dispatch.Action

	// failDevices lists device IDs whose actions report not_found.
	failDevices map[string]bool
}

func newMockDispatcher() *mockDispatcher {
	return &mockDispatcher{failDevices: make(map[string]bool)}
}

func (m *mockDispatcher) Dispatch(ctx context.Context, actions []dispatch.Action) dispatch.BatchResult {
	m.mu.Lock()
	m.batches = append(m.batches, actions)
	m.mu.Unlock()

	results := make([]dispatch.Result, len(actions))
	for i, a := range actions {
		if m.failDevices[a.DeviceID] {
			results[i] = dispatch.Result{Action: a, Outcome: dispatch.OutcomeNotFound, Error: "device: not found"}
		} else {
			results[i] = dispatch.Result{Action: a, Outcome: dispatch.OutcomeApplied}
		}
	}
	return dispatch.BatchResult{Results: results}
}

func (m *mockDispatcher) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

// countingLogger counts Warn calls for warn-once assertions.
type countingLogger struct {
	mu    sync.Mutex
	warns int
}

func (l *countingLogger) Debug(msg string, args ...any) {}
func (l *countingLogger) Info(msg string, args ...any)  {}
func (l *countingLogger) Error(msg string, args ...any) {}
func (l *countingLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	l.warns++
	l.mu.Unlock()
}

func newTestEngine(t *testing.T, rules ...Rule) (*Engine, *Registry, *mockDispatcher) {
	t.Helper()
	reg, _ := newTestRuleRegistry(t, rules...)
	disp := newMockDispatcher()
	eng := NewEngine(reg, disp)
	return eng, reg, disp
}

func stateChange(d device.Device, from, to device.Status) device.StateChange {
	d.Status = to
	return device.StateChange{
		Device:     d,
		OldStatus:  from,
		NewStatus:  to,
		OccurredAt: time.Now(),
	}
}

func TestEngineTimeTrigger(t *testing.T) {
	rule := validRule("r1")
	rule.Trigger = Trigger{Kind: TriggerTime, At: "19:30"}
	eng, reg, disp := newTestEngine(t, rule)

	at := time.Date(2026, 8, 28, 19, 30, 5, 0, time.Local)

	eng.evaluateTick(context.Background(), at)
	if disp.batchCount() != 1 {
		t.Fatalf("dispatched %d batches, want 1", disp.batchCount())
	}

	got, _ := reg.Get("r1")
	if got.ExecutionCount != 1 {
		t.Errorf("ExecutionCount = %d, want 1", got.ExecutionCount)
	}
	if got.LastExecuted == nil {
		t.Fatal("LastExecuted not set")
	}

	// A second tick in the same minute must not fire again.
	eng.evaluateTick(context.Background(), at.Add(20*time.Second))
	if disp.batchCount() != 1 {
		t.Errorf("rule fired twice in the same minute")
	}

	// The next day at the same time fires again.
	eng.evaluateTick(context.Background(), at.Add(24*time.Hour))
	if disp.batchCount() != 2 {
		t.Errorf("rule did not fire on a later matching minute")
	}
}

func TestEngineTimeTriggerWrongMinute(t *testing.T) {
	rule := validRule("r1")
	eng, _, disp := newTestEngine(t, rule)

	eng.evaluateTick(context.Background(), time.Date(2026, 8, 28, 19, 31, 0, 0, time.Local))
	if disp.batchCount() != 0 {
		t.Error("rule fired outside its trigger minute")
	}
}

func TestEngineDisabledRuleSkipped(t *testing.T) {
	rule := validRule("r1")
	rule.Enabled = false
	eng, _, disp := newTestEngine(t, rule)

	eng.evaluateTick(context.Background(), time.Date(2026, 8, 28, 19, 30, 0, 0, time.Local))
	if disp.batchCount() != 0 {
		t.Error("disabled rule fired")
	}
}

func TestEngineDeviceStateTrigger(t *testing.T) {
	rule := validRule("r1")
	rule.Trigger = Trigger{Kind: TriggerDeviceState, DeviceID: "door_1", Status: device.StatusOn}
	eng, _, disp := newTestEngine(t, rule)

	door := device.Device{ID: "door_1", Type: device.TypeDoor, Properties: device.Properties{}}

	// Transition to the watched status fires.
	eng.evaluateEvent(context.Background(), stateChange(door, device.StatusOff, device.StatusOn))
	if disp.batchCount() != 1 {
		t.Fatalf("dispatched %d batches, want 1", disp.batchCount())
	}

	// A non-transition (same status) does not fire.
	eng.evaluateEvent(context.Background(), stateChange(door, device.StatusOn, device.StatusOn))
	if disp.batchCount() != 1 {
		t.Error("rule fired without a status transition")
	}

	// A different device does not fire.
	other := device.Device{ID: "door_2", Properties: device.Properties{}}
	eng.evaluateEvent(context.Background(), stateChange(other, device.StatusOff, device.StatusOn))
	if disp.batchCount() != 1 {
		t.Error("rule fired for an unrelated device")
	}
}

func TestEngineSensorThresholdTrigger(t *testing.T) {
	rule := validRule("r1")
	rule.Trigger = Trigger{
		Kind: TriggerSensorThreshold, DeviceID: "temp_1",
		Comparator: CmpGreater, Value: 28,
	}
	eng, _, disp := newTestEngine(t, rule)

	sensor := device.Device{ID: "temp_1", Type: device.TypeSensor}

	tests := []struct {
		name  string
		value float64
		fires bool
	}{
		{"below threshold", 25, false},
		{"at threshold", 28, false},
		{"above threshold", 30.5, true},
	}

	fired := 0
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sensor
			s.Properties = device.Properties{"value": tt.value, "unit": "°C"}
			eng.evaluateEvent(context.Background(), stateChange(s, device.StatusOn, device.StatusOn))
			if tt.fires {
				fired++
			}
			if disp.batchCount() != fired {
				t.Errorf("batches = %d, want %d", disp.batchCount(), fired)
			}
		})
	}
}

func TestEngineSensorThresholdCustomProperty(t *testing.T) {
	rule := validRule("r1")
	rule.Trigger = Trigger{
		Kind: TriggerSensorThreshold, DeviceID: "ac_1",
		Property: "temperature", Comparator: CmpLessEqual, Value: 20,
	}
	eng, _, disp := newTestEngine(t, rule)

	ac := device.Device{
		ID:         "ac_1",
		Properties: device.Properties{"temperature": float64(19)},
	}
	eng.evaluateEvent(context.Background(), stateChange(ac, device.StatusOn, device.StatusOn))
	if disp.batchCount() != 1 {
		t.Error("threshold on a named property did not fire")
	}
}

func TestEngineMalformedTriggerWarnsOnce(t *testing.T) {
	rule := validRule("r1")
	rule.Trigger = Trigger{
		Kind: TriggerSensorThreshold, DeviceID: "temp_1",
		Comparator: CmpGreater, Value: 28,
	}
	eng, _, disp := newTestEngine(t, rule)

	logger := &countingLogger{}
	eng.SetLogger(logger)

	// Sensor reports a non-numeric value; the rule must never fire and
	// the problem is logged once, not per event.
	sensor := device.Device{ID: "temp_1", Properties: device.Properties{"value": "hot"}}
	for i := 0; i < 5; i++ {
		eng.evaluateEvent(context.Background(), stateChange(sensor, device.StatusOn, device.StatusOn))
	}

	if disp.batchCount() != 0 {
		t.Error("rule with unreadable sensor value fired")
	}
	logger.mu.Lock()
	warns := logger.warns
	logger.mu.Unlock()
	if warns != 1 {
		t.Errorf("warned %d times, want 1", warns)
	}
}

func TestEngineWarnStateBoundedAcrossEdits(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	logger := &countingLogger{}
	eng.SetLogger(logger)

	rule := validRule("r1")
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Each edit of a still-broken rule warns once more, but the engine
	// keeps a single entry per rule, not one per edit.
	const edits = 20
	for i := 0; i < edits; i++ {
		rule.UpdatedAt = base.Add(time.Duration(i) * time.Minute)
		eng.warnOnce(rule, ErrInvalidTrigger)
		eng.warnOnce(rule, ErrInvalidTrigger)
	}

	logger.mu.Lock()
	warns := logger.warns
	logger.mu.Unlock()
	if warns != edits {
		t.Errorf("warned %d times across %d edits, want one per edit", warns, edits)
	}

	eng.warnedMu.Lock()
	entries := len(eng.warned)
	eng.warnedMu.Unlock()
	if entries != 1 {
		t.Errorf("warn state holds %d entries for one rule, want 1", entries)
	}
}

func TestEnginePartialFailureNotCounted(t *testing.T) {
	rule := validRule("r1")
	rule.Trigger = Trigger{Kind: TriggerDeviceState, DeviceID: "door_1", Status: device.StatusOn}
	rule.Actions = []dispatch.Action{
		{DeviceID: "light_1", Operation: dispatch.OpTurnOn},
		{DeviceID: "ghost", Operation: dispatch.OpTurnOn},
	}
	eng, reg, disp := newTestEngine(t, rule)
	disp.failDevices["ghost"] = true

	door := device.Device{ID: "door_1", Properties: device.Properties{}}
	eng.evaluateEvent(context.Background(), stateChange(door, device.StatusOff, device.StatusOn))

	got, _ := reg.Get("r1")
	if got.ExecutionCount != 0 {
		t.Errorf("ExecutionCount = %d after partial failure, want 0", got.ExecutionCount)
	}
	if got.LastExecuted == nil {
		t.Error("LastExecuted not stamped on partial failure")
	}
}

func TestEngineAscendingRuleOrder(t *testing.T) {
	mk := func(id string) Rule {
		r := validRule(id)
		r.Trigger = Trigger{Kind: TriggerDeviceState, DeviceID: "door_1", Status: device.StatusOn}
		r.Actions = []dispatch.Action{{DeviceID: "marker_" + id, Operation: dispatch.OpTurnOn}}
		return r
	}
	eng, _, disp := newTestEngine(t, mk("b"), mk("a"), mk("c"))

	door := device.Device{ID: "door_1", Properties: device.Properties{}}
	eng.evaluateEvent(context.Background(), stateChange(door, device.StatusOff, device.StatusOn))

	disp.mu.Lock()
	defer disp.mu.Unlock()
	if len(disp.batches) != 3 {
		t.Fatalf("dispatched %d batches, want 3", len(disp.batches))
	}
	for i, want := range []string{"marker_a", "marker_b", "marker_c"} {
		if got := disp.batches[i][0].DeviceID; got != want {
			t.Errorf("batch %d targets %q, want %q (rules must fire in ID order)", i, got, want)
		}
	}
}

func TestEngineOnFiredCallback(t *testing.T) {
	rule := validRule("r1")
	rule.Trigger = Trigger{Kind: TriggerDeviceState, DeviceID: "door_1", Status: device.StatusOn}
	eng, _, _ := newTestEngine(t, rule)

	var firedRule Rule
	var firedBatch dispatch.BatchResult
	eng.SetOnFired(func(r Rule, b dispatch.BatchResult) {
		firedRule = r
		firedBatch = b
	})

	door := device.Device{ID: "door_1", Properties: device.Properties{}}
	eng.evaluateEvent(context.Background(), stateChange(door, device.StatusOff, device.StatusOn))

	if firedRule.ID != "r1" {
		t.Errorf("callback rule ID = %q, want r1", firedRule.ID)
	}
	if !firedBatch.AllApplied() {
		t.Error("callback batch not fully applied")
	}
}

func TestEngineQueueOverflowDrops(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	// Fill the queue beyond capacity without a running engine; sends
	// must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 300; i++ {
			eng.OnStateChange(device.StateChange{Device: device.Device{ID: "d"}})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("OnStateChange blocked on a full queue")
	}
}
