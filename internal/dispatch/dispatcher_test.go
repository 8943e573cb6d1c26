package dispatch

import (
	"context"
	"sync"
	"testing"

	"github.com/homewise/homewise-core/internal/device"
)

// mockRegistry is an in-memory Registry for dispatcher tests.
type mockRegistry struct {
	mu      sync.Mutex
	devices map[string]*device.Device

	// applyErr, when set for a device ID, fails its Apply calls.
	applyErr map[string]error

	// applied records the order of applied changes per device.
	applied map[string][]device.Change
}

func newMockRegistry(devices ...device.Device) *mockRegistry {
	m := &mockRegistry{
		devices:  make(map[string]*device.Device),
		applyErr: make(map[string]error),
		applied:  make(map[string][]device.Change),
	}
	for i := range devices {
		d := devices[i]
		m.devices[d.ID] = &d
	}
	return m
}

func (m *mockRegistry) Get(id string) (*device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return d.DeepCopy(), nil
}

func (m *mockRegistry) Apply(ctx context.Context, id string, change device.Change) (*device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.applyErr[id]; ok {
		return nil, err
	}
	d, ok := m.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	if err := device.ValidateChange(change, device.DefaultLimits()); err != nil {
		return nil, err
	}
	if change.Status != nil {
		d.Status = *change.Status
	}
	if d.Properties == nil {
		d.Properties = device.Properties{}
	}
	for k, v := range change.Properties {
		d.Properties[k] = v
	}
	m.applied[id] = append(m.applied[id], change)
	return d.DeepCopy(), nil
}

func light(id string, status device.Status) device.Device {
	return device.Device{
		ID: id, Name: id, Type: device.TypeLight,
		Room: device.RoomLivingRoom, Status: status,
		Properties: device.Properties{},
	}
}

func TestDispatchTurnOnOff(t *testing.T) {
	reg := newMockRegistry(light("l1", device.StatusOff))
	d := New(reg)

	res := d.DispatchOne(context.Background(), Action{DeviceID: "l1", Operation: OpTurnOn})
	if !res.Applied() {
		t.Fatalf("turn_on outcome = %q, error = %q", res.Outcome, res.Error)
	}
	if res.Device == nil || res.Device.Status != device.StatusOn {
		t.Errorf("device not on after turn_on")
	}

	res = d.DispatchOne(context.Background(), Action{DeviceID: "l1", Operation: OpTurnOff})
	if res.Device.Status != device.StatusOff {
		t.Errorf("device not off after turn_off")
	}
}

func TestDispatchToggle(t *testing.T) {
	tests := []struct {
		name  string
		start device.Status
		want  device.Status
	}{
		{"off to on", device.StatusOff, device.StatusOn},
		{"on to off", device.StatusOn, device.StatusOff},
		{"unknown to on", device.StatusUnknown, device.StatusOn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newMockRegistry(light("l1", tt.start))
			d := New(reg)

			res := d.DispatchOne(context.Background(), Action{DeviceID: "l1", Operation: OpToggle})
			if !res.Applied() {
				t.Fatalf("toggle outcome = %q", res.Outcome)
			}
			if res.Device.Status != tt.want {
				t.Errorf("status after toggle = %q, want %q", res.Device.Status, tt.want)
			}
		})
	}
}

func TestDispatchSetProperty(t *testing.T) {
	reg := newMockRegistry(light("l1", device.StatusOn))
	d := New(reg)

	res := d.DispatchOne(context.Background(), Action{
		DeviceID: "l1", Operation: OpSetProperty, Key: "brightness", Value: float64(40),
	})
	if !res.Applied() {
		t.Fatalf("set_property outcome = %q, error = %q", res.Outcome, res.Error)
	}
	if got := res.Device.Properties["brightness"]; got != float64(40) {
		t.Errorf("brightness = %v, want 40", got)
	}

	res = d.DispatchOne(context.Background(), Action{DeviceID: "l1", Operation: OpSetProperty})
	if res.Outcome != OutcomeInvalid {
		t.Errorf("set_property without key outcome = %q, want %q", res.Outcome, OutcomeInvalid)
	}
}

func TestDispatchOutcomeClassification(t *testing.T) {
	reg := newMockRegistry(light("l1", device.StatusOff))
	reg.applyErr["slow"] = device.ErrStorageTimeout
	reg.devices["slow"] = &device.Device{ID: "slow", Status: device.StatusOff}

	d := New(reg)

	tests := []struct {
		name   string
		action Action
		want   Outcome
	}{
		{"not found", Action{DeviceID: "missing", Operation: OpTurnOn}, OutcomeNotFound},
		{"toggle not found", Action{DeviceID: "missing", Operation: OpToggle}, OutcomeNotFound},
		{"invalid operation", Action{DeviceID: "l1", Operation: "blink"}, OutcomeInvalid},
		{"invalid mutation", Action{DeviceID: "l1", Operation: OpSetProperty, Key: "brightness", Value: float64(400)}, OutcomeInvalid},
		{"storage timeout", Action{DeviceID: "slow", Operation: OpTurnOn}, OutcomeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.DispatchOne(context.Background(), tt.action)
			if res.Outcome != tt.want {
				t.Errorf("outcome = %q, want %q", res.Outcome, tt.want)
			}
			if res.Error == "" {
				t.Error("failed result carries no error message")
			}
			if res.Device != nil {
				t.Error("failed result carries a device")
			}
		})
	}
}

func TestDispatchPartialFailure(t *testing.T) {
	reg := newMockRegistry(light("l1", device.StatusOff), light("l2", device.StatusOff))
	d := New(reg)

	batch := d.Dispatch(context.Background(), []Action{
		{DeviceID: "l1", Operation: OpTurnOn},
		{DeviceID: "missing", Operation: OpTurnOn},
		{DeviceID: "l2", Operation: OpTurnOn},
	})

	if batch.AllApplied() {
		t.Error("AllApplied() = true with a failed action")
	}
	if got := batch.AppliedCount(); got != 2 {
		t.Errorf("AppliedCount() = %d, want 2", got)
	}

	// A failure mid-batch must not stop later actions.
	if !batch.Results[2].Applied() {
		t.Error("action after failure was not applied")
	}

	// Results preserve submission order.
	if batch.Results[1].Outcome != OutcomeNotFound {
		t.Errorf("Results[1].Outcome = %q, want %q", batch.Results[1].Outcome, OutcomeNotFound)
	}
}

func TestDispatchEmptyBatch(t *testing.T) {
	d := New(newMockRegistry())
	batch := d.Dispatch(context.Background(), nil)
	if !batch.AllApplied() {
		t.Error("empty batch should count as fully applied")
	}
	if len(batch.Results) != 0 {
		t.Errorf("empty batch produced %d results", len(batch.Results))
	}
}

func TestDispatchPerDeviceOrder(t *testing.T) {
	reg := newMockRegistry(light("l1", device.StatusOff))
	d := New(reg)

	batch := d.Dispatch(context.Background(), []Action{
		{DeviceID: "l1", Operation: OpSetProperty, Key: "brightness", Value: float64(10)},
		{DeviceID: "l1", Operation: OpSetProperty, Key: "brightness", Value: float64(20)},
		{DeviceID: "l1", Operation: OpSetProperty, Key: "brightness", Value: float64(30)},
	})
	if !batch.AllApplied() {
		t.Fatal("batch failed")
	}

	changes := reg.applied["l1"]
	if len(changes) != 3 {
		t.Fatalf("applied %d changes, want 3", len(changes))
	}
	for i, want := range []float64{10, 20, 30} {
		if got := changes[i].Properties["brightness"]; got != want {
			t.Errorf("change %d brightness = %v, want %v", i, got, want)
		}
	}
}

func TestDispatchConcurrentSameDevice(t *testing.T) {
	reg := newMockRegistry(light("l1", device.StatusOff))
	d := New(reg)

	// Concurrent toggles on one device must serialise; every toggle
	// flips the state, so after an even number the light is off again.
	const rounds = 50
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := d.DispatchOne(context.Background(), Action{DeviceID: "l1", Operation: OpToggle})
			if !res.Applied() {
				t.Errorf("toggle failed: %q", res.Error)
			}
		}()
	}
	wg.Wait()

	final, _ := reg.Get("l1")
	if final.Status != device.StatusOff {
		t.Errorf("status after %d toggles = %q, want off", rounds, final.Status)
	}
}

func TestDispatchConcurrentBatchesDoNotInterleave(t *testing.T) {
	// Two multi-action batches on one device must serialise as whole
	// batches, not action by action. Whichever runs second determines
	// the final state, so only the two serial outcomes are legal.
	const rounds = 100
	for round := 0; round < rounds; round++ {
		reg := newMockRegistry(light("l1", device.StatusUnknown))
		d := New(reg)

		batchA := []Action{
			{DeviceID: "l1", Operation: OpTurnOn},
			{DeviceID: "l1", Operation: OpTurnOn},
			{DeviceID: "l1", Operation: OpSetProperty, Key: "brightness", Value: float64(80)},
		}
		batchB := []Action{
			{DeviceID: "l1", Operation: OpSetProperty, Key: "brightness", Value: float64(0)},
			{DeviceID: "l1", Operation: OpTurnOff},
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			d.Dispatch(context.Background(), batchA)
		}()
		go func() {
			defer wg.Done()
			d.Dispatch(context.Background(), batchB)
		}()
		wg.Wait()

		final, _ := reg.Get("l1")
		brightness := final.Properties["brightness"]

		aThenB := final.Status == device.StatusOff && brightness == float64(0)
		bThenA := final.Status == device.StatusOn && brightness == float64(80)
		if !aThenB && !bThenA {
			t.Fatalf("round %d: final state status=%q brightness=%v matches no serial batch order",
				round, final.Status, brightness)
		}
	}
}

func TestDispatchDistinctDevicesConcurrent(t *testing.T) {
	devices := []device.Device{
		light("l1", device.StatusOff),
		light("l2", device.StatusOff),
		light("l3", device.StatusOff),
	}
	reg := newMockRegistry(devices...)
	d := New(reg)

	batch := d.Dispatch(context.Background(), []Action{
		{DeviceID: "l1", Operation: OpTurnOn},
		{DeviceID: "l2", Operation: OpTurnOn},
		{DeviceID: "l3", Operation: OpTurnOn},
	})
	if !batch.AllApplied() {
		t.Fatal("batch failed")
	}
	for _, id := range []string{"l1", "l2", "l3"} {
		got, _ := reg.Get(id)
		if got.Status != device.StatusOn {
			t.Errorf("%s status = %q, want on", id, got.Status)
		}
	}
}
