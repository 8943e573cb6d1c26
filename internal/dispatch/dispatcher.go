package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/homewise/homewise-core/internal/device"
)

// Operation names the kind of mutation an action performs.
type Operation string

// Operations.
const (
	OpTurnOn      Operation = "turn_on"
	OpTurnOff     Operation = "turn_off"
	OpToggle      Operation = "toggle"
	OpSetProperty Operation = "set_property"
)

// Action is a single requested mutation on one device. Key and Value are
// only used by set_property.
type Action struct {
	DeviceID  string    `json:"device_id"`
	Operation Operation `json:"operation"`
	Key       string    `json:"key,omitempty"`
	Value     any       `json:"value,omitempty"`
}

// Outcome classifies the result of one action.
type Outcome string

// Outcomes.
const (
	OutcomeApplied  Outcome = "applied"
	OutcomeNotFound Outcome = "failed:not_found"
	OutcomeInvalid  Outcome = "failed:invalid"
	OutcomeTimeout  Outcome = "failed:timeout"
	OutcomeError    Outcome = "failed:error"
)

// Result pairs an action with its outcome. Device carries the post-apply
// state for applied actions and is nil otherwise.
type Result struct {
	Action  Action         `json:"action"`
	Outcome Outcome        `json:"outcome"`
	Error   string         `json:"error,omitempty"`
	Device  *device.Device `json:"device,omitempty"`
}

// Applied reports whether the action took effect.
func (r Result) Applied() bool {
	return r.Outcome == OutcomeApplied
}

// BatchResult holds the per-action results of one Dispatch call, in the
// same order the actions were submitted.
type BatchResult struct {
	Results []Result `json:"results"`
}

// AllApplied reports whether every action in the batch succeeded.
// An empty batch counts as fully applied.
func (b BatchResult) AllApplied() bool {
	for _, r := range b.Results {
		if !r.Applied() {
			return false
		}
	}
	return true
}

// AppliedCount returns how many actions succeeded.
func (b BatchResult) AppliedCount() int {
	n := 0
	for _, r := range b.Results {
		if r.Applied() {
			n++
		}
	}
	return n
}

// Logger interface for dispatcher operations.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// Registry is the slice of the device registry the dispatcher needs.
type Registry interface {
	Get(id string) (*device.Device, error)
	Apply(ctx context.Context, id string, change device.Change) (*device.Device, error)
}

// Dispatcher serialises mutations per device.
type Dispatcher struct {
	registry Registry
	logger   Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a dispatcher over the given registry.
func New(registry Registry) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   noopLogger{},
		locks:    make(map[string]*sync.Mutex),
	}
}

// SetLogger sets the logger for dispatch operations.
func (d *Dispatcher) SetLogger(logger Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// deviceLock returns the mutex for a device, creating it on first use.
// Locks are never removed; the device population is small and stable.
func (d *Dispatcher) deviceLock(id string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[id] = lock
	}
	return lock
}

// Dispatch applies a batch of actions. Actions targeting the same device
// are applied in submission order; actions on distinct devices run
// concurrently. Each action succeeds or fails on its own, and a failure
// never stops the rest of the batch.
//
// The device lock is held for the batch's whole subsequence on that
// device, so two concurrent batches targeting the same device never
// interleave: the final state is what one batch leaves after the other.
func (d *Dispatcher) Dispatch(ctx context.Context, actions []Action) BatchResult {
	results := make([]Result, len(actions))

	// Group action indexes by device so per-device order is preserved
	// while distinct devices proceed in parallel.
	byDevice := make(map[string][]int)
	order := make([]string, 0)
	for i, a := range actions {
		if _, seen := byDevice[a.DeviceID]; !seen {
			order = append(order, a.DeviceID)
		}
		byDevice[a.DeviceID] = append(byDevice[a.DeviceID], i)
	}

	var wg sync.WaitGroup
	for _, id := range order {
		indexes := byDevice[id]
		wg.Add(1)
		go func(id string, indexes []int) {
			defer wg.Done()
			// One lock per goroutine, held for the full subsequence.
			// Releasing between actions would let another batch slip in
			// mid-sequence on the same device.
			lock := d.deviceLock(id)
			lock.Lock()
			defer lock.Unlock()
			for _, i := range indexes {
				results[i] = d.apply(ctx, actions[i])
			}
		}(id, indexes)
	}
	wg.Wait()

	batch := BatchResult{Results: results}
	if !batch.AllApplied() {
		d.logger.Warn("batch partially failed",
			"total", len(actions),
			"applied", batch.AppliedCount(),
		)
	}
	return batch
}

// DispatchOne is a convenience wrapper for single-action callers.
func (d *Dispatcher) DispatchOne(ctx context.Context, action Action) Result {
	batch := d.Dispatch(ctx, []Action{action})
	return batch.Results[0]
}

// apply executes a single action. The caller holds the device lock, so
// the read-modify-write in the toggle path is race-free.
func (d *Dispatcher) apply(ctx context.Context, action Action) Result {
	change, err := d.resolveChange(action)
	if err != nil {
		return failure(action, err)
	}

	updated, err := d.registry.Apply(ctx, action.DeviceID, change)
	if err != nil {
		return failure(action, err)
	}

	d.logger.Debug("action applied",
		"device_id", action.DeviceID,
		"operation", action.Operation,
	)
	return Result{Action: action, Outcome: OutcomeApplied, Device: updated}
}

// resolveChange translates an action into a concrete state change.
// Toggle reads the device's current status and requests the opposite;
// an unknown status toggles to on.
func (d *Dispatcher) resolveChange(action Action) (device.Change, error) {
	switch action.Operation {
	case OpTurnOn:
		on := device.StatusOn
		return device.Change{Status: &on}, nil

	case OpTurnOff:
		off := device.StatusOff
		return device.Change{Status: &off}, nil

	case OpToggle:
		current, err := d.registry.Get(action.DeviceID)
		if err != nil {
			return device.Change{}, err
		}
		next := device.StatusOn
		if current.Status == device.StatusOn {
			next = device.StatusOff
		}
		return device.Change{Status: &next}, nil

	case OpSetProperty:
		if action.Key == "" {
			return device.Change{}, errInvalidAction
		}
		return device.Change{Properties: device.Properties{action.Key: action.Value}}, nil

	default:
		return device.Change{}, errInvalidAction
	}
}

var errInvalidAction = errors.New("dispatch: invalid action")

// failure builds a Result for a failed action, classifying the error.
func failure(action Action, err error) Result {
	outcome := OutcomeError
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		outcome = OutcomeNotFound
	case errors.Is(err, device.ErrInvalidMutation), errors.Is(err, errInvalidAction):
		outcome = OutcomeInvalid
	case errors.Is(err, device.ErrStorageTimeout):
		outcome = OutcomeTimeout
	}
	return Result{Action: action, Outcome: outcome, Error: err.Error()}
}
