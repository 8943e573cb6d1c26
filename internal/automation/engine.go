package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/homewise/homewise-core/internal/device"
	"github.com/homewise/homewise-core/internal/dispatch"
)

// Dispatcher is the slice of the dispatch package the engine needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, actions []dispatch.Action) dispatch.BatchResult
}

// FiredFunc is called after a rule fires, with the batch outcome.
// Used to publish rule events over MQTT and WebSocket.
type FiredFunc func(rule Rule, batch dispatch.BatchResult)

// Engine evaluates rules against the clock and device state changes.
//
// Time triggers are checked on a ticker; device_state and
// sensor_threshold triggers are checked when the device registry reports
// a state change. All evaluation happens on a single goroutine, so rules
// fire one batch at a time and a firing rule can never re-enter the
// engine through its own state changes.
type Engine struct {
	registry   *Registry
	dispatcher Dispatcher
	logger     Logger

	now func() time.Time

	events chan device.StateChange

	onFired FiredFunc

	// warned maps rule ID to the definition stamp whose broken trigger
	// was already logged, so the problem surfaces once per definition
	// rather than per event. Keying on the ID means editing a rule
	// replaces its entry instead of accumulating one per edit.
	warnedMu sync.Mutex
	warned   map[string]string
}

// NewEngine creates a rule engine.
func NewEngine(registry *Registry, dispatcher Dispatcher) *Engine {
	return &Engine{
		registry:   registry,
		dispatcher: dispatcher,
		logger:     noopLogger{},
		now:        time.Now,
		events:     make(chan device.StateChange, 256),
		warned:     make(map[string]string),
	}
}

// SetLogger sets the logger for engine operations.
func (e *Engine) SetLogger(logger Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// SetOnFired registers a callback invoked after each rule firing.
func (e *Engine) SetOnFired(fn FiredFunc) {
	e.onFired = fn
}

// OnStateChange feeds a device state change into the engine. It is safe
// to call from registry observer callbacks: the event is queued and
// evaluated on the engine goroutine, never inline. If the queue is full
// the event is dropped with a warning.
func (e *Engine) OnStateChange(sc device.StateChange) {
	select {
	case e.events <- sc:
	default:
		e.logger.Warn("rule event queue full, dropping state change", "device_id", sc.Device.ID)
	}
}

// Start runs the evaluation loop until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	go e.run(ctx)
}

func (e *Engine) run(ctx context.Context) {
	// The ticker runs well under a minute so a matching HH:MM is never
	// skipped; last_executed dedupes repeat ticks within the minute.
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	e.logger.Info("rule engine started")

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("rule engine stopped")
			return
		case <-ticker.C:
			e.evaluateTick(ctx, e.now())
		case sc := <-e.events:
			e.evaluateEvent(ctx, sc)
		}
	}
}

// evaluateTick fires enabled time-trigger rules matching the current
// HH:MM. A rule fires at most once per matching minute; last_executed is
// the dedupe marker.
func (e *Engine) evaluateTick(ctx context.Context, now time.Time) {
	hhmm := now.Format("15:04")

	for _, rule := range e.registry.List() {
		if !rule.Enabled || rule.Trigger.Kind != TriggerTime {
			continue
		}
		if rule.Trigger.At != hhmm {
			continue
		}
		if rule.LastExecuted != nil && sameMinute(*rule.LastExecuted, now) {
			continue
		}
		e.fire(ctx, rule, now)
	}
}

// evaluateEvent fires enabled device_state and sensor_threshold rules
// that reference the changed device. Rules are checked in ascending ID
// order, each batch completing before the next.
func (e *Engine) evaluateEvent(ctx context.Context, sc device.StateChange) {
	for _, rule := range e.registry.List() {
		if !rule.Enabled || rule.Trigger.DeviceID != sc.Device.ID {
			continue
		}

		switch rule.Trigger.Kind {
		case TriggerDeviceState:
			if sc.NewStatus == rule.Trigger.Status && sc.OldStatus != sc.NewStatus {
				e.fire(ctx, rule, e.now())
			}

		case TriggerSensorThreshold:
			match, err := e.evaluateThreshold(rule, sc.Device)
			if err != nil {
				e.warnOnce(rule, err)
				continue
			}
			if match {
				e.fire(ctx, rule, e.now())
			}
		}
	}
}

// evaluateThreshold checks a sensor_threshold trigger against the
// device's current properties.
func (e *Engine) evaluateThreshold(rule Rule, d device.Device) (bool, error) {
	property := rule.Trigger.Property
	if property == "" {
		property = "value"
	}

	raw, ok := d.Properties[property]
	if !ok {
		return false, fmt.Errorf("sensor property %q missing", property)
	}
	actual, ok := numericValue(raw)
	if !ok {
		return false, fmt.Errorf("sensor property %q is not numeric", property)
	}

	if _, valid := validComparators[rule.Trigger.Comparator]; !valid {
		return false, fmt.Errorf("unknown comparator %q", rule.Trigger.Comparator)
	}

	return rule.Trigger.Comparator.Compare(actual, rule.Trigger.Value), nil
}

// fire dispatches a rule's actions and records the attempt.
// execution_count only moves when the whole batch applied.
func (e *Engine) fire(ctx context.Context, rule Rule, now time.Time) {
	batch := e.dispatcher.Dispatch(ctx, rule.Actions)
	counted := batch.AllApplied()

	if err := e.registry.RecordExecution(ctx, rule.ID, now, counted); err != nil {
		e.logger.Error("recording rule execution failed", "rule_id", rule.ID, "error", err)
	}

	if counted {
		e.logger.Info("rule fired", "rule_id", rule.ID, "name", rule.Name)
	} else {
		e.logger.Warn("rule fired with failures",
			"rule_id", rule.ID,
			"name", rule.Name,
			"applied", batch.AppliedCount(),
			"total", len(batch.Results),
		)
	}

	if e.onFired != nil {
		e.onFired(rule, batch)
	}
}

// warnOnce logs a broken trigger once per rule definition. Editing the
// rule resets the suppression.
func (e *Engine) warnOnce(rule Rule, err error) {
	stamp := rule.UpdatedAt.Format(time.RFC3339Nano)

	e.warnedMu.Lock()
	seen := e.warned[rule.ID] == stamp
	if !seen {
		e.warned[rule.ID] = stamp
	}
	e.warnedMu.Unlock()

	if !seen {
		e.logger.Warn("rule trigger cannot be evaluated", "rule_id", rule.ID, "error", err.Error())
	}
}

// sameMinute reports whether two instants fall in the same wall-clock minute.
func sameMinute(a, b time.Time) bool {
	return a.Local().Truncate(time.Minute).Equal(b.Local().Truncate(time.Minute))
}

// numericValue extracts a float64 from the numeric types that survive
// JSON decoding and Go literals.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
