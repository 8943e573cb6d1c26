package scene

import (
	"context"

	"github.com/homewise/homewise-core/internal/dispatch"
)

// Dispatcher is the slice of the dispatch package the executor needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, actions []dispatch.Action) dispatch.BatchResult
}

// ActivatedFunc is called after a scene executes, with the batch outcome.
// Used to publish scene events over MQTT and WebSocket.
type ActivatedFunc func(scene Scene, batch dispatch.BatchResult)

// Executor runs scenes through the dispatcher.
type Executor struct {
	registry   *Registry
	dispatcher Dispatcher
	logger     Logger

	onActivated ActivatedFunc
}

// NewExecutor creates a scene executor.
func NewExecutor(registry *Registry, dispatcher Dispatcher) *Executor {
	return &Executor{
		registry:   registry,
		dispatcher: dispatcher,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for executor operations.
func (e *Executor) SetLogger(logger Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// SetOnActivated registers a callback invoked after each execution.
func (e *Executor) SetOnActivated(fn ActivatedFunc) {
	e.onActivated = fn
}

// Execute runs the scene with the given ID. The scene's actions go to
// the dispatcher as one batch; the result reports each action's outcome
// and a partial failure is not an error at this level.
func (e *Executor) Execute(ctx context.Context, id string) (dispatch.BatchResult, error) {
	s, err := e.registry.Get(id)
	if err != nil {
		return dispatch.BatchResult{}, err
	}
	return e.run(ctx, *s), nil
}

// ExecuteByName runs the scene with the given exact name.
func (e *Executor) ExecuteByName(ctx context.Context, name string) (dispatch.BatchResult, error) {
	s, err := e.registry.GetByName(name)
	if err != nil {
		return dispatch.BatchResult{}, err
	}
	return e.run(ctx, *s), nil
}

func (e *Executor) run(ctx context.Context, s Scene) dispatch.BatchResult {
	batch := e.dispatcher.Dispatch(ctx, s.Actions)

	if batch.AllApplied() {
		e.logger.Info("scene executed", "scene_id", s.ID, "name", s.Name)
	} else {
		e.logger.Warn("scene executed with failures",
			"scene_id", s.ID,
			"name", s.Name,
			"applied", batch.AppliedCount(),
			"total", len(batch.Results),
		)
	}

	if e.onActivated != nil {
		e.onActivated(s, batch)
	}
	return batch
}
