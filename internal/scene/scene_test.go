package scene

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/homewise/homewise-core/internal/dispatch"
)

// MockRepository is an in-memory Repository for testing.
type MockRepository struct {
	mu     sync.Mutex
	scenes map[string]*Scene
}

func NewMockRepository() *MockRepository {
	return &MockRepository{scenes: make(map[string]*Scene)}
}

func (m *MockRepository) GetByID(ctx context.Context, id string) (*Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scenes[id]
	if !ok {
		return nil, ErrSceneNotFound
	}
	return s.DeepCopy(), nil
}

func (m *MockRepository) List(ctx context.Context) ([]Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Scene, 0, len(m.scenes))
	for _, s := range m.scenes {
		out = append(out, *s.DeepCopy())
	}
	return out, nil
}

func (m *MockRepository) Create(ctx context.Context, scene *Scene) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.scenes[scene.ID]; exists {
		return ErrSceneExists
	}
	for _, s := range m.scenes {
		if s.Name == scene.Name {
			return ErrSceneExists
		}
	}
	m.scenes[scene.ID] = scene.DeepCopy()
	return nil
}

func (m *MockRepository) Update(ctx context.Context, scene *Scene) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.scenes[scene.ID]; !exists {
		return ErrSceneNotFound
	}
	m.scenes[scene.ID] = scene.DeepCopy()
	return nil
}

func (m *MockRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.scenes[id]; !exists {
		return ErrSceneNotFound
	}
	delete(m.scenes, id)
	return nil
}

// mockDispatcher records batches and fails actions on listed devices.
type mockDispatcher struct {
	mu          sync.Mutex
	batches     [][]dispatch.Action
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

func sleepScene() Scene {
	return Scene{
		ID:   "scene_sleep",
		Name: "睡眠模式",
		Actions: []dispatch.Action{
			{DeviceID: "light_living", Operation: dispatch.OpTurnOff},
			{DeviceID: "light_bedroom", Operation: dispatch.OpTurnOff},
			{DeviceID: "ac_bedroom", Operation: dispatch.OpSetProperty, Key: "temperature", Value: float64(26)},
		},
	}
}

func newTestSceneRegistry(t *testing.T, seed ...Scene) (*Registry, *MockRepository) {
	t.Helper()
	repo := NewMockRepository()
	for i := range seed {
		s := seed[i]
		repo.scenes[s.ID] = &s
	}
	reg := NewRegistry(repo)
	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return reg, repo
}

func TestRegistryGetByName(t *testing.T) {
	reg, _ := newTestSceneRegistry(t, sleepScene())

	s, err := reg.GetByName("睡眠模式")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if s.ID != "scene_sleep" {
		t.Errorf("ID = %q, want scene_sleep", s.ID)
	}

	if _, err := reg.GetByName("派对模式"); !errors.Is(err, ErrSceneNotFound) {
		t.Errorf("GetByName(unknown) error = %v, want ErrSceneNotFound", err)
	}
}

func TestRegistryCreateDuplicateName(t *testing.T) {
	reg, _ := newTestSceneRegistry(t, sleepScene())

	dup := sleepScene()
	dup.ID = ""
	if _, err := reg.Create(context.Background(), &dup); !errors.Is(err, ErrSceneExists) {
		t.Errorf("Create(duplicate name) error = %v, want ErrSceneExists", err)
	}
}

func TestRegistryCreateValidation(t *testing.T) {
	reg, _ := newTestSceneRegistry(t)

	tests := []struct {
		name   string
		mutate func(*Scene)
	}{
		{"empty name", func(s *Scene) { s.Name = "" }},
		{"no actions", func(s *Scene) { s.Actions = nil }},
		{"action without device", func(s *Scene) { s.Actions[0].DeviceID = "" }},
		{"unknown operation", func(s *Scene) { s.Actions[0].Operation = "fade" }},
		{"set_property without key", func(s *Scene) { s.Actions[2].Key = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sleepScene()
			s.ID = ""
			tt.mutate(&s)
			if _, err := reg.Create(context.Background(), &s); !errors.Is(err, ErrInvalidScene) {
				t.Errorf("Create() error = %v, want ErrInvalidScene", err)
			}
		})
	}
}

func TestExecutorExecute(t *testing.T) {
	reg, _ := newTestSceneRegistry(t, sleepScene())
	disp := newMockDispatcher()
	exec := NewExecutor(reg, disp)

	batch, err := exec.Execute(context.Background(), "scene_sleep")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !batch.AllApplied() {
		t.Error("batch not fully applied")
	}
	if len(disp.batches) != 1 || len(disp.batches[0]) != 3 {
		t.Fatalf("dispatched wrong batch shape: %v", disp.batches)
	}

	// Action order must be preserved.
	if disp.batches[0][0].DeviceID != "light_living" || disp.batches[0][2].Key != "temperature" {
		t.Error("scene actions dispatched out of order")
	}
}

func TestExecutorExecuteByName(t *testing.T) {
	reg, _ := newTestSceneRegistry(t, sleepScene())
	disp := newMockDispatcher()
	exec := NewExecutor(reg, disp)

	if _, err := exec.ExecuteByName(context.Background(), "睡眠模式"); err != nil {
		t.Fatalf("ExecuteByName() error = %v", err)
	}
	if _, err := exec.ExecuteByName(context.Background(), "missing"); !errors.Is(err, ErrSceneNotFound) {
		t.Errorf("ExecuteByName(missing) error = %v, want ErrSceneNotFound", err)
	}
}

func TestExecutorPartialFailure(t *testing.T) {
	reg, _ := newTestSceneRegistry(t, sleepScene())
	disp := newMockDispatcher()
	disp.failDevices["light_bedroom"] = true
	exec := NewExecutor(reg, disp)

	var activatedBatch dispatch.BatchResult
	exec.SetOnActivated(func(s Scene, b dispatch.BatchResult) { activatedBatch = b })

	batch, err := exec.Execute(context.Background(), "scene_sleep")
	if err != nil {
		t.Fatalf("Execute() error = %v (partial failure must not be an error)", err)
	}
	if batch.AllApplied() {
		t.Error("AllApplied() = true with a failing device")
	}
	if got := batch.AppliedCount(); got != 2 {
		t.Errorf("AppliedCount() = %d, want 2", got)
	}
	if len(activatedBatch.Results) != 3 {
		t.Error("activation callback missing batch results")
	}
}

func TestExecutorSceneNotFound(t *testing.T) {
	reg, _ := newTestSceneRegistry(t)
	exec := NewExecutor(reg, newMockDispatcher())

	if _, err := exec.Execute(context.Background(), "missing"); !errors.Is(err, ErrSceneNotFound) {
		t.Errorf("Execute(missing) error = %v, want ErrSceneNotFound", err)
	}
}
