package scene

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/homewise/homewise-core/internal/dispatch"
)

// Logger interface for scene operations.
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

const maxNameLength = 100

// ValidateScene checks a scene's name and actions.
func ValidateScene(s *Scene) error {
	if s == nil {
		return ErrInvalidScene
	}
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidScene)
	}
	if len(s.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidScene, maxNameLength)
	}
	if len(s.Actions) == 0 {
		return fmt.Errorf("%w: at least one action is required", ErrInvalidScene)
	}
	for i, a := range s.Actions {
		if a.DeviceID == "" {
			return fmt.Errorf("%w: action %d missing device_id", ErrInvalidScene, i)
		}
		switch a.Operation {
		case dispatch.OpTurnOn, dispatch.OpTurnOff, dispatch.OpToggle:
		case dispatch.OpSetProperty:
			if a.Key == "" {
				return fmt.Errorf("%w: action %d set_property requires a key", ErrInvalidScene, i)
			}
		default:
			return fmt.Errorf("%w: action %d unknown operation %q", ErrInvalidScene, i, a.Operation)
		}
	}
	return nil
}

// Registry manages scenes with an in-memory cache over the repository.
type Registry struct {
	repo   Repository
	logger Logger

	mu    sync.RWMutex
	cache map[string]*Scene
}

// NewRegistry creates a scene registry backed by the given repository.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		logger: noopLogger{},
		cache:  make(map[string]*Scene),
	}
}

// SetLogger sets the logger for registry operations.
func (r *Registry) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Load populates the cache from storage. Called once at startup.
func (r *Registry) Load(ctx context.Context) error {
	scenes, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading scenes: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache = make(map[string]*Scene, len(scenes))
	for i := range scenes {
		s := scenes[i]
		r.cache[s.ID] = &s
	}

	r.logger.Info("scene registry loaded", "count", len(scenes))
	return nil
}

// Get retrieves a scene by ID.
func (r *Registry) Get(id string) (*Scene, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.cache[id]
	if !ok {
		return nil, ErrSceneNotFound
	}
	return s.DeepCopy(), nil
}

// GetByName retrieves a scene by its exact name.
func (r *Registry) GetByName(name string) (*Scene, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.cache {
		if s.Name == name {
			return s.DeepCopy(), nil
		}
	}
	return nil, ErrSceneNotFound
}

// List returns all scenes sorted by name.
func (r *Registry) List() []Scene {
	r.mu.RLock()
	defer r.mu.RUnlock()

	scenes := make([]Scene, 0, len(r.cache))
	for _, s := range r.cache {
		scenes = append(scenes, *s.DeepCopy())
	}
	sort.Slice(scenes, func(i, j int) bool { return scenes[i].Name < scenes[j].Name })
	return scenes
}

// Create validates and persists a new scene.
func (r *Registry) Create(ctx context.Context, s *Scene) (*Scene, error) {
	if s == nil {
		return nil, ErrInvalidScene
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}

	if err := ValidateScene(s); err != nil {
		return nil, err
	}

	r.mu.RLock()
	for _, existing := range r.cache {
		if existing.Name == s.Name {
			r.mu.RUnlock()
			return nil, ErrSceneExists
		}
	}
	r.mu.RUnlock()

	if err := r.repo.Create(ctx, s); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[s.ID] = s.DeepCopy()
	r.mu.Unlock()

	r.logger.Info("scene created", "scene_id", s.ID, "name", s.Name)
	return s.DeepCopy(), nil
}

// Update replaces a scene's name and actions.
func (r *Registry) Update(ctx context.Context, s *Scene) (*Scene, error) {
	if s == nil {
		return nil, ErrInvalidScene
	}
	if err := ValidateScene(s); err != nil {
		return nil, err
	}

	r.mu.RLock()
	existing, ok := r.cache[s.ID]
	if !ok {
		r.mu.RUnlock()
		return nil, ErrSceneNotFound
	}
	s.CreatedAt = existing.CreatedAt
	r.mu.RUnlock()

	if err := r.repo.Update(ctx, s); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[s.ID] = s.DeepCopy()
	r.mu.Unlock()

	r.logger.Info("scene updated", "scene_id", s.ID)
	return s.DeepCopy(), nil
}

// Delete removes a scene.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()

	r.logger.Info("scene deleted", "scene_id", id)
	return nil
}
