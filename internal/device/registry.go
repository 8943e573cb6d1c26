package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger interface for registry operations.
// Implementations should handle nil gracefully (no-op).
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is used when no logger is provided.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// StateChange describes an applied mutation, delivered to observers after
// the change has been persisted and cached.
type StateChange struct {
	Device     Device     `json:"device"`
	OldStatus  Status     `json:"old_status"`
	NewStatus  Status     `json:"new_status"`
	Properties Properties `json:"properties,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Observer receives state change notifications. Observers are called
// synchronously after a successful Apply; slow observers should hand off
// to their own goroutines.
type Observer func(StateChange)

// Registry manages devices with caching and storage-backed persistence.
//
// The registry maintains an in-memory cache of all devices, loaded at
// startup. Reads are served from the cache; writes go through the
// repository first, then update the cache.
type Registry struct {
	repo   Repository
	logger Logger

	mu    sync.RWMutex
	cache map[string]*Device

	limits         Limits
	storageTimeout time.Duration

	obsMu     sync.RWMutex
	observers []Observer
}

// NewRegistry creates a device registry backed by the given repository.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:           repo,
		logger:         noopLogger{},
		cache:          make(map[string]*Device),
		limits:         DefaultLimits(),
		storageTimeout: 5 * time.Second,
	}
}

// SetLogger sets the logger for registry operations.
func (r *Registry) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// SetLimits overrides the property bounds used by Apply validation.
func (r *Registry) SetLimits(limits Limits) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limits = limits
}

// SetStorageTimeout bounds how long Apply waits for persistence.
func (r *Registry) SetStorageTimeout(d time.Duration) {
	if d > 0 {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.storageTimeout = d
	}
}

// Subscribe registers an observer for state changes. There is no
// unsubscribe; observers live for the process lifetime.
func (r *Registry) Subscribe(obs Observer) {
	if obs == nil {
		return
	}
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.observers = append(r.observers, obs)
}

// Load populates the cache from storage. Called once at startup.
func (r *Registry) Load(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = &d
	}

	r.logger.Info("device registry loaded", "count", len(devices))
	return nil
}

// Get retrieves a device by ID from the cache.
func (r *Registry) Get(id string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.cache[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return d.DeepCopy(), nil
}

// List returns all devices sorted by name.
func (r *Registry) List() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]Device, 0, len(r.cache))
	for _, d := range r.cache {
		devices = append(devices, *d.DeepCopy())
	}
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Name == devices[j].Name {
			return devices[i].ID < devices[j].ID
		}
		return devices[i].Name < devices[j].Name
	})
	return devices
}

// Filter returns devices matching the given room and/or type. Empty
// values match everything.
func (r *Registry) Filter(room Room, deviceType DeviceType) []Device {
	all := r.List()

	filtered := make([]Device, 0, len(all))
	for _, d := range all {
		if room != "" && d.Room != room {
			continue
		}
		if deviceType != "" && d.Type != deviceType {
			continue
		}
		filtered = append(filtered, d)
	}
	return filtered
}

// CreateDevice validates and persists a new device, then caches it.
// If the device has no ID, one is generated.
func (r *Registry) CreateDevice(ctx context.Context, d *Device) (*Device, error) {
	if d == nil {
		return nil, ErrInvalidDevice
	}

	if d.ID == "" {
		d.ID = GenerateID()
	}
	if d.Status == "" {
		d.Status = StatusUnknown
	}
	if d.Properties == nil {
		d.Properties = Properties{}
	}

	if err := ValidateDevice(d); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	d.CreatedAt = now
	d.LastUpdated = now

	if err := r.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[d.ID] = d.DeepCopy()
	r.mu.Unlock()

	r.logger.Info("device created", "device_id", d.ID, "name", d.Name, "type", d.Type)
	return d.DeepCopy(), nil
}

// UpdateDevice changes a device's metadata (name, type, room). State is
// untouched; use Apply for status and property changes.
func (r *Registry) UpdateDevice(ctx context.Context, id string, name string, deviceType DeviceType, room Room) (*Device, error) {
	r.mu.RLock()
	existing, ok := r.cache[id]
	if !ok {
		r.mu.RUnlock()
		return nil, ErrDeviceNotFound
	}
	updated := existing.DeepCopy()
	r.mu.RUnlock()

	if name != "" {
		updated.Name = name
	}
	if deviceType != "" {
		updated.Type = deviceType
	}
	if room != "" {
		updated.Room = room
	}

	if err := ValidateDevice(updated); err != nil {
		return nil, err
	}

	if err := r.repo.Update(ctx, updated); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[id] = updated.DeepCopy()
	r.mu.Unlock()

	r.logger.Info("device updated", "device_id", id)
	return updated, nil
}

// DeleteDevice removes a device from storage and the cache.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()

	r.logger.Info("device deleted", "device_id", id)
	return nil
}

// Apply performs a validated state mutation on a single device.
//
// The sequence is fixed: validate, persist with a bounded timeout, update
// the cache, notify observers. A validation failure returns
// ErrInvalidMutation and leaves storage untouched. A persistence timeout
// returns ErrStorageTimeout and leaves the cache untouched.
//
// Apply is intended to be called by the dispatcher, which serialises
// mutations per device.
func (r *Registry) Apply(ctx context.Context, id string, change Change) (*Device, error) {
	r.mu.RLock()
	existing, ok := r.cache[id]
	if !ok {
		r.mu.RUnlock()
		return nil, ErrDeviceNotFound
	}
	updated := existing.DeepCopy()
	oldStatus := existing.Status
	limits := r.limits
	timeout := r.storageTimeout
	r.mu.RUnlock()

	if err := ValidateChange(change, limits); err != nil {
		return nil, err
	}

	if change.Status != nil {
		updated.Status = *change.Status
	}
	if len(change.Properties) > 0 {
		if updated.Properties == nil {
			updated.Properties = Properties{}
		}
		for k, v := range change.Properties {
			updated.Properties[k] = deepCopyValue(v)
		}
	}
	updated.LastUpdated = time.Now().UTC()

	storeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := r.repo.UpdateState(storeCtx, id, updated.Status, updated.Properties, updated.LastUpdated); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(storeCtx.Err(), context.DeadlineExceeded) {
			r.logger.Error("device state write timed out", "device_id", id, "timeout", timeout)
			return nil, ErrStorageTimeout
		}
		return nil, err
	}

	r.mu.Lock()
	r.cache[id] = updated.DeepCopy()
	r.mu.Unlock()

	r.logger.Debug("device state applied",
		"device_id", id,
		"old_status", oldStatus,
		"new_status", updated.Status,
	)

	r.notify(StateChange{
		Device:     *updated.DeepCopy(),
		OldStatus:  oldStatus,
		NewStatus:  updated.Status,
		Properties: deepCopyMap(change.Properties),
		OccurredAt: updated.LastUpdated,
	})

	return updated, nil
}

// notify delivers a state change to all observers.
func (r *Registry) notify(sc StateChange) {
	r.obsMu.RLock()
	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	r.obsMu.RUnlock()

	for _, obs := range observers {
		obs(sc)
	}
}

// Stats summarises the registry contents for the status endpoint.
type Stats struct {
	Total  int                `json:"total"`
	Online int                `json:"online"`
	ByType map[DeviceType]int `json:"by_type"`
	ByRoom map[Room]int       `json:"by_room"`
}

// Stats returns aggregate counts over the cached devices. A device is
// counted as online when its status is on.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		ByType: make(map[DeviceType]int),
		ByRoom: make(map[Room]int),
	}
	for _, d := range r.cache {
		stats.Total++
		if d.Status == StatusOn {
			stats.Online++
		}
		stats.ByType[d.Type]++
		stats.ByRoom[d.Room]++
	}
	return stats
}
