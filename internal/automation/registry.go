package automation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger interface for automation operations.
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

// Registry manages rules with an in-memory cache over the repository.
type Registry struct {
	repo   Repository
	logger Logger

	mu    sync.RWMutex
	cache map[string]*Rule
}

// NewRegistry creates a rule registry backed by the given repository.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		logger: noopLogger{},
		cache:  make(map[string]*Rule),
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
	rules, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache = make(map[string]*Rule, len(rules))
	for i := range rules {
		rule := rules[i]
		r.cache[rule.ID] = &rule
	}

	r.logger.Info("rule registry loaded", "count", len(rules))
	return nil
}

// Get retrieves a rule by ID.
func (r *Registry) Get(id string) (*Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.cache[id]
	if !ok {
		return nil, ErrRuleNotFound
	}
	return rule.DeepCopy(), nil
}

// List returns all rules in ascending ID order. Evaluation order depends
// on this: when several rules match the same event they fire in the
// order List returns them.
func (r *Registry) List() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rules := make([]Rule, 0, len(r.cache))
	for _, rule := range r.cache {
		rules = append(rules, *rule.DeepCopy())
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

// Create validates and persists a new rule. The caller's Enabled value is
// respected as given; a rule created disabled stays disabled.
func (r *Registry) Create(ctx context.Context, rule *Rule) (*Rule, error) {
	if rule == nil {
		return nil, ErrInvalidRule
	}
	if rule.ID == "" {
		rule.ID = GenerateID()
	}

	if err := ValidateRule(rule); err != nil {
		return nil, err
	}

	if err := r.repo.Create(ctx, rule); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[rule.ID] = rule.DeepCopy()
	r.mu.Unlock()

	r.logger.Info("rule created", "rule_id", rule.ID, "name", rule.Name, "enabled", rule.Enabled)
	return rule.DeepCopy(), nil
}

// Update replaces a rule's definition, keeping its execution bookkeeping.
func (r *Registry) Update(ctx context.Context, rule *Rule) (*Rule, error) {
	if rule == nil {
		return nil, ErrInvalidRule
	}
	if err := ValidateRule(rule); err != nil {
		return nil, err
	}

	r.mu.RLock()
	existing, ok := r.cache[rule.ID]
	if !ok {
		r.mu.RUnlock()
		return nil, ErrRuleNotFound
	}
	rule.LastExecuted = existing.LastExecuted
	rule.ExecutionCount = existing.ExecutionCount
	rule.CreatedAt = existing.CreatedAt
	r.mu.RUnlock()

	if err := r.repo.Update(ctx, rule); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[rule.ID] = rule.DeepCopy()
	r.mu.Unlock()

	r.logger.Info("rule updated", "rule_id", rule.ID)
	return rule.DeepCopy(), nil
}

// SetEnabled flips a rule on or off.
func (r *Registry) SetEnabled(ctx context.Context, id string, enabled bool) (*Rule, error) {
	r.mu.RLock()
	existing, ok := r.cache[id]
	if !ok {
		r.mu.RUnlock()
		return nil, ErrRuleNotFound
	}
	updated := existing.DeepCopy()
	r.mu.RUnlock()

	updated.Enabled = enabled

	if err := r.repo.Update(ctx, updated); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[id] = updated.DeepCopy()
	r.mu.Unlock()

	r.logger.Info("rule toggled", "rule_id", id, "enabled", enabled)
	return updated, nil
}

// Delete removes a rule.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()

	r.logger.Info("rule deleted", "rule_id", id)
	return nil
}

// RecordExecution persists the outcome of a firing and mirrors it into
// the cache. last_executed is always stamped; execution_count only
// increments when counted is true.
func (r *Registry) RecordExecution(ctx context.Context, id string, executedAt time.Time, counted bool) error {
	if err := r.repo.RecordExecution(ctx, id, executedAt, counted); err != nil {
		return err
	}

	r.mu.Lock()
	if rule, ok := r.cache[id]; ok {
		t := executedAt.UTC()
		rule.LastExecuted = &t
		if counted {
			rule.ExecutionCount++
		}
	}
	r.mu.Unlock()

	return nil
}
