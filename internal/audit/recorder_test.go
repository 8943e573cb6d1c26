package audit

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// MockRepository is an in-memory Repository for recorder tests.
type MockRepository struct {
	mu        sync.Mutex
	entries   []Entry
	createErr error
}

func (m *MockRepository) Create(_ context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *MockRepository) List(_ context.Context, _ Filter) (*ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return &ListResult{Entries: out, Total: len(out)}, nil
}

func (m *MockRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRecorderWritesEntries(t *testing.T) {
	repo := &MockRepository{}
	rec := NewRecorder(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec.Start(ctx)

	rec.Record(Entry{Action: ActionDeviceState, EntityType: EntityDevice, EntityID: "light_1", Source: "dispatcher"})
	rec.Record(Entry{Action: ActionRuleFired, EntityType: EntityRule, EntityID: "rule_1", Source: "engine"})

	waitFor(t, func() bool { return repo.count() == 2 })
}

func TestRecorderDrainsOnShutdown(t *testing.T) {
	repo := &MockRepository{}
	rec := NewRecorder(repo)

	ctx, cancel := context.WithCancel(context.Background())
	rec.Start(ctx)

	for i := 0; i < 10; i++ {
		rec.Record(Entry{Action: ActionCommand, EntityType: EntityAssistant, Source: "api"})
	}
	cancel()

	select {
	case <-rec.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not stop after cancel")
	}

	if got := repo.count(); got != 10 {
		t.Errorf("entries written = %d, want 10", got)
	}
}

func TestRecorderStorageErrorDoesNotStop(t *testing.T) {
	repo := &MockRepository{createErr: errors.New("disk full")}
	rec := NewRecorder(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec.Start(ctx)

	rec.Record(Entry{Action: ActionLogin, EntityType: EntityUser, Source: "api"})

	// The failed write must not kill the writer.
	repo.mu.Lock()
	repo.createErr = nil
	repo.mu.Unlock()

	rec.Record(Entry{Action: ActionLogin, EntityType: EntityUser, Source: "api"})
	waitFor(t, func() bool { return repo.count() == 1 })
}

// setupTestDB creates an in-memory database with the activity_log schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE activity_log (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT,
			subject TEXT,
			source TEXT NOT NULL,
			details TEXT,
			created_at TEXT NOT NULL
		);`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

func TestSQLiteRepositoryRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	entry := &Entry{
		Action:     ActionSceneActivated,
		EntityType: EntityScene,
		EntityID:   "scene_1",
		Subject:    "admin",
		Source:     "api",
		Details:    map[string]any{"applied": float64(3), "total": float64(3)},
	}
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if entry.ID == "" {
		t.Error("Create() did not generate an ID")
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 || len(result.Entries) != 1 {
		t.Fatalf("List() total = %d, entries = %d", result.Total, len(result.Entries))
	}

	got := result.Entries[0]
	if got.Action != ActionSceneActivated || got.EntityID != "scene_1" || got.Subject != "admin" {
		t.Errorf("entry round-trip mismatch: %+v", got)
	}
	if got.Details["applied"] != float64(3) {
		t.Errorf("details round-trip mismatch: %v", got.Details)
	}
}

func TestSQLiteRepositoryFiltering(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	seed := []Entry{
		{Action: ActionDeviceState, EntityType: EntityDevice, EntityID: "light_1", Source: "dispatcher"},
		{Action: ActionDeviceState, EntityType: EntityDevice, EntityID: "ac_1", Source: "dispatcher"},
		{Action: ActionRuleFired, EntityType: EntityRule, EntityID: "rule_1", Source: "engine"},
	}
	for i := range seed {
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("seeding entry %d: %v", i, err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 3},
		{"by action", Filter{Action: ActionDeviceState}, 2},
		{"by entity type", Filter{EntityType: EntityRule}, 1},
		{"by entity id", Filter{EntityID: "light_1"}, 1},
		{"no match", Filter{Action: ActionLogin}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if result.Total != tt.want {
				t.Errorf("Total = %d, want %d", result.Total, tt.want)
			}
		})
	}
}

func TestSQLiteRepositoryPagination(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		entry := &Entry{
			Action:     ActionCommand,
			EntityType: EntityAssistant,
			Source:     "api",
			CreatedAt:  time.Date(2026, 8, 1, 12, 0, i, 0, time.UTC),
		}
		if err := repo.Create(ctx, entry); err != nil {
			t.Fatalf("seeding entry %d: %v", i, err)
		}
	}

	result, err := repo.List(ctx, Filter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 5 {
		t.Errorf("Total = %d, want 5", result.Total)
	}
	if len(result.Entries) != 2 {
		t.Errorf("page size = %d, want 2", len(result.Entries))
	}
	// Most recent first.
	if len(result.Entries) == 2 && !result.Entries[0].CreatedAt.After(result.Entries[1].CreatedAt) {
		t.Error("entries not ordered most recent first")
	}
}
