package database

import (
	"context"
	"testing"
	"testing/fstest"
)

// fixtureFS builds an in-memory migration filesystem, keyed filename to
// SQL, standing in for the embedded migrations the binary carries.
func fixtureFS(files map[string]string) fstest.MapFS {
	m := make(fstest.MapFS, len(files))
	for name, sql := range files {
		m[name] = &fstest.MapFile{Data: []byte(sql)}
	}
	return m
}

// withMigrations points the package at a fixture filesystem for one test
// and restores the registered migrations afterwards.
func withMigrations(t *testing.T, files map[string]string) {
	t.Helper()
	savedFS, savedDir := MigrationsFS, MigrationsDir
	MigrationsFS = fixtureFS(files)
	MigrationsDir = "."
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = savedFS, savedDir
	})
}

func TestMigrate(t *testing.T) {
	withMigrations(t, map[string]string{
		"20260801_100000_create_presence.up.sql":   `CREATE TABLE presence_events (id INTEGER PRIMARY KEY, room TEXT NOT NULL)`,
		"20260801_100000_create_presence.down.sql": `DROP TABLE presence_events`,
	})

	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// The migrated table is usable.
	if _, err := db.ExecContext(ctx,
		"INSERT INTO presence_events (room) VALUES (?)", "kitchen",
	); err != nil {
		t.Fatalf("insert into migrated table: %v", err)
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 0 {
		t.Errorf("status = %d applied, %d pending, want 1 applied, 0 pending",
			len(applied), len(pending))
	}
	if applied[0].Version != "20260801_100000" {
		t.Errorf("applied version = %q, want 20260801_100000", applied[0].Version)
	}

	// Migrate is idempotent.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	applied, _, _ = db.GetMigrationStatus(ctx)
	if len(applied) != 1 {
		t.Errorf("after re-run, %d applied, want 1", len(applied))
	}
}

func TestMigrateAppliesInVersionOrder(t *testing.T) {
	// The second migration alters the first's table, so running out of
	// order fails outright.
	withMigrations(t, map[string]string{
		"20260801_100000_create_presence.up.sql": `CREATE TABLE presence_events (id INTEGER PRIMARY KEY, room TEXT NOT NULL)`,
		"20260802_090000_add_source.up.sql":      `ALTER TABLE presence_events ADD COLUMN source TEXT NOT NULL DEFAULT 'sensor'`,
	})

	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	applied, _, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("%d migrations applied, want 2", len(applied))
	}
	if applied[0].Version != "20260801_100000" || applied[1].Version != "20260802_090000" {
		t.Errorf("applied order = %q, %q", applied[0].Version, applied[1].Version)
	}
}

func TestMigrateDown(t *testing.T) {
	withMigrations(t, map[string]string{
		"20260801_100000_create_presence.up.sql":   `CREATE TABLE presence_events (id INTEGER PRIMARY KEY, room TEXT NOT NULL)`,
		"20260801_100000_create_presence.down.sql": `DROP TABLE presence_events`,
	})

	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	// Table is gone and the record removed.
	if _, err := db.ExecContext(ctx,
		"INSERT INTO presence_events (room) VALUES (?)", "hallway",
	); err == nil {
		t.Error("insert succeeded after rollback dropped the table")
	}
	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 || len(pending) != 1 {
		t.Errorf("status = %d applied, %d pending, want 0 applied, 1 pending",
			len(applied), len(pending))
	}

	// Rolling back an empty schema is a no-op.
	if err := db.MigrateDown(ctx); err != nil {
		t.Errorf("MigrateDown() on empty schema error = %v", err)
	}
}

func TestMigrateNoMigrationsRegistered(t *testing.T) {
	savedFS, savedDir := MigrationsFS, MigrationsDir
	MigrationsFS = nil
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = savedFS, savedDir
	})

	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no registered migrations error = %v", err)
	}
}

func TestMigrateSkipsNonMigrationFiles(t *testing.T) {
	withMigrations(t, map[string]string{
		"20260801_100000_create_presence.up.sql": `CREATE TABLE presence_events (id INTEGER PRIMARY KEY, room TEXT NOT NULL)`,
		"README.md":    "not a migration",
		"schema.sql":   "SELECT 1",
		"notes.up.sql": "SELECT 1",
	})

	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	applied, _, _ := db.GetMigrationStatus(ctx)
	if len(applied) != 1 {
		t.Errorf("%d migrations applied, want 1", len(applied))
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{"up migration", "20260801_120000_create_devices.up.sql", "20260801_120000", true, true},
		{"down migration", "20260801_120000_create_devices.down.sql", "20260801_120000", false, true},
		{"multi word description", "20260801_120300_seed_default_scenes.up.sql", "20260801_120300", true, true},
		{"not sql", "20260801_120000_create_devices.up.txt", "", false, false},
		{"no direction", "20260801_120000_create_devices.sql", "", false, false},
		{"no version", "devices.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion {
				t.Errorf("version = %q, want %q", version, tt.wantVersion)
			}
			if isUp != tt.wantUp {
				t.Errorf("isUp = %v, want %v", isUp, tt.wantUp)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20260801_120000_create_devices.up.sql", "create_devices"},
		{"20260801_120300_seed_default_scenes.down.sql", "seed_default_scenes"},
		{"odd.sql", "odd"},
	}

	for _, tt := range tests {
		if got := extractMigrationName(tt.filename); got != tt.want {
			t.Errorf("extractMigrationName(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}
