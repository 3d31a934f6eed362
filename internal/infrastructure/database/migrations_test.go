package database

import (
	"context"
	"embed"
	"io/fs"
	"reflect"
	"testing"
	"testing/fstest"
	"time"
)

// testMigrationsDir is the directory containing test migration files.
const testMigrationsDir = "testdata"

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

// useMigrations swaps the migration source for one test.
func useMigrations(t *testing.T, fsys fs.FS, dir string) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})
	MigrationsFS, MigrationsDir = fsys, dir
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrationsFS, testMigrationsDir)

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	var tableName string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='test_readings'",
	).Scan(&tableName)
	if err != nil {
		t.Fatalf("table test_readings not created: %v", err)
	}

	status, err := db.SchemaStatus(ctx)
	if err != nil {
		t.Fatalf("SchemaStatus() error = %v", err)
	}
	if status.Version != "20260101_000000" || status.Applied != 1 || len(status.Pending) != 0 {
		t.Errorf("SchemaStatus() = %+v, want version 20260101_000000 with nothing pending", status)
	}
	if status.AppliedAt.IsZero() {
		t.Error("AppliedAt is zero")
	}

	// Running again is a no-op
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateNoMigrations(t *testing.T) {
	useMigrations(t, nil, ".")

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
	status, err := db.SchemaStatus(ctx)
	if err != nil {
		t.Fatalf("SchemaStatus() error = %v", err)
	}
	if status.Version != "" || status.Applied != 0 || status.Pending != nil {
		t.Errorf("SchemaStatus() = %+v, want empty", status)
	}
}

func TestSchemaStatusBeforeMigrate(t *testing.T) {
	useMigrations(t, testMigrationsFS, testMigrationsDir)

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	status, err := db.SchemaStatus(context.Background())
	if err != nil {
		t.Fatalf("SchemaStatus() error = %v", err)
	}
	want := []string{"20260101_000000_create_test_readings"}
	if status.Applied != 0 || !reflect.DeepEqual(status.Pending, want) {
		t.Errorf("SchemaStatus() = %+v, want pending %v", status, want)
	}
}

func TestMigrateStopsAtFailure(t *testing.T) {
	fsys := fstest.MapFS{
		"m/20260101_000000_readings.up.sql": {Data: []byte("CREATE TABLE readings (id INTEGER PRIMARY KEY);")},
		"m/20260102_000000_broken.up.sql":   {Data: []byte("CREATE TABLE broken (;")},
		"m/20260103_000000_audit.up.sql":    {Data: []byte("CREATE TABLE audit (id INTEGER PRIMARY KEY);")},
		"m/README.md":                       {Data: []byte("not a migration")},
	}
	useMigrations(t, fsys, "m")

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() with a broken step succeeded")
	}

	status, err := db.SchemaStatus(ctx)
	if err != nil {
		t.Fatalf("SchemaStatus() error = %v", err)
	}
	want := []string{"20260102_000000_broken", "20260103_000000_audit"}
	if status.Version != "20260101_000000" || !reflect.DeepEqual(status.Pending, want) {
		t.Errorf("SchemaStatus() = %+v, want 20260101_000000 applied and %v pending", status, want)
	}
}

func TestLoadMigrationsDuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101_000000_a.up.sql": {Data: []byte("SELECT 1;")},
		"20260101_000000_b.up.sql": {Data: []byte("SELECT 2;")},
	}
	if _, err := loadMigrations(fsys, "."); err == nil {
		t.Error("loadMigrations() with a duplicate version succeeded")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantOk      bool
	}{
		{"20261001_120000_initial_schema.up.sql", "20261001_120000", "initial_schema", true},
		{"20261001_120000_add_unit_to_readings.up.sql", "20261001_120000", "add_unit_to_readings", true},
		{"20261001_120000.up.sql", "20261001_120000", "", true},
		{"20261001_120000_initial_schema.down.sql", "", "", false},
		{"20261001_120000_initial_schema.sql", "", "", false},
		{"readme.txt", "", "", false},
		{"invalid.up.sql", "", "", false},
		{"2026_120000_short.up.sql", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk || version != tt.wantVersion || name != tt.wantName {
				t.Errorf("parseMigrationFilename(%q) = %q, %q, %v; want %q, %q, %v",
					tt.filename, version, name, ok, tt.wantVersion, tt.wantName, tt.wantOk)
			}
		})
	}
}
