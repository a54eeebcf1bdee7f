package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationsPaired(t *testing.T) {
	entries, err := fs.ReadDir(files, "sql")
	if err != nil {
		t.Fatal(err)
	}
	ups := make(map[string]bool)
	downs := make(map[string]bool)
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected file %s", name)
		}
	}
	if len(ups) == 0 {
		t.Fatal("expected embedded migrations")
	}
	for v := range ups {
		if !downs[v] {
			t.Fatalf("migration %s has no down file", v)
		}
	}
}

func TestLockTableMigration(t *testing.T) {
	data, err := fs.ReadFile(files, "sql/000002_app_locks.up.sql")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "app_locks") {
		t.Fatal("expected app_locks table in lock migration")
	}
}
