package database

import (
	"os"
	"sort"
	"testing"
)

func TestMigrationVersion(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"001_initial_schema.sql", 1},
		{"012_add_votes.sql", 12},
		{"README.md", 0},
		{"abc_not_numbered.sql", 0},
		{"001_initial_schema.sql.bak", 0},
		{".sql", 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MigrationVersion(tc.name); got != tc.want {
				t.Errorf("MigrationVersion(%q) = %d, want %d", tc.name, got, tc.want)
			}
		})
	}
}

func TestBundledMigrationsAreVersioned(t *testing.T) {
	entries, err := os.ReadDir("../../migrations")
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}

	var versions []int
	seen := map[int]string{}
	for _, e := range entries {
		v := MigrationVersion(e.Name())
		if v == 0 {
			continue
		}
		if prev, dup := seen[v]; dup {
			t.Fatalf("duplicate migration version %d: %s and %s", v, prev, e.Name())
		}
		seen[v] = e.Name()
		versions = append(versions, v)
	}

	if len(versions) == 0 {
		t.Fatal("expected at least one migration")
	}
	if !sort.IntsAreSorted(versions) || versions[0] != 1 {
		t.Fatalf("expected migrations to start at 001 and be ordered, got %v", versions)
	}
}
