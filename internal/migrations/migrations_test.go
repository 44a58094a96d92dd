package migrations

import (
	"strings"
	"testing"
)

func TestListEmbeddedMigrations(t *testing.T) {
	list, err := List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 up migrations, got %d", len(list))
	}
	if list[0].Version != 1 || list[1].Version != 2 {
		t.Fatalf("expected versions 1,2 in order, got %d,%d", list[0].Version, list[1].Version)
	}
	for _, f := range list {
		if !strings.HasSuffix(f.Name, ".up.sql") || len(f.Checksum) != 64 {
			t.Fatalf("unexpected migration info: %+v", f)
		}
	}
}

func TestEveryUpHasDown(t *testing.T) {
	entries, err := files.ReadDir(sourceDir)
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	for name := range names {
		if strings.HasSuffix(name, ".up.sql") {
			down := strings.TrimSuffix(name, ".up.sql") + ".down.sql"
			if !names[down] {
				t.Fatalf("missing down migration for %s", name)
			}
		}
	}
}

func TestParseVersion(t *testing.T) {
	if v, err := parseVersion("000042_thing.up.sql"); err != nil || v != 42 {
		t.Fatalf("expected 42, got %d err=%v", v, err)
	}
	for _, bad := range []string{"init.sql", "abc_init.up.sql"} {
		if _, err := parseVersion(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestUpRequiresDatabase(t *testing.T) {
	if err := Up(nil); err == nil {
		t.Fatalf("expected error for nil database")
	}
}
