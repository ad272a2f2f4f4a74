package db

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadMigrations_Embedded(t *testing.T) {
	migrations, err := LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected at least one embedded migration")
	}
	if migrations[0].Version != 1 {
		t.Errorf("expected first migration to be version 1, got %d", migrations[0].Version)
	}
	if !strings.Contains(migrations[0].SQL, "appointments_live_slot") {
		t.Error("expected the live slot unique index in the initial schema")
	}
}

func TestLoadMigrations_OrderAndSkips(t *testing.T) {
	fsys := fstest.MapFS{
		"m/010_later.sql":   {Data: []byte("SELECT 10")},
		"m/002_second.sql":  {Data: []byte("SELECT 2")},
		"m/001_first.sql":   {Data: []byte("SELECT 1")},
		"m/readme.md":       {Data: []byte("docs")},
		"m/notes.sql":       {Data: []byte("SELECT 0")},
		"m/abc_invalid.sql": {Data: []byte("SELECT 0")},
	}

	migrations, err := loadMigrations(fsys, "m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int{1, 2, 10}
	if len(migrations) != len(want) {
		t.Fatalf("expected %d migrations, got %d", len(want), len(migrations))
	}
	for i, v := range want {
		if migrations[i].Version != v {
			t.Errorf("position %d: expected version %d, got %d", i, v, migrations[i].Version)
		}
	}
}
