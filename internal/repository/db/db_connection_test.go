package db

import (
	"path/filepath"
	"testing"
)

func TestInitDB_CreatesSchemaIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grow.db")

	first, err := InitDB(path)
	if err != nil {
		t.Fatalf("first init: %v", err)
	}
	_ = first.Close()

	db, err := InitDB(path)
	if err != nil {
		t.Fatalf("second init: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"settings", "fill_state", "device_events", "sensor_readings"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}

	var mode string
	if err := db.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode=%q, want wal", mode)
	}
}

func TestFillStateAllowsSingleRow(t *testing.T) {
	db, err := InitDB(filepath.Join(t.TempDir(), "grow.db"))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`INSERT INTO fill_state (id, status, updated_at) VALUES (2, 'IDLE', 'x')`); err == nil {
		t.Fatal("expected CHECK (id = 1) to reject a second row")
	}
}
