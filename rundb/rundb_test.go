package rundb

import (
	"path/filepath"
	"testing"
	"time"
)

func TestRecordAndHistoryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	rec := NewRecord("h1.example.com", []byte("#!/bin/sh -e\n__file /etc/motd\n"))
	rec.Status = "success"
	rec.EndTime = rec.StartTime.Add(2 * time.Second)
	rec.ObjectCount = 3

	if err := db.Record(rec); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	history, err := db.History("h1.example.com", 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history = %v, want 1 entry", history)
	}
	if history[0].UUID != rec.UUID || history[0].ObjectCount != 3 {
		t.Fatalf("history[0] = %+v", history[0])
	}
}

func TestHistoryOrdersMostRecentFirstAndRespectsLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	base := time.Now()
	for i := 0; i < 3; i++ {
		rec := NewRecord("h1", nil)
		rec.StartTime = base.Add(time.Duration(i) * time.Minute)
		if err := db.Record(rec); err != nil {
			t.Fatalf("Record %d failed: %v", i, err)
		}
	}

	history, err := db.History("h1", 2)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if !history[0].StartTime.After(history[1].StartTime) {
		t.Fatalf("history not ordered most-recent-first: %v", history)
	}
}

func TestHistoryUnknownHostReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	history, err := db.History("nope", 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("history = %v, want empty", history)
	}
}
