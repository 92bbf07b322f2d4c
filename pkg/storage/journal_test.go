package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func entry(kind, source, vfo string, hz int64) Entry {
	return Entry{
		Kind:      kind,
		Source:    source,
		VFO:       vfo,
		Frequency: hz,
		Sideband:  "LSB",
		Step:      2,
		Band:      "low",
	}
}

func TestNewJournal(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("Valid Journal Creation", func(t *testing.T) {
		dbPath := filepath.Join(tempDir, "journal.db")
		j, err := NewJournal(dbPath, 100)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		defer j.Close()

		if j.maxEvents != 100 {
			t.Errorf("Expected maxEvents 100, got %d", j.maxEvents)
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("Expected database file to be created")
		}
	})

	t.Run("Nested Directory", func(t *testing.T) {
		dbPath := filepath.Join(tempDir, "nested", "dir", "journal.db")
		j, err := NewJournal(dbPath, 0)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		defer j.Close()

		if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
			t.Error("Expected nested directory to be created")
		}
	})

	t.Run("Directory Path Blocked By File", func(t *testing.T) {
		blocker := filepath.Join(tempDir, "blocker")
		if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := NewJournal(filepath.Join(blocker, "journal.db"), 0); err == nil {
			t.Error("Expected error when the directory is a file, got nil")
		}
	})

	t.Run("Reopen Keeps Entries", func(t *testing.T) {
		dbPath := filepath.Join(tempDir, "reopen.db")
		j, err := NewJournal(dbPath, 0)
		if err != nil {
			t.Fatal(err)
		}
		if err := j.Record(entry("tune", "encoder", "A", 3699100)); err != nil {
			t.Fatal(err)
		}
		j.Close()

		j, err = NewJournal(dbPath, 0)
		if err != nil {
			t.Fatal(err)
		}
		defer j.Close()
		count, err := j.Count()
		if err != nil {
			t.Fatal(err)
		}
		if count != 1 {
			t.Errorf("Expected 1 entry after reopen, got %d", count)
		}
	})
}

func TestRecordAndQuery(t *testing.T) {
	j, err := NewMemoryJournal(0)
	if err != nil {
		t.Fatalf("Failed to create journal: %v", err)
	}
	defer j.Close()

	start := time.Now().Add(-time.Second)
	records := []Entry{
		entry("tune", "encoder", "A", 3699100),
		entry("vfo", "button", "B", 14267000),
		entry("tune", "web", "B", 14074000),
		entry("save", "button", "B", 14074000),
	}
	for _, e := range records {
		if err := j.Record(e); err != nil {
			t.Fatalf("Failed to record %s: %v", e.Kind, err)
		}
	}

	t.Run("Recent Is Newest First", func(t *testing.T) {
		got, err := j.Recent(10)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 4 {
			t.Fatalf("Expected 4 entries, got %d", len(got))
		}
		if got[0].Kind != "save" || got[3].Frequency != 3699100 {
			t.Errorf("Unexpected order: %+v", got)
		}
		if got[0].Timestamp.Before(start) {
			t.Errorf("Expected timestamp to be filled in, got %v", got[0].Timestamp)
		}
	})

	t.Run("Limit And Offset", func(t *testing.T) {
		got, err := j.Entries(Query{Limit: 2, Offset: 1})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got[0].Frequency != 14074000 || got[1].Kind != "vfo" {
			t.Errorf("Unexpected page: %+v", got)
		}
	})

	t.Run("Filters", func(t *testing.T) {
		tunes, err := j.Entries(Query{Kind: "tune"})
		if err != nil {
			t.Fatal(err)
		}
		if len(tunes) != 2 {
			t.Errorf("Expected 2 tune entries, got %d", len(tunes))
		}

		web, err := j.Entries(Query{Source: "web"})
		if err != nil {
			t.Fatal(err)
		}
		if len(web) != 1 || web[0].Frequency != 14074000 {
			t.Errorf("Unexpected web entries: %+v", web)
		}

		vfoA, err := j.Entries(Query{VFO: "A"})
		if err != nil {
			t.Fatal(err)
		}
		if len(vfoA) != 1 {
			t.Errorf("Expected 1 VFO A entry, got %d", len(vfoA))
		}

		future := time.Now().Add(time.Hour)
		none, err := j.Entries(Query{Since: &future})
		if err != nil {
			t.Fatal(err)
		}
		if len(none) != 0 {
			t.Errorf("Expected no entries in the future, got %d", len(none))
		}
	})

	t.Run("Last Saved", func(t *testing.T) {
		saved, err := j.LastSaved()
		if err != nil {
			t.Fatal(err)
		}
		if saved == nil || saved.VFO != "B" {
			t.Errorf("Unexpected last save: %+v", saved)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		stats, err := j.Stats()
		if err != nil {
			t.Fatal(err)
		}
		if stats.TotalEvents != 4 || stats.TotalSaves != 1 || stats.Stored != 4 {
			t.Errorf("Unexpected stats: %+v", stats)
		}
		if !stats.LastCleanup.IsZero() {
			t.Errorf("Expected no cleanup yet, got %v", stats.LastCleanup)
		}
	})

	t.Run("Invalid Entry Rejected", func(t *testing.T) {
		bad := entry("tune", "web", "C", 7000000)
		if err := j.Record(bad); err == nil {
			t.Error("Expected error for VFO C, got nil")
		}
	})
}

func TestLastSavedEmpty(t *testing.T) {
	j, err := NewMemoryJournal(0)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	saved, err := j.LastSaved()
	if err != nil {
		t.Fatal(err)
	}
	if saved != nil {
		t.Errorf("Expected nil, got %+v", saved)
	}
}

func TestPrune(t *testing.T) {
	j, err := NewMemoryJournal(3)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	for i := 0; i < 5; i++ {
		if err := j.Record(entry("tune", "encoder", "A", int64(7000000+i*100))); err != nil {
			t.Fatal(err)
		}
	}

	got, err := j.Recent(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 entries after pruning, got %d", len(got))
	}
	if got[2].Frequency != 7000200 {
		t.Errorf("Expected oldest kept entry 7000200, got %d", got[2].Frequency)
	}

	stats, err := j.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalEvents != 5 {
		t.Errorf("Expected 5 total events, got %d", stats.TotalEvents)
	}
	if stats.LastCleanup.IsZero() {
		t.Error("Expected cleanup time to be set")
	}

	if err := j.Prune(); err != nil {
		t.Errorf("Prune within limit failed: %v", err)
	}
}
