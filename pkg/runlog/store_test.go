package runlog

import (
	"path/filepath"
	"testing"
)

func TestOpenRunsMigrationsAndRecordsRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	store, err := Open(Config{Path: dbPath}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	run := &Run{
		JobName: "sample",
		Mode:    "encode",
		K:       3,
		Polys:   "5,7",
		DoTail:  true,
		BitsIn:  15,
		BitsOut: 34,
		NumErrs: 0,
	}
	if err := store.Record(run); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if run.ID == "" {
		t.Error("expected BeforeCreate to assign a UUID")
	}

	recent, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("got %d runs, want 1", len(recent))
	}
	if recent[0].JobName != "sample" {
		t.Errorf("JobName = %q, want %q", recent[0].JobName, "sample")
	}
}

func TestByJobNameFiltersByName(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	store, err := Open(Config{Path: dbPath}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	for _, name := range []string{"a", "b", "a"} {
		if err := store.Record(&Run{JobName: name, Mode: "encode", K: 3, Polys: "5,7"}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	runs, err := store.ByJobName("a", 10)
	if err != nil {
		t.Fatalf("ByJobName: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs for job \"a\", want 2", len(runs))
	}
}
