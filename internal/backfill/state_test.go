package backfill

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBackfillState_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")

	s, err := LoadState(statePath)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if s.StartedAt.IsZero() {
		t.Error("expected fresh state to record start time")
	}
	s.MarkProcessed("calls/acme.txt")
	s.MarkProcessed("calls/globex.json")
	s.Remember("abc123")
	s.ChunksAnalyzed = 3
	s.ObjectionsFound = 2

	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadState(statePath)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if !loaded.IsProcessed("calls/globex.json") {
		t.Error("expected globex.json to be processed after reload")
	}
	if !loaded.Seen("abc123") {
		t.Error("expected fingerprint to survive reload")
	}
	if loaded.ChunksAnalyzed != 3 || loaded.ObjectionsFound != 2 {
		t.Errorf("unexpected counters %d/%d", loaded.ChunksAnalyzed, loaded.ObjectionsFound)
	}
	if loaded.Path() != statePath {
		t.Errorf("expected path %q, got %q", statePath, loaded.Path())
	}
}

func TestLoadState_Corrupt(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(statePath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadState(statePath); err == nil {
		t.Fatal("expected error for corrupt state file")
	}
}

func TestBackfillState_IsProcessed(t *testing.T) {
	s := &BackfillState{}

	if s.IsProcessed("acme.txt") {
		t.Error("acme.txt should not be processed yet")
	}

	s.MarkProcessed("acme.txt")

	if !s.IsProcessed("acme.txt") {
		t.Error("acme.txt should be processed")
	}
	if s.IsProcessed("globex.txt") {
		t.Error("globex.txt should not be processed")
	}
}

func TestBackfillState_AddError(t *testing.T) {
	s := &BackfillState{}
	s.AddError("something went wrong")
	s.AddError("another error")

	if len(s.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(s.Errors))
	}
	if s.Errors[0] != "something went wrong" {
		t.Errorf("error[0] = %q", s.Errors[0])
	}
}

func TestBackfillState_SaveCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "nested", "dir", "state.json")

	s := &BackfillState{path: statePath}
	if err := s.Save(); err != nil {
		t.Fatalf("Save with nested dir failed: %v", err)
	}
	if _, err := os.Stat(statePath); err != nil {
		t.Fatalf("state file not created in nested dir: %v", err)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}

	got := expandHome("~/test/path")
	want := filepath.Join(home, "test/path")
	if got != want {
		t.Errorf("expandHome(~/test/path) = %q, want %q", got, want)
	}

	// Non-tilde paths should pass through.
	got = expandHome("/absolute/path")
	if got != "/absolute/path" {
		t.Errorf("expandHome(/absolute/path) = %q", got)
	}
}
