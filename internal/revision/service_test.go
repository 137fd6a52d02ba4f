package revision

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestChapterRevisionLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	first := Snapshot{
		Code:         "CH-01",
		Title:        "The Long Night",
		OriginalBody: "hello",
	}
	commit, err := svc.Commit("ch-1", first, "Ada", "Save draft")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected commit hash")
	}
	if _, err := os.Stat(filepath.Join(tempDir, "ch-1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}

	second := first
	second.EditedBody = "Hello."
	edited, err := svc.Commit("ch-1", second, "Casey", "Begin editing")
	if err != nil {
		t.Fatalf("Commit() second error = %v", err)
	}

	history, err := svc.History("ch-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].Hash != edited.Hash {
		t.Fatalf("history not newest-first: %+v", history)
	}
	if history[0].Author != "Casey" || history[1].Author != "Ada" {
		t.Fatalf("unexpected authors: %+v", history)
	}

	snap, err := svc.SnapshotAt("ch-1", commit.Hash)
	if err != nil {
		t.Fatalf("SnapshotAt() error = %v", err)
	}
	if snap.OriginalBody != "hello" || snap.EditedBody != "" {
		t.Fatalf("unexpected snapshot at first commit: %+v", snap)
	}
}

func TestHistoryOfUnknownChapterIsEmpty(t *testing.T) {
	svc := New(t.TempDir())
	history, err := svc.History("never-saved", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected no history, got %d entries", len(history))
	}
}

func TestRemoveDeletesRepository(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	if _, err := svc.Commit("ch-gone", Snapshot{Title: "T"}, "Ada", "init"); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if err := svc.Remove("ch-gone"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "ch-gone")); !os.IsNotExist(err) {
		t.Fatalf("repo directory still present: %v", err)
	}
}

func TestConcurrentCommitsSerialize(t *testing.T) {
	svc := New(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Commit("ch-busy", Snapshot{Title: "T", OriginalBody: "body"}, "Ada", "save"); err != nil {
				t.Errorf("Commit() error = %v", err)
			}
		}()
	}
	wg.Wait()

	history, err := svc.History("ch-busy", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 8 {
		t.Fatalf("expected 8 commits, got %d", len(history))
	}
}
