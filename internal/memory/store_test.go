package memory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadSummaryMissingReturnsEmpty(t *testing.T) {
	store := NewStore(t.TempDir())
	got, err := store.LoadSummary("episodic")
	if err != nil {
		t.Fatalf("LoadSummary: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty summary, got %q", got)
	}
}

func TestSaveAndLoadSummary(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.SaveSummary("episodic", "prefer apt-get over apt in scripts"); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}
	got, err := store.LoadSummary("episodic")
	if err != nil {
		t.Fatalf("LoadSummary: %v", err)
	}
	if got != "prefer apt-get over apt in scripts" {
		t.Fatalf("summary: %q", got)
	}
}

func TestSaveSummaryOverwrites(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.SaveSummary("a", "first"); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.SaveSummary("a", "second"); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, _ := store.LoadSummary("a")
	if got != "second" {
		t.Fatalf("summary: %q", got)
	}
}

func TestSaveSummaryLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	if err := store.SaveSummary("a", "content"); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "a"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestAgentNamesAreSandboxed(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	if err := store.SaveSummary("../escape", "x"); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(root), "escape")); err == nil {
		t.Fatal("summary written outside store root")
	}
	if got, _ := store.LoadSummary("../escape"); got != "x" {
		t.Fatalf("sandboxed summary not readable back: %q", got)
	}
}

func TestAppendHistoryAccumulates(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.AppendHistory("a", "Task hello-world", "passed on first episode"); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := store.AppendHistory("a", "Task broken-python", "needed 3 episodes"); err != nil {
		t.Fatalf("second append: %v", err)
	}

	got, err := store.LoadHistory("a", time.Now())
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if !strings.HasPrefix(got, "# "+time.Now().Format("2006-01-02")) {
		t.Fatalf("missing date header: %q", got)
	}
	if !strings.Contains(got, "Task hello-world") || !strings.Contains(got, "Task broken-python") {
		t.Fatalf("history incomplete: %q", got)
	}
}

func TestAppendHistoryRejectsEmptyContent(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := store.AppendHistory("a", "Title", "   "); err == nil {
		t.Fatal("empty content accepted")
	}
}

func TestLoadHistoryMissingReturnsEmpty(t *testing.T) {
	store := NewStore(t.TempDir())
	got, err := store.LoadHistory("a", time.Now())
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty history, got %q", got)
	}
}

func TestSanitizeSegment(t *testing.T) {
	cases := map[string]string{
		"episodic":       "episodic",
		"episodic+mem":   "episodic_mem",
		"../../etc":      "etc",
		"":               "agent",
		"...":            "agent",
		"Agent Name 1.0": "Agent_Name_1.0",
	}
	for in, want := range cases {
		if got := sanitizeSegment(in); got != want {
			t.Errorf("sanitizeSegment(%q) = %q, want %q", in, got, want)
		}
	}
}
