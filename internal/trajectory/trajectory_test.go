package trajectory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRecorderWritesAndLoadsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "trajectory.jsonl")
	r, err := NewRecorder(path)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	if err := r.Record(StepPrompt, 1, "solve the task"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := r.RecordCommand(1, "echo hi", "hi", 0); err != nil {
		t.Fatalf("RecordCommand: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	steps, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("steps: %d", len(steps))
	}
	if steps[0].Kind != StepPrompt || steps[0].Index != 0 {
		t.Fatalf("first step: %+v", steps[0])
	}
	if steps[1].Kind != StepCommand || steps[1].ExitCode == nil || *steps[1].ExitCode != 0 {
		t.Fatalf("command step: %+v", steps[1])
	}
	if steps[2].Kind != StepObservation || steps[2].Content != "hi" {
		t.Fatalf("observation step: %+v", steps[2])
	}
}

func TestMemoryRecorderNeedsNoFile(t *testing.T) {
	r := NewMemoryRecorder()
	if err := r.Record(StepNote, 0, "remember this"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(r.Steps()) != 1 {
		t.Fatalf("steps: %d", len(r.Steps()))
	}
}

func TestTranscriptRendersCommandsAndOutput(t *testing.T) {
	r := NewMemoryRecorder()
	_ = r.RecordCommand(1, "ls /tmp", "a.txt\nb.txt", 0)
	_ = r.RecordCommand(1, "cat missing", "cat: missing: No such file", 1)
	_ = r.Record(StepNote, 1, "file is absent")

	got := r.Transcript()
	for _, want := range []string{"$ ls /tmp [exit 0]", "a.txt", "$ cat missing [exit 1]", "note: file is absent"} {
		if !strings.Contains(got, want) {
			t.Fatalf("transcript missing %q:\n%s", want, got)
		}
	}
}

func TestStepIndicesAreMonotonic(t *testing.T) {
	r := NewMemoryRecorder()
	for i := 0; i < 5; i++ {
		_ = r.Record(StepNote, 0, "x")
	}
	steps := r.Steps()
	for i, s := range steps {
		if s.Index != i {
			t.Fatalf("step %d has index %d", i, s.Index)
		}
	}
}

func TestLoadRejectsMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"index\":0,\"kind\":\"note\",\"content\":\"ok\"}\nnot json\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed line accepted")
	}
}
