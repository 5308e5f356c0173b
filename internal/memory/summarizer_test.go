package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"membench/internal/llm"
)

func TestSummarizerUpdatesSummary(t *testing.T) {
	store := NewStore(t.TempDir())
	mock := llm.NewMockClient("m", llm.TextResponse("- tmux is available\n- prefer python3 over python"))
	s := NewSummarizer(mock, store)

	err := s.Update(context.Background(), "episodic", "hello-world", "ran echo hello; verify passed")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := store.LoadSummary("episodic")
	if !strings.Contains(got, "tmux is available") {
		t.Fatalf("summary not saved: %q", got)
	}
}

func TestSummarizerIncludesPreviousSummaryInPrompt(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := store.SaveSummary("episodic", "old insight about pip"); err != nil {
		t.Fatalf("seed summary: %v", err)
	}

	mock := llm.NewMockClient("m", llm.TextResponse("merged memory"))
	s := NewSummarizer(mock, store)

	if err := s.Update(context.Background(), "episodic", "t1", "transcript body"); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if len(mock.Requests) != 1 {
		t.Fatalf("requests: %d", len(mock.Requests))
	}
	prompt := mock.Requests[0].Messages[1].Content
	if !strings.Contains(prompt, "old insight about pip") {
		t.Fatalf("previous summary missing from prompt: %q", prompt)
	}
	if !strings.Contains(prompt, "transcript body") {
		t.Fatalf("transcript missing from prompt: %q", prompt)
	}
}

func TestSummarizerFailurePreservesOldSummary(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := store.SaveSummary("episodic", "keep me"); err != nil {
		t.Fatalf("seed summary: %v", err)
	}

	mock := llm.NewMockClient("m")
	mock.FailWith(errors.New("503 upstream"))
	s := NewSummarizer(mock, store)

	if err := s.Update(context.Background(), "episodic", "t1", "transcript"); err == nil {
		t.Fatal("expected error")
	}

	got, _ := store.LoadSummary("episodic")
	if got != "keep me" {
		t.Fatalf("old summary clobbered: %q", got)
	}
}

func TestSummarizerSkipsEmptyTranscript(t *testing.T) {
	store := NewStore(t.TempDir())
	mock := llm.NewMockClient("m", llm.TextResponse("unused"))
	s := NewSummarizer(mock, store)

	if err := s.Update(context.Background(), "episodic", "t1", "  \n "); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(mock.Requests) != 0 {
		t.Fatalf("LLM called for empty transcript: %d", len(mock.Requests))
	}
}

func TestSummarizerRejectsEmptyResponse(t *testing.T) {
	store := NewStore(t.TempDir())
	mock := llm.NewMockClient("m", llm.TextResponse("   "))
	s := NewSummarizer(mock, store)

	if err := s.Update(context.Background(), "episodic", "t1", "transcript"); err == nil {
		t.Fatal("empty summary accepted")
	}
}
