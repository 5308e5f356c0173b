package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mberrors "membench/internal/errors"
	"membench/internal/llm"
	"membench/internal/memory"
	"membench/internal/trajectory"
)

func batchResponse(t *testing.T, batch CommandBatch) *llm.CompletionResponse {
	t.Helper()
	data, err := json.Marshal(batch)
	if err != nil {
		t.Fatalf("marshal batch: %v", err)
	}
	return llm.TextResponse(string(data))
}

func newEpisodic(t *testing.T, client llm.Client) *Episodic {
	t.Helper()
	a, err := NewEpisodic(Deps{Client: client, MaxEpisodes: 5})
	if err != nil {
		t.Fatalf("NewEpisodic: %v", err)
	}
	a.retryConfig = mberrors.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	return a
}

func TestEpisodicRunsUntilComplete(t *testing.T) {
	mock := llm.NewMockClient("m",
		batchResponse(t, CommandBatch{
			StateAnalysis:  "empty directory",
			Explanation:    "create the file",
			Commands:       []Command{{Keystrokes: "touch step1.txt", TimeoutSec: 5}},
			IsTaskComplete: false,
		}),
		batchResponse(t, CommandBatch{
			StateAnalysis:  "file exists",
			Explanation:    "verify and finish",
			Commands:       []Command{{Keystrokes: "ls step1.txt", TimeoutSec: 5}},
			IsTaskComplete: true,
		}),
	)

	a := newEpisodic(t, mock)
	session := newSession(t)

	result, err := a.PerformTask(context.Background(), Task{ID: "t1", Instruction: "create step1.txt"}, session, RunOptions{})
	if err != nil {
		t.Fatalf("PerformTask: %v", err)
	}
	if result.FailureMode != FailureNone {
		t.Fatalf("failure mode: %s", result.FailureMode)
	}
	if result.Episodes != 2 {
		t.Fatalf("episodes: %d", result.Episodes)
	}
	if _, err := os.Stat(filepath.Join(session.WorkDir(), "step1.txt")); err != nil {
		t.Fatalf("command not executed: %v", err)
	}
	if len(result.Markers) != 2 {
		t.Fatalf("markers: %d", len(result.Markers))
	}
	if result.InputTokens == 0 {
		t.Fatal("token usage not accumulated")
	}
}

func TestEpisodicFeedsTerminalStateBack(t *testing.T) {
	mock := llm.NewMockClient("m",
		batchResponse(t, CommandBatch{
			Commands:       []Command{{Keystrokes: "echo marker-output", TimeoutSec: 5}},
			IsTaskComplete: false,
		}),
		batchResponse(t, CommandBatch{IsTaskComplete: true}),
	)

	a := newEpisodic(t, mock)
	if _, err := a.PerformTask(context.Background(), Task{ID: "t1", Instruction: "x"}, newSession(t), RunOptions{}); err != nil {
		t.Fatalf("PerformTask: %v", err)
	}

	secondPrompt := mock.Requests[1].Messages[1].Content
	if !strings.Contains(secondPrompt, "marker-output") {
		t.Fatalf("second prompt missing terminal output:\n%s", secondPrompt)
	}
	if !strings.Contains(secondPrompt, "continue with the task") {
		t.Fatalf("second prompt missing continuation:\n%s", secondPrompt)
	}
}

func TestEpisodicStopsAtEpisodeLimit(t *testing.T) {
	never := batchResponse(t, CommandBatch{
		Commands:       []Command{{Keystrokes: "true", TimeoutSec: 5}},
		IsTaskComplete: false,
	})
	mock := llm.NewMockClient("m", never)

	a, _ := NewEpisodic(Deps{Client: mock, MaxEpisodes: 3})
	result, err := a.PerformTask(context.Background(), Task{ID: "t1", Instruction: "x"}, newSession(t), RunOptions{})
	if err != nil {
		t.Fatalf("PerformTask: %v", err)
	}
	if result.FailureMode != FailureEpisodeLimit {
		t.Fatalf("failure mode: %s", result.FailureMode)
	}
	if result.Episodes != 3 {
		t.Fatalf("episodes: %d", result.Episodes)
	}
}

func TestEpisodicRepairsDamagedJSON(t *testing.T) {
	// Markdown fence plus trailing comma: both common model mistakes.
	damaged := "```json\n{\"state_analysis\": \"ok\", \"explanation\": \"e\", \"commands\": [{\"keystrokes\": \"true\", \"timeout_sec\": 5},], \"is_task_complete\": true}\n```"
	mock := llm.NewMockClient("m", llm.TextResponse(damaged))

	a := newEpisodic(t, mock)
	result, err := a.PerformTask(context.Background(), Task{ID: "t1", Instruction: "x"}, newSession(t), RunOptions{})
	if err != nil {
		t.Fatalf("PerformTask: %v", err)
	}
	if result.FailureMode != FailureNone {
		t.Fatalf("failure mode: %s", result.FailureMode)
	}
}

func TestEpisodicUnparseableResponseFailsAfterRetries(t *testing.T) {
	mock := llm.NewMockClient("m", llm.TextResponse("I cannot express this as JSON"))

	a := newEpisodic(t, mock)
	result, err := a.PerformTask(context.Background(), Task{ID: "t1", Instruction: "x"}, newSession(t), RunOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if result.FailureMode != FailureParseError {
		t.Fatalf("failure mode: %s", result.FailureMode)
	}
	if len(mock.Requests) != 2 {
		t.Fatalf("retry count: %d requests", len(mock.Requests))
	}
}

func TestParseFailureClassificationSurvivesWrapping(t *testing.T) {
	_, err := parseCommandBatch("definitely not a command batch")
	if err == nil {
		t.Fatal("expected error")
	}

	// Mirror the layers the error passes through on the real path: the
	// transient wrapper inside the retry loop, the retry-exhaustion wrap,
	// and the per-episode wrap.
	wrapped := mberrors.NewTransientError(err, "The response was not valid JSON for the command schema.")
	exhausted := fmt.Errorf("episode 1: %w", fmt.Errorf("max retries exceeded: %w", wrapped))

	if !isParseFailure(exhausted) {
		t.Fatalf("parse failure lost through wrapping: %v", exhausted)
	}
	if mberrors.IsPermanent(exhausted) {
		t.Fatalf("parse failure misread as permanent: %v", exhausted)
	}
}

func TestEpisodicWritesEpisodeArtifacts(t *testing.T) {
	mock := llm.NewMockClient("m", batchResponse(t, CommandBatch{IsTaskComplete: true}))

	a := newEpisodic(t, mock)
	loggingDir := t.TempDir()
	_, err := a.PerformTask(context.Background(), Task{ID: "t1", Instruction: "x"}, newSession(t), RunOptions{LoggingDir: loggingDir})
	if err != nil {
		t.Fatalf("PerformTask: %v", err)
	}

	for _, name := range []string{"prompt.txt", "response.json"} {
		if _, err := os.Stat(filepath.Join(loggingDir, "episode-1", name)); err != nil {
			t.Fatalf("missing artifact %s: %v", name, err)
		}
	}
}

func TestEpisodicUpdatesMemoryAfterTask(t *testing.T) {
	store := memory.NewStore(t.TempDir())
	summarizerMock := llm.NewMockClient("s", llm.TextResponse("learned: touch creates files"))

	mock := llm.NewMockClient("m", batchResponse(t, CommandBatch{
		Commands:       []Command{{Keystrokes: "touch x", TimeoutSec: 5}},
		IsTaskComplete: true,
	}))

	a := newEpisodic(t, mock)
	opts := RunOptions{
		Memory:     store,
		Summarizer: memory.NewSummarizer(summarizerMock, store),
		Recorder:   trajectory.NewMemoryRecorder(),
	}

	if _, err := a.PerformTask(context.Background(), Task{ID: "t1", Instruction: "x"}, newSession(t), opts); err != nil {
		t.Fatalf("PerformTask: %v", err)
	}

	summary, _ := store.LoadSummary("episodic")
	if !strings.Contains(summary, "touch creates files") {
		t.Fatalf("summary not updated: %q", summary)
	}
}

func TestParseCommandBatchSchemaFields(t *testing.T) {
	raw := `{"state_analysis":"s","explanation":"e","commands":[{"keystrokes":"ls","is_blocking":true,"timeout_sec":2.5}],"is_task_complete":false}`
	batch, err := parseCommandBatch(raw)
	if err != nil {
		t.Fatalf("parseCommandBatch: %v", err)
	}
	if batch.StateAnalysis != "s" || len(batch.Commands) != 1 {
		t.Fatalf("batch: %+v", batch)
	}
	cmd := batch.Commands[0]
	if cmd.Keystrokes != "ls" || !cmd.IsBlocking || cmd.TimeoutSec != 2.5 {
		t.Fatalf("command: %+v", cmd)
	}
}
