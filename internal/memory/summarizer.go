package memory

import (
	"context"
	"fmt"
	"strings"

	"membench/internal/llm"
	"membench/internal/logging"
	"membench/internal/token"
)

const (
	defaultSummaryMaxTokens    = 1500
	defaultTranscriptMaxTokens = 12000
)

const summarizerSystemPrompt = `You maintain a concise working memory for a command-line agent that solves
terminal tasks. Given the agent's previous memory and a transcript of its
latest task, produce an updated memory document in Markdown.

Keep only knowledge that transfers across tasks: environment facts, tool
availability, command patterns that worked, pitfalls that caused failures.
Drop task-specific details that will not recur. Stay under %d tokens.`

// Summarizer condenses task transcripts into the agent's rolling summary
// using an LLM. Summarization failures are reported but are never allowed to
// fail the surrounding task.
type Summarizer struct {
	client           llm.Client
	store            *Store
	logger           logging.Logger
	maxSummaryTokens int
	maxInputTokens   int
}

// NewSummarizer builds a summarizer writing through the given store.
func NewSummarizer(client llm.Client, store *Store) *Summarizer {
	return &Summarizer{
		client:           client,
		store:            store,
		logger:           logging.NewComponentLogger("SUMMARIZER"),
		maxSummaryTokens: defaultSummaryMaxTokens,
		maxInputTokens:   defaultTranscriptMaxTokens,
	}
}

// Update folds the transcript of one task into the agent's summary and saves
// the result. On any failure the previous summary is left untouched and the
// error is returned for logging only; callers must not fail the task on it.
func (s *Summarizer) Update(ctx context.Context, agentName, taskID, transcript string) error {
	if s == nil || s.client == nil || s.store == nil {
		return fmt.Errorf("summarizer not initialized")
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil
	}

	previous, err := s.store.LoadSummary(agentName)
	if err != nil {
		return fmt.Errorf("load previous summary: %w", err)
	}

	transcript = token.Truncate(transcript, s.maxInputTokens)

	var user strings.Builder
	if previous != "" {
		user.WriteString("## Previous memory\n\n")
		user.WriteString(previous)
		user.WriteString("\n\n")
	}
	fmt.Fprintf(&user, "## Transcript of task %s\n\n%s\n", taskID, transcript)

	resp, err := s.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: fmt.Sprintf(summarizerSystemPrompt, s.maxSummaryTokens)},
			{Role: "user", Content: user.String()},
		},
		MaxTokens: s.maxSummaryTokens,
	})
	if err != nil {
		return fmt.Errorf("summarize transcript: %w", err)
	}

	updated := strings.TrimSpace(resp.Content)
	if updated == "" {
		return fmt.Errorf("summarizer returned empty content")
	}
	updated = token.Truncate(updated, s.maxSummaryTokens)

	if err := s.store.SaveSummary(agentName, updated); err != nil {
		return err
	}

	if err := s.store.AppendHistory(agentName, "Task "+taskID, summarizeFirstLine(transcript)); err != nil {
		s.logger.Warn("History append failed for %s: %v", agentName, err)
	}
	return nil
}

func summarizeFirstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if len(trimmed) > 160 {
			return trimmed[:160] + "..."
		}
		return trimmed
	}
	return "(empty transcript)"
}
