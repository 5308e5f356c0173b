// Package agent defines the harness-facing agent contract and the built-in
// agent implementations under comparison: a stateless one-shot agent, an
// episodic command-batch agent, and a tool-calling agent. Any of them can be
// run with or without a persistent memory store.
package agent

import (
	"context"
	"time"

	"membench/internal/llm"
	"membench/internal/memory"
	"membench/internal/terminal"
	"membench/internal/trajectory"
)

// Task is the unit of work handed to an agent.
type Task struct {
	ID          string
	Instruction string
}

// FailureMode classifies how an agent run ended short of success.
type FailureMode string

const (
	FailureNone         FailureMode = "none"
	FailureParseError   FailureMode = "parse_error"
	FailureEpisodeLimit FailureMode = "episode_limit"
	FailureLLMError     FailureMode = "llm_error"
)

// Marker is a timestamped annotation emitted during a run.
type Marker struct {
	Offset time.Duration `json:"offset"`
	Text   string        `json:"text"`
}

// Result reports what one agent run consumed and how it ended. Token counts
// are the delta for this run only, even when the underlying client is shared
// across trials.
type Result struct {
	InputTokens  int         `json:"input_tokens"`
	OutputTokens int         `json:"output_tokens"`
	Episodes     int         `json:"episodes"`
	FailureMode  FailureMode `json:"failure_mode"`
	Markers      []Marker    `json:"markers,omitempty"`
}

// RunOptions carries per-run wiring. Every field is optional except where an
// agent documents otherwise; nil means the facility is disabled for the run.
type RunOptions struct {
	// LoggingDir receives per-episode prompt/response dumps when set.
	LoggingDir string

	// Recorder captures the step transcript.
	Recorder *trajectory.Recorder

	// Memory enables the memory arm: the agent loads its summary before the
	// task and folds the transcript back in afterwards.
	Memory     *memory.Store
	Summarizer *memory.Summarizer
}

// Agent solves a single task against a terminal session. Implementations
// must be safe to reuse across sequential tasks; cross-task state lives in
// the memory store, never in the struct.
type Agent interface {
	Name() string
	PerformTask(ctx context.Context, task Task, session *terminal.Session, opts RunOptions) (*Result, error)
}

// Deps holds the shared dependencies a factory needs to build an agent.
type Deps struct {
	Client         llm.Client
	MaxEpisodes    int
	CommandTimeout time.Duration
}

func (d Deps) maxEpisodes() int {
	if d.MaxEpisodes > 0 {
		return d.MaxEpisodes
	}
	return 50
}

func (d Deps) commandTimeout() time.Duration {
	if d.CommandTimeout > 0 {
		return d.CommandTimeout
	}
	return 60 * time.Second
}
