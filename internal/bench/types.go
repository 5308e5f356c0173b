// Package bench loads terminal task datasets, runs agents against them in
// isolated scratch directories, grades the outcomes, and aggregates the
// results into per-agent and per-arm metrics.
package bench

import (
	"time"

	"membench/internal/agent"
)

// Arm distinguishes the two experimental conditions under comparison.
type Arm string

const (
	ArmStateless Arm = "stateless"
	ArmMemory    Arm = "memory"
)

// TrialStatus is the terminal state of one trial.
type TrialStatus string

const (
	StatusCompleted TrialStatus = "completed"
	StatusFailed    TrialStatus = "failed"
	StatusTimeout   TrialStatus = "timeout"
)

// AgentArm pairs an agent with the arm it runs under and the run wiring that
// implements that arm (memory store and summarizer for the memory arm, nil
// for stateless).
type AgentArm struct {
	Agent   agent.Agent
	Arm     Arm
	Options agent.RunOptions
}

// Label identifies the arm in results and reports.
func (a AgentArm) Label() string {
	return a.Agent.Name() + "/" + string(a.Arm)
}

// TrialResult records everything observed about one (task, agent, arm, trial)
// cell. Exactly one result is emitted per scheduled trial.
type TrialResult struct {
	TrialID   string      `json:"trial_id"`
	TaskID    string      `json:"task_id"`
	AgentName string      `json:"agent_name"`
	Arm       Arm         `json:"arm"`
	Trial     int         `json:"trial"`
	Status    TrialStatus `json:"status"`

	Passed   bool    `json:"passed"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`

	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	Episodes     int    `json:"episodes"`
	FailureMode  string `json:"failure_mode,omitempty"`
	Error        string `json:"error,omitempty"`

	TrajectoryPath string `json:"trajectory_path,omitempty"`
	VerifyOutput   string `json:"verify_output,omitempty"`
}

// RunReport is the full output of one harness run.
type RunReport struct {
	RunID      string        `json:"run_id"`
	Model      string        `json:"model"`
	Dataset    string        `json:"dataset"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Results    []TrialResult `json:"results"`
	Summary    *Summary      `json:"summary"`
}
