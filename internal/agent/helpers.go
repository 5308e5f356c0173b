package agent

import (
	"context"

	"membench/internal/logging"
	"membench/internal/terminal"
	"membench/internal/trajectory"
)

// loadSummary fetches the agent's rolling memory when the memory arm is
// enabled. A missing or unreadable summary degrades to stateless behavior.
func loadSummary(agentName string, opts RunOptions) string {
	if opts.Memory == nil {
		return ""
	}
	summary, err := opts.Memory.LoadSummary(agentName)
	if err != nil {
		logging.GetLogger().Warn("Failed to load summary for %s: %v", agentName, err)
		return ""
	}
	return summary
}

// updateMemory folds the run transcript into the agent's summary. Failures
// are logged and swallowed: memory upkeep never fails a task.
func updateMemory(ctx context.Context, agentName string, task Task, opts RunOptions, logger logging.Logger) {
	if opts.Summarizer == nil || opts.Recorder == nil {
		return
	}
	if err := opts.Summarizer.Update(ctx, agentName, task.ID, opts.Recorder.Transcript()); err != nil {
		logging.OrNop(logger).Warn("Summary update failed for %s: %v", agentName, err)
	}
}

func recordStep(r *trajectory.Recorder, kind trajectory.StepKind, episode int, content string) {
	if r == nil {
		return
	}
	if err := r.Record(kind, episode, content); err != nil {
		logging.GetLogger().Warn("Trajectory record failed: %v", err)
	}
}

func recordCommand(r *trajectory.Recorder, episode int, exec terminal.Execution) {
	if r == nil {
		return
	}
	output := exec.Stdout
	if exec.Stderr != "" {
		if output != "" {
			output += "\n"
		}
		output += exec.Stderr
	}
	if err := r.RecordCommand(episode, exec.Command, output, exec.ExitCode); err != nil {
		logging.GetLogger().Warn("Trajectory record failed: %v", err)
	}
}
