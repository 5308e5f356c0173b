package bench

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WriteReport persists results.json and report.md under dir.
func WriteReport(dir string, report *RunReport) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "results.json"), data, 0o644); err != nil {
		return fmt.Errorf("write results.json: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "report.md"), []byte(RenderMarkdown(report)), 0o644); err != nil {
		return fmt.Errorf("write report.md: %w", err)
	}
	return nil
}

// RenderMarkdown produces the human-readable run report.
func RenderMarkdown(report *RunReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Benchmark Report\n\n")
	fmt.Fprintf(&b, "- Run: %s\n", report.RunID)
	fmt.Fprintf(&b, "- Model: %s\n", report.Model)
	fmt.Fprintf(&b, "- Dataset: %s\n", report.Dataset)
	fmt.Fprintf(&b, "- Started: %s\n", report.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Finished: %s\n", report.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Second))

	if report.Summary != nil {
		b.WriteString("## Results by arm\n\n")
		b.WriteString("| Agent | Arm | Trials | Passed | Pass rate | Mean score | Mean duration | Tokens in/out |\n")
		b.WriteString("|---|---|---|---|---|---|---|---|\n")
		for _, arm := range report.Summary.Arms {
			fmt.Fprintf(&b, "| %s | %s | %d | %d | %.1f%% | %.2f | %s | %d/%d |\n",
				arm.AgentName, arm.Arm, arm.Trials, arm.Passed,
				arm.PassRate*100, arm.MeanScore,
				arm.MeanDuration.Round(time.Second),
				arm.InputTokens, arm.OutputTokens)
		}
		b.WriteString("\n")

		if len(report.Summary.Deltas) > 0 {
			b.WriteString("## Memory vs. stateless\n\n")
			b.WriteString("| Agent | Stateless pass rate | Memory pass rate | Delta | Token delta |\n")
			b.WriteString("|---|---|---|---|---|\n")
			for _, delta := range report.Summary.Deltas {
				fmt.Fprintf(&b, "| %s | %.1f%% | %.1f%% | %+.1f%% | %+d |\n",
					delta.AgentName,
					delta.StatelessPassRate*100, delta.MemoryPassRate*100,
					delta.PassRateDelta*100, delta.TokenDelta)
			}
			b.WriteString("\n")
		}
	}

	var failures []TrialResult
	for _, res := range report.Results {
		if !res.Passed {
			failures = append(failures, res)
		}
	}
	if len(failures) > 0 {
		b.WriteString("## Failed trials\n\n")
		for _, res := range failures {
			fmt.Fprintf(&b, "- `%s` %s/%s trial %d (%s", res.TaskID, res.AgentName, res.Arm, res.Trial, res.Status)
			if res.FailureMode != "" && res.FailureMode != "none" {
				fmt.Fprintf(&b, ", %s", res.FailureMode)
			}
			b.WriteString(")")
			if res.Error != "" {
				fmt.Fprintf(&b, ": %s", firstLine(res.Error))
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 160 {
		s = s[:160] + "..."
	}
	return s
}
