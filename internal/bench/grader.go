package bench

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"membench/internal/logging"
)

const (
	defaultSetupTimeout  = 2 * time.Minute
	defaultVerifyTimeout = 2 * time.Minute
)

// scorePattern matches an optional partial-credit line on verify stdout,
// e.g. "score: 3/5".
var scorePattern = regexp.MustCompile(`(?m)^score:\s*(\d+(?:\.\d+)?)\s*/\s*(\d+(?:\.\d+)?)\s*$`)

// GradeResult is the grader's verdict for one trial.
type GradeResult struct {
	Passed   bool
	Score    float64
	MaxScore float64
	Output   string
}

// Grader stages task directories into scratch workdirs and runs their setup
// and verify scripts.
type Grader struct {
	logger logging.Logger
}

// NewGrader builds a grader.
func NewGrader() *Grader {
	return &Grader{logger: logging.NewComponentLogger("GRADER")}
}

// Stage copies the task directory into a fresh scratch directory under
// parent and returns the scratch path. The agent works against the copy so a
// destructive run never damages the dataset.
func (g *Grader) Stage(task *Task, parent string) (string, error) {
	workdir, err := os.MkdirTemp(parent, "task-"+sanitizeID(task.ID)+"-*")
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	if err := copyTree(task.Dir, workdir); err != nil {
		os.RemoveAll(workdir)
		return "", fmt.Errorf("stage task %s: %w", task.ID, err)
	}
	return workdir, nil
}

// Setup runs the task's setup script in the workdir, if it has one.
func (g *Grader) Setup(ctx context.Context, task *Task, workdir string) error {
	if task.Setup == "" {
		return nil
	}
	out, exitCode, err := g.runScript(ctx, workdir, task.Setup, defaultSetupTimeout)
	if err != nil {
		return fmt.Errorf("setup for %s: %w", task.ID, err)
	}
	if exitCode != 0 {
		return fmt.Errorf("setup for %s exited %d: %s", task.ID, exitCode, tail(out, 500))
	}
	return nil
}

// Grade runs the verify script against the workdir. Exit 0 passes. When the
// script prints a "score: X/Y" line, that partial credit is recorded whether
// or not the trial passed; otherwise the score is 1/1 on pass and 0/1 on
// fail. Grade runs even when the agent errored, so partial progress counts.
func (g *Grader) Grade(ctx context.Context, task *Task, workdir string) (GradeResult, error) {
	out, exitCode, err := g.runScript(ctx, workdir, task.Verify, defaultVerifyTimeout)
	if err != nil {
		return GradeResult{MaxScore: 1, Output: out}, fmt.Errorf("verify for %s: %w", task.ID, err)
	}

	result := GradeResult{
		Passed: exitCode == 0,
		Output: tail(out, 2000),
	}

	if m := scorePattern.FindStringSubmatch(out); m != nil {
		result.Score, _ = strconv.ParseFloat(m[1], 64)
		result.MaxScore, _ = strconv.ParseFloat(m[2], 64)
	} else {
		result.MaxScore = 1
		if result.Passed {
			result.Score = 1
		}
	}

	g.logger.Debug("Graded %s: passed=%v score=%.1f/%.1f", task.ID, result.Passed, result.Score, result.MaxScore)
	return result, nil
}

// runScript executes a task script with bash inside workdir. The script path
// is relative to the workdir (validated at load time).
func (g *Grader) runScript(ctx context.Context, workdir, script string, timeout time.Duration) (string, int, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "bash", script)
	cmd.Dir = workdir

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return buf.String(), -1, fmt.Errorf("script %s timed out after %s", script, timeout)
	}
	if runCtx.Err() != nil {
		return buf.String(), -1, fmt.Errorf("script %s aborted: %w", script, runCtx.Err())
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return buf.String(), exitErr.ExitCode(), nil
		}
		return buf.String(), -1, err
	}
	return buf.String(), 0, nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func sanitizeID(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			out = append(out, r)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
