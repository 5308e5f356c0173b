package bench

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"membench/internal/agent"
	"membench/internal/logging"
	"membench/internal/terminal"
	"membench/internal/trajectory"
)

// RunnerConfig configures trial execution.
type RunnerConfig struct {
	NumWorkers     int
	Trials         int
	TaskTimeout    time.Duration
	CommandTimeout time.Duration
	OutputDir      string // per-trial artifacts (trajectories, episode logs)
	ScratchDir     string // parent for scratch workdirs; empty uses the OS temp dir
	FailFast       bool
}

func (c RunnerConfig) normalized() RunnerConfig {
	if c.NumWorkers <= 0 {
		c.NumWorkers = 1
	}
	if c.NumWorkers > 20 {
		c.NumWorkers = 20
	}
	if c.Trials <= 0 {
		c.Trials = 1
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = 10 * time.Minute
	}
	return c
}

// Runner executes the (task x arm x trial) grid on a bounded worker pool.
type Runner struct {
	cfg    RunnerConfig
	grader *Grader
	logger logging.Logger

	completed atomic.Int32
	failed    atomic.Int32
}

// NewRunner builds a runner.
func NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{
		cfg:    cfg.normalized(),
		grader: NewGrader(),
		logger: logging.NewComponentLogger("RUNNER"),
	}
}

type trialSpec struct {
	task  Task
	arm   AgentArm
	trial int
}

// Run executes every trial and returns one result per scheduled trial, in
// completion order. With FailFast set, outstanding trials are cancelled
// after the first failure; cancelled trials still emit timeout results.
func (r *Runner) Run(ctx context.Context, tasks []Task, arms []AgentArm) ([]TrialResult, error) {
	if len(tasks) == 0 || len(arms) == 0 {
		return nil, fmt.Errorf("nothing to run: %d tasks, %d arms", len(tasks), len(arms))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	specs := make([]trialSpec, 0, len(tasks)*len(arms)*r.cfg.Trials)
	for _, task := range tasks {
		for _, arm := range arms {
			for trial := 1; trial <= r.cfg.Trials; trial++ {
				specs = append(specs, trialSpec{task: task, arm: arm, trial: trial})
			}
		}
	}

	jobs := make(chan trialSpec)
	resultCh := make(chan TrialResult, len(specs))

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.NumWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for spec := range jobs {
				result := r.runTrial(runCtx, workerID, spec)
				if result.Status == StatusCompleted {
					r.completed.Add(1)
				} else {
					r.failed.Add(1)
					if r.cfg.FailFast {
						cancel()
					}
				}
				resultCh <- result
			}
		}(i)
	}

	go func() {
		defer close(jobs)
		for _, spec := range specs {
			select {
			case jobs <- spec:
			case <-runCtx.Done():
				// Drain remaining specs as cancelled results so every
				// scheduled trial is accounted for.
				resultCh <- cancelledResult(spec)
			}
		}
	}()

	results := make([]TrialResult, 0, len(specs))
	for range specs {
		results = append(results, <-resultCh)
	}
	wg.Wait()

	r.logger.Info("Run finished: %d completed, %d failed/timeout", r.completed.Load(), r.failed.Load())
	return results, nil
}

func (r *Runner) runTrial(ctx context.Context, workerID int, spec trialSpec) TrialResult {
	start := time.Now()
	result := TrialResult{
		TrialID:   uuid.NewString(),
		TaskID:    spec.task.ID,
		AgentName: spec.arm.Agent.Name(),
		Arm:       spec.arm.Arm,
		Trial:     spec.trial,
		StartTime: start,
		Status:    StatusFailed,
		MaxScore:  1,
	}
	defer func() {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(start)
	}()

	r.logger.Info("Worker %d: task %s agent %s arm %s trial %d", workerID, spec.task.ID, result.AgentName, result.Arm, spec.trial)

	workdir, err := r.grader.Stage(&spec.task, r.cfg.ScratchDir)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer os.RemoveAll(workdir)

	if err := r.grader.Setup(ctx, &spec.task, workdir); err != nil {
		result.Error = err.Error()
		return result
	}

	session, err := terminal.NewSession(terminal.Options{
		WorkDir:        workdir,
		DefaultTimeout: r.cfg.CommandTimeout,
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	opts := spec.arm.Options
	if r.cfg.OutputDir != "" {
		trialDir := filepath.Join(r.cfg.OutputDir, spec.task.ID, sanitizeID(spec.arm.Label()), fmt.Sprintf("trial-%d", spec.trial))
		opts.LoggingDir = trialDir

		rec, err := trajectory.NewRecorder(filepath.Join(trialDir, "trajectory.jsonl"))
		if err != nil {
			r.logger.Warn("Trajectory recorder unavailable for %s: %v", result.TrialID, err)
		} else {
			opts.Recorder = rec
			result.TrajectoryPath = filepath.Join(trialDir, "trajectory.jsonl")
			defer rec.Close()
		}
	}
	if opts.Recorder == nil {
		opts.Recorder = trajectory.NewMemoryRecorder()
	}

	timeout := r.cfg.TaskTimeout
	if spec.task.TimeoutSec > 0 {
		timeout = time.Duration(spec.task.TimeoutSec) * time.Second
	}
	trialCtx, cancel := context.WithTimeout(ctx, timeout)
	agentResult, agentErr := spec.arm.Agent.PerformTask(trialCtx, agent.Task{ID: spec.task.ID, Instruction: spec.task.Instruction}, session, opts)
	timedOut := trialCtx.Err() == context.DeadlineExceeded
	cancel()

	if agentResult != nil {
		result.InputTokens = agentResult.InputTokens
		result.OutputTokens = agentResult.OutputTokens
		result.Episodes = agentResult.Episodes
		result.FailureMode = string(agentResult.FailureMode)
	}
	if agentErr != nil {
		result.Error = agentErr.Error()
		r.logger.Warn("Agent %s failed on %s: %v", result.AgentName, spec.task.ID, agentErr)
	}

	// Grade regardless of how the agent fared; partial progress counts.
	grade, gradeErr := r.grader.Grade(ctx, &spec.task, workdir)
	result.Passed = grade.Passed
	result.Score = grade.Score
	result.MaxScore = grade.MaxScore
	result.VerifyOutput = grade.Output
	if gradeErr != nil {
		if result.Error == "" {
			result.Error = gradeErr.Error()
		}
		return result
	}

	switch {
	case timedOut:
		result.Status = StatusTimeout
	case agentErr != nil:
		result.Status = StatusFailed
	default:
		result.Status = StatusCompleted
	}
	return result
}

func cancelledResult(spec trialSpec) TrialResult {
	now := time.Now()
	return TrialResult{
		TrialID:   uuid.NewString(),
		TaskID:    spec.task.ID,
		AgentName: spec.arm.Agent.Name(),
		Arm:       spec.arm.Arm,
		Trial:     spec.trial,
		Status:    StatusTimeout,
		MaxScore:  1,
		StartTime: now,
		EndTime:   now,
		Error:     "run cancelled before trial started",
	}
}
