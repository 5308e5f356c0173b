package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	mberrors "membench/internal/errors"
	"membench/internal/llm"
	"membench/internal/logging"
	"membench/internal/terminal"
	"membench/internal/trajectory"
)

const episodicSystemPrompt = `You are a helpful AI assistant that helps users complete terminal tasks by generating appropriate shell commands.

You will be given:
1. A task instruction describing what needs to be accomplished
2. The current state of the terminal

Your job is to:
1. Analyze the current terminal state
2. Determine what commands need to be executed to complete or progress toward the task
3. Provide those commands in the specified JSON format

Important guidelines:
- Use simple, reliable commands when possible
- Be careful with file operations and permissions
- Check command results before marking task as complete
- Break complex tasks into smaller steps

Respond ONLY in valid JSON format matching the schema.`

const commandBatchSchema = `{
  "state_analysis": "Description of the current state of the terminal",
  "explanation": "Brief explanation of what these commands will do",
  "commands": [
    {
      "keystrokes": "Keystrokes to execute in the terminal. Modifier keys (e.g. C-c) must be sent as their own commands.",
      "is_blocking": "Whether to wait for and return the terminal output after executing these keystrokes.",
      "timeout_sec": "The number of expected seconds to wait for the command to complete."
    }
  ],
  "is_task_complete": "Whether the task is complete following the execution of these commands. Check that the last command worked before saying you're done."
}`

// Command is one shell interaction inside a batch.
type Command struct {
	Keystrokes string  `json:"keystrokes"`
	IsBlocking bool    `json:"is_blocking"`
	TimeoutSec float64 `json:"timeout_sec"`
}

// CommandBatch is the structured response the episodic agent expects from
// the model each episode.
type CommandBatch struct {
	StateAnalysis  string    `json:"state_analysis"`
	Explanation    string    `json:"explanation"`
	Commands       []Command `json:"commands"`
	IsTaskComplete bool      `json:"is_task_complete"`
}

// Episodic runs an observe-act loop: each episode it shows the model the
// terminal pane, executes the returned command batch, and repeats until the
// model declares completion or the episode budget runs out.
type Episodic struct {
	client         llm.Client
	maxEpisodes    int
	commandTimeout time.Duration
	retryConfig    mberrors.RetryConfig
	logger         logging.Logger
}

// NewEpisodic builds the episodic agent.
func NewEpisodic(deps Deps) (*Episodic, error) {
	if deps.Client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	return &Episodic{
		client:         deps.Client,
		maxEpisodes:    deps.maxEpisodes(),
		commandTimeout: deps.commandTimeout(),
		retryConfig:    mberrors.DefaultRetryConfig(),
		logger:         logging.NewComponentLogger("EPISODIC"),
	}, nil
}

func (a *Episodic) Name() string { return "episodic" }

func (a *Episodic) PerformTask(ctx context.Context, task Task, session *terminal.Session, opts RunOptions) (*Result, error) {
	start := time.Now()
	result := &Result{FailureMode: FailureEpisodeLimit}

	system := episodicSystemPrompt
	if summary := loadSummary(a.Name(), opts); summary != "" {
		system += "\n\nNotes from your previous tasks:\n" + summary
	}

	prompt := fmt.Sprintf("Task: %s\n\nCurrent terminal state:\n%s\n\n"+
		"Please analyze the current state and provide the next commands to execute in JSON format according to this schema:\n%s",
		task.Instruction, session.Pane(50), commandBatchSchema)

	for episode := 1; episode <= a.maxEpisodes; episode++ {
		result.Episodes = episode
		recordStep(opts.Recorder, trajectory.StepPrompt, episode, prompt)

		batch, usage, err := a.requestBatch(ctx, episode, system, prompt, opts)
		result.InputTokens += usage.PromptTokens
		result.OutputTokens += usage.CompletionTokens
		if err != nil {
			if mberrors.IsPermanent(err) || !isParseFailure(err) {
				result.FailureMode = FailureLLMError
			} else {
				result.FailureMode = FailureParseError
			}
			return result, fmt.Errorf("episode %d: %w", episode, err)
		}

		marker, _ := json.Marshal(batch)
		session.Marker(fmt.Sprintf("episode %d: %s", episode, batch.Explanation))
		result.Markers = append(result.Markers, Marker{Offset: time.Since(start), Text: string(marker)})
		recordStep(opts.Recorder, trajectory.StepResponse, episode, string(marker))

		timedOut, pane := a.executeBatch(ctx, episode, batch.Commands, session, opts)

		if batch.IsTaskComplete {
			result.FailureMode = FailureNone
			break
		}

		if timedOut {
			prompt = fmt.Sprintf("The last command timed out.\n\nCurrent terminal state:\n%s\n\nPlease continue with the task.", pane)
		} else {
			prompt = fmt.Sprintf("Current terminal state:\n%s\n\nPlease continue with the task.", pane)
		}
	}

	updateMemory(ctx, a.Name(), task, opts, a.logger)
	return result, nil
}

// requestBatch asks the model for the next command batch, retrying transient
// failures. Token usage is returned even on failure so callers can account
// for wasted attempts.
func (a *Episodic) requestBatch(ctx context.Context, episode int, system, prompt string, opts RunOptions) (*CommandBatch, llm.TokenUsage, error) {
	var usage llm.TokenUsage

	writeEpisodeFile(opts.LoggingDir, episode, "prompt.txt", prompt)

	batch, err := mberrors.RetryWithResult(ctx, a.retryConfig, func(ctx context.Context) (*CommandBatch, error) {
		resp, err := a.client.Complete(ctx, llm.CompletionRequest{
			Messages: []llm.Message{
				{Role: "system", Content: system},
				{Role: "user", Content: prompt},
			},
			JSONMode: true,
		})
		if err != nil {
			return nil, err
		}
		usage.Add(resp.Usage)

		writeEpisodeFile(opts.LoggingDir, episode, "response.json", resp.Content)

		parsed, err := parseCommandBatch(resp.Content)
		if err != nil {
			// A malformed response is worth one more roll of the dice.
			return nil, mberrors.NewTransientError(err, "The response was not valid JSON for the command schema.")
		}
		return parsed, nil
	}, a.logger)

	return batch, usage, err
}

// executeBatch runs each command in order. A command timeout stops the batch
// and returns the pane so the model can observe what happened.
func (a *Episodic) executeBatch(ctx context.Context, episode int, commands []Command, session *terminal.Session, opts RunOptions) (timedOut bool, pane string) {
	for _, cmd := range commands {
		timeout := time.Duration(cmd.TimeoutSec * float64(time.Second))
		if timeout <= 0 {
			timeout = a.commandTimeout
		}

		exec, err := session.SendKeystrokes(ctx, cmd.Keystrokes, timeout)
		if err != nil {
			a.logger.Warn("Episode %d command rejected: %v", episode, err)
			continue
		}
		recordCommand(opts.Recorder, episode, exec)

		if exec.TimedOut {
			return true, session.Pane(50)
		}
	}
	return false, session.Pane(50)
}

// errMalformedBatch marks responses that could not be decoded into a
// CommandBatch, surviving the retry and transient-error wrapping so the
// failure mode can be classified after exhaustion.
var errMalformedBatch = errors.New("malformed command batch")

// parseCommandBatch decodes the model's JSON, repairing common damage
// (markdown fences, trailing commas, single quotes) before giving up.
func parseCommandBatch(raw string) (*CommandBatch, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var batch CommandBatch
	if err := json.Unmarshal([]byte(cleaned), &batch); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(cleaned)
		if repairErr != nil {
			return nil, fmt.Errorf("%w: %v", errMalformedBatch, err)
		}
		if err := json.Unmarshal([]byte(repaired), &batch); err != nil {
			return nil, fmt.Errorf("%w after repair: %v", errMalformedBatch, err)
		}
	}
	return &batch, nil
}

func isParseFailure(err error) bool {
	return errors.Is(err, errMalformedBatch)
}

// writeEpisodeFile dumps a debugging artifact under
// <loggingDir>/episode-N/<name>. Logging failures are ignored.
func writeEpisodeFile(loggingDir string, episode int, name, content string) {
	if loggingDir == "" {
		return
	}
	dir := filepath.Join(loggingDir, fmt.Sprintf("episode-%d", episode))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)
}
