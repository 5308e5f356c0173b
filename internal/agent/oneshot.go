package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"membench/internal/llm"
	"membench/internal/logging"
	"membench/internal/terminal"
	"membench/internal/trajectory"
)

const oneshotSystemPrompt = "You are a helpful assistant that executes terminal commands. " +
	"Respond with only the command to run, no explanation."

// OneShot asks the model for a single command and runs it. It is the
// stateless baseline: no episodes, no feedback, no memory unless a store is
// injected through RunOptions.
type OneShot struct {
	client         llm.Client
	commandTimeout time.Duration
	logger         logging.Logger
}

// NewOneShot builds the one-shot agent.
func NewOneShot(deps Deps) (*OneShot, error) {
	if deps.Client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	return &OneShot{
		client:         deps.Client,
		commandTimeout: deps.commandTimeout(),
		logger:         logging.NewComponentLogger("ONESHOT"),
	}, nil
}

func (a *OneShot) Name() string { return "oneshot" }

func (a *OneShot) PerformTask(ctx context.Context, task Task, session *terminal.Session, opts RunOptions) (*Result, error) {
	start := time.Now()

	system := oneshotSystemPrompt
	if summary := loadSummary(a.Name(), opts); summary != "" {
		system += "\n\nNotes from your previous tasks:\n" + summary
	}

	userPrompt := "Task: " + task.Instruction
	recordStep(opts.Recorder, trajectory.StepPrompt, 1, userPrompt)

	resp, err := a.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens: 200,
	})
	if err != nil {
		return &Result{FailureMode: FailureLLMError}, fmt.Errorf("one-shot completion: %w", err)
	}

	command := strings.TrimSpace(resp.Content)
	command = strings.TrimPrefix(command, "```bash\n")
	command = strings.TrimPrefix(command, "```sh\n")
	command = strings.TrimPrefix(command, "```\n")
	command = strings.TrimSuffix(command, "\n```")
	command = strings.TrimSpace(strings.Trim(command, "`"))

	recordStep(opts.Recorder, trajectory.StepResponse, 1, command)

	result := &Result{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Episodes:     1,
		FailureMode:  FailureNone,
	}

	if command == "" {
		result.FailureMode = FailureParseError
		return result, fmt.Errorf("model returned no command")
	}

	exec, err := session.Run(ctx, command, a.commandTimeout)
	if err != nil {
		return result, fmt.Errorf("execute command: %w", err)
	}
	recordCommand(opts.Recorder, 1, exec)
	result.Markers = append(result.Markers, Marker{Offset: time.Since(start), Text: "ran: " + command})

	updateMemory(ctx, a.Name(), task, opts, a.logger)
	return result, nil
}
