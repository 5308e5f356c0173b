package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"membench/internal/llm"
	"membench/internal/logging"
	"membench/internal/terminal"
	"membench/internal/trajectory"
)

const toolcallSystemPrompt = `You are a skilled developer working in a command-line environment. Solve the
given task by calling the available tools. Run commands to inspect the
environment before acting, verify your work before finishing, and use
take_note to record anything worth remembering. When the task is done,
respond with a short confirmation instead of another tool call.`

// ToolCall drives the task through native LLM tool calling: the model sees
// tool results as conversation turns and decides when it is finished by
// replying without a tool call.
type ToolCall struct {
	client         llm.Client
	maxEpisodes    int
	commandTimeout time.Duration
	logger         logging.Logger
}

// NewToolCall builds the tool-calling agent.
func NewToolCall(deps Deps) (*ToolCall, error) {
	if deps.Client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	return &ToolCall{
		client:         deps.Client,
		maxEpisodes:    deps.maxEpisodes(),
		commandTimeout: deps.commandTimeout(),
		logger:         logging.NewComponentLogger("TOOLCALL"),
	}, nil
}

func (a *ToolCall) Name() string { return "toolcall" }

func (a *ToolCall) tools() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        "run_terminal_command",
			Description: "Execute a shell command in the task environment and return its output.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"command":     map[string]any{"type": "string", "description": "Shell command to run"},
					"timeout_sec": map[string]any{"type": "number", "description": "Seconds to wait before giving up"},
				},
				"required": []string{"command"},
			},
		},
		{
			Name:        "take_note",
			Description: "Record a note about the environment or approach for future reference.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"content": map[string]any{"type": "string", "description": "Note content"},
				},
				"required": []string{"content"},
			},
		},
	}
}

func (a *ToolCall) PerformTask(ctx context.Context, task Task, session *terminal.Session, opts RunOptions) (*Result, error) {
	start := time.Now()
	result := &Result{FailureMode: FailureEpisodeLimit}

	system := toolcallSystemPrompt
	if summary := loadSummary(a.Name(), opts); summary != "" {
		system += "\n\nNotes from your previous tasks:\n" + summary
	}

	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: task.Instruction},
	}
	recordStep(opts.Recorder, trajectory.StepPrompt, 1, task.Instruction)

	for episode := 1; episode <= a.maxEpisodes; episode++ {
		result.Episodes = episode

		resp, err := a.client.Complete(ctx, llm.CompletionRequest{
			Messages: messages,
			Tools:    a.tools(),
		})
		if err != nil {
			result.FailureMode = FailureLLMError
			return result, fmt.Errorf("episode %d: %w", episode, err)
		}
		result.InputTokens += resp.Usage.PromptTokens
		result.OutputTokens += resp.Usage.CompletionTokens

		if len(resp.ToolCalls) == 0 {
			recordStep(opts.Recorder, trajectory.StepResponse, episode, resp.Content)
			result.FailureMode = FailureNone
			break
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			output := a.dispatch(ctx, episode, call, session, opts)
			result.Markers = append(result.Markers, Marker{
				Offset: time.Since(start),
				Text:   fmt.Sprintf("Called tool: %s with args: %s", call.Name, compactArgs(call.Arguments)),
			})
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    output,
				ToolCallID: call.ID,
			})
		}
	}

	updateMemory(ctx, a.Name(), task, opts, a.logger)
	return result, nil
}

func (a *ToolCall) dispatch(ctx context.Context, episode int, call llm.ToolCall, session *terminal.Session, opts RunOptions) string {
	switch call.Name {
	case "run_terminal_command":
		command, _ := call.Arguments["command"].(string)
		if strings.TrimSpace(command) == "" {
			return "error: missing 'command' argument"
		}
		timeout := a.commandTimeout
		if sec, ok := call.Arguments["timeout_sec"].(float64); ok && sec > 0 {
			timeout = time.Duration(sec * float64(time.Second))
		}
		exec, err := session.Run(ctx, command, timeout)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		recordCommand(opts.Recorder, episode, exec)
		return formatExecution(exec)

	case "take_note":
		content, _ := call.Arguments["content"].(string)
		if strings.TrimSpace(content) == "" {
			return "error: missing 'content' argument"
		}
		recordStep(opts.Recorder, trajectory.StepNote, episode, content)
		if opts.Memory != nil {
			if err := opts.Memory.AppendHistory(a.Name(), "Note", content); err != nil {
				a.logger.Warn("Note persistence failed: %v", err)
			}
		}
		return "noted"

	default:
		return fmt.Sprintf("error: unknown tool %q", call.Name)
	}
}

func formatExecution(exec terminal.Execution) string {
	var b strings.Builder
	if exec.Stdout != "" {
		b.WriteString(exec.Stdout)
	}
	if exec.Stderr != "" {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(exec.Stderr)
	}
	if exec.TimedOut {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[command timed out after %s]", exec.Duration.Round(time.Second))
	} else if exec.ExitCode != 0 {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[exit code %d]", exec.ExitCode)
	}
	if b.Len() == 0 {
		return "command completed with no output"
	}
	return b.String()
}

func compactArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	if len(data) > 200 {
		return string(data[:200]) + "..."
	}
	return string(data)
}
