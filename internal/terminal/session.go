// Package terminal runs agent-issued shell commands in a sandboxed working
// directory and keeps a bounded scrollback of their output, standing in for
// the terminal pane an interactive agent would watch.
package terminal

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"membench/internal/logging"
)

const (
	defaultPaneLines      = 2000
	defaultCommandTimeout = 60 * time.Second
	maxCapturedBytes      = 256 * 1024
)

// Execution describes one completed command.
type Execution struct {
	Command  string        `json:"command"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	TimedOut bool          `json:"timed_out"`
	Duration time.Duration `json:"duration"`
}

// Options configures a session.
type Options struct {
	WorkDir        string
	Env            []string // appended to the inherited environment
	DefaultTimeout time.Duration
	PaneLines      int // scrollback bound, lines
	Logger         logging.Logger
}

// Session executes commands sequentially in a fixed working directory.
// Output is accumulated into a bounded scrollback readable via Pane. A
// command hitting its timeout is recorded in the scrollback, not surfaced as
// a harness error: agents are expected to observe the timeout and react.
type Session struct {
	mu sync.Mutex

	workDir        string
	env            []string
	defaultTimeout time.Duration
	paneLines      int

	scrollback []string
	executions []Execution
	startedAt  time.Time
	logger     logging.Logger
}

// NewSession creates a session. The working directory must already exist.
func NewSession(opts Options) (*Session, error) {
	if opts.WorkDir == "" {
		return nil, fmt.Errorf("working directory is required")
	}
	info, err := os.Stat(opts.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("working directory %s is not a directory", opts.WorkDir)
	}

	timeout := opts.DefaultTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	paneLines := opts.PaneLines
	if paneLines <= 0 {
		paneLines = defaultPaneLines
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewComponentLogger("TERMINAL")
	}

	return &Session{
		workDir:        opts.WorkDir,
		env:            append(os.Environ(), opts.Env...),
		defaultTimeout: timeout,
		paneLines:      paneLines,
		startedAt:      time.Now(),
		logger:         logger,
	}, nil
}

// WorkDir returns the session working directory.
func (s *Session) WorkDir() string {
	return s.workDir
}

// Run executes one shell command and waits for it to finish or time out.
// A timeout of zero uses the session default. The returned error covers
// harness failures only (e.g. the script could not be staged); a non-zero
// exit or a timeout is reported inside Execution.
func (s *Session) Run(ctx context.Context, command string, timeout time.Duration) (Execution, error) {
	if strings.TrimSpace(command) == "" {
		return Execution{}, fmt.Errorf("command is empty")
	}
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}

	script, err := os.CreateTemp("", "membench-cmd-*.sh")
	if err != nil {
		return Execution{}, fmt.Errorf("create command script: %w", err)
	}
	defer os.Remove(script.Name())

	if _, err := script.WriteString(command); err != nil {
		script.Close()
		return Execution{}, fmt.Errorf("write command script: %w", err)
	}
	if err := script.Close(); err != nil {
		return Execution{}, fmt.Errorf("close command script: %w", err)
	}
	if err := os.Chmod(script.Name(), 0o755); err != nil {
		return Execution{}, fmt.Errorf("chmod command script: %w", err)
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "bash", script.Name())
	cmd.Dir = s.workDir
	cmd.Env = s.env

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	result := Execution{
		Command:  command,
		Stdout:   capOutput(stdoutBuf.String()),
		Stderr:   capOutput(stderrBuf.String()),
		ExitCode: exitCode,
		TimedOut: cmdCtx.Err() == context.DeadlineExceeded,
		Duration: elapsed,
	}

	s.record(result)
	return result, nil
}

// SendKeystrokes delivers agent keystrokes. Control sequences (C-c, C-d,
// C-z) have no running foreground process in this execution model, so they
// are recorded in the scrollback and otherwise ignored. Anything else is
// treated as a command line; a trailing literal "Enter" token or newline is
// stripped before execution.
func (s *Session) SendKeystrokes(ctx context.Context, keystrokes string, timeout time.Duration) (Execution, error) {
	trimmed := strings.TrimSpace(keystrokes)
	switch trimmed {
	case "C-c", "C-d", "C-z", "":
		s.logger.Warn("Keystroke %q ignored: no foreground process to signal", trimmed)
		s.Marker(fmt.Sprintf("keystroke %q ignored (no foreground process)", trimmed))
		return Execution{Command: trimmed}, nil
	}

	command := strings.TrimSuffix(trimmed, "\n")
	if strings.HasSuffix(command, " Enter") {
		command = strings.TrimSuffix(command, " Enter")
	} else if strings.HasSuffix(command, "\nEnter") {
		command = strings.TrimSuffix(command, "\nEnter")
	}

	return s.Run(ctx, command, timeout)
}

// Pane returns the last n lines of scrollback, newest last. n <= 0 returns
// the whole (bounded) scrollback.
func (s *Session) Pane(n int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.scrollback
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// Marker appends a timestamped marker line to the scrollback. Markers let a
// reader of the pane correlate harness events with command output.
func (s *Session) Marker(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLines(fmt.Sprintf("=== [%s] %s ===", s.elapsed(), label))
}

// Executions returns a copy of every command executed so far.
func (s *Session) Executions() []Execution {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Execution, len(s.executions))
	copy(out, s.executions)
	return out
}

func (s *Session) record(e Execution) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.executions = append(s.executions, e)

	s.appendLines(fmt.Sprintf("$ %s", e.Command))
	if e.Stdout != "" {
		s.appendLines(strings.Split(e.Stdout, "\n")...)
	}
	if e.Stderr != "" {
		s.appendLines(strings.Split(e.Stderr, "\n")...)
	}
	if e.TimedOut {
		s.appendLines(fmt.Sprintf("=== [%s] command timed out after %s ===", s.elapsed(), e.Duration.Round(time.Millisecond)))
	} else if e.ExitCode != 0 {
		s.appendLines(fmt.Sprintf("[exit %d]", e.ExitCode))
	}
}

func (s *Session) appendLines(lines ...string) {
	s.scrollback = append(s.scrollback, lines...)
	if len(s.scrollback) > s.paneLines {
		s.scrollback = s.scrollback[len(s.scrollback)-s.paneLines:]
	}
}

func (s *Session) elapsed() string {
	return time.Since(s.startedAt).Round(100 * time.Millisecond).String()
}

func capOutput(out string) string {
	out = strings.TrimRight(out, "\n")
	if len(out) <= maxCapturedBytes {
		return out
	}
	return out[:maxCapturedBytes] + "\n... [output truncated]"
}
