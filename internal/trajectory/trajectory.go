// Package trajectory records agent step transcripts as JSONL files, one step
// per line, so runs can be replayed and audited after the fact.
package trajectory

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// StepKind labels what a step captures.
type StepKind string

const (
	StepPrompt      StepKind = "prompt"
	StepResponse    StepKind = "response"
	StepCommand     StepKind = "command"
	StepObservation StepKind = "observation"
	StepNote        StepKind = "note"
)

// Step is one line of a trajectory.
type Step struct {
	Index     int       `json:"index"`
	Kind      StepKind  `json:"kind"`
	Episode   int       `json:"episode,omitempty"`
	Content   string    `json:"content"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Recorder appends steps to a JSONL file and keeps them in memory for
// transcript rendering.
type Recorder struct {
	mu    sync.Mutex
	file  *os.File
	w     *bufio.Writer
	steps []Step
	index int
}

// NewRecorder creates (or truncates) path and returns a recorder writing to
// it. Parent directories are created as needed.
func NewRecorder(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create trajectory dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trajectory file: %w", err)
	}
	return &Recorder{file: f, w: bufio.NewWriter(f)}, nil
}

// NewMemoryRecorder returns a recorder that keeps steps in memory only.
func NewMemoryRecorder() *Recorder {
	return &Recorder{}
}

// Record appends one step. The step index and timestamp are assigned here.
func (r *Recorder) Record(kind StepKind, episode int, content string) error {
	return r.record(Step{Kind: kind, Episode: episode, Content: content})
}

// RecordCommand appends a command step together with its observed result.
func (r *Recorder) RecordCommand(episode int, command, output string, exitCode int) error {
	if err := r.record(Step{Kind: StepCommand, Episode: episode, Content: command, ExitCode: &exitCode}); err != nil {
		return err
	}
	return r.record(Step{Kind: StepObservation, Episode: episode, Content: output})
}

func (r *Recorder) record(step Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	step.Index = r.index
	step.Timestamp = time.Now()
	r.index++
	r.steps = append(r.steps, step)

	if r.w == nil {
		return nil
	}
	line, err := json.Marshal(step)
	if err != nil {
		return fmt.Errorf("marshal step: %w", err)
	}
	if _, err := r.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write step: %w", err)
	}
	return nil
}

// Steps returns a copy of all recorded steps.
func (r *Recorder) Steps() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Step, len(r.steps))
	copy(out, r.steps)
	return out
}

// Transcript renders the steps as plain text suitable for summarization.
func (r *Recorder) Transcript() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	for _, s := range r.steps {
		switch s.Kind {
		case StepCommand:
			exit := ""
			if s.ExitCode != nil {
				exit = fmt.Sprintf(" [exit %d]", *s.ExitCode)
			}
			fmt.Fprintf(&b, "$ %s%s\n", s.Content, exit)
		case StepObservation:
			if s.Content != "" {
				b.WriteString(s.Content)
				b.WriteByte('\n')
			}
		case StepNote:
			fmt.Fprintf(&b, "note: %s\n", s.Content)
		case StepResponse:
			fmt.Fprintf(&b, "agent: %s\n", s.Content)
		}
	}
	return b.String()
}

// Close flushes and closes the underlying file, if any.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.w != nil {
		if err := r.w.Flush(); err != nil {
			return err
		}
		r.w = nil
	}
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}

// Load reads a JSONL trajectory file back into steps.
func Load(path string) ([]Step, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var steps []Step
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var s Step
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			return nil, fmt.Errorf("parse trajectory line %d: %w", len(steps)+1, err)
		}
		steps = append(steps, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return steps, nil
}
