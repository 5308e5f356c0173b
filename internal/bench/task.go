package bench

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const taskManifestName = "task.yaml"

// Task describes one benchmark task directory.
type Task struct {
	ID          string   `yaml:"id" json:"id"`
	Instruction string   `yaml:"instruction" json:"instruction"`
	TimeoutSec  int      `yaml:"timeout_sec,omitempty" json:"timeout_sec,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	// Setup and Verify are script paths relative to the task directory.
	// Setup is optional; Verify is required and decides pass/fail.
	Setup  string `yaml:"setup,omitempty" json:"setup,omitempty"`
	Verify string `yaml:"verify" json:"verify"`

	// Dir is the absolute task directory, filled in by the loader.
	Dir string `yaml:"-" json:"-"`
}

// LoadTask reads and validates the task manifest in dir.
func LoadTask(dir string) (*Task, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(abs, taskManifestName))
	if err != nil {
		return nil, fmt.Errorf("read task manifest: %w", err)
	}

	var task Task
	if err := yaml.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("parse task manifest in %s: %w", dir, err)
	}

	if strings.TrimSpace(task.ID) == "" {
		task.ID = filepath.Base(abs)
	}
	task.Dir = abs

	if err := task.validate(); err != nil {
		return nil, fmt.Errorf("task %s: %w", task.ID, err)
	}
	return &task, nil
}

func (t *Task) validate() error {
	if strings.TrimSpace(t.Instruction) == "" {
		return fmt.Errorf("instruction is required")
	}
	if strings.TrimSpace(t.Verify) == "" {
		return fmt.Errorf("verify script is required")
	}
	if filepath.IsAbs(t.Verify) || strings.Contains(t.Verify, "..") {
		return fmt.Errorf("verify must be a relative path inside the task directory")
	}
	if t.Setup != "" && (filepath.IsAbs(t.Setup) || strings.Contains(t.Setup, "..")) {
		return fmt.Errorf("setup must be a relative path inside the task directory")
	}
	if _, err := os.Stat(filepath.Join(t.Dir, t.Verify)); err != nil {
		return fmt.Errorf("verify script: %w", err)
	}
	if t.Setup != "" {
		if _, err := os.Stat(filepath.Join(t.Dir, t.Setup)); err != nil {
			return fmt.Errorf("setup script: %w", err)
		}
	}
	if t.TimeoutSec < 0 {
		return fmt.Errorf("timeout_sec cannot be negative")
	}
	return nil
}

// HasTag reports whether the task carries the given tag.
func (t *Task) HasTag(tag string) bool {
	for _, have := range t.Tags {
		if have == tag {
			return true
		}
	}
	return false
}
