// Package memory persists cross-task agent memory as Markdown files on disk.
// Each agent owns a directory under the store root holding a SUMMARY.md (the
// rolling summary injected into prompts) and a history/ directory of dated
// append-only logs.
package memory

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"membench/internal/logging"
)

const (
	summaryFileName = "SUMMARY.md"
	historyDirName  = "history"
)

// Store reads and writes per-agent memory files rooted at a single directory.
type Store struct {
	rootDir string
	logger  logging.Logger
}

// NewStore constructs a store rooted at dir. The directory is created lazily
// on first write.
func NewStore(dir string) *Store {
	return &Store{
		rootDir: dir,
		logger:  logging.NewComponentLogger("MEMORY"),
	}
}

// RootDir returns the configured root directory.
func (s *Store) RootDir() string {
	if s == nil {
		return ""
	}
	return s.rootDir
}

// SummaryPath returns the path of the agent's summary file.
func (s *Store) SummaryPath(agentName string) string {
	return filepath.Join(s.agentRoot(agentName), summaryFileName)
}

// LoadSummary reads the agent's rolling summary. A missing file is not an
// error: a fresh agent simply has no memory yet.
func (s *Store) LoadSummary(agentName string) (string, error) {
	if s == nil || strings.TrimSpace(s.rootDir) == "" {
		return "", fmt.Errorf("memory store not initialized")
	}
	data, err := os.ReadFile(s.SummaryPath(agentName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read summary: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveSummary replaces the agent's rolling summary atomically: the content is
// written to a temp file in the same directory and renamed into place, so a
// concurrent reader never observes a half-written summary.
func (s *Store) SaveSummary(agentName, content string) error {
	if s == nil || strings.TrimSpace(s.rootDir) == "" {
		return fmt.Errorf("memory store not initialized")
	}
	root := s.agentRoot(agentName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}

	tmp, err := os.CreateTemp(root, ".summary-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp summary: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.WriteString(tmp, strings.TrimSpace(content)+"\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("write summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close summary: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(root, summaryFileName)); err != nil {
		return fmt.Errorf("replace summary: %w", err)
	}

	s.logger.Debug("Saved summary for %s (%d bytes)", agentName, len(content))
	return nil
}

// AppendHistory appends a titled entry to the agent's dated history log.
func (s *Store) AppendHistory(agentName, title, content string) error {
	if s == nil || strings.TrimSpace(s.rootDir) == "" {
		return fmt.Errorf("memory store not initialized")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("content is required")
	}

	now := time.Now()
	dir := filepath.Join(s.agentRoot(agentName), historyDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	dateStr := now.Format("2006-01-02")
	path := filepath.Join(dir, dateStr+".md")
	if err := ensureDateHeader(path, dateStr); err != nil {
		return err
	}

	if strings.TrimSpace(title) == "" {
		title = "Entry"
	}

	var block strings.Builder
	block.WriteString(fmt.Sprintf("\n## %s - %s\n", now.Format("15:04:05"), title))
	block.WriteString(content)
	block.WriteString("\n")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(block.String()); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// LoadHistory reads the agent's history log for the given day. Missing logs
// return empty content.
func (s *Store) LoadHistory(agentName string, day time.Time) (string, error) {
	if s == nil || strings.TrimSpace(s.rootDir) == "" {
		return "", fmt.Errorf("memory store not initialized")
	}
	if day.IsZero() {
		day = time.Now()
	}
	path := filepath.Join(s.agentRoot(agentName), historyDirName, day.Format("2006-01-02")+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *Store) agentRoot(agentName string) string {
	return filepath.Join(s.rootDir, sanitizeSegment(agentName))
}

// sanitizeSegment maps an agent name onto a safe single path segment so a
// hostile or malformed name cannot escape the store root.
func sanitizeSegment(input string) string {
	if input == "" {
		return "agent"
	}
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	out := strings.Trim(b.String(), "._-")
	if out == "" {
		return "agent"
	}
	return out
}

func ensureDateHeader(path, dateStr string) error {
	info, err := os.Stat(path)
	if err == nil && info.Size() > 0 {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "# %s\n", dateStr)
	return err
}
