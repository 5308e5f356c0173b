package bench

import (
	"os"
	"path/filepath"
	"testing"
)

// writeTask creates a task directory under root with the given manifest and
// scripts, returning its path.
func writeTask(t *testing.T, root, id, manifest string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "task.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

const passingManifest = `instruction: create hello.txt containing hello
verify: tests/verify.sh
tags: [files, easy]
`

func TestLoadTaskDefaultsIDToDirName(t *testing.T) {
	dir := writeTask(t, t.TempDir(), "hello-world", passingManifest, map[string]string{
		"tests/verify.sh": "#!/bin/bash\ntest -f hello.txt\n",
	})

	task, err := LoadTask(dir)
	if err != nil {
		t.Fatalf("LoadTask: %v", err)
	}
	if task.ID != "hello-world" {
		t.Fatalf("id: %q", task.ID)
	}
	if !task.HasTag("files") || task.HasTag("network") {
		t.Fatalf("tags: %v", task.Tags)
	}
	if task.Dir != dir {
		t.Fatalf("dir: %q", task.Dir)
	}
}

func TestLoadTaskRequiresInstruction(t *testing.T) {
	dir := writeTask(t, t.TempDir(), "no-instruction", "verify: v.sh\n", map[string]string{
		"v.sh": "true\n",
	})
	if _, err := LoadTask(dir); err == nil {
		t.Fatal("missing instruction accepted")
	}
}

func TestLoadTaskRequiresVerifyScriptOnDisk(t *testing.T) {
	dir := writeTask(t, t.TempDir(), "no-verify", "instruction: x\nverify: missing.sh\n", nil)
	if _, err := LoadTask(dir); err == nil {
		t.Fatal("missing verify script accepted")
	}
}

func TestLoadTaskRejectsEscapingPaths(t *testing.T) {
	dir := writeTask(t, t.TempDir(), "escape", "instruction: x\nverify: ../outside.sh\n", nil)
	if _, err := LoadTask(dir); err == nil {
		t.Fatal("path traversal in verify accepted")
	}
}

func TestLoadTaskMissingManifest(t *testing.T) {
	if _, err := LoadTask(t.TempDir()); err == nil {
		t.Fatal("missing manifest accepted")
	}
}
