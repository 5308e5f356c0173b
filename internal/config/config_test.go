package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Model.Name == "" {
		t.Fatal("default model name empty")
	}
	if cfg.Agent.MaxEpisodes != 50 {
		t.Fatalf("max episodes: %d", cfg.Agent.MaxEpisodes)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NumWorkers != Default().NumWorkers {
		t.Fatalf("workers: %d", cfg.NumWorkers)
	}
}

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("model:\n  name: custom-model\n  temperature: 0.5\nnum_workers: 5\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Name != "custom-model" {
		t.Fatalf("model: %s", cfg.Model.Name)
	}
	if cfg.Model.Temperature != 0.5 {
		t.Fatalf("temperature: %v", cfg.Model.Temperature)
	}
	if cfg.NumWorkers != 5 {
		t.Fatalf("workers: %d", cfg.NumWorkers)
	}
	// Fields the file omits keep defaults.
	if cfg.Agent.MaxEpisodes != 50 {
		t.Fatalf("max episodes: %d", cfg.Agent.MaxEpisodes)
	}
}

func TestLoadAppliesEnvOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("model:\n  name: from-file\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("MEMBENCH_MODEL", "from-env")
	t.Setenv("MEMBENCH_WORKERS", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Name != "from-env" {
		t.Fatalf("model: %s", cfg.Model.Name)
	}
	if cfg.NumWorkers != 7 {
		t.Fatalf("workers: %d", cfg.NumWorkers)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("model: [unclosed"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Model.Temperature = 3.0
	if err := cfg.Validate(); err == nil {
		t.Fatal("temperature 3.0 accepted")
	}

	cfg = Default()
	cfg.NumWorkers = 100
	if err := cfg.Validate(); err == nil {
		t.Fatal("100 workers accepted")
	}

	cfg = Default()
	cfg.Model.Name = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty model name accepted")
	}
}

func TestValidateCorrectsZeroValues(t *testing.T) {
	cfg := &Config{Model: ModelConfig{Name: "m"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.NumWorkers != 1 || cfg.Trials != 1 {
		t.Fatalf("zero values not corrected: workers=%d trials=%d", cfg.NumWorkers, cfg.Trials)
	}
	if cfg.Agent.CommandTimeout != 60 {
		t.Fatalf("command timeout: %d", cfg.Agent.CommandTimeout)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Model.Name = "saved-model"
	cfg.Trials = 3

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Model.Name != "saved-model" || loaded.Trials != 3 {
		t.Fatalf("round trip lost data: %+v", loaded)
	}
}

func TestAPIKeyResolvesFromEnv(t *testing.T) {
	cfg := Default()
	cfg.Model.APIKeyEnv = "MEMBENCH_TEST_KEY"
	t.Setenv("MEMBENCH_TEST_KEY", "sk-abc")
	if got := cfg.APIKey(); got != "sk-abc" {
		t.Fatalf("APIKey: %q", got)
	}
}
