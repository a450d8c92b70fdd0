package agentconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFrom_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "winagent.yaml")

	data := `poll_interval_ms: 50
sync_marker_advance_rows: 300
pipe_buffer_bytes: 131072
debug:
  - trace
  - input
show_console: true
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.PollInterval() != 50*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 50ms", cfg.PollInterval())
	}
	if cfg.SyncMarkerAdvanceRows != 300 {
		t.Errorf("SyncMarkerAdvanceRows = %d, want 300", cfg.SyncMarkerAdvanceRows)
	}
	if cfg.PipeBufferBytes != 131072 {
		t.Errorf("PipeBufferBytes = %d, want 131072", cfg.PipeBufferBytes)
	}
	if len(cfg.Debug) != 2 || cfg.Debug[0] != "trace" || cfg.Debug[1] != "input" {
		t.Errorf("Debug = %v, want [trace input]", cfg.Debug)
	}
	if !cfg.ShowConsole {
		t.Error("expected ShowConsole = true")
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if cfg.PollInterval() != 0 {
		t.Errorf("PollInterval() = %v, want 0 for an empty config", cfg.PollInterval())
	}
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "winagent.yaml")
	if err := os.WriteFile(path, []byte("{{not yaml"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected an error for invalid YAML")
	}
}

func TestLoad_NoEnvVarReturnsEmptyConfig(t *testing.T) {
	t.Setenv("WINAGENT_CONFIG", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollIntervalMillis != 0 {
		t.Errorf("expected zero-value config, got %+v", cfg)
	}
}

func TestPollInterval_ZeroMeansUnset(t *testing.T) {
	cfg := &Config{}
	if cfg.PollInterval() != 0 {
		t.Errorf("PollInterval() = %v, want 0", cfg.PollInterval())
	}
	var nilCfg *Config
	if nilCfg.PollInterval() != 0 {
		t.Errorf("nil Config.PollInterval() = %v, want 0", nilCfg.PollInterval())
	}
}
