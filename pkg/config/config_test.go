package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults("/tmp/gsd")
	if cfg.Server.Addr != "127.0.0.1:6790" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Storage.Path != "/tmp/gsd/gsd.db" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if cfg.AI.Timeout != 8*time.Second {
		t.Errorf("AI.Timeout = %v", cfg.AI.Timeout)
	}
	if cfg.Google.AuthPort != "6789" {
		t.Errorf("Google.AuthPort = %q", cfg.Google.AuthPort)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GSD_AI_MODEL", "from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `server:
  addr: 127.0.0.1:9999
ai:
  base_url: http://localhost:11434/v1
  model: from-file
  timeout: 3s
jobs:
  summary_schedule: "30 17 * * 1-5"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.AI.BaseURL != "http://localhost:11434/v1" || cfg.AI.Timeout != 3*time.Second {
		t.Errorf("AI = %+v", cfg.AI)
	}
	if cfg.AI.Model != "from-env" {
		t.Errorf("AI.Model = %q, want the environment to win", cfg.AI.Model)
	}
	if cfg.Jobs.SummarySchedule != "30 17 * * 1-5" || cfg.Jobs.AIProbeSchedule != "@every 10m" {
		t.Errorf("Jobs = %+v", cfg.Jobs)
	}
}

func TestLoadMissingDefaultFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if want := filepath.Join(home, ".config", "gsd", "token.json"); cfg.Google.TokenFile != want {
		t.Errorf("TokenFile = %q, want %q", cfg.Google.TokenFile, want)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing explicit config file")
	}
}
