package config

import (
	"os"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Database.MaxBackups != 7 {
		t.Errorf("Expected MaxBackups=7, got %d", cfg.Database.MaxBackups)
	}
	if cfg.Database.BackupInterval != 24*time.Hour {
		t.Errorf("Expected BackupInterval=24h, got %v", cfg.Database.BackupInterval)
	}
	if !cfg.Database.AutoMigrate {
		t.Error("Expected AutoMigrate=true")
	}

	if !cfg.RestAPI.Enabled {
		t.Error("Expected RestAPI.Enabled=true")
	}
	if cfg.RestAPI.Port != 3002 {
		t.Errorf("Expected Port=3002, got %d", cfg.RestAPI.Port)
	}
	if cfg.RestAPI.Host != "localhost" {
		t.Errorf("Expected Host=localhost, got %s", cfg.RestAPI.Host)
	}

	if cfg.Ollama.EmbeddingModel != "nomic-embed-text" {
		t.Errorf("Expected EmbeddingModel=nomic-embed-text, got %s", cfg.Ollama.EmbeddingModel)
	}
	if cfg.Ollama.EmbeddingDim != 768 {
		t.Errorf("Expected EmbeddingDim=768, got %d", cfg.Ollama.EmbeddingDim)
	}

	for _, d := range []int{cfg.BankDefaults.Skepticism, cfg.BankDefaults.Literalism, cfg.BankDefaults.Empathy} {
		if d != 3 {
			t.Errorf("Expected bank_defaults disposition=3, got %d", d)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		expectErr bool
	}{
		{name: "valid config", modify: func(c *Config) {}, expectErr: false},
		{name: "empty database path", modify: func(c *Config) { c.Database.Path = "" }, expectErr: true},
		{name: "negative max backups", modify: func(c *Config) { c.Database.MaxBackups = -1 }, expectErr: true},
		{name: "invalid port", modify: func(c *Config) { c.RestAPI.Port = 99999 }, expectErr: true},
		{name: "empty rest api host", modify: func(c *Config) { c.RestAPI.Host = "" }, expectErr: true},
		{name: "invalid logging level", modify: func(c *Config) { c.Logging.Level = "invalid" }, expectErr: true},
		{name: "invalid logging format", modify: func(c *Config) { c.Logging.Format = "invalid" }, expectErr: true},
		{
			name: "empty ollama base url when enabled",
			modify: func(c *Config) {
				c.Ollama.Enabled = true
				c.Ollama.BaseURL = ""
			},
			expectErr: true,
		},
		{
			name: "out of range bank disposition",
			modify: func(c *Config) {
				c.BankDefaults.Skepticism = 10
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.expectErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

func TestLoadNoFileFallsBackToDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd) //nolint:errcheck
	_ = os.Chdir(tmpDir)

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.RestAPI.Port != 3002 {
		t.Errorf("expected default port 3002, got %d", cfg.RestAPI.Port)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Database.Path = tmpDir + "/nested/memories.db"

	if err := cfg.EnsureConfigDir(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if info, err := os.Stat(tmpDir + "/nested"); err != nil || !info.IsDir() {
		t.Errorf("expected nested directory to exist")
	}
}
