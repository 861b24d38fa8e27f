package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/music-brain88/Azure-Credit-Burner/internal/domain"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.General.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want 8", cfg.General.Concurrency)
	}
	if cfg.Fetch.MaxFiles != 50 {
		t.Errorf("MaxFiles = %d, want 50", cfg.Fetch.MaxFiles)
	}
	if cfg.Retry.MaxBackoff != 60*time.Second {
		t.Errorf("MaxBackoff = %v, want 60s", cfg.Retry.MaxBackoff)
	}
	if len(cfg.Analysis.Categories) != 7 {
		t.Errorf("Categories = %d, want 7", len(cfg.Analysis.Categories))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.General.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want default 8", cfg.General.Concurrency)
	}
}

func TestLoad_File(t *testing.T) {
	content := `
[general]
output_dir = "out"
concurrency = 4

[analysis]
categories = ["security"]
turns = 3

[[endpoints]]
name = "east-us"
key = "k1"
base_url = "https://eastus.example.com"

[[repositories]]
owner = "rust-lang"
name = "rust"
max_files = 10
`
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.General.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", cfg.General.Concurrency)
	}
	// Untouched sections keep defaults
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want default 5", cfg.Retry.MaxAttempts)
	}
	if len(cfg.Endpoints) != 1 || cfg.Endpoints[0].Key != "k1" {
		t.Errorf("Endpoints = %+v", cfg.Endpoints)
	}
	repos := cfg.DomainRepositories()
	if len(repos) != 1 || repos[0].FullName() != "rust-lang/rust" {
		t.Errorf("Repositories = %+v", repos)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestLoad_EndpointEnvFallback(t *testing.T) {
	t.Setenv("AZURE_OPENAI_KEY_JAPAN_EAST", "secret")
	t.Setenv("AZURE_OPENAI_ENDPOINT_JAPAN_EAST", "https://japaneast.example.com")

	content := `
[[endpoints]]
name = "japan-east"
`
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	eps := cfg.DomainEndpoints()
	if len(eps) != 1 {
		t.Fatalf("DomainEndpoints() = %d entries, want 1", len(eps))
	}
	if eps[0].Key != "secret" || eps[0].BaseURL != "https://japaneast.example.com" {
		t.Errorf("endpoint = %+v", eps[0])
	}
}

func TestDomainEndpoints_DropsUnresolved(t *testing.T) {
	cfg := Default()
	cfg.Endpoints = []EndpointConfig{
		{Name: "east-us", Key: "k", BaseURL: "https://eastus.example.com"},
		{Name: "ghost"},
	}
	eps := cfg.DomainEndpoints()
	if len(eps) != 1 || eps[0].Name != "east-us" {
		t.Errorf("DomainEndpoints() = %+v, want only east-us", eps)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.General.Concurrency = 0 }},
		{"zero turns", func(c *Config) { c.Analysis.Turns = 0 }},
		{"no categories", func(c *Config) { c.Analysis.Categories = nil }},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"nameless endpoint", func(c *Config) { c.Endpoints = []EndpointConfig{{Key: "k"}} }},
		{"bad repository", func(c *Config) { c.Repositories = []RepositoryConfig{{Owner: "a"}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !domain.IsConfig(err) {
				t.Errorf("Validate() error is not a ConfigError: %v", err)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := ExpandPath("~/x"); got != filepath.Join(home, "x") {
		t.Errorf("ExpandPath(~/x) = %q", got)
	}
	if got := ExpandPath("/abs/x"); got != "/abs/x" {
		t.Errorf("ExpandPath(/abs/x) = %q", got)
	}
}
