package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "marketminds/internal/errors"
)

func TestLoadCreatesTemplates(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	for _, name := range []string{"config.toml", "credentials.toml", "models.toml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected template %s: %v", name, err)
		}
	}

	if cfg.Workflow.MaxToolHops != 8 {
		t.Errorf("MaxToolHops = %d, want 8", cfg.Workflow.MaxToolHops)
	}
	if cfg.Workflow.SummarizeThreshold != 4 || cfg.Workflow.KeepMessages != 2 {
		t.Errorf("summarize policy = %d/%d, want 4/2", cfg.Workflow.SummarizeThreshold, cfg.Workflow.KeepMessages)
	}
	if cfg.News.K != 4 || cfg.News.FetchK != 10 {
		t.Errorf("news k/fetch_k = %d/%d, want 4/10", cfg.News.K, cfg.News.FetchK)
	}
	if cfg.Workflow.TurnTimeout != 2*time.Minute {
		t.Errorf("TurnTimeout = %v, want 2m", cfg.Workflow.TurnTimeout)
	}
	if cfg.Storage.DBPath != filepath.Join(dir, "data", "marketminds.db") {
		t.Errorf("DBPath = %s", cfg.Storage.DBPath)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
[workflow]
max_tool_hops = 3
extract_context = true

[news]
k = 2
fetch_k = 6
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("APCA_API_KEY_ID", "key-id")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Workflow.MaxToolHops != 3 || !cfg.Workflow.ExtractContext {
		t.Errorf("workflow = %+v", cfg.Workflow)
	}
	if cfg.News.K != 2 || cfg.News.FetchK != 6 {
		t.Errorf("news = %+v", cfg.News)
	}
	// Defaults still apply to keys the file omits.
	if cfg.Workflow.MaxSteps != 50 {
		t.Errorf("MaxSteps = %d, want 50", cfg.Workflow.MaxSteps)
	}
	if key, err := cfg.APIKey(ProviderOpenAI); err != nil || key != "sk-test" {
		t.Errorf("APIKey(openai) = %q, %v", key, err)
	}
	if cfg.Credentials.Alpaca.KeyID != "key-id" {
		t.Errorf("Alpaca.KeyID = %q", cfg.Credentials.Alpaca.KeyID)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero hops", func(c *Config) { c.Workflow.MaxToolHops = 0 }, true},
		{"fetch_k below k", func(c *Config) { c.News.FetchK = 2 }, true},
		{"lambda out of range", func(c *Config) { c.News.Lambda = 1.5 }, true},
		{"unknown provider", func(c *Config) { c.Models.Text.Provider = "llama" }, true},
		{"anthropic agent", func(c *Config) { c.Models.Agent.Provider = ProviderAnthropic }, true},
		{"anthropic text", func(c *Config) { c.Models.Text.Provider = ProviderAnthropic }, false},
		{"keep exceeds threshold", func(c *Config) { c.Workflow.KeepMessages = 9 }, true},
		{"bad checkpoints", func(c *Config) { c.Storage.Checkpoints = "redis" }, true},
		{"zero breaker failures", func(c *Config) { c.Market.BreakerFailures = 0 }, true},
		{"zero breaker cooldown", func(c *Config) { c.Market.BreakerCooldown = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !apperrors.Is(err, apperrors.ErrConfigInvalid) {
				t.Errorf("error %v should wrap ErrConfigInvalid", err)
			}
		})
	}
}

func TestAPIKeyMissing(t *testing.T) {
	cfg := Default(t.TempDir())
	if _, err := cfg.APIKey(ProviderGroq); !apperrors.Is(err, apperrors.ErrMissingCredentials) {
		t.Errorf("APIKey(groq) error = %v, want ErrMissingCredentials", err)
	}
	if _, err := cfg.APIKey("mistral"); !apperrors.Is(err, apperrors.ErrUnknownProvider) {
		t.Errorf("APIKey(mistral) error = %v, want ErrUnknownProvider", err)
	}
}

func TestMarketBreakerDefaults(t *testing.T) {
	cfg := Default(t.TempDir())
	if cfg.Market.BreakerFailures != 5 || cfg.Market.BreakerCooldown != 30*time.Second {
		t.Errorf("breaker defaults = %d / %s", cfg.Market.BreakerFailures, cfg.Market.BreakerCooldown)
	}
}

func TestCredentialSecrets(t *testing.T) {
	var c Credentials
	c.OpenAI.APIKey = "sk-test"
	c.Alpaca.SecretKey = "alpaca-secret"
	secrets := c.Secrets()
	if len(secrets) != 6 || secrets[0] != "sk-test" || secrets[5] != "alpaca-secret" {
		t.Errorf("Secrets() = %q", secrets)
	}
}
