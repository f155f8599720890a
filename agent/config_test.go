package agent

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRuntimeConfig_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := "provider: openai\nmodel: gpt-5\ntemperature: 0.5\nmax_tokens: 2048\nsystem_prompt: be terse\n"
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	cfg, err := LoadRuntimeConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != "openai" || cfg.Model != "gpt-5" {
		t.Errorf("unexpected provider/model: %+v", cfg)
	}
	if cfg.Temperature != 0.5 {
		t.Errorf("Temperature = %v, want 0.5", cfg.Temperature)
	}
	if cfg.MaxTokens != 2048 {
		t.Errorf("MaxTokens = %v, want 2048", cfg.MaxTokens)
	}
}

func TestLoadRuntimeConfig_MissingFile(t *testing.T) {
	_, err := LoadRuntimeConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadRuntimeConfig_InvalidProviderRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("provider: carrier-pigeon\n"), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	_, err := LoadRuntimeConfig(path)
	if err == nil {
		t.Fatal("expected validation error for unknown provider")
	}
}

func TestRuntimeConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RuntimeConfig
		wantErr bool
	}{
		{"defaults", DefaultRuntimeConfig(), false},
		{"temperature too high", RuntimeConfig{Temperature: 3}, true},
		{"temperature negative", RuntimeConfig{Temperature: -1}, true},
		{"negative max tokens", RuntimeConfig{MaxTokens: -1}, true},
		{"unknown provider", RuntimeConfig{Provider: "nope"}, true},
		{"known provider", RuntimeConfig{Provider: "anthropic"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRuntimeConfig_ToProviderConfig(t *testing.T) {
	maxTurns := 5
	cfg := RuntimeConfig{
		Temperature:  0.7,
		MaxTokens:    1000,
		SystemPrompt: "hello",
		MaxToolTurns: &maxTurns,
	}

	pc := cfg.ToProviderConfig()
	if pc.Temperature != 0.7 || pc.MaxTokens != 1000 || pc.SystemPrompt != "hello" {
		t.Errorf("unexpected projection: %+v", pc)
	}
	if pc.MaxToolTurns == nil || *pc.MaxToolTurns != 5 {
		t.Errorf("expected MaxToolTurns=5, got %+v", pc.MaxToolTurns)
	}
}

func TestLoadRuntimeConfigWithEnvOverrides(t *testing.T) {
	t.Setenv("AGENT_PROVIDER", "gemini")
	t.Setenv("AGENT_MODEL", "gemini-3-flash-preview")
	t.Setenv("AGENT_TEMPERATURE", "0.2")
	t.Setenv("AGENT_MAX_TOKENS", "777")

	cfg, err := LoadRuntimeConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != "gemini" {
		t.Errorf("Provider = %q, want gemini", cfg.Provider)
	}
	if cfg.Model != "gemini-3-flash-preview" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", cfg.Temperature)
	}
	if cfg.MaxTokens != 777 {
		t.Errorf("MaxTokens = %v, want 777", cfg.MaxTokens)
	}
}
