package agent

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig is the on-disk shape for configuring which provider/model a
// process should start against, plus its ProviderConfig tuning knobs.
// Loaded via LoadRuntimeConfig.
type RuntimeConfig struct {
	Provider string `yaml:"provider"` // "openai", "anthropic", or "gemini"
	Model    string `yaml:"model"`

	Temperature     float64        `yaml:"temperature"`
	MaxTokens       int            `yaml:"max_tokens"`
	SystemPrompt    string         `yaml:"system_prompt"`
	MaxToolTurns    *int           `yaml:"max_tool_turns"`
	EnableReasoning bool           `yaml:"enable_reasoning"`
	TopP            *float64       `yaml:"top_p"`
	TopK            *int           `yaml:"top_k"`
	StopSequences   []string       `yaml:"stop_sequences"`
	ExtraOptions    map[string]any `yaml:"extra_options"`
}

// DefaultRuntimeConfig returns a RuntimeConfig seeded from DefaultProviderConfig.
func DefaultRuntimeConfig() RuntimeConfig {
	d := DefaultProviderConfig()
	return RuntimeConfig{
		Temperature:  d.Temperature,
		MaxTokens:    d.MaxTokens,
		MaxToolTurns: d.MaxToolTurns,
	}
}

// LoadRuntimeConfig reads a YAML file at path into a RuntimeConfig seeded
// with defaults, then validates it.
func LoadRuntimeConfig(path string) (RuntimeConfig, error) {
	cfg := DefaultRuntimeConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, ConfigError("reading config file: " + err.Error())
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, ConfigError("parsing config YAML: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadRuntimeConfigWithEnvOverrides loads path (if non-empty) and then
// applies AGENT_PROVIDER / AGENT_MODEL / AGENT_TEMPERATURE / AGENT_MAX_TOKENS
// environment overrides on top.
func LoadRuntimeConfigWithEnvOverrides(path string) (RuntimeConfig, error) {
	var cfg RuntimeConfig
	var err error
	if path != "" {
		cfg, err = LoadRuntimeConfig(path)
		if err != nil {
			return cfg, err
		}
	} else {
		cfg = DefaultRuntimeConfig()
	}

	if v := os.Getenv("AGENT_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("AGENT_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("AGENT_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Temperature = f
		}
	}
	if v := os.Getenv("AGENT_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxTokens = n
		}
	}

	return cfg, cfg.Validate()
}

// Validate rejects configs that cannot produce a valid ProviderConfig.
func (c RuntimeConfig) Validate() error {
	if c.Provider != "" && c.Provider != "openai" && c.Provider != "anthropic" && c.Provider != "gemini" {
		return ConfigError("unknown provider: " + c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return ConfigError("temperature must be in [0,2]")
	}
	if c.MaxTokens < 0 {
		return ConfigError("max_tokens must be non-negative")
	}
	return nil
}

// ToProviderConfig projects the YAML-loadable fields onto a ProviderConfig.
func (c RuntimeConfig) ToProviderConfig() ProviderConfig {
	return ProviderConfig{
		Temperature:     c.Temperature,
		MaxTokens:       c.MaxTokens,
		SystemPrompt:    c.SystemPrompt,
		MaxToolTurns:    c.MaxToolTurns,
		EnableReasoning: c.EnableReasoning,
		TopP:            c.TopP,
		TopK:            c.TopK,
		StopSequences:   c.StopSequences,
		ExtraOptions:    c.ExtraOptions,
	}
}
