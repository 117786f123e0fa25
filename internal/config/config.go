package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (METAPROMPT_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: METAPROMPT_MODELS_DEFAULT_MODEL ->
	// models.default_model, etc. Section names never contain underscores,
	// so only the first one separates section from key.
	if err := k.Load(env.Provider("METAPROMPT_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "METAPROMPT_"))
		return strings.Replace(s, "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderAnthropic:  true,
	ProviderOpenAI:     true,
	ProviderGoogle:     true,
	ProviderOllama:     true,
	ProviderOpenRouter: true,
}

// validLevels is the set of recognized safety level values.
var validLevels = map[SafetyLevel]bool{
	LevelStrict:     true,
	LevelStandard:   true,
	LevelPermissive: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Models.DefaultModel == "" {
		return fmt.Errorf("models.default_model is required")
	}
	if c.Models.Temperature < 0 || c.Models.Temperature > 2 {
		return fmt.Errorf("models.temperature must be between 0 and 2")
	}
	if c.Models.MaxTokens <= 0 {
		return fmt.Errorf("models.max_tokens must be positive")
	}
	if c.Models.AttemptTimeoutSec <= 0 {
		return fmt.Errorf("models.attempt_timeout_sec must be positive")
	}
	if c.Models.RequestDeadlineSec < c.Models.AttemptTimeoutSec {
		return fmt.Errorf("models.request_deadline_sec must be at least the per-attempt timeout")
	}

	if c.Safety.DefaultLevel != "" && !validLevels[c.Safety.DefaultLevel] {
		return fmt.Errorf("invalid safety.default_level %q: must be one of strict, standard, permissive", c.Safety.DefaultLevel)
	}
	for name, threshold := range c.Safety.Levels {
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("safety.levels.%s must be between 0 and 1", name)
		}
	}
	for name, floor := range c.Safety.DetectorFloors {
		if floor < 0 || floor > 1 {
			return fmt.Errorf("safety.detector_floors.%s must be between 0 and 1", name)
		}
	}

	if c.Memory.WindowSize <= 0 {
		return fmt.Errorf("memory.window_size must be positive")
	}
	if c.Memory.SessionCap <= 0 {
		return fmt.Errorf("memory.session_cap must be positive")
	}
	if c.Memory.RetentionDays < 0 {
		return fmt.Errorf("memory.retention_days must be non-negative")
	}

	if len(c.Routing.Candidates) == 0 {
		return fmt.Errorf("routing.candidates must contain at least one entry")
	}
	for i, cand := range c.Routing.Candidates {
		if !validProviders[cand.Provider] {
			return fmt.Errorf("routing.candidates[%d]: invalid provider %q", i, cand.Provider)
		}
		if cand.Model == "" {
			return fmt.Errorf("routing.candidates[%d]: model is required", i)
		}
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	default:
		return ""
	}
}
