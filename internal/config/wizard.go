package config

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .metaprompt.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to metaprompt! Let's configure your engine.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Primary provider selection.
	providerPrompt := promptui.Select{
		Label: "Select primary LLM provider",
		Items: []string{"anthropic", "openai", "google", "ollama", "openrouter"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	provider := ProviderType(providerStr)

	// Reorder the capability table so the chosen provider's candidates lead.
	cfg.Routing.Candidates = promoteProvider(cfg.Routing.Candidates, provider)
	if len(cfg.Routing.Candidates) > 0 {
		cfg.Models.DefaultModel = cfg.Routing.Candidates[0].Model
	}

	// 2. Safety level.
	levelPrompt := promptui.Select{
		Label: "Select default safety level",
		Items: []string{
			"strict     — threshold 0.9, rejects borderline content",
			"standard   — threshold 0.7, balanced",
			"permissive — threshold 0.5, minimal filtering",
		},
	}
	levelIdx, _, err := levelPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("safety level selection: %w", err)
	}
	levels := []SafetyLevel{LevelStrict, LevelStandard, LevelPermissive}
	cfg.Safety.DefaultLevel = levels[levelIdx]

	// 3. Memory window size.
	windowPrompt := promptui.Prompt{
		Label:   "Session memory window (turns)",
		Default: strconv.Itoa(cfg.Memory.WindowSize),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return fmt.Errorf("must be a positive integer")
			}
			return nil
		},
	}
	windowStr, err := windowPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("memory window: %w", err)
	}
	cfg.Memory.WindowSize, _ = strconv.Atoi(windowStr)

	if err := cfg.Save(".metaprompt.yml"); err != nil {
		return nil, err
	}

	fmt.Println()
	fmt.Println("Configuration written to .metaprompt.yml")
	if envVar := APIKeyEnvVar(provider); envVar != "" {
		fmt.Printf("Remember to export %s before running.\n", envVar)
	}
	return cfg, nil
}

// promoteProvider moves candidates of the given provider to the front of
// the table, preserving relative order, and renumbers priorities.
func promoteProvider(candidates []CandidateConfig, provider ProviderType) []CandidateConfig {
	var lead, rest []CandidateConfig
	for _, c := range candidates {
		if c.Provider == provider {
			lead = append(lead, c)
		} else {
			rest = append(rest, c)
		}
	}
	out := append(lead, rest...)
	for i := range out {
		out[i].Priority = i + 1
	}
	return out
}
