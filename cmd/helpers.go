package cmd

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/metapromptlabs/metaprompt/internal/analysis"
	"github.com/metapromptlabs/metaprompt/internal/config"
	"github.com/metapromptlabs/metaprompt/internal/engine"
	"github.com/metapromptlabs/metaprompt/internal/llm"
	"github.com/metapromptlabs/metaprompt/internal/memory"
	"github.com/metapromptlabs/metaprompt/internal/optimizer"
	"github.com/metapromptlabs/metaprompt/internal/router"
	"github.com/metapromptlabs/metaprompt/internal/safety"
	"github.com/metapromptlabs/metaprompt/internal/template"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `metaprompt init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// createProvidersFromConfig builds one client per provider named in the
// routing table. Providers whose credentials are missing are skipped
// with a warning; the router then never plans their candidates.
func createProvidersFromConfig(cfg *config.Config, logger *zap.Logger) (map[string]llm.Provider, error) {
	providers := make(map[string]llm.Provider)
	for _, cand := range cfg.Routing.Candidates {
		name := string(cand.Provider)
		if _, ok := providers[name]; ok {
			continue
		}
		p, err := llm.NewProvider(name, cand.Model)
		if err != nil {
			logger.Warn("provider unavailable, its candidates will be skipped",
				zap.String("provider", name), zap.Error(err))
			continue
		}
		if cfg.Routing.RPM > 0 {
			p = llm.NewRateLimitedProvider(p, cfg.Routing.RPM)
		}
		providers[name] = p
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers available: set an API key (e.g. %s) or run ollama",
			config.APIKeyEnvVar(config.ProviderAnthropic))
	}
	return providers, nil
}

// buildEngine wires the full pipeline from config. The returned cleanup
// closes the memory store.
func buildEngine(cfg *config.Config, logger *zap.Logger) (*engine.Engine, *memory.Manager, func() error, error) {
	providers, err := createProvidersFromConfig(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := memory.OpenSQLite(cfg.Memory.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening memory store: %w", err)
	}

	var semantic *memory.SemanticIndex
	if cfg.Memory.SemanticRecall {
		semantic, err = memory.NewSemanticIndex()
		if err != nil {
			store.Close()
			return nil, nil, nil, fmt.Errorf("creating semantic index: %w", err)
		}
	}

	mem := memory.NewManager(store, memory.Params{
		WindowSize: cfg.Memory.WindowSize,
		SessionCap: cfg.Memory.SessionCap,
		Retention:  time.Duration(cfg.Memory.RetentionDays) * 24 * time.Hour,
	}, semantic, logger)

	registry := template.NewRegistry()
	if err := registry.LoadDir(cfg.TemplateDir); err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("loading templates: %w", err)
	}
	defaultExpertise := cfg.Adaptation.DefaultExpertise
	if !cfg.Adaptation.Enabled {
		defaultExpertise = ""
	}
	gen := template.NewGenerator(registry, defaultExpertise)

	safetyEngine, err := safety.NewEngine(safety.Params{
		Required:       cfg.Safety.RequiredDetectors,
		Floors:         cfg.Safety.DetectorFloors,
		Levels:         cfg.Safety.Levels,
		RulesetVersion: cfg.Safety.RulesetVersion,
	}, logger)
	if err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("building safety engine: %w", err)
	}

	candidates := make([]router.Candidate, len(cfg.Routing.Candidates))
	for i, c := range cfg.Routing.Candidates {
		candidates[i] = router.Candidate{
			Provider:  string(c.Provider),
			Model:     c.Model,
			Priority:  c.Priority,
			AuthScope: c.AuthScope,
			Strengths: c.Strengths,
		}
	}
	rt := router.New(candidates, providers,
		time.Duration(cfg.Models.AttemptTimeoutSec)*time.Second, logger)

	eng := engine.New(
		analysis.NewAnalyzer(),
		mem,
		gen,
		safetyEngine,
		rt,
		optimizer.New(safetyEngine),
		engine.Options{
			SafetyEnabled:      cfg.Safety.Enabled,
			DefaultSafetyLevel: string(cfg.Safety.DefaultLevel),
			WindowSize:         cfg.Memory.WindowSize,
			MaxTokens:          cfg.Models.MaxTokens,
			Temperature:        cfg.Models.Temperature,
			RequestDeadline:    time.Duration(cfg.Models.RequestDeadlineSec) * time.Second,
		},
		logger)

	return eng, mem, store.Close, nil
}

// parsePrefs turns repeated key=value flags into a preference map.
func parsePrefs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	prefs := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := cutPair(pair)
		if !ok {
			return nil, fmt.Errorf("invalid preference %q: expected key=value", pair)
		}
		prefs[k] = v
	}
	return prefs, nil
}

func cutPair(s string) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], i > 0
		}
	}
	return "", "", false
}

func warnIfMissingKeys(cfg *config.Config) {
	seen := make(map[config.ProviderType]bool)
	for _, cand := range cfg.Routing.Candidates {
		if seen[cand.Provider] {
			continue
		}
		seen[cand.Provider] = true
		envVar := config.APIKeyEnvVar(cand.Provider)
		if envVar != "" && os.Getenv(envVar) == "" {
			fmt.Fprintf(os.Stderr, "Note: %s is not set; %s candidates will be skipped\n", envVar, cand.Provider)
		}
	}
}
