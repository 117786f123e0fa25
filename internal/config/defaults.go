package config

// Safety level thresholds. A request's aggregate safety score must meet
// the threshold of its level for the verdict to pass.
const (
	StrictThreshold     = 0.9
	StandardThreshold   = 0.7
	PermissiveThreshold = 0.5
)

// DefaultRequiredDetectors is the detector set evaluated for every request
// unless overridden in configuration.
var DefaultRequiredDetectors = []string{
	"content_filter",
	"bias_detector",
	"toxicity",
	"ethics",
}

// DefaultCandidates is the built-in routing capability table, in priority order.
var DefaultCandidates = []CandidateConfig{
	{Provider: ProviderAnthropic, Model: "claude-sonnet-4-5-20250929", Priority: 1, AuthScope: "anthropic", Strengths: []string{"reasoning", "long_context"}, CostPer1K: 0.018},
	{Provider: ProviderOpenAI, Model: "gpt-4o", Priority: 2, AuthScope: "openai", Strengths: []string{"general", "json"}, CostPer1K: 0.0125},
	{Provider: ProviderOpenAI, Model: "gpt-4o-mini", Priority: 3, AuthScope: "openai", Strengths: []string{"speed"}, CostPer1K: 0.00075},
	{Provider: ProviderGoogle, Model: "gemini-2.0-flash", Priority: 4, AuthScope: "google", Strengths: []string{"speed", "multimodal"}, CostPer1K: 0.0005},
	{Provider: ProviderOllama, Model: "llama3", Priority: 5, AuthScope: "local", Strengths: []string{"offline"}, CostPer1K: 0},
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Models: ModelsConfig{
			DefaultModel:       "claude-sonnet-4-5-20250929",
			FallbackModel:      "gpt-4o-mini",
			MaxTokens:          1024,
			Temperature:        0.7,
			AttemptTimeoutSec:  30,
			RequestDeadlineSec: 120,
		},
		Safety: SafetyConfig{
			Enabled:      true,
			DefaultLevel: LevelStandard,
			Levels: map[string]float64{
				string(LevelStrict):     StrictThreshold,
				string(LevelStandard):   StandardThreshold,
				string(LevelPermissive): PermissiveThreshold,
			},
			DetectorFloors: map[string]float64{
				"content_filter": 0.4,
				"bias_detector":  0.3,
				"toxicity":       0.4,
				"ethics":         0.3,
			},
			RequiredDetectors: DefaultRequiredDetectors,
			RulesetVersion:    "2026.08",
		},
		Memory: MemoryConfig{
			WindowSize:    10,
			RetentionDays: 30,
			SessionCap:    200,
			Path:          ".metaprompt/memory.db",
		},
		Adaptation: AdaptationConfig{
			Enabled:          true,
			DefaultExpertise: "beginner",
		},
		Routing: RoutingConfig{
			Candidates: append([]CandidateConfig(nil), DefaultCandidates...),
			RPM:        60,
		},
		Server: ServerConfig{
			Port: 8811,
		},
		TemplateDir: "",
	}
}
