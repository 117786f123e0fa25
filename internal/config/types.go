package config

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderAnthropic  ProviderType = "anthropic"
	ProviderOpenAI     ProviderType = "openai"
	ProviderGoogle     ProviderType = "google"
	ProviderOllama     ProviderType = "ollama"
	ProviderOpenRouter ProviderType = "openrouter"
)

// SafetyLevel selects how strict the safety engine is for a request.
type SafetyLevel string

const (
	LevelStrict     SafetyLevel = "strict"
	LevelStandard   SafetyLevel = "standard"
	LevelPermissive SafetyLevel = "permissive"
)

// Config is the top-level metaprompt configuration, corresponding to .metaprompt.yml.
type Config struct {
	Models      ModelsConfig     `yaml:"models" koanf:"models"`
	Safety      SafetyConfig     `yaml:"safety" koanf:"safety"`
	Memory      MemoryConfig     `yaml:"memory" koanf:"memory"`
	Adaptation  AdaptationConfig `yaml:"adaptation" koanf:"adaptation"`
	Routing     RoutingConfig    `yaml:"routing" koanf:"routing"`
	Server      ServerConfig     `yaml:"server" koanf:"server"`
	TemplateDir string           `yaml:"template_dir" koanf:"template_dir"`
}

// ModelsConfig holds model selection and call-shaping parameters.
type ModelsConfig struct {
	DefaultModel       string  `yaml:"default_model" koanf:"default_model"`
	FallbackModel      string  `yaml:"fallback_model" koanf:"fallback_model"`
	MaxTokens          int     `yaml:"max_tokens" koanf:"max_tokens"`
	Temperature        float64 `yaml:"temperature" koanf:"temperature"`
	AttemptTimeoutSec  int     `yaml:"attempt_timeout_sec" koanf:"attempt_timeout_sec"`
	RequestDeadlineSec int     `yaml:"request_deadline_sec" koanf:"request_deadline_sec"`
}

// SafetyConfig holds the safety engine configuration.
type SafetyConfig struct {
	Enabled           bool               `yaml:"enabled" koanf:"enabled"`
	DefaultLevel      SafetyLevel        `yaml:"default_level" koanf:"default_level"`
	Levels            map[string]float64 `yaml:"levels" koanf:"levels"`
	DetectorFloors    map[string]float64 `yaml:"detector_floors" koanf:"detector_floors"`
	RequiredDetectors []string           `yaml:"required_detectors" koanf:"required_detectors"`
	RulesetVersion    string             `yaml:"ruleset_version" koanf:"ruleset_version"`
}

// MemoryConfig holds session memory settings.
type MemoryConfig struct {
	WindowSize     int    `yaml:"window_size" koanf:"window_size"`
	RetentionDays  int    `yaml:"retention_days" koanf:"retention_days"`
	SessionCap     int    `yaml:"session_cap" koanf:"session_cap"`
	Path           string `yaml:"path" koanf:"path"`
	SemanticRecall bool   `yaml:"semantic_recall" koanf:"semantic_recall"`
}

// AdaptationConfig controls prompt adaptation.
type AdaptationConfig struct {
	Enabled          bool   `yaml:"enabled" koanf:"enabled"`
	DefaultExpertise string `yaml:"default_expertise" koanf:"default_expertise"`
}

// CandidateConfig is one entry in the routing capability table.
type CandidateConfig struct {
	Provider  ProviderType `yaml:"provider" koanf:"provider"`
	Model     string       `yaml:"model" koanf:"model"`
	Priority  int          `yaml:"priority" koanf:"priority"`
	AuthScope string       `yaml:"auth_scope" koanf:"auth_scope"`
	Strengths []string     `yaml:"strengths" koanf:"strengths"`
	CostPer1K float64      `yaml:"cost_per_1k" koanf:"cost_per_1k"`
}

// RoutingConfig holds the provider/model capability table.
type RoutingConfig struct {
	Candidates []CandidateConfig `yaml:"candidates" koanf:"candidates"`
	RPM        int               `yaml:"rpm" koanf:"rpm"`
}

// ServerConfig holds HTTP boundary settings.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all" koanf:"allow_all"`
}
