package config

// Config holds folio configuration.
// Stored at: $HOME/.folio/config.yaml
type Config struct {
	Provider  ProviderCfg  `mapstructure:"provider" yaml:"provider" json:"provider"`
	Translate TranslateCfg `mapstructure:"translate" yaml:"translate" json:"translate"`
	Storage   StorageCfg   `mapstructure:"storage" yaml:"storage" json:"storage"`
	Log       LogCfg       `mapstructure:"log" yaml:"log" json:"log"`
}

// ProviderCfg configures the completion provider. Type selects the
// client ("openai" or "mock"); APIKey supports ${ENV_VAR} references;
// RateLimit is requests per minute; BaseURL optionally overrides the
// endpoint.
type ProviderCfg struct {
	Type                string  `mapstructure:"type" yaml:"type" json:"type"`
	Model               string  `mapstructure:"model" yaml:"model" json:"model"`
	APIKey              string  `mapstructure:"api_key" yaml:"api_key" json:"api_key"`
	BaseURL             string  `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	RateLimit           int     `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
	TimeoutSeconds      int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds"`
	PromptCostPer1M     float64 `mapstructure:"prompt_cost_per_1m" yaml:"prompt_cost_per_1m" json:"prompt_cost_per_1m"`
	CompletionCostPer1M float64 `mapstructure:"completion_cost_per_1m" yaml:"completion_cost_per_1m" json:"completion_cost_per_1m"`
}

// TranslateCfg configures segmentation and the retry orchestrator.
type TranslateCfg struct {
	SourceLang       string  `mapstructure:"source_lang" yaml:"source_lang" json:"source_lang"`
	TargetLang       string  `mapstructure:"target_lang" yaml:"target_lang" json:"target_lang"`
	MaxChunkRunes    int     `mapstructure:"max_chunk_runes" yaml:"max_chunk_runes" json:"max_chunk_runes"`
	Workers          int     `mapstructure:"workers" yaml:"workers" json:"workers"`
	ContextWords     int     `mapstructure:"context_words" yaml:"context_words" json:"context_words"`
	MaxAttempts      int     `mapstructure:"max_attempts" yaml:"max_attempts" json:"max_attempts"`
	BaseDelaySeconds int     `mapstructure:"base_delay_seconds" yaml:"base_delay_seconds" json:"base_delay_seconds"`
	MaxDelaySeconds  int     `mapstructure:"max_delay_seconds" yaml:"max_delay_seconds" json:"max_delay_seconds"`
	MinOutputChars   int     `mapstructure:"min_output_chars" yaml:"min_output_chars" json:"min_output_chars"`
	MinOutputRatio   float64 `mapstructure:"min_output_ratio" yaml:"min_output_ratio" json:"min_output_ratio"`
}

// StorageCfg configures the job store location.
type StorageCfg struct {
	// Path is the SQLite database file (default: $HOME/.folio/folio.db)
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// LogCfg configures logging output. Level is one of debug, info, warn,
// error; Format is "text" or "json".
type LogCfg struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderCfg{
			Type:           "openai",
			Model:          "gpt-4o-mini",
			APIKey:         "${OPENAI_API_KEY}",
			RateLimit:      150,
			TimeoutSeconds: 300,
		},
		Translate: TranslateCfg{
			TargetLang:       "en",
			MaxChunkRunes:    4000,
			Workers:          4,
			ContextWords:     100,
			MaxAttempts:      3,
			BaseDelaySeconds: 1,
			MaxDelaySeconds:  30,
			MinOutputChars:   1,
			MinOutputRatio:   0.05,
		},
		Storage: StorageCfg{
			Path: "$HOME/.folio/folio.db",
		},
		Log: LogCfg{
			Level:  "info",
			Format: "text",
		},
	}
}
