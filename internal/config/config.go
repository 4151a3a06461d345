package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/jeanpaul/secexpert/internal/apperr"
)

type Config struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	DefaultModel    string                    `yaml:"default_model" mapstructure:"default_model"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
	Store           StoreConfig               `yaml:"store" mapstructure:"store"`
	Memory          MemoryConfig              `yaml:"memory" mapstructure:"memory"`
	Agent           AgentConfig               `yaml:"agent" mapstructure:"agent"`
	Log             LogConfig                 `yaml:"log" mapstructure:"log"`
	Tracing         TracingConfig             `yaml:"tracing" mapstructure:"tracing"`
}

type ProviderConfig struct {
	Type    string `yaml:"type" mapstructure:"type"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	Model   string `yaml:"model" mapstructure:"model"`
}

type StoreConfig struct {
	Path             string `yaml:"path" mapstructure:"path"`
	MaxRetries       int    `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBaseDelayMS int    `yaml:"retry_base_delay_ms" mapstructure:"retry_base_delay_ms"`
	BusyTimeoutMS    int    `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

// MemoryConfig bounds every section of the enriched prompt.
type MemoryConfig struct {
	SimilarLimit           int `yaml:"similar_limit" mapstructure:"similar_limit"`
	SimilarExcerpt         int `yaml:"similar_excerpt" mapstructure:"similar_excerpt"`
	InsightsPerTechnology  int `yaml:"insights_per_technology" mapstructure:"insights_per_technology"`
	MaxTechnologies        int `yaml:"max_technologies" mapstructure:"max_technologies"`
	HistoryLimit           int `yaml:"history_limit" mapstructure:"history_limit"`
	HistoryExcerpt         int `yaml:"history_excerpt" mapstructure:"history_excerpt"`
	InsightCacheTTLSeconds int `yaml:"insight_cache_ttl_seconds" mapstructure:"insight_cache_ttl_seconds"`
}

type AgentConfig struct {
	TimeoutSeconds int     `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	Temperature    float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens      int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	CrewFile       string  `yaml:"crew_file" mapstructure:"crew_file"`
}

type LogConfig struct {
	Mode     string `yaml:"mode" mapstructure:"mode"`
	ErrorLog string `yaml:"error_log" mapstructure:"error_log"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	SampleRatio float64 `yaml:"sample_ratio" mapstructure:"sample_ratio"`
	// Output is a file path for exported spans; empty means stderr.
	Output string `yaml:"output" mapstructure:"output"`
}

var envVarRe = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)

// expandEnv substitutes $VARS; unset variables expand to the empty string so
// a missing credential is caught by Validate.
func expandEnv(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(strings.TrimPrefix(match, "$"))
	})
}

func DefaultConfig() *Config {
	dir := configDir()
	return &Config{
		DefaultProvider: "google",
		DefaultModel:    "",
		Providers: map[string]ProviderConfig{
			"google":    {Type: "google", APIKey: "$GEMINI_API_KEY", Model: "gemini-1.5-flash"},
			"anthropic": {Type: "anthropic", APIKey: "$ANTHROPIC_API_KEY", Model: "claude-3-5-sonnet-20240620"},
			"openai":    {Type: "openai", BaseURL: "https://api.openai.com/v1", APIKey: "$OPENAI_API_KEY", Model: "gpt-4o-mini"},
			"ollama":    {Type: "openai", BaseURL: "http://localhost:11434/v1", Model: "qwen2.5:14b"},
		},
		Store: StoreConfig{
			Path:             filepath.Join(dir, "security_analysis.db"),
			MaxRetries:       3,
			RetryBaseDelayMS: 100,
			BusyTimeoutMS:    5000,
		},
		Memory: MemoryConfig{
			SimilarLimit:           2,
			SimilarExcerpt:         200,
			InsightsPerTechnology:  2,
			MaxTechnologies:        3,
			HistoryLimit:           3,
			HistoryExcerpt:         150,
			InsightCacheTTLSeconds: 30,
		},
		Agent: AgentConfig{
			TimeoutSeconds: 300,
			Temperature:    0.5,
			MaxTokens:      8192,
		},
		Log: LogConfig{
			Mode:     "quiet",
			ErrorLog: filepath.Join(dir, "errors.log"),
		},
		Tracing: TracingConfig{SampleRatio: 1.0},
	}
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "secexpert")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "secexpert")
}

// ConfigPath is where Load looks for the user config file.
func ConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// Load reads config.yaml (explicit path, ./, or the user config dir),
// applies SECEXPERT_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(configDir())
	}

	v.SetEnvPrefix("SECEXPERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, apperr.Configuration("read config", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperr.Configuration("decode config", err)
	}

	for name, p := range cfg.Providers {
		p.APIKey = expandEnv(p.APIKey)
		p.BaseURL = expandEnv(p.BaseURL)
		cfg.Providers[name] = p
	}
	cfg.Store.Path = expandHome(cfg.Store.Path)
	cfg.Log.ErrorLog = expandHome(cfg.Log.ErrorLog)
	cfg.Agent.CrewFile = expandHome(cfg.Agent.CrewFile)
	cfg.Tracing.Output = expandHome(cfg.Tracing.Output)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("default_provider", cfg.DefaultProvider)
	v.SetDefault("default_model", cfg.DefaultModel)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("store.max_retries", cfg.Store.MaxRetries)
	v.SetDefault("store.retry_base_delay_ms", cfg.Store.RetryBaseDelayMS)
	v.SetDefault("store.busy_timeout_ms", cfg.Store.BusyTimeoutMS)
	v.SetDefault("memory.similar_limit", cfg.Memory.SimilarLimit)
	v.SetDefault("memory.similar_excerpt", cfg.Memory.SimilarExcerpt)
	v.SetDefault("memory.insights_per_technology", cfg.Memory.InsightsPerTechnology)
	v.SetDefault("memory.max_technologies", cfg.Memory.MaxTechnologies)
	v.SetDefault("memory.history_limit", cfg.Memory.HistoryLimit)
	v.SetDefault("memory.history_excerpt", cfg.Memory.HistoryExcerpt)
	v.SetDefault("memory.insight_cache_ttl_seconds", cfg.Memory.InsightCacheTTLSeconds)
	v.SetDefault("agent.timeout_seconds", cfg.Agent.TimeoutSeconds)
	v.SetDefault("agent.temperature", cfg.Agent.Temperature)
	v.SetDefault("agent.max_tokens", cfg.Agent.MaxTokens)
	v.SetDefault("agent.crew_file", cfg.Agent.CrewFile)
	v.SetDefault("log.mode", cfg.Log.Mode)
	v.SetDefault("log.error_log", cfg.Log.ErrorLog)
	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.sample_ratio", cfg.Tracing.SampleRatio)
	v.SetDefault("tracing.output", cfg.Tracing.Output)
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, p[2:])
	}
	return p
}

func (c *Config) ProviderFor(name string) (ProviderConfig, bool) {
	p, ok := c.Providers[name]
	return p, ok
}

// Validate checks the structure of the configuration. Credentials are left to
// ValidateCredentials so commands that never call a provider work without them.
func (c *Config) Validate() error {
	if c.DefaultProvider == "" {
		return apperr.Configuration("validate", fmt.Errorf("default_provider is required"))
	}
	if _, ok := c.Providers[c.DefaultProvider]; !ok {
		return apperr.Configuration("validate", fmt.Errorf("default_provider %q not found in providers", c.DefaultProvider))
	}
	validTypes := map[string]bool{"openai": true, "anthropic": true, "google": true}
	for name, p := range c.Providers {
		if !validTypes[p.Type] {
			return apperr.Configuration("validate", fmt.Errorf("provider %q has invalid type %q (must be openai, anthropic, or google)", name, p.Type))
		}
		if p.Type == "openai" && p.BaseURL == "" {
			return apperr.Configuration("validate", fmt.Errorf("provider %q (type openai) requires base_url", name))
		}
	}

	if c.Store.Path == "" {
		return apperr.Configuration("validate", fmt.Errorf("store.path is required"))
	}
	if c.Store.MaxRetries < 0 {
		c.Store.MaxRetries = 0
	}
	if c.Agent.TimeoutSeconds < 1 {
		c.Agent.TimeoutSeconds = 300
	}
	if c.Agent.MaxTokens < 1 {
		c.Agent.MaxTokens = 8192
	}
	return nil
}

// ValidateCredentials fails when the selected provider needs an api_key and
// has none. Optional providers may stay unconfigured.
func (c *Config) ValidateCredentials() error {
	def, ok := c.Providers[c.DefaultProvider]
	if !ok {
		return apperr.Configuration("validate", fmt.Errorf("default_provider %q not found in providers", c.DefaultProvider))
	}
	if (def.Type == "anthropic" || def.Type == "google") && def.APIKey == "" {
		return apperr.Configuration("validate", fmt.Errorf("provider %q (type %s) requires api_key", c.DefaultProvider, def.Type))
	}
	return nil
}
