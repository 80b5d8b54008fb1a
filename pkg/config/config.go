// Package config loads pipeline configuration from an optional YAML file,
// environment variables, and defaults.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	OllamaURL string `mapstructure:"ollama_url"`

	ReportsDir    string `mapstructure:"reports_dir"`
	PoliciesDir   string `mapstructure:"policies_dir"`
	EvaluationDir string `mapstructure:"evaluation_dir"`
	ReferenceDir  string `mapstructure:"reference_dir"`
	CacheDir      string `mapstructure:"cache_dir"`

	Workers        int     `mapstructure:"workers"`
	MaxRetries     int     `mapstructure:"max_retries"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`

	PromptMaxRecords int `mapstructure:"prompt_max_records"`
	PromptMaxChars   int `mapstructure:"prompt_max_chars"`

	ServerAddr string `mapstructure:"server_addr"`
}

// Load reads configuration with precedence: defaults < config file <
// POLICYGEN_* environment variables. path may be empty, in which case an
// optional policygen.yaml in the working directory is used.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("provider", "ollama")
	v.SetDefault("model", "")
	v.SetDefault("ollama_url", "http://localhost:11434")
	v.SetDefault("reports_dir", "./data/reports")
	v.SetDefault("policies_dir", "./output/generated_policies")
	v.SetDefault("evaluation_dir", "./output/evaluation_results")
	v.SetDefault("reference_dir", "./data/reference_policies")
	v.SetDefault("cache_dir", "./.policygen-cache")
	v.SetDefault("workers", 3)
	v.SetDefault("max_retries", 3)
	v.SetDefault("timeout_seconds", 60)
	v.SetDefault("temperature", 0.3)
	v.SetDefault("max_tokens", 512)
	v.SetDefault("prompt_max_records", 10)
	v.SetDefault("prompt_max_chars", 8000)
	v.SetDefault("server_addr", ":8080")

	v.SetEnvPrefix("POLICYGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("policygen")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = providerAPIKey(cfg.Provider)
	}
	return &cfg, nil
}

// providerAPIKey falls back to the conventional per-provider key variable.
func providerAPIKey(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	}
	return ""
}
