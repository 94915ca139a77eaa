// Package config loads minne configuration from file and environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider identifies an LLM or embedding backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string // "root" or "database"

	// Embedding
	EmbedProvider  Provider
	EmbedModel     string
	EmbedDimension int
	OllamaHost     string

	// Chat model
	LLMProvider     Provider
	LLMModel        string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	// Context assembly
	ContextTokenBudget int

	// HTTP
	HTTPPort string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig mirrors Config for the optional YAML overlay. Environment
// variables always win over file values.
type fileConfig struct {
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`
	EmbedProvider      string `yaml:"embed_provider"`
	EmbedModel         string `yaml:"embed_model"`
	EmbedDimension     int    `yaml:"embed_dimension"`
	OllamaHost         string `yaml:"ollama_host"`
	LLMProvider        string `yaml:"llm_provider"`
	LLMModel           string `yaml:"llm_model"`
	ContextTokenBudget int    `yaml:"context_token_budget"`
	HTTPPort           string `yaml:"http_port"`
	LogFile            string `yaml:"log_file"`
	LogLevel           string `yaml:"log_level"`
}

// Load reads configuration from the optional file named by MINNE_CONFIG, then
// applies environment variables on top. API keys come from the environment
// only; they never live in the config file.
func Load() (Config, error) {
	cfg := Config{
		SurrealDBURL:       "ws://localhost:8000/rpc",
		SurrealDBNamespace: "minne",
		SurrealDBDatabase:  "chat",
		SurrealDBUser:      "root",
		SurrealDBPass:      "root",
		SurrealDBAuthLevel: "root",

		EmbedProvider:  ProviderOllama,
		EmbedModel:     "all-minilm:l6-v2",
		EmbedDimension: 384,
		OllamaHost:     "http://localhost:11434",

		LLMProvider: ProviderOpenAI,
		LLMModel:    "gpt-4o-mini",

		ContextTokenBudget: 5000,

		HTTPPort: "8585",
		LogFile:  "/tmp/minne.log",
		LogLevel: slog.LevelInfo,
	}

	if path := os.Getenv("MINNE_CONFIG"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.ContextTokenBudget < 1 {
		return Config{}, fmt.Errorf("context token budget must be positive, got %d", cfg.ContextTokenBudget)
	}
	if cfg.EmbedDimension < 1 {
		return Config{}, fmt.Errorf("embedding dimension must be positive, got %d", cfg.EmbedDimension)
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	setString(&cfg.SurrealDBURL, fc.SurrealDBURL)
	setString(&cfg.SurrealDBNamespace, fc.SurrealDBNamespace)
	setString(&cfg.SurrealDBDatabase, fc.SurrealDBDatabase)
	setString(&cfg.SurrealDBUser, fc.SurrealDBUser)
	setString(&cfg.SurrealDBPass, fc.SurrealDBPass)
	setString(&cfg.SurrealDBAuthLevel, fc.SurrealDBAuthLevel)
	if fc.EmbedProvider != "" {
		cfg.EmbedProvider = Provider(fc.EmbedProvider)
	}
	setString(&cfg.EmbedModel, fc.EmbedModel)
	if fc.EmbedDimension != 0 {
		cfg.EmbedDimension = fc.EmbedDimension
	}
	setString(&cfg.OllamaHost, fc.OllamaHost)
	if fc.LLMProvider != "" {
		cfg.LLMProvider = Provider(fc.LLMProvider)
	}
	setString(&cfg.LLMModel, fc.LLMModel)
	if fc.ContextTokenBudget != 0 {
		cfg.ContextTokenBudget = fc.ContextTokenBudget
	}
	setString(&cfg.HTTPPort, fc.HTTPPort)
	setString(&cfg.LogFile, fc.LogFile)
	if fc.LogLevel != "" {
		cfg.LogLevel = ParseLogLevel(fc.LogLevel)
	}

	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.SurrealDBURL, os.Getenv("SURREALDB_URL"))
	setString(&cfg.SurrealDBNamespace, os.Getenv("SURREALDB_NAMESPACE"))
	setString(&cfg.SurrealDBDatabase, os.Getenv("SURREALDB_DATABASE"))
	setString(&cfg.SurrealDBUser, os.Getenv("SURREALDB_USER"))
	setString(&cfg.SurrealDBPass, os.Getenv("SURREALDB_PASS"))
	setString(&cfg.SurrealDBAuthLevel, os.Getenv("SURREALDB_AUTH_LEVEL"))

	if v := os.Getenv("MINNE_EMBED_PROVIDER"); v != "" {
		cfg.EmbedProvider = Provider(v)
	}
	setString(&cfg.EmbedModel, os.Getenv("MINNE_EMBED_MODEL"))
	if v := os.Getenv("MINNE_EMBED_DIMENSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EmbedDimension = n
		}
	}
	setString(&cfg.OllamaHost, os.Getenv("OLLAMA_HOST"))

	if v := os.Getenv("MINNE_LLM_PROVIDER"); v != "" {
		cfg.LLMProvider = Provider(v)
	}
	setString(&cfg.LLMModel, os.Getenv("MINNE_LLM_MODEL"))
	setString(&cfg.OpenAIAPIKey, os.Getenv("OPENAI_API_KEY"))
	setString(&cfg.AnthropicAPIKey, os.Getenv("ANTHROPIC_API_KEY"))

	if v := os.Getenv("MINNE_CONTEXT_TOKEN_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ContextTokenBudget = n
		}
	}

	setString(&cfg.HTTPPort, os.Getenv("MINNE_HTTP_PORT"))
	setString(&cfg.LogFile, os.Getenv("MINNE_LOG_FILE"))
	if v := os.Getenv("MINNE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = ParseLogLevel(v)
	}
}

func setString(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

// ParseLogLevel maps a level name onto slog.Level, defaulting to INFO.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
