// Package config provides application configuration with multi-source priority.
//
// Sources (highest to lowest):
//  1. Environment variables (QUILL_* or DATABASE_URL)
//  2. Config file (~/.quill/config.yaml, or ./config.yaml)
//  3. Defaults
//
// Sensitive values (postgres password, auth secret) are never logged.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel errors for validation failures, checkable with errors.Is().
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrMissingAuthSecret indicates the identity-signing secret is not set.
	ErrMissingAuthSecret = errors.New("missing auth secret")

	// ErrWeakAuthSecret indicates the identity-signing secret is too short.
	ErrWeakAuthSecret = errors.New("auth secret must be at least 32 bytes")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to 768 dimensions via
	// OutputDimensionality; the notes schema uses 768 (note.VectorDimension).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultModelName is the default chat model.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultHTTPAddr is the default server listen address.
	DefaultHTTPAddr = "127.0.0.1:3500"
)

// Tracing holds OTLP trace export settings. Spans are shipped to a local
// collector over OTLP HTTP; the collector handles auth and forwarding.
type Tracing struct {
	Enabled      bool   `mapstructure:"enabled" json:"enabled"`
	CollectorURL string `mapstructure:"collector_url" json:"collector_url"`
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
	Environment  string `mapstructure:"environment" json:"environment"`
}

// Config stores application configuration.
// SECURITY: sensitive fields carry `json:"-"` so they never serialize;
// tag any new password, API key, or token field the same way.
type Config struct {
	// AI provider and models
	Provider      string `mapstructure:"provider" json:"provider"` // "gemini" (default) or "ollama"
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	OllamaHost    string `mapstructure:"ollama_host" json:"ollama_host"`

	// HTTP server
	HTTPAddr   string `mapstructure:"http_addr" json:"http_addr"`
	RateBurst  int    `mapstructure:"rate_burst" json:"rate_burst"`
	TrustProxy bool   `mapstructure:"trust_proxy" json:"trust_proxy"`
	IsDev      bool   `mapstructure:"dev" json:"dev"`

	// Identity signing secret (HMAC-SHA256, >= 32 bytes)
	AuthSecret string `mapstructure:"auth_secret" json:"-"`

	// Retrieval
	RetrievalTopK      int `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`
	RetrievalTimeoutMS int `mapstructure:"retrieval_timeout_ms" json:"retrieval_timeout_ms"`

	// PostgreSQL
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"`
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	Tracing Tracing `mapstructure:"tracing" json:"tracing"`
}

// Load reads configuration from defaults, the config file, and environment.
func Load() (*Config, error) {
	setDefaults()

	configDir, err := Dir()
	if err == nil {
		viper.AddConfigPath(configDir)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("QUILL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine; defaults + env apply.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Dir returns the quill config directory (~/.quill), creating it with
// restrictive permissions if missing.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".quill")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return dir, nil
}

func setDefaults() {
	viper.SetDefault("provider", "gemini")
	viper.SetDefault("model_name", DefaultModelName)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("ollama_host", "http://localhost:11434")

	viper.SetDefault("http_addr", DefaultHTTPAddr)
	viper.SetDefault("rate_burst", 60)
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("dev", false)

	viper.SetDefault("retrieval_top_k", 5)
	viper.SetDefault("retrieval_timeout_ms", 10_000)

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "quill")
	viper.SetDefault("postgres_password", "quill_dev_password")
	viper.SetDefault("postgres_db_name", "quill")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.collector_url", "localhost:4318")
	viper.SetDefault("tracing.service_name", "quill")
	viper.SetDefault("tracing.environment", "dev")
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	if c.Provider == "ollama" {
		return "ollama/" + c.ModelName
	}
	return "googleai/" + c.ModelName
}
