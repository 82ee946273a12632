package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service.
type Config struct {
	General      GeneralConfig      `mapstructure:"general"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Documents    DocumentsConfig    `mapstructure:"documents"`
	Providers    ProvidersConfig    `mapstructure:"providers"`
	WebSearch    WebSearchConfig    `mapstructure:"web_search"`
	Databases    DatabasesConfig    `mapstructure:"databases"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Listen   string `mapstructure:"listen"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// AuthConfig selects the credential mode and token parameters.
type AuthConfig struct {
	Mode      string        `mapstructure:"mode"` // plain or token
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

func (a AuthConfig) Validate() error {
	switch a.Mode {
	case "", "plain":
	case "token":
		if a.JWTSecret == "" {
			return errors.New("auth.jwt_secret is required when auth.mode is token")
		}
	default:
		return fmt.Errorf("auth.mode must be plain or token, got %q", a.Mode)
	}
	return nil
}

// ConversationConfig controls the live conversation store.
type ConversationConfig struct {
	HistoryWindow int    `mapstructure:"history_window"`
	Store         string `mapstructure:"store"` // memory or redis
}

func (c ConversationConfig) Validate() error {
	if c.HistoryWindow < 0 {
		return errors.New("conversation.history_window must be >= 0")
	}
	switch c.Store {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("conversation.store must be memory or redis, got %q", c.Store)
	}
	return nil
}

// DocumentsConfig drives corpus ingestion and retrieval.
type DocumentsConfig struct {
	Folder       string `mapstructure:"folder"`
	IndexPath    string `mapstructure:"index_path"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	TopK         int    `mapstructure:"top_k"`
}

func (d DocumentsConfig) Validate() error {
	if d.ChunkSize <= 0 {
		return errors.New("documents.chunk_size must be > 0")
	}
	if d.ChunkOverlap < 0 || d.ChunkOverlap >= d.ChunkSize {
		return errors.New("documents.chunk_overlap must be in [0, chunk_size)")
	}
	return nil
}

// ProvidersConfig holds LLM provider settings.
type ProvidersConfig struct {
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// OpenAIConfig configures the completion backend.
type OpenAIConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	CompletionModel string        `mapstructure:"completion_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// WebSearchConfig configures the optional web search provider.
type WebSearchConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Provider   string `mapstructure:"provider"` // duckduckgo, brave, serper
	APIKey     string `mapstructure:"api_key"`
	MaxResults int    `mapstructure:"max_results"`
}

// DatabasesConfig groups external stores; both are optional.
type DatabasesConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig locates the durable mirror.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// Configured reports whether a durable store was set up at all.
func (p PostgresConfig) Configured() bool {
	return p.URL != "" || (p.Host != "" && p.DBName != "")
}

// DSN assembles the connection string.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RedisConfig locates the optional redis conversation backend.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Addr() string {
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", r.Host, port)
}

// LoadConfig loads config from file plus RAGSERVER_* environment overrides.
// A missing config file is fine; defaults and env carry a full setup.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")

	v.SetDefault("general.listen", ":8000")
	v.SetDefault("general.log_level", "info")
	v.SetDefault("auth.mode", "plain")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("conversation.history_window", 6)
	v.SetDefault("conversation.store", "memory")
	v.SetDefault("documents.folder", "docs")
	v.SetDefault("documents.index_path", "index.bleve")
	v.SetDefault("documents.chunk_size", 1000)
	v.SetDefault("documents.chunk_overlap", 200)
	v.SetDefault("documents.top_k", 5)
	v.SetDefault("providers.openai.completion_model", "gpt-4o-mini")
	v.SetDefault("providers.openai.temperature", 0.7)
	v.SetDefault("providers.openai.timeout", 30*time.Second)
	v.SetDefault("web_search.provider", "duckduckgo")
	v.SetDefault("web_search.max_results", 3)

	if path == "" {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("RAGSERVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Conversation.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Documents.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
