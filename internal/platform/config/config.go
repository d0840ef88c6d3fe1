// Package config loads application configuration from environment variables.
// All variables use the QCM_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	Catalog    CatalogConfig
	Parser     ParserConfig
	Generation GenerationConfig
	AI         AIConfig
	Log        LogConfig
	Language   string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL keeps
// worksheets in memory.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig selects where resolved pictograms are persisted.
type CacheConfig struct {
	Backend string // "file" or "redis"
	Dir     string
	URL     string
}

// CatalogConfig holds the pictogram catalog (ARASAAC) settings.
type CatalogConfig struct {
	BaseURL        string
	StaticURL      string
	TimeoutSeconds int
	SearchLimit    int
}

// Timeout returns the per-request catalog timeout.
func (c CatalogConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ParserConfig holds the dependency parser (UDPipe REST) settings.
type ParserConfig struct {
	URL            string
	Model          string
	TimeoutSeconds int
}

// Timeout returns the per-request parser timeout.
func (c ParserConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GenerationConfig tunes question generation.
type GenerationConfig struct {
	MaxPerFact    int
	Distractors   int
	PoolsPath     string
	RequirePictos bool
	SampleTags    []string
}

// AIConfig holds configuration for all AI providers.
type AIConfig struct {
	OpenAI      OpenAIConfig
	Anthropic   AnthropicConfig
	DeepSeek    DeepSeekConfig
	Google      GoogleConfig
	Ollama      OllamaConfig
	OpenRouter  OpenRouterConfig
	Model       string
	TokenBudget int
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	APIKey string
}

// AnthropicConfig holds Anthropic provider settings.
type AnthropicConfig struct {
	APIKey string
}

// DeepSeekConfig holds DeepSeek provider settings (OpenAI-compatible).
type DeepSeekConfig struct {
	APIKey string
}

// GoogleConfig holds Google Gemini settings (OpenAI-compatible endpoint).
type GoogleConfig struct {
	APIKey string
}

// OllamaConfig holds self-hosted Ollama settings.
type OllamaConfig struct {
	Enabled bool
	URL     string
}

// OpenRouterConfig holds OpenRouter provider settings.
type OpenRouterConfig struct {
	APIKey string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with QCM_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("QCM_SERVER_PORT", 8080),
			Host: envStr("QCM_SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL:      envStr("QCM_DATABASE_URL", ""),
			MaxConns: envInt("QCM_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("QCM_DATABASE_MIN_CONNS", 1),
		},
		Cache: CacheConfig{
			Backend: envStr("QCM_CACHE_BACKEND", "file"),
			Dir:     envStr("QCM_CACHE_DIR", "./data"),
			URL:     envStr("QCM_CACHE_URL", "redis://localhost:6379"),
		},
		Catalog: CatalogConfig{
			BaseURL:        envStr("QCM_CATALOG_BASE_URL", "https://api.arasaac.org/v1"),
			StaticURL:      envStr("QCM_CATALOG_STATIC_URL", "https://static.arasaac.org"),
			TimeoutSeconds: envInt("QCM_CATALOG_TIMEOUT_SECONDS", 5),
			SearchLimit:    envInt("QCM_CATALOG_SEARCH_LIMIT", 12),
		},
		Parser: ParserConfig{
			URL:            envStr("QCM_PARSER_URL", "https://lindat.mff.cuni.cz/services/udpipe/api"),
			Model:          envStr("QCM_PARSER_MODEL", "french-gsd"),
			TimeoutSeconds: envInt("QCM_PARSER_TIMEOUT_SECONDS", 15),
		},
		Generation: GenerationConfig{
			MaxPerFact:    envInt("QCM_GEN_MAX_PER_FACT", 6),
			Distractors:   envInt("QCM_GEN_DISTRACTORS", 3),
			PoolsPath:     envStr("QCM_GEN_POOLS_PATH", ""),
			RequirePictos: envBool("QCM_GEN_REQUIRE_PICTOS", true),
			SampleTags:    envList("QCM_GEN_SAMPLE_TAGS", []string{"animal"}),
		},
		AI: AIConfig{
			OpenAI: OpenAIConfig{
				APIKey: envStr("QCM_AI_OPENAI_API_KEY", ""),
			},
			Anthropic: AnthropicConfig{
				APIKey: envStr("QCM_AI_ANTHROPIC_API_KEY", ""),
			},
			DeepSeek: DeepSeekConfig{
				APIKey: envStr("QCM_AI_DEEPSEEK_API_KEY", ""),
			},
			Google: GoogleConfig{
				APIKey: envStr("QCM_AI_GOOGLE_API_KEY", ""),
			},
			Ollama: OllamaConfig{
				Enabled: envBool("QCM_AI_OLLAMA_ENABLED", false),
				URL:     envStr("QCM_AI_OLLAMA_URL", "http://localhost:11434"),
			},
			OpenRouter: OpenRouterConfig{
				APIKey: envStr("QCM_AI_OPENROUTER_API_KEY", ""),
			},
			Model:       envStr("QCM_AI_MODEL", ""),
			TokenBudget: envInt("QCM_AI_TOKEN_BUDGET", 0),
		},
		Log: LogConfig{
			Level:  envStr("QCM_LOG_LEVEL", "info"),
			Format: envStr("QCM_LOG_FORMAT", "json"),
		},
		Language: envStr("QCM_LANGUAGE", "fr"),
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Language != "fr" {
		return fmt.Errorf("QCM_LANGUAGE must be 'fr', got %q", c.Language)
	}

	if c.Cache.Backend != "file" && c.Cache.Backend != "redis" {
		return fmt.Errorf("QCM_CACHE_BACKEND must be 'file' or 'redis', got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "file" && c.Cache.Dir == "" {
		return fmt.Errorf("QCM_CACHE_DIR is required for the file cache backend")
	}

	if c.Generation.MaxPerFact < 1 {
		return fmt.Errorf("QCM_GEN_MAX_PER_FACT must be positive, got %d", c.Generation.MaxPerFact)
	}
	if c.Generation.Distractors < 1 {
		return fmt.Errorf("QCM_GEN_DISTRACTORS must be positive, got %d", c.Generation.Distractors)
	}

	if c.Catalog.TimeoutSeconds <= 0 {
		return fmt.Errorf("QCM_CATALOG_TIMEOUT_SECONDS must be positive, got %d", c.Catalog.TimeoutSeconds)
	}

	if c.AI.TokenBudget < 0 {
		return fmt.Errorf("QCM_AI_TOKEN_BUDGET must not be negative, got %d", c.AI.TokenBudget)
	}

	return nil
}

// HasAIProvider returns true if at least one AI provider is configured.
func (c *Config) HasAIProvider() bool {
	return c.AI.OpenAI.APIKey != "" ||
		c.AI.Anthropic.APIKey != "" ||
		c.AI.DeepSeek.APIKey != "" ||
		c.AI.Google.APIKey != "" ||
		c.AI.OpenRouter.APIKey != "" ||
		c.AI.Ollama.Enabled
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

// envList reads a comma-separated list, dropping empty items.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
