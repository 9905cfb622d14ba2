// Package config loads application configuration from environment variables.
// All variables use the QUIZ_ prefix. A .env file, when present, is read
// first and never overrides variables already set.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Store    StoreConfig
	AI       AIConfig
	Grading  GradingConfig
	Document DocumentConfig
	Log      LogConfig
	SeedPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	Host           string
	AllowedOrigins []string // extra WebSocket origin patterns
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL keeps
// attempt history in memory.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Redis connection settings.
type CacheConfig struct {
	URL string
}

// StoreConfig selects where quizzes live.
type StoreConfig struct {
	Backend string        // "memory" or "redis"
	TTL     time.Duration // redis only; 0 keeps quizzes forever
}

// AIConfig holds configuration for all AI providers.
type AIConfig struct {
	OpenAI      OpenAIConfig
	DeepSeek    DeepSeekConfig
	Google      GoogleConfig
	Ollama      OllamaConfig
	ChatModel   string // overrides each provider's default chat model
	EmbedModel  string // overrides each provider's default embedding model
	EmbedCache  bool
	TokenBudget int64 // per client; 0 is unlimited
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	APIKey string
}

// DeepSeekConfig holds DeepSeek provider settings (OpenAI-compatible).
type DeepSeekConfig struct {
	APIKey string
}

// GoogleConfig holds Google Gemini provider settings.
type GoogleConfig struct {
	APIKey string
}

// OllamaConfig holds self-hosted Ollama settings.
type OllamaConfig struct {
	Enabled bool
	URL     string
}

// GradingConfig holds similarity scoring settings.
type GradingConfig struct {
	Threshold          float64
	DuplicateThreshold float64
	EmbedTimeout       time.Duration
	Concurrency        int
}

// DocumentConfig holds chunking settings.
type DocumentConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads .env (if any) and then QUIZ_ environment variables.
func Load() (*Config, error) {
	return LoadFrom(".env")
}

// LoadFrom is Load with an explicit dotenv path. A missing file is ignored.
func LoadFrom(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           envInt("QUIZ_SERVER_PORT", 8000),
			Host:           envStr("QUIZ_SERVER_HOST", "0.0.0.0"),
			AllowedOrigins: envList("QUIZ_SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:      envStr("QUIZ_DATABASE_URL", ""),
			MaxConns: envInt("QUIZ_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("QUIZ_DATABASE_MIN_CONNS", 2),
		},
		Cache: CacheConfig{
			URL: envStr("QUIZ_CACHE_URL", ""),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(envStr("QUIZ_STORE_BACKEND", "memory")),
			TTL:     envDuration("QUIZ_STORE_TTL", 24*time.Hour),
		},
		AI: AIConfig{
			OpenAI: OpenAIConfig{
				APIKey: envStr("QUIZ_AI_OPENAI_API_KEY", ""),
			},
			DeepSeek: DeepSeekConfig{
				APIKey: envStr("QUIZ_AI_DEEPSEEK_API_KEY", ""),
			},
			Google: GoogleConfig{
				APIKey: envStr("QUIZ_AI_GOOGLE_API_KEY", ""),
			},
			Ollama: OllamaConfig{
				Enabled: envBool("QUIZ_AI_OLLAMA_ENABLED", false),
				URL:     envStr("QUIZ_AI_OLLAMA_URL", "http://localhost:11434"),
			},
			ChatModel:   envStr("QUIZ_AI_CHAT_MODEL", ""),
			EmbedModel:  envStr("QUIZ_AI_EMBED_MODEL", ""),
			EmbedCache:  envBool("QUIZ_AI_EMBED_CACHE", true),
			TokenBudget: int64(envInt("QUIZ_AI_TOKEN_BUDGET", 0)),
		},
		Grading: GradingConfig{
			Threshold:          envFloat("QUIZ_GRADING_THRESHOLD", 0.50),
			DuplicateThreshold: envFloat("QUIZ_DUPLICATE_THRESHOLD", 0.65),
			EmbedTimeout:       envDuration("QUIZ_EMBED_TIMEOUT", 10*time.Second),
			Concurrency:        envInt("QUIZ_GRADING_CONCURRENCY", 4),
		},
		Document: DocumentConfig{
			ChunkSize:    envInt("QUIZ_CHUNK_SIZE", 1000),
			ChunkOverlap: envInt("QUIZ_CHUNK_OVERLAP", 200),
		},
		Log: LogConfig{
			Level:  strings.ToLower(envStr("QUIZ_LOG_LEVEL", "info")),
			Format: strings.ToLower(envStr("QUIZ_LOG_FORMAT", "json")),
		},
		SeedPath: envStr("QUIZ_SEED_PATH", ""),
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory":
	case "redis":
		if c.Cache.URL == "" {
			return fmt.Errorf("QUIZ_CACHE_URL is required when QUIZ_STORE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("QUIZ_STORE_BACKEND must be 'memory' or 'redis', got %q", c.Store.Backend)
	}

	if !inUnitRange(c.Grading.Threshold) {
		return fmt.Errorf("QUIZ_GRADING_THRESHOLD must be in [0,1], got %v", c.Grading.Threshold)
	}
	if !inUnitRange(c.Grading.DuplicateThreshold) {
		return fmt.Errorf("QUIZ_DUPLICATE_THRESHOLD must be in [0,1], got %v", c.Grading.DuplicateThreshold)
	}
	if c.Grading.Concurrency < 1 {
		return fmt.Errorf("QUIZ_GRADING_CONCURRENCY must be positive, got %d", c.Grading.Concurrency)
	}

	if c.Document.ChunkSize < 1 || c.Document.ChunkOverlap < 0 || c.Document.ChunkOverlap >= c.Document.ChunkSize {
		return fmt.Errorf("chunking needs 0 <= QUIZ_CHUNK_OVERLAP < QUIZ_CHUNK_SIZE, got %d and %d",
			c.Document.ChunkOverlap, c.Document.ChunkSize)
	}

	if !c.HasEmbeddingProvider() {
		return fmt.Errorf("an embedding provider is required: set QUIZ_AI_OPENAI_API_KEY, QUIZ_AI_GOOGLE_API_KEY or QUIZ_AI_OLLAMA_ENABLED")
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("QUIZ_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	return nil
}

// HasAIProvider returns true if at least one completion provider is configured.
func (c *Config) HasAIProvider() bool {
	return c.AI.OpenAI.APIKey != "" ||
		c.AI.DeepSeek.APIKey != "" ||
		c.AI.Google.APIKey != "" ||
		c.AI.Ollama.Enabled
}

// HasEmbeddingProvider returns true if a provider that can embed text is
// configured. DeepSeek has no embeddings endpoint.
func (c *Config) HasEmbeddingProvider() bool {
	return c.AI.OpenAI.APIKey != "" ||
		c.AI.Google.APIKey != "" ||
		c.AI.Ollama.Enabled
}

// SlogLevel maps the configured level name.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("QUIZ_LOG_LEVEL: %w", err)
	}
	return level, nil
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
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

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
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

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
