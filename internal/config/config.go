package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the newsrag API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Search     SearchConfig     `yaml:"search"`
	Rerank     RerankConfig     `yaml:"rerank"`
	RAG        RAGConfig        `yaml:"rag"`
	Backfill   BackfillConfig   `yaml:"backfill"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider         string       `yaml:"provider"`
	APIKey           string       `yaml:"api_key"`
	BaseURL          string       `yaml:"base_url"`
	Model            string       `yaml:"model"`
	Dimensions       int          `yaml:"dimensions"`
	BatchSize        int          `yaml:"batch_size"`
	QueryInstruction string       `yaml:"query_instruction"`
	DocInstruction   string       `yaml:"document_instruction"`
	Budget           BudgetConfig `yaml:"budget"`
}

// GenerationConfig holds LLM generation provider settings.
type GenerationConfig struct {
	Provider  string `yaml:"provider"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// SearchConfig holds similarity search settings.
type SearchConfig struct {
	OverFetchMultiplier int     `yaml:"over_fetch_multiplier"`
	DefaultMinScore     float64 `yaml:"default_min_score"`
	DefaultLimit        int     `yaml:"default_limit"`
}

// RerankWeights is the composite scoring weight triple. Must sum to 1.0.
type RerankWeights struct {
	Similarity float64 `yaml:"similarity"`
	Title      float64 `yaml:"title"`
	Recency    float64 `yaml:"recency"`
}

// Sum returns the total of the three weights.
func (w RerankWeights) Sum() float64 {
	return w.Similarity + w.Title + w.Recency
}

// RerankConfig holds reranking settings.
type RerankConfig struct {
	Weights             RerankWeights `yaml:"weights"`
	RecencyHalfLifeDays float64       `yaml:"recency_half_life_days"`
}

// RAGConfig holds RAG orchestration settings.
type RAGConfig struct {
	DefaultTopK        int     `yaml:"default_top_k"`
	RequestTimeoutSec  int     `yaml:"request_timeout_sec"`
	SummaryMinScore    float64 `yaml:"summary_min_score"`
	MaxContextArticles int     `yaml:"max_context_articles"`
}

// BackfillConfig holds embedding backfill job settings.
type BackfillConfig struct {
	Workers   int `yaml:"workers"`
	BatchSize int `yaml:"batch_size"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 1024
	}
	if c.Search.OverFetchMultiplier <= 0 {
		c.Search.OverFetchMultiplier = 3
	}
	if c.Search.DefaultMinScore <= 0 {
		c.Search.DefaultMinScore = 0.5
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 10
	}
	if c.Rerank.Weights.Sum() == 0 {
		c.Rerank.Weights = RerankWeights{Similarity: 0.5, Title: 0.3, Recency: 0.2}
	}
	if c.Rerank.RecencyHalfLifeDays <= 0 {
		c.Rerank.RecencyHalfLifeDays = 365
	}
	if c.RAG.DefaultTopK <= 0 {
		c.RAG.DefaultTopK = 5
	}
	if c.RAG.RequestTimeoutSec <= 0 {
		c.RAG.RequestTimeoutSec = 30
	}
	if c.RAG.SummaryMinScore <= 0 {
		c.RAG.SummaryMinScore = 0.3
	}
	if c.RAG.MaxContextArticles <= 0 {
		c.RAG.MaxContextArticles = 3
	}
	if c.Backfill.Workers <= 0 {
		c.Backfill.Workers = 4
	}
	if c.Backfill.BatchSize <= 0 {
		c.Backfill.BatchSize = 16
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if math.Abs(c.Rerank.Weights.Sum()-1.0) > 1e-9 {
		return fmt.Errorf("rerank.weights must sum to 1.0, got %g", c.Rerank.Weights.Sum())
	}
	if c.Search.DefaultMinScore < 0 || c.Search.DefaultMinScore > 1 {
		return fmt.Errorf("search.default_min_score must be in [0, 1], got %g", c.Search.DefaultMinScore)
	}
	if c.RAG.SummaryMinScore < 0 || c.RAG.SummaryMinScore > 1 {
		return fmt.Errorf("rag.summary_min_score must be in [0, 1], got %g", c.RAG.SummaryMinScore)
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"embedding.budget.action must be \"warn\" or \"reject\", got %q",
			c.Embedding.Budget.Action,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
