package config

import (
	"os"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:      HTTPConfig{Port: 8080},
		Database:  DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Embedding: EmbeddingConfig{Model: "text-embedding-3-small"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingDatabaseAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_MissingEmbeddingModel(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Model = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing embedding model")
	}
}

func TestValidate_RerankWeightsMustSumToOne(t *testing.T) {
	cfg := validConfig()
	cfg.Rerank.Weights = RerankWeights{Similarity: 0.5, Title: 0.3, Recency: 0.3}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for weights not summing to 1.0")
	}
}

func TestValidate_InvalidBudgetAction(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Budget.Action = "invalid_action"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid budget action")
	}
}

func TestValidate_ValidBudgetActions(t *testing.T) {
	for _, action := range []string{"", "warn", "reject"} {
		t.Run("action="+action, func(t *testing.T) {
			cfg := validConfig()
			cfg.Embedding.Budget.Action = action
			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid action %q: %v", action, err)
			}
		})
	}
}

func TestValidate_MinScoreRange(t *testing.T) {
	cfg := validConfig()
	cfg.Search.DefaultMinScore = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for min score above 1")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Search.OverFetchMultiplier != 3 {
		t.Errorf("expected OverFetchMultiplier=3, got %d", cfg.Search.OverFetchMultiplier)
	}
	if cfg.Search.DefaultMinScore != 0.5 {
		t.Errorf("expected DefaultMinScore=0.5, got %g", cfg.Search.DefaultMinScore)
	}
	if cfg.Rerank.RecencyHalfLifeDays != 365 {
		t.Errorf("expected RecencyHalfLifeDays=365, got %g", cfg.Rerank.RecencyHalfLifeDays)
	}
	w := cfg.Rerank.Weights
	if w.Similarity != 0.5 || w.Title != 0.3 || w.Recency != 0.2 {
		t.Errorf("expected default weights 0.5/0.3/0.2, got %+v", w)
	}
	if cfg.RAG.RequestTimeoutSec != 30 {
		t.Errorf("expected RequestTimeoutSec=30, got %d", cfg.RAG.RequestTimeoutSec)
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("NEWSRAG_TEST_KEY", "secret")
	defer os.Unsetenv("NEWSRAG_TEST_KEY")

	out := expandEnvVars([]byte("api_key: ${NEWSRAG_TEST_KEY}"))
	if string(out) != "api_key: secret" {
		t.Errorf("unexpected expansion: %q", out)
	}

	out = expandEnvVars([]byte("model: ${NEWSRAG_UNSET_VAR:-fallback-model}"))
	if string(out) != "model: fallback-model" {
		t.Errorf("unexpected default expansion: %q", out)
	}
}
