package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/glyphoxa/internal/config"
)

func TestValidate_MultipleErrorsJoined(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: chatty
memory:
  tokenizer_name: gpt2
  link_window: 0s
  semantic_link_k: 0
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	for _, want := range []string{"log_level", "tokenizer_name", "link_window", "semantic_link_k", "postgres.dsn"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("error should mention %q, got: %v", want, errStr)
		}
	}
}

func TestValidate_WellFormedConfigIsValid(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: info
postgres:
  dsn: "postgres://localhost/test"
memory:
  thinking_budget: 100
  max_tokens: 4096
  embedding_dimension: 384
  tokenizer_name: cl100k_base
  link_window: 24h
  semantic_link_k: 20
  semantic_link_threshold: 0.7
  dedupe_threshold: 0.95
  ranking_weights:
    activation: 0.30
    semantic: 0.30
    recency: 0.25
    frequency: 0.15
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
