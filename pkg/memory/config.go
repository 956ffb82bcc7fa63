package memory

import (
	"errors"
	"fmt"
	"time"
)

// Config collects every tunable named in the engine's external-interface
// contract. It is constructed programmatically or decoded from YAML by
// internal/config; no CLI flags or environment variables are part of the
// core contract.
type Config struct {
	// ThinkingBudget is the default upper bound on candidates a retrieval
	// path explores, trading latency for recall.
	ThinkingBudget int `yaml:"thinking_budget"`

	// MaxTokens is the default token ceiling applied by [BudgetFilter].
	MaxTokens int `yaml:"max_tokens"`

	// EnableTrace is the default for whether [Retriever.Search] builds a
	// [SearchTrace].
	EnableTrace bool `yaml:"enable_trace"`

	// EmbeddingDimension is the fixed dimensionality of stored embeddings.
	EmbeddingDimension int `yaml:"embedding_dimension"`

	// EmbeddingModel identifies the embedding model the [Embedder]
	// collaborator is expected to use, for observability/config-drift
	// detection only — the engine does not call the model directly.
	EmbeddingModel string `yaml:"embedding_model"`

	// TokenizerName names the BPE tokenizer used by [BudgetFilter].
	// Currently only "cl100k_base" is supported.
	TokenizerName string `yaml:"tokenizer_name"`

	// RerankerModel identifies the cross-encoder model identifier the
	// [Reranker] collaborator is expected to use.
	RerankerModel string `yaml:"reranker_model"`

	// LinkWindow (W) is the maximum event-date delta for a temporal link.
	LinkWindow time.Duration `yaml:"link_window"`

	// SemanticLinkK (K_sem) is the neighbor count probed when building
	// semantic links for a newly inserted unit.
	SemanticLinkK int `yaml:"semantic_link_k"`

	// SemanticLinkThreshold (theta_sem) is the minimum cosine similarity
	// for a semantic link to be created.
	SemanticLinkThreshold float64 `yaml:"semantic_link_threshold"`

	// DedupeThreshold is the configured cosine-similarity threshold for the
	// ingest-time dedupe probe. It is validated here, but [Ingestor] does
	// not read it: its probe always uses 0.95, the default value.
	DedupeThreshold float64 `yaml:"dedupe_threshold"`

	// Weights are the ranking-score blend weights; must sum to ~1.
	Weights RankingWeights `yaml:"ranking_weights"`
}

// RankingWeights blends the four ranking signals computed in §4.13.
type RankingWeights struct {
	Activation float64 `yaml:"activation"`
	Semantic   float64 `yaml:"semantic"`
	Recency    float64 `yaml:"recency"`
	Frequency  float64 `yaml:"frequency"`
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		ThinkingBudget:        100,
		MaxTokens:             4096,
		EnableTrace:           false,
		EmbeddingDimension:    EmbeddingDim,
		EmbeddingModel:        "",
		TokenizerName:         "cl100k_base",
		RerankerModel:         "",
		LinkWindow:            24 * time.Hour,
		SemanticLinkK:         20,
		SemanticLinkThreshold: 0.7,
		DedupeThreshold:       0.95,
		Weights: RankingWeights{
			Activation: 0.30,
			Semantic:   0.30,
			Recency:    0.25,
			Frequency:  0.15,
		},
	}
}

// Validate checks cfg against the invariants the engine depends on, joining
// every violation via [errors.Join] so callers see the complete picture in
// one pass, mirroring internal/config's loader.
func (c Config) Validate() error {
	var errs []error
	if c.ThinkingBudget < 0 {
		errs = append(errs, fmt.Errorf("thinking_budget must be >= 0, got %d", c.ThinkingBudget))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("max_tokens must be >= 0, got %d", c.MaxTokens))
	}
	if c.EmbeddingDimension <= 0 {
		errs = append(errs, fmt.Errorf("embedding_dimension must be > 0, got %d", c.EmbeddingDimension))
	}
	if c.TokenizerName != "cl100k_base" {
		errs = append(errs, fmt.Errorf("tokenizer_name: unsupported tokenizer %q", c.TokenizerName))
	}
	if c.LinkWindow <= 0 {
		errs = append(errs, fmt.Errorf("link_window must be > 0, got %s", c.LinkWindow))
	}
	if c.SemanticLinkK <= 0 {
		errs = append(errs, fmt.Errorf("semantic_link_k must be > 0, got %d", c.SemanticLinkK))
	}
	if c.SemanticLinkThreshold < 0 || c.SemanticLinkThreshold > 1 {
		errs = append(errs, fmt.Errorf("semantic_link_threshold must be in [0,1], got %f", c.SemanticLinkThreshold))
	}
	if c.DedupeThreshold < 0 || c.DedupeThreshold > 1 {
		errs = append(errs, fmt.Errorf("dedupe_threshold must be in [0,1], got %f", c.DedupeThreshold))
	}
	sum := c.Weights.Activation + c.Weights.Semantic + c.Weights.Recency + c.Weights.Frequency
	if sum < 0.99 || sum > 1.01 {
		errs = append(errs, fmt.Errorf("ranking_weights must sum to ~1, got %f", sum))
	}
	return errors.Join(errs...)
}
