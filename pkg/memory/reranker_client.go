package memory

import (
	"context"
	"fmt"
	"math"

	"github.com/MrWong99/glyphoxa/internal/resilience"
)

// RerankCalibration holds the logistic-transform parameters applied to raw
// cross-encoder scores. Swappable per §9's open question on cross-encoder
// score calibration.
type RerankCalibration struct {
	Slope     float64
	Intercept float64
}

// DefaultRerankCalibration is a standard-logistic transform (slope 1,
// intercept 0); sufficient when the underlying cross-encoder already
// outputs roughly-calibrated raw scores.
var DefaultRerankCalibration = RerankCalibration{Slope: 1, Intercept: 0}

func (c RerankCalibration) apply(raw float64) float64 {
	return 1 / (1 + math.Exp(-(c.Slope*raw + c.Intercept)))
}

// RerankerClient wraps the opaque [Reranker] collaborator with a circuit
// breaker so sustained failures degrade to RRF passthrough instead of
// blocking every query, per §4.10 and §7's RerankerDegraded propagation
// policy.
type RerankerClient struct {
	reranker    Reranker
	breaker     *resilience.CircuitBreaker
	calibration RerankCalibration
}

// NewRerankerClient constructs a [RerankerClient]. breaker may be nil, in
// which case a default breaker is created.
func NewRerankerClient(reranker Reranker, breaker *resilience.CircuitBreaker, calibration RerankCalibration) *RerankerClient {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "reranker"})
	}
	return &RerankerClient{reranker: reranker, breaker: breaker, calibration: calibration}
}

// Rerank scores candidates against query and returns them ranked
// descending by calibrated score (ties broken by ID ascending). When the
// circuit breaker is open or the reranker call fails, it returns
// (nil, true) to signal "pass through the existing order", matching
// §4.10's failure policy: not an error, tagged RerankerDegraded by the
// caller.
func (c *RerankerClient) Rerank(ctx context.Context, query string, units []MemoryUnit) (ranked []ScoredID, degraded bool) {
	if len(units) == 0 {
		return nil, false
	}

	inputs := make([]string, len(units))
	for i, u := range units {
		inputs[i] = rerankInput(u)
	}

	var raw []float64
	err := c.breaker.Execute(func() error {
		var err error
		raw, err = c.reranker.Score(ctx, query, inputs)
		return err
	})
	if err != nil {
		return nil, true
	}
	if len(raw) != len(units) {
		return nil, true
	}

	out := make([]ScoredID, len(units))
	for i, u := range units {
		out[i] = ScoredID{ID: u.ID, Score: c.calibration.apply(raw[i])}
	}
	sortScoredIDs(out)
	return out, false
}

// rerankInput builds the reranker input string per §4.10: a bracketed,
// human-readable date prefix, an optional context prefix, then the unit's
// text.
func rerankInput(u MemoryUnit) string {
	datePrefix := fmt.Sprintf("[Date: %s (%s)] ", u.EventDate.Format("January 2, 2006"), u.EventDate.Format("2006-01-02"))
	if u.Context != "" {
		return datePrefix + u.Context + " " + u.Text
	}
	return datePrefix + u.Text
}
