package memory

import (
	"errors"
	"fmt"
)

// Kind classifies a [Error] into one of the taxonomy members the engine's
// callers are expected to branch on.
type Kind string

const (
	// KindNotFound reports a missing unit, entity or document ID.
	KindNotFound Kind = "not_found"
	// KindInvalidInput reports a malformed caller request: an empty
	// query, an unsupported fact type, a negative budget, or an
	// embedding-dimension mismatch.
	KindInvalidInput Kind = "invalid_input"
	// KindEmbeddingUnavailable reports that the [Embedder] collaborator
	// could not be reached or failed terminally.
	KindEmbeddingUnavailable Kind = "embedding_unavailable"
	// KindRerankerDegraded reports that the [Reranker] collaborator was
	// unavailable; retrieval proceeds in RRF order. Not treated as an
	// error by the [Retriever] — reported only via [SearchTrace].
	KindRerankerDegraded Kind = "reranker_degraded"
	// KindExtractorUnavailable reports that the [FactExtractor]
	// collaborator could not be reached.
	KindExtractorUnavailable Kind = "extractor_unavailable"
	// KindTemporalParserUnavailable reports that the [TemporalParser]
	// collaborator could not be reached.
	KindTemporalParserUnavailable Kind = "temporal_parser_unavailable"
	// KindStoreUnavailable reports that the persistence layer is
	// unreachable; callers should retry.
	KindStoreUnavailable Kind = "store_unavailable"
	// KindDeadlineExceeded reports a per-query timeout. Partial results
	// may still have been returned alongside this kind.
	KindDeadlineExceeded Kind = "deadline_exceeded"
	// KindConflict reports a duplicate insertion by ID, distinct from the
	// silent dedupe skip performed by the [Ingestor].
	KindConflict Kind = "conflict"
)

// Error is the engine's structured error type. Callers should use
// [errors.As] to recover it and branch on Kind rather than matching
// message strings.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a [*Error] with the same Kind, so that
// errors.Is(err, &Error{Kind: KindNotFound}) works without matching Op/Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError constructs an [*Error] for op with an optional wrapped cause.
func NewError(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// KindOf extracts the [Kind] of err if it is (or wraps) an [*Error], and
// reports whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
