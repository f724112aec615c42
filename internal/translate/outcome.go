package translate

import (
	"context"
	"errors"

	"github.com/jackzampolin/folio/internal/providers"
)

// OutcomeKind tags the result of a single completion attempt.
type OutcomeKind int

const (
	// OutcomeSuccess means the attempt produced an accepted translation.
	OutcomeSuccess OutcomeKind = iota

	// OutcomeRetry means the attempt failed in a way worth retrying.
	OutcomeRetry

	// OutcomeTerminal means retrying cannot help (cancellation, auth
	// failures, malformed requests).
	OutcomeTerminal
)

// Reason codes recorded with failed attempts.
const (
	ReasonTransport = "transport"
	ReasonContent   = "content"
	ReasonFatal     = "fatal"
)

// Outcome is the classification of one attempt. Keeping this a plain
// value, separate from any retry loop, makes the transition logic
// testable without concurrency or timing.
type Outcome struct {
	Kind   OutcomeKind
	Reason string // empty on success
	Err    error  // underlying error, nil on success
}

// Classify maps one attempt's call result onto the outcome space. The
// validator judges content; the error type judges transport.
func Classify(res *providers.Result, callErr error, source string, v Validator) Outcome {
	if callErr != nil {
		if errors.Is(callErr, context.Canceled) || errors.Is(callErr, context.DeadlineExceeded) {
			return Outcome{Kind: OutcomeTerminal, Reason: ReasonFatal, Err: callErr}
		}
		if providers.IsRetryable(callErr) {
			return Outcome{Kind: OutcomeRetry, Reason: ReasonTransport, Err: callErr}
		}
		return Outcome{Kind: OutcomeTerminal, Reason: ReasonFatal, Err: callErr}
	}

	if err := v.Validate(source, res.Text); err != nil {
		return Outcome{Kind: OutcomeRetry, Reason: ReasonContent, Err: err}
	}

	return Outcome{Kind: OutcomeSuccess}
}
