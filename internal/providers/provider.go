// Package providers contains the completion clients that perform the
// actual translation calls, plus the rate limiting and error
// classification shared by all of them. Errors are split into transport
// failures (retryable, the provider misbehaved) and everything else;
// content-quality failures are judged by the caller, not here.
package providers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// CompletionClient is the interface for translation completion calls.
type CompletionClient interface {
	// Translate sends one chunk for translation.
	Translate(ctx context.Context, req *Request) (*Result, error)

	// Name returns the client identifier (e.g., "openai").
	Name() string

	// RequestsPerMinute returns the RPM limit for rate limiting.
	RequestsPerMinute() int
}

// Request is a single chunk translation request.
type Request struct {
	// Text is the chunk source text to translate.
	Text string

	// Context is the tail of the preceding chunk's translation, passed
	// for narrative continuity. May be empty for the first chunk.
	Context string

	SourceLang string
	TargetLang string

	// Request tracking
	BookID string
	Seq    int
}

// Result is the response from a completion call.
type Result struct {
	// Text is the translated text.
	Text string

	// Provider info
	Provider string
	Model    string

	// Token counts and cost
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUSD          float64

	Latency time.Duration
}

// TransportError is a provider-side failure (timeouts, 5xx, malformed
// responses). Transport errors are retryable.
type TransportError struct {
	StatusCode int
	Message    string
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider transport error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider transport error: %s", e.Message)
}

// RateLimitError is a 429 from the provider. Retryable, optionally with a
// provider-suggested delay.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// IsRateLimitError checks if an error is a rate limit error.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// IsRetryable reports whether err is worth retrying against the same
// provider. Rate limits and transport failures are; everything else
// (auth failures, bad requests, context cancellation) is not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := IsRateLimitError(err); ok {
		return true
	}
	var te *TransportError
	return errors.As(err, &te)
}

// parseRetryAfter parses a Retry-After header value in seconds.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
