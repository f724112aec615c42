// Package translate drives pending chunks through a completion client
// until they are done or out of retry budget. The per-attempt transition
// logic lives in outcome.go; this file owns the retry loop, backoff, and
// usage accounting around it.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/folio/internal/providers"
	"github.com/jackzampolin/folio/internal/store"
	"github.com/jackzampolin/folio/internal/usage"
)

// ErrAttemptsExhausted is returned when a chunk used its whole attempt
// budget without an accepted translation.
var ErrAttemptsExhausted = errors.New("attempt budget exhausted")

// OrchestratorConfig configures the retry orchestrator.
type OrchestratorConfig struct {
	Client    providers.CompletionClient
	Limiter   *providers.RateLimiter
	Validator Validator
	Sink      *usage.Sink

	SourceLang string // hint for the prompt; empty is allowed
	TargetLang string

	MaxAttempts uint          // total attempts per chunk (default: 3)
	BaseDelay   time.Duration // first backoff delay (default: 1s)
	MaxDelay    time.Duration // backoff cap (default: 30s)

	Logger *slog.Logger
}

// Orchestrator converts one pending chunk into an accepted translation or
// a terminal failure. Transport and content failures share the attempt
// budget; backoff doubles per attempt with jitter and is clamped at
// MaxDelay.
type Orchestrator struct {
	client    providers.CompletionClient
	limiter   *providers.RateLimiter
	validator Validator
	sink      *usage.Sink

	sourceLang string
	targetLang string

	maxAttempts uint
	baseDelay   time.Duration
	maxDelay    time.Duration

	logger *slog.Logger
}

// NewOrchestrator creates an orchestrator with defaults filled in.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Validator == nil {
		cfg.Validator = DefaultValidator()
	}
	if cfg.Limiter == nil {
		cfg.Limiter = providers.NewRateLimiter(cfg.Client.RequestsPerMinute())
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		client:      cfg.Client,
		limiter:     cfg.Limiter,
		validator:   cfg.Validator,
		sink:        cfg.Sink,
		sourceLang:  cfg.SourceLang,
		targetLang:  cfg.TargetLang,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
		logger:      cfg.Logger,
	}
}

// Process drives one chunk to an accepted translation, returning the
// translated text and how many attempts were spent. prior is the tail of
// the preceding chunk's translation, passed through for continuity.
//
// A nil error means success. A context error means the run was cancelled
// and the chunk should be requeued, not failed. Any other error is
// terminal for the chunk; errors.Is(err, ErrAttemptsExhausted) identifies
// budget exhaustion as opposed to a fatal call error.
func (o *Orchestrator) Process(ctx context.Context, chunk *store.Chunk, prior string) (string, int, error) {
	req := &providers.Request{
		Text:       chunk.SourceText,
		Context:    prior,
		SourceLang: o.sourceLang,
		TargetLang: o.targetLang,
		BookID:     chunk.BookID,
		Seq:        chunk.Seq,
	}

	var (
		attempts int
		accepted *providers.Result
	)

	err := retry.Do(
		func() error {
			attempts++

			if err := o.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}

			res, callErr := o.client.Translate(ctx, req)
			out := Classify(res, callErr, chunk.SourceText, o.validator)
			o.recordAttempt(chunk, res, out)

			switch out.Kind {
			case OutcomeSuccess:
				accepted = res
				return nil
			case OutcomeRetry:
				if rle, ok := providers.IsRateLimitError(out.Err); ok {
					o.limiter.Record429(rle.RetryAfter)
				}
				o.logger.Warn("attempt failed",
					"book", chunk.BookID,
					"seq", chunk.Seq,
					"attempt", attempts,
					"reason", out.Reason,
					"error", out.Err)
				return fmt.Errorf("%s: %w", out.Reason, out.Err)
			default:
				return retry.Unrecoverable(out.Err)
			}
		},
		retry.Context(ctx),
		retry.Attempts(o.maxAttempts),
		retry.Delay(o.baseDelay),
		retry.MaxDelay(o.maxDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(o.baseDelay/2),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", attempts, ctx.Err()
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", attempts, err
		}
		if attempts >= int(o.maxAttempts) {
			return "", attempts, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempts, err)
		}
		return "", attempts, err
	}

	return accepted.Text, attempts, nil
}

// recordAttempt emits one usage record per call attempt, success or not.
func (o *Orchestrator) recordAttempt(chunk *store.Chunk, res *providers.Result, out Outcome) {
	if o.sink == nil {
		return
	}

	rec := usage.NewRecord(chunk.BookID, chunk.Seq)
	rec.Provider = o.client.Name()
	rec.Success = out.Kind == OutcomeSuccess
	rec.ErrorClass = out.Reason
	if res != nil {
		rec.Model = res.Model
		rec.PromptTokens = res.PromptTokens
		rec.CompletionTokens = res.CompletionTokens
		rec.TotalTokens = res.TotalTokens
		rec.CostUSD = res.CostUSD
		rec.LatencyMs = int(res.Latency.Milliseconds())
	}
	o.sink.Send(rec)
}
