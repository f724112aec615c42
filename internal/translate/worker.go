package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jackzampolin/folio/internal/store"
)

// PoolConfig configures a worker pool.
type PoolConfig struct {
	Store        *store.Store
	Orchestrator *Orchestrator
	Workers      int // concurrent workers (default: 4)
	ContextWords int // words of prior translation carried forward (default: 100)
	Logger       *slog.Logger
}

// Pool runs N workers against a book's pending chunks. The store's claim
// operation is the only serialization point; workers never coordinate
// with each other directly.
type Pool struct {
	store        *store.Store
	orch         *Orchestrator
	workers      int
	contextWords int
	logger       *slog.Logger
}

// NewPool creates a worker pool.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.ContextWords < 0 {
		cfg.ContextWords = 0
	} else if cfg.ContextWords == 0 {
		cfg.ContextWords = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pool{
		store:        cfg.Store,
		orch:         cfg.Orchestrator,
		workers:      cfg.Workers,
		contextWords: cfg.ContextWords,
		logger:       cfg.Logger,
	}
}

// Run processes the book's pending chunks until none remain or ctx is
// cancelled. Chunks in flight at cancellation are requeued, never failed.
// The first store error encountered is returned; translation failures are
// persisted per chunk and do not abort the run.
func (p *Pool) Run(ctx context.Context, bookID string) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			if err := p.work(ctx, bookID, worker); err != nil {
				fail(err)
			}
		}(i)
	}
	wg.Wait()

	return firstErr
}

func (p *Pool) work(ctx context.Context, bookID string, worker int) error {
	log := p.logger.With("book", bookID, "worker", worker)

	for {
		if ctx.Err() != nil {
			return nil
		}

		chunk, err := p.store.ClaimNext(ctx, bookID)
		if errors.Is(err, store.ErrNoPending) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to claim chunk: %w", err)
		}

		prior := p.priorContext(ctx, chunk)
		text, attempts, err := p.orch.Process(ctx, chunk, prior)

		// State transitions run on a background context: a cancelled run
		// must still persist the outcome of work already paid for.
		switch {
		case err == nil:
			if err := p.store.MarkDone(context.Background(), bookID, chunk.Seq, text, attempts); err != nil {
				return fmt.Errorf("failed to mark chunk %d done: %w", chunk.Seq, err)
			}
			log.Info("chunk translated", "seq", chunk.Seq, "attempts", attempts)

		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			if rqErr := p.store.Requeue(context.Background(), bookID, chunk.Seq); rqErr != nil {
				return fmt.Errorf("failed to requeue chunk %d: %w", chunk.Seq, rqErr)
			}
			log.Info("chunk requeued on cancellation", "seq", chunk.Seq)
			return nil

		default:
			if mfErr := p.store.MarkFailed(context.Background(), bookID, chunk.Seq, err.Error(), attempts); mfErr != nil {
				return fmt.Errorf("failed to mark chunk %d failed: %w", chunk.Seq, mfErr)
			}
			log.Error("chunk failed", "seq", chunk.Seq, "error", err)
		}
	}
}

// priorContext returns the tail of the preceding chunk's translation, if
// that chunk is already done. With parallel workers the predecessor may
// still be pending; continuity context is best effort, not a dependency.
func (p *Pool) priorContext(ctx context.Context, chunk *store.Chunk) string {
	if p.contextWords == 0 || chunk.Seq == 0 {
		return ""
	}
	prev, err := p.store.GetChunk(ctx, chunk.BookID, chunk.Seq-1)
	if err != nil || prev.State != store.ChunkDone {
		return ""
	}
	return tailWords(prev.Translated, p.contextWords)
}

// tailWords returns the last n whitespace-separated words of text.
func tailWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return strings.TrimSpace(text)
	}
	return strings.Join(words[len(words)-n:], " ")
}
