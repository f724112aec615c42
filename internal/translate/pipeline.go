package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/folio/internal/chapters"
	"github.com/jackzampolin/folio/internal/segment"
	"github.com/jackzampolin/folio/internal/store"
)

// PipelineConfig configures a translation pipeline.
type PipelineConfig struct {
	Store         *store.Store
	Pool          *Pool
	MaxChunkRunes int // maximum chunk size in runes (default: 4000)
	Logger        *slog.Logger
}

// Pipeline segments a source text, detects chapter boundaries, persists
// the work units, and runs the worker pool over them. Persistence happens
// before the first completion attempt; a crash at any later point resumes
// from the store.
type Pipeline struct {
	store         *store.Store
	pool          *Pool
	maxChunkRunes int
	logger        *slog.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.MaxChunkRunes <= 0 {
		cfg.MaxChunkRunes = 4000
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		store:         cfg.Store,
		pool:          cfg.Pool,
		maxChunkRunes: cfg.MaxChunkRunes,
		logger:        cfg.Logger,
	}
}

// Start segments text, persists the book, and translates it. If the book
// already exists the persisted state wins and the run resumes instead of
// re-segmenting, so re-ingesting identical text never duplicates work or
// spend.
func (p *Pipeline) Start(ctx context.Context, book *store.Book, text string) error {
	if err := p.prepare(ctx, book, text); err != nil {
		if errors.Is(err, store.ErrBookExists) {
			p.logger.Info("book already ingested, resuming", "book", book.ID)
			return p.Resume(ctx, book.ID)
		}
		return err
	}
	return p.pool.Run(ctx, book.ID)
}

// Resume runs the worker pool over whatever pending chunks the store
// holds for an existing book.
func (p *Pipeline) Resume(ctx context.Context, bookID string) error {
	if _, err := p.store.GetBook(ctx, bookID); err != nil {
		return err
	}
	return p.pool.Run(ctx, bookID)
}

// prepare segments and persists a new book. Segmentation and chapter
// validation errors are fatal configuration/input problems, never
// retried.
func (p *Pipeline) prepare(ctx context.Context, book *store.Book, text string) error {
	pieces, err := segment.Split(text, p.maxChunkRunes)
	if err != nil {
		return fmt.Errorf("segmentation failed: %w", err)
	}

	bounds, err := chapters.NewDetector().Detect(text)
	if err != nil {
		return fmt.Errorf("chapter detection failed: %w", err)
	}

	offsets := make([]int, len(pieces))
	for i, piece := range pieces {
		offsets[i] = piece.Offset
	}
	assigned := chapters.AssignToChunks(bounds, offsets)

	chunks := make([]store.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = store.Chunk{
			Seq:          piece.Index,
			SourceText:   piece.Text,
			SourceOffset: piece.Offset,
		}
	}
	for bi, ci := range assigned {
		if ci < 0 {
			ci = 0
		}
		// First boundary in a chunk wins; headings are sparse relative to
		// chunk size so collisions only happen with very small chunks.
		if chunks[ci].ChapterNumber == 0 {
			chunks[ci].ChapterNumber = bounds[bi].Number
			chunks[ci].ChapterTitle = bounds[bi].Title
		}
	}

	if err := p.store.CreateBook(ctx, book, chunks); err != nil {
		return err
	}

	p.logger.Info("book prepared",
		"book", book.ID,
		"chunks", len(chunks),
		"chapters", len(bounds))
	return nil
}
