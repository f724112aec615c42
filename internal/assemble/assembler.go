// Package assemble reassembles a translated book from its chunks into
// ordered, chapter-aligned sections ready for packaging.
package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackzampolin/folio/internal/store"
)

// IncompleteBookError is returned when assembling a book that still has
// untranslated chunks and partial output was not requested.
type IncompleteBookError struct {
	BookID  string
	Missing []int // sequence indices not in done state
}

func (e *IncompleteBookError) Error() string {
	return fmt.Sprintf("book %s incomplete: %d chunks untranslated", e.BookID, len(e.Missing))
}

// Chapter is one assembled chapter of translated text.
type Chapter struct {
	Number int
	Title  string
	Text   string
}

// Result is an assembled book.
type Result struct {
	Book     *store.Book
	Chapters []Chapter

	// MissingSeqs lists chunks that were skipped because they were not
	// done. Empty unless AllowPartial was set.
	MissingSeqs []int
}

// Config configures an Assembler.
type Config struct {
	Store *store.Store

	// AllowPartial assembles whatever is done, leaving gap markers where
	// chunks are missing, instead of failing on an incomplete book.
	AllowPartial bool

	Logger *slog.Logger
}

// Assembler stitches chunk translations back together in sequence order,
// splitting on the persisted chapter markers.
type Assembler struct {
	store        *store.Store
	allowPartial bool
	logger       *slog.Logger
}

// New creates an Assembler.
func New(cfg Config) *Assembler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Assembler{
		store:        cfg.Store,
		allowPartial: cfg.AllowPartial,
		logger:       cfg.Logger,
	}
}

// Assemble builds the chapter-aligned translation of a book. Chunks that
// carry no chapter marker belong to the chapter opened by the nearest
// preceding marker; text before the first marker becomes a front-matter
// chapter numbered 0.
func (a *Assembler) Assemble(ctx context.Context, bookID string) (*Result, error) {
	book, err := a.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	chunks, err := a.store.Chunks(ctx, bookID)
	if err != nil {
		return nil, err
	}

	var missing []int
	for _, c := range chunks {
		if c.State != store.ChunkDone {
			missing = append(missing, c.Seq)
		}
	}
	if len(missing) > 0 && !a.allowPartial {
		return nil, &IncompleteBookError{BookID: bookID, Missing: missing}
	}

	res := &Result{Book: book, MissingSeqs: missing}

	var (
		current *Chapter
		body    strings.Builder
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.TrimSpace(body.String())
		res.Chapters = append(res.Chapters, *current)
		body.Reset()
	}

	for _, c := range chunks {
		if c.ChapterNumber > 0 {
			flush()
			current = &Chapter{Number: c.ChapterNumber, Title: c.ChapterTitle}
		} else if current == nil {
			// Front matter before the first detected chapter.
			current = &Chapter{Number: 0}
		}

		if c.State != store.ChunkDone {
			fmt.Fprintf(&body, "\n\n[untranslated chunk %d]\n\n", c.Seq)
			continue
		}
		if body.Len() > 0 {
			body.WriteString("\n\n")
		}
		body.WriteString(c.Translated)
	}
	flush()

	if len(missing) > 0 {
		a.logger.Warn("assembled partial book", "book", bookID, "missing", len(missing))
	}
	return res, nil
}
