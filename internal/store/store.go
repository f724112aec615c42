// Package store is the durable job store for translation runs. It owns the
// Book and Chunk lifecycle: chunks are persisted before any completion call
// is attempted, every state transition is a single atomic statement, and a
// restarted process can always resume from what is on disk.
//
// The store is the only component allowed to mutate chunk state. Workers
// request transitions through its interface so persisted and in-memory
// state never diverge.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jackzampolin/folio/internal/usage"
)

var (
	// ErrBookExists is returned when creating a book whose ID is already
	// present. Re-ingesting identical text should resume, not recreate.
	ErrBookExists = errors.New("book already exists")

	// ErrNotFound is returned for lookups of unknown books or chunks.
	ErrNotFound = errors.New("not found")

	// ErrNoPending is returned by ClaimNext when no chunk is claimable.
	ErrNoPending = errors.New("no pending chunks")
)

// BookStatus is the aggregate status of a book.
type BookStatus string

const (
	BookPending    BookStatus = "pending"
	BookInProgress BookStatus = "in_progress"
	BookComplete   BookStatus = "complete"
	BookFailed     BookStatus = "failed"
)

// ChunkState is the state of one chunk in the translation state machine.
//
//	pending → in_flight → {done | failed}
//
// in_flight → pending happens on requeue (cancellation, crash recovery).
// failed → pending happens only via explicit ResetFailed. done and failed
// are terminal for automatic processing.
type ChunkState string

const (
	ChunkPending  ChunkState = "pending"
	ChunkInFlight ChunkState = "in_flight"
	ChunkDone     ChunkState = "done"
	ChunkFailed   ChunkState = "failed"
)

// Book is one source document under translation.
type Book struct {
	ID         string
	Title      string
	Author     string
	SourceLang string
	TargetLang string
	Status     BookStatus
	CostUSD    float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Chunk is one unit of translatable text. Seq is the immutable zero-based
// sequence index; a book's chunks form a contiguous range with no gaps.
type Chunk struct {
	BookID       string
	Seq          int
	SourceText   string
	Translated   string
	State        ChunkState
	Attempts     int
	LastError    string
	SourceOffset int

	// ChapterNumber/ChapterTitle mark the chapter, if any, that begins
	// within this chunk. Zero means no chapter starts here.
	ChapterNumber int
	ChapterTitle  string
}

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the store at path and recovers any chunks
// left in_flight by a previous run. In-flight status is never trusted
// across process lifetimes.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; serialize access through a single conn to
	// avoid SQLITE_BUSY under concurrent workers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	recovered, err := s.RecoverOrphans(context.Background())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to recover orphaned chunks: %w", err)
	}
	if recovered > 0 {
		logger.Info("recovered orphaned in-flight chunks", "count", recovered)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS books (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		source_lang TEXT NOT NULL DEFAULT '',
		target_lang TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		cost_usd REAL NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		book_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		source_text TEXT NOT NULL,
		translated_text TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		source_offset INTEGER NOT NULL DEFAULT 0,
		chapter_number INTEGER NOT NULL DEFAULT 0,
		chapter_title TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (book_id, seq),
		FOREIGN KEY (book_id) REFERENCES books(id)
	);

	-- usage_records is append-only: rows are never updated in place.
	CREATE TABLE IF NOT EXISTS usage_records (
		id TEXT PRIMARY KEY,
		book_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		provider TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		prompt_tokens INTEGER NOT NULL DEFAULT 0,
		completion_tokens INTEGER NOT NULL DEFAULT 0,
		total_tokens INTEGER NOT NULL DEFAULT 0,
		cost_usd REAL NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		success BOOLEAN NOT NULL DEFAULT FALSE,
		error_class TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_claim ON chunks(book_id, state, seq);
	CREATE INDEX IF NOT EXISTS idx_usage_book ON usage_records(book_id, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateBook persists a book and all of its chunks in one transaction, all
// chunks pending. If the process crashes after this returns, resumption is
// always possible without re-segmenting.
func (s *Store) CreateBook(ctx context.Context, book *Book, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO books (id, title, author, source_lang, target_lang, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID, book.Title, book.Author, book.SourceLang, book.TargetLang, BookPending, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrBookExists, book.ID)
		}
		return fmt.Errorf("failed to insert book: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (book_id, seq, source_text, state, source_offset, chapter_number, chapter_title, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if c.Seq != i {
			return fmt.Errorf("chunk sequence not contiguous: index %d has seq %d", i, c.Seq)
		}
		if _, err := stmt.ExecContext(ctx, book.ID, c.Seq, c.SourceText, ChunkPending,
			c.SourceOffset, c.ChapterNumber, c.ChapterTitle, now); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", c.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit book: %w", err)
	}

	s.logger.Info("book created", "book", book.ID, "chunks", len(chunks))
	return nil
}

// GetBook returns a book by ID.
func (s *Store) GetBook(ctx context.Context, id string) (*Book, error) {
	var b Book
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, author, source_lang, target_lang, status, cost_usd, created_at, updated_at
		 FROM books WHERE id = ?`, id).
		Scan(&b.ID, &b.Title, &b.Author, &b.SourceLang, &b.TargetLang, &b.Status, &b.CostUSD, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: book %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBooks returns all books ordered by creation time.
func (s *Store) ListBooks(ctx context.Context) ([]*Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, author, source_lang, target_lang, status, cost_usd, created_at, updated_at
		 FROM books ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.SourceLang, &b.TargetLang,
			&b.Status, &b.CostUSD, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		books = append(books, &b)
	}
	return books, rows.Err()
}

// DeleteBook removes a book, its chunks and its usage records. Books are
// only ever destroyed by this explicit call, never implicitly.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: book %s", ErrNotFound, id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE book_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM usage_records WHERE book_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// AppendUsage records one completion-call attempt. Records are append-only
// and the book's accumulated cost is bumped in the same transaction.
func (s *Store) AppendUsage(ctx context.Context, rec *usage.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO usage_records (id, book_id, seq, provider, model, prompt_tokens, completion_tokens,
		 total_tokens, cost_usd, latency_ms, success, error_class, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.BookID, rec.Seq, rec.Provider, rec.Model, rec.PromptTokens, rec.CompletionTokens,
		rec.TotalTokens, rec.CostUSD, rec.LatencyMs, rec.Success, rec.ErrorClass, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append usage record: %w", err)
	}

	if rec.CostUSD > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE books SET cost_usd = cost_usd + ?, updated_at = ? WHERE id = ?`,
			rec.CostUSD, time.Now().UTC(), rec.BookID); err != nil {
			return fmt.Errorf("failed to update book cost: %w", err)
		}
	}

	return tx.Commit()
}

// UsageForBook returns all usage records for a book in insertion order.
func (s *Store) UsageForBook(ctx context.Context, bookID string) ([]*usage.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, book_id, seq, provider, model, prompt_tokens, completion_tokens, total_tokens,
		 cost_usd, latency_ms, success, error_class, created_at
		 FROM usage_records WHERE book_id = ? ORDER BY created_at, id`, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*usage.Record
	for rows.Next() {
		var r usage.Record
		if err := rows.Scan(&r.ID, &r.BookID, &r.Seq, &r.Provider, &r.Model, &r.PromptTokens,
			&r.CompletionTokens, &r.TotalTokens, &r.CostUSD, &r.LatencyMs, &r.Success,
			&r.ErrorClass, &r.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, &r)
	}
	return recs, rows.Err()
}

// isUniqueViolation reports whether err is a primary-key/unique failure.
// modernc.org/sqlite surfaces constraint violations in the error string;
// there is no exported error type to match on.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
