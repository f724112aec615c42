package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ClaimNext atomically claims the lowest-seq pending chunk of a book and
// moves it to in_flight. The claim and the state flip are one UPDATE, so
// two workers can never receive the same chunk. Returns ErrNoPending when
// nothing is claimable.
func (s *Store) ClaimNext(ctx context.Context, bookID string) (*Chunk, error) {
	var c Chunk
	err := s.db.QueryRowContext(ctx,
		`UPDATE chunks SET state = ?, updated_at = ?
		 WHERE book_id = ? AND state = ? AND seq = (
			SELECT min(seq) FROM chunks WHERE book_id = ? AND state = ?
		 )
		 RETURNING book_id, seq, source_text, translated_text, state, attempts, last_error,
		           source_offset, chapter_number, chapter_title`,
		ChunkInFlight, time.Now().UTC(), bookID, ChunkPending, bookID, ChunkPending).
		Scan(&c.BookID, &c.Seq, &c.SourceText, &c.Translated, &c.State, &c.Attempts,
			&c.LastError, &c.SourceOffset, &c.ChapterNumber, &c.ChapterTitle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoPending
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim chunk: %w", err)
	}
	return &c, nil
}

// MarkDone stores the translation and moves the chunk to done. Calling it
// again for an already-done chunk is a no-op, which makes translation
// delivery effectively at-least-once safe.
func (s *Store) MarkDone(ctx context.Context, bookID string, seq int, translated string, attempts int) error {
	return s.transition(ctx, bookID, seq, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE chunks SET state = ?, translated_text = ?, attempts = ?, last_error = '', updated_at = ?
			 WHERE book_id = ? AND seq = ? AND state != ?`,
			ChunkDone, translated, attempts, time.Now().UTC(), bookID, seq, ChunkDone)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Either the chunk is already done (fine) or it does not exist.
			return s.ensureExists(ctx, tx, bookID, seq)
		}
		return nil
	})
}

// MarkFailed moves an in-flight chunk to failed with the terminal reason.
// Failed chunks stay failed until an operator runs ResetFailed; remaining
// chunks keep processing.
func (s *Store) MarkFailed(ctx context.Context, bookID string, seq int, reason string, attempts int) error {
	return s.transition(ctx, bookID, seq, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE chunks SET state = ?, last_error = ?, attempts = ?, updated_at = ?
			 WHERE book_id = ? AND seq = ? AND state = ?`,
			ChunkFailed, reason, attempts, time.Now().UTC(), bookID, seq, ChunkInFlight)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return s.ensureExists(ctx, tx, bookID, seq)
		}
		return nil
	})
}

// Requeue returns an in-flight chunk to pending without counting an
// attempt. Used on cancellation, where work is abandoned rather than
// failed.
func (s *Store) Requeue(ctx context.Context, bookID string, seq int) error {
	return s.transition(ctx, bookID, seq, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE chunks SET state = ?, updated_at = ?
			 WHERE book_id = ? AND seq = ? AND state = ?`,
			ChunkPending, time.Now().UTC(), bookID, seq, ChunkInFlight)
		return err
	})
}

// ResetFailed returns all failed chunks of a book to pending and reports
// how many were reset. This is the only path out of the failed state.
func (s *Store) ResetFailed(ctx context.Context, bookID string) (int, error) {
	var reset int
	err := s.transition(ctx, bookID, -1, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE chunks SET state = ?, last_error = '', updated_at = ?
			 WHERE book_id = ? AND state = ?`,
			ChunkPending, time.Now().UTC(), bookID, ChunkFailed)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		reset = int(n)
		return nil
	})
	return reset, err
}

// RecoverOrphans returns every in-flight chunk, across all books, to
// pending. Run at open: in-flight chunks can only exist while a process is
// working on them, so any found at startup were orphaned by a crash.
func (s *Store) RecoverOrphans(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chunks SET state = ?, updated_at = ? WHERE state = ?`,
		ChunkPending, time.Now().UTC(), ChunkInFlight)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// GetChunk returns a single chunk by book and sequence index.
func (s *Store) GetChunk(ctx context.Context, bookID string, seq int) (*Chunk, error) {
	var c Chunk
	err := s.db.QueryRowContext(ctx,
		`SELECT book_id, seq, source_text, translated_text, state, attempts, last_error,
		        source_offset, chapter_number, chapter_title
		 FROM chunks WHERE book_id = ? AND seq = ?`, bookID, seq).
		Scan(&c.BookID, &c.Seq, &c.SourceText, &c.Translated, &c.State, &c.Attempts,
			&c.LastError, &c.SourceOffset, &c.ChapterNumber, &c.ChapterTitle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: chunk %s/%d", ErrNotFound, bookID, seq)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Chunks returns all chunks of a book in sequence order.
func (s *Store) Chunks(ctx context.Context, bookID string) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT book_id, seq, source_text, translated_text, state, attempts, last_error,
		        source_offset, chapter_number, chapter_title
		 FROM chunks WHERE book_id = ? ORDER BY seq`, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.BookID, &c.Seq, &c.SourceText, &c.Translated, &c.State,
			&c.Attempts, &c.LastError, &c.SourceOffset, &c.ChapterNumber, &c.ChapterTitle); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if chunks == nil {
		return nil, fmt.Errorf("%w: book %s", ErrNotFound, bookID)
	}
	return chunks, nil
}

// FailedChunk is one failed chunk's identity and terminal reason.
type FailedChunk struct {
	Seq    int
	Reason string
}

// Progress is the per-book state breakdown reported to operators.
type Progress struct {
	BookID       string
	Status       BookStatus
	Total        int
	Pending      int
	InFlight     int
	Done         int
	Failed       int
	CostUSD      float64
	FailedChunks []FailedChunk
}

// BookProgress returns the chunk-state breakdown and failure detail for a
// book.
func (s *Store) BookProgress(ctx context.Context, bookID string) (*Progress, error) {
	book, err := s.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	p := &Progress{BookID: bookID, Status: book.Status, CostUSD: book.CostUSD}

	rows, err := s.db.QueryContext(ctx,
		`SELECT state, count(*) FROM chunks WHERE book_id = ? GROUP BY state`, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var state ChunkState
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		p.Total += count
		switch state {
		case ChunkPending:
			p.Pending = count
		case ChunkInFlight:
			p.InFlight = count
		case ChunkDone:
			p.Done = count
		case ChunkFailed:
			p.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if p.Failed > 0 {
		frows, err := s.db.QueryContext(ctx,
			`SELECT seq, last_error FROM chunks WHERE book_id = ? AND state = ? ORDER BY seq`,
			bookID, ChunkFailed)
		if err != nil {
			return nil, err
		}
		defer frows.Close()
		for frows.Next() {
			var f FailedChunk
			if err := frows.Scan(&f.Seq, &f.Reason); err != nil {
				return nil, err
			}
			p.FailedChunks = append(p.FailedChunks, f)
		}
		if err := frows.Err(); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// transition runs fn inside a transaction and recomputes the book's
// aggregate status from its chunk states before committing, so book status
// can never drift from chunk reality.
func (s *Store) transition(ctx context.Context, bookID string, seq int, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := s.refreshBookStatus(ctx, tx, bookID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) refreshBookStatus(ctx context.Context, tx *sql.Tx, bookID string) error {
	var total, done, failed, inFlight int
	err := tx.QueryRowContext(ctx,
		`SELECT count(*),
		        COALESCE(SUM(state = 'done'), 0),
		        COALESCE(SUM(state = 'failed'), 0),
		        COALESCE(SUM(state = 'in_flight'), 0)
		 FROM chunks WHERE book_id = ?`, bookID).
		Scan(&total, &done, &failed, &inFlight)
	if err != nil {
		return fmt.Errorf("failed to count chunk states: %w", err)
	}

	status := BookPending
	switch {
	case failed > 0:
		status = BookFailed
	case total > 0 && done == total:
		status = BookComplete
	case done > 0 || inFlight > 0:
		status = BookInProgress
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE books SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), bookID)
	return err
}

func (s *Store) ensureExists(ctx context.Context, tx *sql.Tx, bookID string, seq int) error {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM chunks WHERE book_id = ? AND seq = ?`, bookID, seq).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: chunk %s/%d", ErrNotFound, bookID, seq)
	}
	return err
}
