// Package usage provides cost and token accounting for completion calls.
// One Record is appended per call attempt, success or failure; records are
// never mutated after creation and can never fail a translation.
package usage

import (
	"time"

	"github.com/google/uuid"
)

// Record is the accounting entry for a single completion-call attempt.
type Record struct {
	ID     string
	BookID string
	Seq    int // chunk sequence index the call belonged to

	Provider string
	Model    string

	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUSD          float64
	LatencyMs        int

	Success    bool
	ErrorClass string // transport, content; empty when successful

	CreatedAt time.Time
}

// NewRecord creates a record with a fresh ID and timestamp.
func NewRecord(bookID string, seq int) *Record {
	return &Record{
		ID:        uuid.New().String(),
		BookID:    bookID,
		Seq:       seq,
		CreatedAt: time.Now().UTC(),
	}
}

// Summary aggregates a book's usage records.
type Summary struct {
	Calls            int
	Failures         int
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUSD          float64
	TotalLatencyMs   int
}

// Summarize folds records into totals.
func Summarize(recs []*Record) Summary {
	var s Summary
	for _, r := range recs {
		s.Calls++
		if !r.Success {
			s.Failures++
		}
		s.PromptTokens += r.PromptTokens
		s.CompletionTokens += r.CompletionTokens
		s.TotalTokens += r.TotalTokens
		s.CostUSD += r.CostUSD
		s.TotalLatencyMs += r.LatencyMs
	}
	return s
}
