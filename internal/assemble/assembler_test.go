package assemble

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/folio/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "folio.db"), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedTranslatedBook(t *testing.T, s *store.Store, translateAll bool) {
	t.Helper()
	ctx := context.Background()

	chunks := []store.Chunk{
		{Seq: 0, SourceText: "intro", ChapterNumber: 1, ChapterTitle: "Beginnings"},
		{Seq: 1, SourceText: "middle of chapter one"},
		{Seq: 2, SourceText: "second chapter opens", ChapterNumber: 2, ChapterTitle: "Endings"},
		{Seq: 3, SourceText: "finale"},
	}
	book := &store.Book{ID: "book-1", Title: "A Novel"}
	if err := s.CreateBook(ctx, book, chunks); err != nil {
		t.Fatal(err)
	}

	limit := len(chunks)
	if !translateAll {
		limit-- // leave the last chunk pending
	}
	for i := 0; i < limit; i++ {
		c, err := s.ClaimNext(ctx, "book-1")
		if err != nil {
			t.Fatal(err)
		}
		if err := s.MarkDone(ctx, "book-1", c.Seq, "translated "+c.SourceText, 1); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAssembleCompleteBook(t *testing.T) {
	s := testStore(t)
	seedTranslatedBook(t, s, true)

	res, err := New(Config{Store: s, Logger: slog.New(slog.DiscardHandler)}).Assemble(context.Background(), "book-1")
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	if len(res.Chapters) != 2 {
		t.Fatalf("chapters = %d, want 2", len(res.Chapters))
	}
	ch1, ch2 := res.Chapters[0], res.Chapters[1]
	if ch1.Number != 1 || ch1.Title != "Beginnings" {
		t.Errorf("chapter 1: %+v", ch1)
	}
	if !strings.Contains(ch1.Text, "translated intro") || !strings.Contains(ch1.Text, "translated middle of chapter one") {
		t.Errorf("chapter 1 text missing content: %q", ch1.Text)
	}
	if ch2.Number != 2 || !strings.Contains(ch2.Text, "translated finale") {
		t.Errorf("chapter 2: %+v", ch2)
	}
	if len(res.MissingSeqs) != 0 {
		t.Errorf("missing = %v, want none", res.MissingSeqs)
	}
}

func TestAssembleIncompleteBookFails(t *testing.T) {
	s := testStore(t)
	seedTranslatedBook(t, s, false)

	_, err := New(Config{Store: s, Logger: slog.New(slog.DiscardHandler)}).Assemble(context.Background(), "book-1")
	var ierr *IncompleteBookError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected IncompleteBookError, got %v", err)
	}
	if len(ierr.Missing) != 1 || ierr.Missing[0] != 3 {
		t.Errorf("missing = %v, want [3]", ierr.Missing)
	}
}

func TestAssemblePartial(t *testing.T) {
	s := testStore(t)
	seedTranslatedBook(t, s, false)

	res, err := New(Config{Store: s, AllowPartial: true, Logger: slog.New(slog.DiscardHandler)}).
		Assemble(context.Background(), "book-1")
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(res.MissingSeqs) != 1 {
		t.Fatalf("missing = %v, want one entry", res.MissingSeqs)
	}
	last := res.Chapters[len(res.Chapters)-1]
	if !strings.Contains(last.Text, "[untranslated chunk 3]") {
		t.Errorf("expected gap marker in partial output, got %q", last.Text)
	}
}

func TestAssembleFrontMatter(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	chunks := []store.Chunk{
		{Seq: 0, SourceText: "preface"},
		{Seq: 1, SourceText: "chapter one", ChapterNumber: 1},
	}
	if err := s.CreateBook(ctx, &store.Book{ID: "book-2", Title: "B"}, chunks); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		c, _ := s.ClaimNext(ctx, "book-2")
		if err := s.MarkDone(ctx, "book-2", c.Seq, "t "+c.SourceText, 1); err != nil {
			t.Fatal(err)
		}
	}

	res, err := New(Config{Store: s, Logger: slog.New(slog.DiscardHandler)}).Assemble(ctx, "book-2")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chapters) != 2 {
		t.Fatalf("chapters = %d, want front matter + chapter 1", len(res.Chapters))
	}
	if res.Chapters[0].Number != 0 || !strings.Contains(res.Chapters[0].Text, "t preface") {
		t.Errorf("front matter: %+v", res.Chapters[0])
	}
}
