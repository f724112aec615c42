package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/folio/internal/providers"
	"github.com/jackzampolin/folio/internal/segment"
	"github.com/jackzampolin/folio/internal/store"
	"github.com/jackzampolin/folio/internal/usage"
)

func testPipeline(t *testing.T, client providers.CompletionClient, maxAttempts uint, workers int) (*Pipeline, *store.Store) {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "folio.db"), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	sink := usage.NewSink(usage.SinkConfig{Appender: s, Logger: discardLogger()})
	sink.Start()
	t.Cleanup(sink.Stop)

	orch := NewOrchestrator(OrchestratorConfig{
		Client:      client,
		Sink:        sink,
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Logger:      discardLogger(),
	})
	pool := NewPool(PoolConfig{
		Store:        s,
		Orchestrator: orch,
		Workers:      workers,
		Logger:       discardLogger(),
	})
	p := NewPipeline(PipelineConfig{
		Store:         s,
		Pool:          pool,
		MaxChunkRunes: 200,
		Logger:        discardLogger(),
	})
	return p, s
}

func sourceNovel() string {
	var b strings.Builder
	for ch := 1; ch <= 3; ch++ {
		fmt.Fprintf(&b, "Chapter %d\n\n", ch)
		for p := 0; p < 4; p++ {
			b.WriteString("A paragraph of story text that fills out the chapter with enough words to split. ")
			b.WriteString("More narration follows the first sentence and keeps the paragraph going.\n\n")
		}
	}
	return b.String()
}

func TestPipelineTranslatesBook(t *testing.T) {
	mock := providers.NewMockClient()
	p, s := testPipeline(t, mock, 3, 4)
	ctx := context.Background()

	book := &store.Book{ID: "novel-1", Title: "A Novel", SourceLang: "ja", TargetLang: "en"}
	if err := p.Start(ctx, book, sourceNovel()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	got, err := s.GetBook(ctx, "novel-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.BookComplete {
		t.Errorf("book status = %q, want %q", got.Status, store.BookComplete)
	}

	chunks, _ := s.Chunks(ctx, "novel-1")
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	var chapterMarks int
	for _, c := range chunks {
		if c.State != store.ChunkDone || c.Translated == "" {
			t.Errorf("chunk %d: state=%q translated=%q", c.Seq, c.State, c.Translated)
		}
		if c.ChapterNumber > 0 {
			chapterMarks++
		}
	}
	if chapterMarks != 3 {
		t.Errorf("chapter-marked chunks = %d, want 3", chapterMarks)
	}

	// Each chunk translated exactly once.
	if mock.RequestCount() != int64(len(chunks)) {
		t.Errorf("client requests = %d, want %d", mock.RequestCount(), len(chunks))
	}
	if got.CostUSD <= 0 {
		t.Error("expected accumulated cost on book")
	}
}

func TestPipelineResumeSkipsDoneChunks(t *testing.T) {
	mock := providers.NewMockClient()
	p, s := testPipeline(t, mock, 3, 2)
	ctx := context.Background()

	book := &store.Book{ID: "novel-1", Title: "A Novel"}
	if err := p.Start(ctx, book, sourceNovel()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	chunks, _ := s.Chunks(ctx, "novel-1")
	requestsAfterFirstRun := mock.RequestCount()

	// Re-ingesting the identical book resumes; nothing is pending, so no
	// completion call is made and no cost is re-paid.
	if err := p.Start(ctx, book, sourceNovel()); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if mock.RequestCount() != requestsAfterFirstRun {
		t.Errorf("resume re-dispatched chunks: %d requests, want %d", mock.RequestCount(), requestsAfterFirstRun)
	}
	if int(requestsAfterFirstRun) != len(chunks) {
		t.Errorf("first run requests = %d, want %d", requestsAfterFirstRun, len(chunks))
	}
}

func TestPipelinePartialFailureDoesNotBlockSiblings(t *testing.T) {
	mock := providers.NewMockClient()
	mock.FailTimes = 3 // first chunk burns its whole budget, then recovery
	p, s := testPipeline(t, mock, 3, 1)
	ctx := context.Background()

	book := &store.Book{ID: "novel-1", Title: "A Novel"}
	if err := p.Start(ctx, book, sourceNovel()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	prog, err := s.BookProgress(ctx, "novel-1")
	if err != nil {
		t.Fatal(err)
	}
	if prog.Failed != 1 {
		t.Fatalf("failed chunks = %d, want 1", prog.Failed)
	}
	if prog.Done != prog.Total-1 {
		t.Errorf("done = %d, want %d", prog.Done, prog.Total-1)
	}
	if prog.Status != store.BookFailed {
		t.Errorf("book status = %q, want %q", prog.Status, store.BookFailed)
	}
	if len(prog.FailedChunks) != 1 || prog.FailedChunks[0].Seq != 0 {
		t.Errorf("failed chunk detail: %+v", prog.FailedChunks)
	}

	// Manual reset makes the failed chunk claimable again.
	if _, err := s.ResetFailed(ctx, "novel-1"); err != nil {
		t.Fatal(err)
	}
	if err := p.Resume(ctx, "novel-1"); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	got, _ := s.GetBook(ctx, "novel-1")
	if got.Status != store.BookComplete {
		t.Errorf("book status after reset+resume = %q, want %q", got.Status, store.BookComplete)
	}
}

func TestPipelineCancellationRequeues(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Latency = 50 * time.Millisecond
	p, s := testPipeline(t, mock, 3, 2)

	book := &store.Book{ID: "novel-1", Title: "A Novel"}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(75 * time.Millisecond)
		cancel()
	}()

	if err := p.Start(ctx, book, sourceNovel()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	prog, err := s.BookProgress(context.Background(), "novel-1")
	if err != nil {
		t.Fatal(err)
	}
	if prog.InFlight != 0 {
		t.Errorf("in-flight after cancellation = %d, want 0", prog.InFlight)
	}
	if prog.Failed != 0 {
		t.Errorf("failed after cancellation = %d, want 0; cancellation is not failure", prog.Failed)
	}
	if prog.Pending == 0 && prog.Done != prog.Total {
		t.Error("expected either pending work left or a completed book")
	}
}

func TestPipelineRejectsDisorderedChapters(t *testing.T) {
	mock := providers.NewMockClient()
	p, _ := testPipeline(t, mock, 3, 1)

	text := "Chapter 2\n\nbody text here\n\nChapter 1\n\nmore body text\n"
	err := p.Start(context.Background(), &store.Book{ID: "bad", Title: "Bad"}, text)
	if err == nil {
		t.Fatal("expected chapter validation error")
	}
	if mock.RequestCount() != 0 {
		t.Error("no completion calls should happen for an invalid book")
	}
}

func TestPipelineSegmentationErrorIsFatal(t *testing.T) {
	mock := providers.NewMockClient()
	p, _ := testPipeline(t, mock, 3, 1)
	p.maxChunkRunes = 0 // NewPipeline defaulted it; force the invalid value

	err := p.prepare(context.Background(), &store.Book{ID: "b", Title: "B"}, "text")
	if !errors.Is(err, segment.ErrLimitTooSmall) {
		t.Fatalf("expected segmentation limit error, got %v", err)
	}
	if mock.RequestCount() != 0 {
		t.Error("no completion calls should happen for a misconfigured book")
	}
}
