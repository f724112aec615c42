package usage

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Appender is the persistence surface the sink writes through.
// *store.Store satisfies it.
type Appender interface {
	AppendUsage(ctx context.Context, rec *Record) error
}

// SinkConfig configures the async usage sink.
type SinkConfig struct {
	Appender  Appender
	QueueSize int // buffer size (default: 1024)
	Logger    *slog.Logger
}

// Sink records usage asynchronously. Send is fire-and-forget: a full queue
// or a write error drops the record with a warning instead of blocking or
// failing the caller, because accounting must never be able to fail a
// translation.
type Sink struct {
	appender Appender
	logger   *slog.Logger

	queue   chan *Record
	dropped int64
	mu      sync.Mutex

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewSink creates a usage sink.
func NewSink(cfg SinkConfig) *Sink {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Sink{
		appender: cfg.Appender,
		logger:   cfg.Logger,
		queue:    make(chan *Record, cfg.QueueSize),
	}
}

// Start begins draining the queue. Writes use a background context so that
// cancelling a translation run never loses already-queued records.
func (s *Sink) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop closes the queue and blocks until everything queued is written.
func (s *Sink) Stop() {
	s.stopOnce.Do(func() {
		close(s.queue)
		s.wg.Wait()

		if n := s.Dropped(); n > 0 {
			s.logger.Warn("usage records dropped", "count", n)
		}
	})
}

// Send queues a record without blocking.
func (s *Sink) Send(rec *Record) {
	if rec == nil {
		return
	}
	defer func() {
		// Send on a closed queue means Stop already ran; count as dropped.
		if r := recover(); r != nil {
			s.drop()
		}
	}()

	select {
	case s.queue <- rec:
	default:
		s.drop()
	}
}

// Dropped returns how many records were discarded due to backpressure or
// shutdown.
func (s *Sink) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Sink) drop() {
	s.mu.Lock()
	s.dropped++
	s.mu.Unlock()
}

func (s *Sink) run() {
	defer s.wg.Done()

	for rec := range s.queue {
		start := time.Now()
		if err := s.appender.AppendUsage(context.Background(), rec); err != nil {
			s.logger.Warn("usage record write failed",
				"book", rec.BookID,
				"seq", rec.Seq,
				"error", err)
			continue
		}
		s.logger.Debug("usage record written",
			"book", rec.BookID,
			"seq", rec.Seq,
			"write_ms", time.Since(start).Milliseconds())
	}
}
