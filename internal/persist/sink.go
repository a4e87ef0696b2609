package persist

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// ErrSinkStopped is returned by Start when the sink has already been stopped.
var ErrSinkStopped = errors.New("sink stopped")

// Config holds sink tuning.
type Config struct {
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
}

// SinkStats is a snapshot of sink counters.
type SinkStats struct {
	Enqueued int64
	Written  int64
	Failed   int64
	Dropped  int64
	Pending  int
}

// Sink writes chat messages to a MessageStore in the background. Append
// never waits on the store: when the queue is full the message is dropped.
type Sink struct {
	cfg    Config
	store  MessageStore
	logger *slog.Logger

	queue chan chat.ChatMessage

	// mu guards closing queue against concurrent Append.
	mu      sync.RWMutex
	stopped bool
	started bool

	baseCtx context.Context
	group   errgroup.Group

	enqueued atomic.Int64
	written  atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64
}

// NewSink creates a sink. Call Start before appending.
func NewSink(cfg Config, store MessageStore, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Sink{
		cfg:    cfg,
		store:  store,
		logger: logger,
		queue:  make(chan chat.ChatMessage, cfg.QueueSize),
	}
}

// Start launches the worker pool. Workers keep draining after ctx is
// cancelled; Stop is what ends them.
func (s *Sink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSinkStopped
	}
	if s.started {
		return nil
	}
	s.started = true
	s.baseCtx = context.WithoutCancel(ctx)

	for i := 0; i < s.cfg.Workers; i++ {
		worker := i
		s.group.Go(func() error {
			s.drain(worker)
			return nil
		})
	}

	s.logger.Info("persistence sink started",
		"workers", s.cfg.Workers,
		"queue_size", s.cfg.QueueSize,
		"write_timeout", s.cfg.WriteTimeout,
	)
	return nil
}

// Append queues msg for writing and reports whether it was accepted.
func (s *Sink) Append(msg chat.ChatMessage) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopped {
		s.dropped.Add(1)
		s.logger.Warn("sink stopped, dropping message", "room", msg.Room, "username", msg.Username)
		return false
	}

	select {
	case s.queue <- msg:
		s.enqueued.Add(1)
		return true
	default:
		s.dropped.Add(1)
		s.logger.Warn("sink queue full, dropping message",
			"room", msg.Room,
			"username", msg.Username,
			"queue_size", s.cfg.QueueSize,
		)
		return false
	}
}

// Stop stops accepting messages, lets workers drain what is queued, and
// waits for them or for ctx.
func (s *Sink) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.started
	close(s.queue)
	s.mu.Unlock()

	if !started {
		return nil
	}

	s.logger.Info("stopping persistence sink", "pending", len(s.queue))

	done := make(chan struct{})
	go func() {
		_ = s.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("persistence sink stopped",
			"written", s.written.Load(),
			"failed", s.failed.Load(),
			"dropped", s.dropped.Load(),
		)
		return nil
	case <-ctx.Done():
		s.logger.Warn("persistence sink stop timed out", "pending", len(s.queue))
		return ctx.Err()
	}
}

// Stats returns current counters.
func (s *Sink) Stats() SinkStats {
	return SinkStats{
		Enqueued: s.enqueued.Load(),
		Written:  s.written.Load(),
		Failed:   s.failed.Load(),
		Dropped:  s.dropped.Load(),
		Pending:  len(s.queue),
	}
}

func (s *Sink) drain(worker int) {
	for msg := range s.queue {
		s.write(worker, msg)
	}
}

func (s *Sink) write(worker int, msg chat.ChatMessage) {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.cfg.WriteTimeout)
	defer cancel()

	if err := s.store.Append(ctx, msg); err != nil {
		s.failed.Add(1)
		s.logger.Error("failed to persist message",
			"worker", worker,
			"room", msg.Room,
			"username", msg.Username,
			"error", err,
		)
		return
	}
	s.written.Add(1)
}
