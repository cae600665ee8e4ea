package evidence

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrQueueFull is returned when the archival queue is at capacity.
	// Callers decide whether to block, retry or archive inline; the writer
	// never buffers without bound.
	ErrQueueFull = errors.New("evidence queue full")

	// ErrWriterClosed is returned after Close has been called.
	ErrWriterClosed = errors.New("evidence writer closed")
)

type archiveJob struct {
	item       interface{}
	decision   string
	provenance map[string]interface{}
}

// Writer archives records asynchronously so evidence I/O never blocks the
// scoring path. A fixed worker pool drains a bounded queue; failures are
// counted, logged and passed to the failure callback rather than dropped.
type Writer struct {
	archiver  *Archiver
	jobs      chan archiveJob
	timeout   time.Duration
	onFailure func(error)

	wg       sync.WaitGroup
	closed   atomic.Bool
	enqueued atomic.Uint64
	written  atomic.Uint64
	failures atomic.Uint64
}

// WriterConfig sizes the async writer.
type WriterConfig struct {
	Workers      int
	QueueSize    int
	WriteTimeout time.Duration
	OnFailure    func(error)
}

// NewWriter starts the worker pool. Zero config values fall back to
// 2 workers, a 256-deep queue and a 5s per-write timeout.
func NewWriter(archiver *Archiver, cfg WriterConfig) *Writer {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	w := &Writer{
		archiver:  archiver,
		jobs:      make(chan archiveJob, cfg.QueueSize),
		timeout:   cfg.WriteTimeout,
		onFailure: cfg.OnFailure,
	}

	w.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go w.worker()
	}

	slog.Info("Evidence writer started",
		"workers", cfg.Workers,
		"queue_size", cfg.QueueSize)
	return w
}

// Enqueue submits a record for asynchronous archival. Returns ErrQueueFull
// when the queue is at capacity so callers see backpressure immediately.
func (w *Writer) Enqueue(item interface{}, decision string, provenance map[string]interface{}) error {
	if w.closed.Load() {
		return ErrWriterClosed
	}

	select {
	case w.jobs <- archiveJob{item: item, decision: decision, provenance: provenance}:
		w.enqueued.Add(1)
		return nil
	default:
		w.failures.Add(1)
		slog.Warn("Evidence queue full, rejecting archive request",
			"decision", decision,
			"queue_size", cap(w.jobs))
		return ErrQueueFull
	}
}

func (w *Writer) worker() {
	defer w.wg.Done()

	for job := range w.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		_, err := w.archiver.Archive(ctx, job.item, job.decision, job.provenance)
		cancel()

		if err != nil {
			w.failures.Add(1)
			slog.Error("Async evidence archive failed",
				"decision", job.decision,
				"error", err)
			if w.onFailure != nil {
				w.onFailure(err)
			}
			continue
		}
		w.written.Add(1)
	}
}

// Close stops accepting work and drains the queue before returning.
func (w *Writer) Close() {
	if w.closed.Swap(true) {
		return
	}
	close(w.jobs)
	w.wg.Wait()

	slog.Info("Evidence writer drained",
		"written", w.written.Load(),
		"failures", w.failures.Load())
}

// Stats reports the writer's counters for the metrics endpoint.
func (w *Writer) Stats() map[string]interface{} {
	return map[string]interface{}{
		"enqueued":    w.enqueued.Load(),
		"written":     w.written.Load(),
		"failures":    w.failures.Load(),
		"queue_depth": len(w.jobs),
		"queue_size":  cap(w.jobs),
	}
}
