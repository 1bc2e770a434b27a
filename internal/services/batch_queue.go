package services

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/astrolab-backend/internal/platform/logger"
)

// EventSpool is durable fallback storage for events tracked while offline.
// Implementations bound the retained count and evict oldest-first; that
// eviction is the only place the pipeline is allowed to lose events.
type EventSpool interface {
	Append(ctx context.Context, events []EventInput) error
	// Drain returns the spooled backlog in original order and clears it.
	Drain(ctx context.Context) ([]EventInput, error)
}

type BatchQueueConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

const (
	defaultBatchSize     = 20
	defaultFlushInterval = 10 * time.Second
)

// BatchQueue decouples "track now" calls from storage writes. One instance
// owns its buffer, timer handle, and sink; there is no package-level state.
// Track never blocks and never fails. Flush is the only operation that
// performs I/O.
type BatchQueue struct {
	log   *logger.Logger
	sink  EventService
	spool EventSpool
	cfg   BatchQueueConfig

	mu       sync.Mutex
	buf      []EventInput
	timer    *time.Timer
	online   bool
	flushing bool
	disposed bool
}

// NewBatchQueue builds a queue flushing into sink. spool may be nil, in which
// case offline drains are re-buffered in memory instead of persisted.
func NewBatchQueue(baseLog *logger.Logger, sink EventService, spool EventSpool, cfg BatchQueueConfig) *BatchQueue {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	return &BatchQueue{
		log:    baseLog.With("service", "BatchQueue"),
		sink:   sink,
		spool:  spool,
		cfg:    cfg,
		online: true,
	}
}

// Track appends one event to the buffer. Reaching the batch size triggers an
// immediate flush; otherwise a flush is scheduled on the recurring interval
// if one is not already pending.
func (q *BatchQueue) Track(ev EventInput) {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		q.log.Warn("track after dispose, dropping event", "event_name", ev.EventName)
		return
	}
	q.buf = append(q.buf, ev)
	full := len(q.buf) >= q.cfg.BatchSize
	if !full {
		q.scheduleLocked()
	}
	q.mu.Unlock()

	if full {
		go q.flushOnce(context.Background())
	}
}

// scheduleLocked arms the flush timer if none is pending. Caller holds q.mu.
func (q *BatchQueue) scheduleLocked() {
	if q.timer != nil {
		return
	}
	q.timer = time.AfterFunc(q.cfg.FlushInterval, func() {
		q.mu.Lock()
		q.timer = nil
		q.mu.Unlock()
		q.flushOnce(context.Background())
	})
}

// Flush drains the buffer and hands the batch to the sink. With synchronous
// set, the caller observes the attempt; otherwise it runs in the background.
func (q *BatchQueue) Flush(ctx context.Context, synchronous bool) {
	if synchronous {
		q.flushOnce(ctx)
		return
	}
	go q.flushOnce(ctx)
}

func (q *BatchQueue) flushOnce(ctx context.Context) {
	q.mu.Lock()
	if q.flushing {
		// A drain is already in progress; arm the timer so whatever is in the
		// buffer is retried on the next tick.
		if len(q.buf) > 0 && !q.disposed {
			q.scheduleLocked()
		}
		q.mu.Unlock()
		return
	}
	q.flushing = true
	drained := q.buf
	q.buf = nil
	online := q.online
	q.mu.Unlock()

	if len(drained) == 0 {
		q.clearFlushing()
		return
	}

	if !online {
		q.spoolOrRequeue(ctx, drained)
		q.clearFlushing()
		return
	}

	n, err := q.sink.IngestBatch(ctx, nil, drained)
	if err != nil {
		// Transient failure: the batch rejoins the front of the buffer and is
		// retried as part of normal scheduling.
		q.log.Warn("flush failed, re-buffering batch", "count", len(drained), "error", err)
		q.requeueFront(drained)
		q.clearFlushing()
		return
	}
	q.log.Debug("flushed batch", "accepted", n, "drained", len(drained))
	q.clearFlushing()
}

func (q *BatchQueue) spoolOrRequeue(ctx context.Context, drained []EventInput) {
	if q.spool == nil {
		q.requeueFront(drained)
		return
	}
	if err := q.spool.Append(ctx, drained); err != nil {
		q.log.Warn("offline spool append failed, re-buffering", "count", len(drained), "error", err)
		q.requeueFront(drained)
		return
	}
	q.log.Debug("spooled offline batch", "count", len(drained))
}

func (q *BatchQueue) requeueFront(drained []EventInput) {
	q.mu.Lock()
	q.buf = append(drained, q.buf...)
	if !q.disposed {
		q.scheduleLocked()
	}
	q.mu.Unlock()
}

func (q *BatchQueue) clearFlushing() {
	q.mu.Lock()
	q.flushing = false
	q.mu.Unlock()
}

// SetOnline records connectivity. On the transition to online the spooled
// backlog is pushed to the front of the buffer, cleared from the spool, and
// an immediate flush is triggered.
func (q *BatchQueue) SetOnline(ctx context.Context, online bool) {
	q.mu.Lock()
	was := q.online
	q.online = online
	q.mu.Unlock()

	if was || !online {
		return
	}
	if q.spool != nil {
		backlog, err := q.spool.Drain(ctx)
		if err != nil {
			q.log.Warn("offline spool drain failed", "error", err)
		} else if len(backlog) > 0 {
			q.mu.Lock()
			q.buf = append(backlog, q.buf...)
			q.mu.Unlock()
		}
	}
	q.flushOnce(ctx)
}

// Pending reports the buffered event count. Intended for tests and health
// reporting.
func (q *BatchQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Dispose cancels the timer and performs one final synchronous flush attempt.
func (q *BatchQueue) Dispose(ctx context.Context) {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return
	}
	q.disposed = true
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.mu.Unlock()
	q.flushOnce(ctx)
}
