package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cimillas/grabticket/internal/domain"
	"github.com/cimillas/grabticket/internal/metrics"
)

const (
	defaultQueueCapacity = 10000
	defaultGrabTimeout   = 5 * time.Second
)

// Responder receives the outcome of one grab. It is called from the worker
// goroutine, so implementations must not block.
type Responder interface {
	DeliverGrabResult(result domain.GrabResult) error
}

// SeatPublisher fans the current availability of an event out to its viewers.
type SeatPublisher interface {
	Publish(ctx context.Context, eventID string, counts []domain.SeatCount)
}

// GrabProcessor settles one grab against the store.
type GrabProcessor interface {
	Process(ctx context.Context, in GrabInput) (domain.GrabResult, error)
	SeatCounts(ctx context.Context, eventID string) ([]domain.SeatCount, error)
}

type GrabRequest struct {
	UserID       string
	EventID      string
	TicketTypeID string
	Reply        Responder
	SubmittedAt  time.Time
}

// GrabQueue serialises grabs through a single worker in submission order.
type GrabQueue struct {
	processor GrabProcessor
	publisher SeatPublisher
	logger    *zap.Logger
	timeout   time.Duration

	mu       sync.RWMutex
	closed   bool
	requests chan GrabRequest

	startOnce sync.Once
	done      chan struct{}
}

type GrabQueueOption func(*GrabQueue)

func WithQueueCapacity(n int) GrabQueueOption {
	return func(q *GrabQueue) {
		if n > 0 {
			q.requests = make(chan GrabRequest, n)
		}
	}
}

func WithGrabTimeout(d time.Duration) GrabQueueOption {
	return func(q *GrabQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithQueueLogger(logger *zap.Logger) GrabQueueOption {
	return func(q *GrabQueue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

func NewGrabQueue(processor GrabProcessor, publisher SeatPublisher, opts ...GrabQueueOption) *GrabQueue {
	q := &GrabQueue{
		processor: processor,
		publisher: publisher,
		logger:    zap.NewNop(),
		timeout:   defaultGrabTimeout,
		requests:  make(chan GrabRequest, defaultQueueCapacity),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With(zap.String("component", "grab_queue"))
	return q
}

// Submit enqueues a grab without blocking. It returns domain.ErrQueueFull when
// the queue is at capacity and domain.ErrQueueClosed after Stop.
func (q *GrabQueue) Submit(req GrabRequest) error {
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now()
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		metrics.GrabsRejected.WithLabelValues(domain.ReasonUnavailable).Inc()
		return domain.ErrQueueClosed
	}
	// Counted before the send so the worker's Dec never runs first.
	metrics.GrabQueueDepth.Inc()
	select {
	case q.requests <- req:
		return nil
	default:
		metrics.GrabQueueDepth.Dec()
		metrics.GrabsRejected.WithLabelValues(domain.ReasonQueueFull).Inc()
		return domain.ErrQueueFull
	}
}

// Len reports the number of grabs waiting for the worker.
func (q *GrabQueue) Len() int {
	return len(q.requests)
}

// Start launches the worker. Calling it more than once has no effect.
func (q *GrabQueue) Start() {
	q.startOnce.Do(func() {
		go q.run()
	})
}

// Stop rejects new grabs and waits until every accepted grab has been
// processed or ctx ends.
func (q *GrabQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.requests)
	}
	q.mu.Unlock()

	// A queue that was never started still has to settle what it accepted.
	q.Start()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *GrabQueue) run() {
	defer close(q.done)
	for req := range q.requests {
		metrics.GrabQueueDepth.Dec()
		q.handle(req)
	}
}

func (q *GrabQueue) handle(req GrabRequest) {
	start := time.Now()
	metrics.GrabWait.Observe(start.Sub(req.SubmittedAt).Seconds())
	defer func() {
		metrics.GrabDuration.Observe(time.Since(start).Seconds())
	}()

	// Enqueued grabs outlive their connection, so the worker context is not
	// tied to the requester.
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	result, err := q.processor.Process(ctx, GrabInput{
		UserID:       req.UserID,
		EventID:      req.EventID,
		TicketTypeID: req.TicketTypeID,
	})
	if err != nil {
		q.logger.Error("grab failed",
			zap.String("event_id", req.EventID),
			zap.String("ticket_type_id", req.TicketTypeID),
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
	}
	outcome := "success"
	if !result.Succeeded() {
		outcome = result.Reason
	}
	metrics.GrabsProcessed.WithLabelValues(outcome).Inc()

	q.publish(req.EventID)

	if req.Reply == nil {
		return
	}
	if err := req.Reply.DeliverGrabResult(result); err != nil {
		q.logger.Debug("grab result dropped",
			zap.String("event_id", req.EventID),
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
	}
}

// publish runs on its own deadline: a grab that committed late in its
// budget still owes viewers a snapshot.
func (q *GrabQueue) publish(eventID string) {
	if q.publisher == nil || eventID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	counts, err := q.processor.SeatCounts(ctx, eventID)
	if err != nil {
		q.logger.Warn("seat counts not broadcast", zap.String("event_id", eventID), zap.Error(err))
		return
	}
	q.publisher.Publish(ctx, eventID, counts)
}
