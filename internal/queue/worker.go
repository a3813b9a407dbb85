package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/interfaces"
	"github.com/ternarybob/skillmatch/internal/models"
)

// Handler processes one message from a queue. A non-nil error leaves the
// message on the queue; it is redelivered after the visibility timeout up
// to the broker's receive cap.
type Handler func(ctx context.Context, msg *models.QueueMessage) error

type registration struct {
	handler     Handler
	concurrency int
}

// WorkerPool consumes the work queues. Each queue gets its own set of
// polling workers with configurable concurrency; processing within one
// worker slot is sequential.
type WorkerPool struct {
	queueMgr     interfaces.QueueManager
	pollInterval time.Duration
	logger       arbor.ILogger

	mu       sync.Mutex
	queues   map[string]registration
	started  bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewWorkerPool creates a worker pool over the queue manager
func NewWorkerPool(queueMgr interfaces.QueueManager, pollInterval time.Duration, logger arbor.ILogger) *WorkerPool {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		queueMgr:     queueMgr,
		pollInterval: pollInterval,
		logger:       logger,
		queues:       make(map[string]registration),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// RegisterHandler registers the handler and concurrency for a queue.
// Must be called before Start.
func (wp *WorkerPool) RegisterHandler(queue string, concurrency int, handler Handler) {
	if concurrency <= 0 {
		concurrency = 1
	}

	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.queues[queue] = registration{handler: handler, concurrency: concurrency}

	wp.logger.Debug().
		Str("queue", queue).
		Int("concurrency", concurrency).
		Msg("Queue handler registered")
}

// Start launches the worker goroutines. Calling Start on a running pool is
// a no-op.
func (wp *WorkerPool) Start() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.started {
		wp.logger.Debug().Msg("Worker pool already started")
		return nil
	}
	wp.started = true

	total := 0
	for queue, reg := range wp.queues {
		for i := 0; i < reg.concurrency; i++ {
			wp.wg.Add(1)
			go wp.worker(queue, i, reg)
			total++
		}
	}

	wp.logger.Info().
		Int("workers", total).
		Int("queues", len(wp.queues)).
		Msg("Worker pool started")

	return nil
}

// Stop cancels all workers and waits for in-flight messages to finish
func (wp *WorkerPool) Stop() error {
	wp.logger.Info().Msg("Stopping worker pool")
	wp.cancel()
	wp.wg.Wait()
	return nil
}

// worker is the polling loop for one worker slot
func (wp *WorkerPool) worker(queue string, workerID int, reg registration) {
	defer wp.wg.Done()

	// Stagger worker starts to spread polling across the interval
	staggerDelay := (wp.pollInterval / time.Duration(reg.concurrency)) * time.Duration(workerID)
	if staggerDelay > 0 {
		select {
		case <-wp.ctx.Done():
			return
		case <-time.After(staggerDelay):
		}
	}

	wp.logger.Debug().
		Str("queue", queue).
		Int("worker_id", workerID).
		Msg("Worker started")

	ticker := time.NewTicker(wp.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().
				Str("queue", queue).
				Int("worker_id", workerID).
				Msg("Worker stopped")
			return

		case <-ticker.C:
			if err := wp.processOne(queue, workerID, reg.handler); err != nil && !errors.Is(err, ErrNoMessage) {
				wp.logger.Warn().
					Err(err).
					Str("queue", queue).
					Int("worker_id", workerID).
					Msg("Error processing message")
			}
		}
	}
}

// processOne receives and processes a single message. Handler failures
// leave the message on the queue for redelivery.
func (wp *WorkerPool) processOne(queue string, workerID int, handler Handler) error {
	msg, deleteFn, err := wp.queueMgr.Receive(wp.ctx, queue)
	if err != nil {
		return err
	}

	start := time.Now()
	handlerErr := handler(wp.ctx, msg)
	duration := time.Since(start)

	if handlerErr != nil {
		wp.logger.Error().
			Err(handlerErr).
			Str("queue", queue).
			Str("message_id", msg.MessageID).
			Dur("duration", duration).
			Int("worker_id", workerID).
			Msg("Job handler failed, message left for redelivery")
		return handlerErr
	}

	wp.logger.Info().
		Str("queue", queue).
		Str("message_id", msg.MessageID).
		Dur("duration", duration).
		Int("worker_id", workerID).
		Msg("Job completed")

	if err := deleteFn(); err != nil {
		wp.logger.Warn().
			Err(err).
			Str("queue", queue).
			Str("message_id", msg.MessageID).
			Msg("Failed to delete message after successful processing")
		return err
	}

	return nil
}
