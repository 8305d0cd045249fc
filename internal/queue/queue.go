// Package queue runs discrete pipeline tasks from a database-backed delayed
// queue. Delivery is at-least-once: a claimed task whose worker dies is
// re-delivered after its lease expires, so every handler must be idempotent.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/unifeed-dev/unifeed/internal/logger"
	"github.com/unifeed-dev/unifeed/internal/metrics"
)

// Task kinds understood by the pipeline.
const (
	KindConversionCheck    = "conversion_check"
	KindPruneOriginal      = "prune_original"
	KindGenerateRenditions = "generate_renditions"
)

type Task struct {
	Id       int64
	Kind     string
	Payload  []byte
	Attempts int
}

func (t *Task) UnmarshalPayload(v any) error {
	if err := json.Unmarshal(t.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", t.Kind, err)
	}
	return nil
}

// Store is the durable queue. Implemented by storage/pg.
type Store interface {
	EnqueueTask(ctx context.Context, kind string, payload any, runAt time.Time) error
	DequeueTask(ctx context.Context, lease time.Duration) (*Task, error)
	CompleteTask(ctx context.Context, id int64) error
	RescheduleTask(ctx context.Context, id int64, runAt time.Time) error
	QueueDepth(ctx context.Context) (int, error)
}

// Handler executes one task. Returning a RetryLaterError re-enqueues the
// task with the requested delay instead of treating it as a failure.
type Handler func(ctx context.Context, task *Task) error

// RetryLaterError is the expected steady state of a task that is waiting on
// an external condition: not an error, just "check again later".
type RetryLaterError struct {
	Delay time.Duration
}

func (e *RetryLaterError) Error() string {
	return fmt.Sprintf("retry in %v", e.Delay)
}

func RetryLater(delay time.Duration) error {
	return &RetryLaterError{Delay: delay}
}

type Queue struct {
	store        Store
	handlers     map[string]Handler
	pollInterval time.Duration
	lease        time.Duration
	retryDelay   time.Duration

	wg sync.WaitGroup
}

func New(store Store, pollInterval, lease time.Duration) *Queue {
	return &Queue{
		store:        store,
		handlers:     map[string]Handler{},
		pollInterval: pollInterval,
		lease:        lease,
		retryDelay:   30 * time.Second,
	}
}

// Handle registers the handler for a task kind. Not safe to call after Start.
func (q *Queue) Handle(kind string, h Handler) {
	q.handlers[kind] = h
}

// Enqueue schedules a task to run after delay. A zero delay means "as soon
// as a worker picks it up".
func (q *Queue) Enqueue(ctx context.Context, kind string, payload any, delay time.Duration) error {
	return q.store.EnqueueTask(ctx, kind, payload, time.Now().UTC().Add(delay))
}

// Start launches the worker pool. Workers stop when ctx is cancelled; Wait
// blocks until they have drained.
func (q *Queue) Start(ctx context.Context, workers int) {
	logger.Log.Info("starting queue workers", "workers", workers, "poll_interval", q.pollInterval)
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.runWorker(ctx)
	}
}

func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) runWorker(ctx context.Context) {
	defer q.wg.Done()
	for {
		processed, err := q.ProcessOne(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.Error("queue poll failed", "error", err)
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(q.pollInterval):
		}
	}
}

// ProcessOne claims and runs a single due task. Returns false when the queue
// had nothing due. Exposed so tests can drain the queue deterministically.
func (q *Queue) ProcessOne(ctx context.Context) (bool, error) {
	task, err := q.store.DequeueTask(ctx, q.lease)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	handler, ok := q.handlers[task.Kind]
	if !ok {
		// A kind nothing handles would otherwise redeliver forever.
		logger.Log.Error("dropping task with no handler", "kind", task.Kind, "id", task.Id)
		metrics.TaskProcessed(task.Kind, "dropped")
		return true, q.store.CompleteTask(ctx, task.Id)
	}

	err = handler(ctx, task)

	var retry *RetryLaterError
	switch {
	case err == nil:
		metrics.TaskProcessed(task.Kind, "done")
		return true, q.store.CompleteTask(ctx, task.Id)
	case errors.As(err, &retry):
		logger.Log.Debug("task waiting, rescheduling", "kind", task.Kind, "id", task.Id, "delay", retry.Delay)
		metrics.TaskProcessed(task.Kind, "rescheduled")
		return true, q.store.RescheduleTask(ctx, task.Id, time.Now().UTC().Add(retry.Delay))
	default:
		logger.Log.Error("task failed, will retry", "kind", task.Kind, "id", task.Id, "attempts", task.Attempts, "error", err)
		metrics.TaskProcessed(task.Kind, "failed")
		return true, q.store.RescheduleTask(ctx, task.Id, time.Now().UTC().Add(q.retryDelay))
	}
}

// StartDepthGauge periodically samples the queue depth for the metrics
// gauge. Same shape as the other background tickers in this codebase.
func (q *Queue) StartDepthGauge(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				depth, err := q.store.QueueDepth(ctx)
				if err != nil {
					logger.Log.Warn("queue depth sample failed", "error", err)
					continue
				}
				metrics.SetQueueDepth(depth)
			case <-ctx.Done():
				return
			}
		}
	}()
}
