package service

import (
	"context"
	"time"

	"github.com/unifeed-dev/unifeed/internal/domain"
	"github.com/unifeed-dev/unifeed/internal/queue"
)

// TaskEnqueuer is the slice of the task queue the services schedule work on.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, kind string, payload any, delay time.Duration) error
}

// RenditionEvents carries the derivation engine's completion events to their
// subscribers over the durable queue, so a crash between "renditions done"
// and "original pruned" re-delivers instead of losing the event.
type RenditionEvents struct {
	queue TaskEnqueuer
}

func NewRenditionEvents(q TaskEnqueuer) *RenditionEvents {
	return &RenditionEvents{queue: q}
}

func (e *RenditionEvents) RenditionSetCompleted(ctx context.Context, event domain.RenditionSetCompleted) error {
	return e.queue.Enqueue(ctx, queue.KindPruneOriginal, event, 0)
}
