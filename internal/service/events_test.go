package service

import (
	"context"
	"testing"

	"github.com/unifeed-dev/unifeed/internal/domain"
	"github.com/unifeed-dev/unifeed/internal/queue"
)

func TestRenditionSetCompletedEnqueuesPrune(t *testing.T) {
	enqueuer := &MockEnqueuer{}
	events := NewRenditionEvents(enqueuer)

	event := domain.RenditionSetCompleted{AttachmentId: "att"}
	if err := events.RenditionSetCompleted(context.Background(), event); err != nil {
		t.Fatalf("RenditionSetCompleted: %v", err)
	}
	if len(enqueuer.Kinds) != 1 || enqueuer.Kinds[0] != queue.KindPruneOriginal {
		t.Errorf("enqueued kinds = %v, want one prune task", enqueuer.Kinds)
	}
	if got, ok := enqueuer.Payloads[0].(domain.RenditionSetCompleted); !ok || got != event {
		t.Errorf("payload = %#v, want the completion event", enqueuer.Payloads[0])
	}
}
