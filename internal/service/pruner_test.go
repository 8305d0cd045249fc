package service

import (
	"context"
	"testing"

	internal_errors "github.com/unifeed-dev/unifeed/internal/errors"

	"github.com/unifeed-dev/unifeed/internal/domain"
	"github.com/unifeed-dev/unifeed/internal/queue"
)

type MockPrunerStorage struct {
	GetAttachmentFunc func(ctx context.Context, id domain.AttachmentId) (*domain.MediaAttachment, error)
	MarkPrunedFunc    func(ctx context.Context, id domain.AttachmentId) (bool, error)

	PrunedIds []domain.AttachmentId
}

func (m *MockPrunerStorage) GetAttachment(ctx context.Context, id domain.AttachmentId) (*domain.MediaAttachment, error) {
	if m.GetAttachmentFunc != nil {
		return m.GetAttachmentFunc(ctx, id)
	}
	return nil, &internal_errors.ErrorWithStatusCode{Message: "Attachment not found", StatusCode: 404}
}

func (m *MockPrunerStorage) MarkPruned(ctx context.Context, id domain.AttachmentId) (bool, error) {
	m.PrunedIds = append(m.PrunedIds, id)
	if m.MarkPrunedFunc != nil {
		return m.MarkPrunedFunc(ctx, id)
	}
	return true, nil
}

func prunableAttachment(ready, pruned bool) *domain.MediaAttachment {
	conversions := map[string]bool{}
	if ready {
		conversions[domain.RenditionThumb] = true
		conversions[domain.RenditionFull] = true
	}
	return &domain.MediaAttachment{
		Id:          "att",
		Owner:       domain.OwnerRef{Kind: domain.OwnerPost, Id: 1},
		Collection:  domain.CollectionPostPhotos,
		DiskPath:    "students/alice/post-photos/att/pic.jpg",
		Conversions: conversions,
		Hints:       domain.IdentityHints{OwnerUsername: "alice"},
		Pruned:      pruned,
	}
}

func TestPruneDeletesOriginalOnceRenditionsReady(t *testing.T) {
	att := prunableAttachment(true, false)
	storage := &MockPrunerStorage{
		GetAttachmentFunc: func(ctx context.Context, id domain.AttachmentId) (*domain.MediaAttachment, error) {
			return att, nil
		},
	}
	media := &MockMedia{}
	reactor := NewOriginalPruningReactor(storage, media, nil)

	if err := reactor.Prune(context.Background(), att.Id); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(media.DeletedFiles) != 1 || media.DeletedFiles[0] != att.DiskPath {
		t.Errorf("deleted files = %v, want original only", media.DeletedFiles)
	}
	if len(media.DeletedPrefixes) != 1 || media.DeletedPrefixes[0] != "students/alice/post-photos/att/responsive-images/" {
		t.Errorf("deleted prefixes = %v, want the responsive-images chain", media.DeletedPrefixes)
	}
	if len(storage.PrunedIds) != 1 {
		t.Errorf("pruned flag written %d times, want 1", len(storage.PrunedIds))
	}
}

func TestPruneAlreadyPrunedIsNoOp(t *testing.T) {
	att := prunableAttachment(true, true)
	storage := &MockPrunerStorage{
		GetAttachmentFunc: func(ctx context.Context, id domain.AttachmentId) (*domain.MediaAttachment, error) {
			return att, nil
		},
	}
	media := &MockMedia{}
	reactor := NewOriginalPruningReactor(storage, media, nil)

	if err := reactor.Prune(context.Background(), att.Id); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(media.DeletedFiles) != 0 || len(media.DeletedPrefixes) != 0 {
		t.Error("second delivery must not touch storage")
	}
	if len(storage.PrunedIds) != 0 {
		t.Error("second delivery must not rewrite the pruned flag")
	}
}

func TestPruneRefusesWhileRenditionsIncomplete(t *testing.T) {
	// A partial or out-of-order completion event must never delete the
	// original: it is the only source for the renditions still missing.
	att := prunableAttachment(false, false)
	att.Conversions[domain.RenditionThumb] = true
	storage := &MockPrunerStorage{
		GetAttachmentFunc: func(ctx context.Context, id domain.AttachmentId) (*domain.MediaAttachment, error) {
			return att, nil
		},
	}
	media := &MockMedia{}
	reactor := NewOriginalPruningReactor(storage, media, nil)

	if err := reactor.Prune(context.Background(), att.Id); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(media.DeletedFiles) != 0 {
		t.Error("original deleted before the rendition set completed")
	}
	if len(storage.PrunedIds) != 0 {
		t.Error("pruned flag set before the rendition set completed")
	}
}

func TestPruneMissingOriginalStillMarksPruned(t *testing.T) {
	att := prunableAttachment(true, false)
	storage := &MockPrunerStorage{
		GetAttachmentFunc: func(ctx context.Context, id domain.AttachmentId) (*domain.MediaAttachment, error) {
			return att, nil
		},
	}
	media := &MockMedia{ExistsFunc: func(string) (bool, error) { return false, nil }}
	reactor := NewOriginalPruningReactor(storage, media, nil)

	if err := reactor.Prune(context.Background(), att.Id); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(media.DeletedFiles) != 0 {
		t.Error("no deletion attempt expected when the original is gone")
	}
	if len(storage.PrunedIds) != 1 {
		t.Error("attachment must still be marked pruned")
	}
}

func TestPruneDeletedAttachmentIsSilent(t *testing.T) {
	reactor := NewOriginalPruningReactor(&MockPrunerStorage{}, &MockMedia{}, nil)
	if err := reactor.Prune(context.Background(), "gone"); err != nil {
		t.Fatalf("missing attachment must be benign, got %v", err)
	}
}

func TestPruneHandleTaskDecodesEvent(t *testing.T) {
	att := prunableAttachment(true, false)
	storage := &MockPrunerStorage{
		GetAttachmentFunc: func(ctx context.Context, id domain.AttachmentId) (*domain.MediaAttachment, error) {
			if id != att.Id {
				t.Errorf("unexpected id %s", id)
			}
			return att, nil
		},
	}
	reactor := NewOriginalPruningReactor(storage, &MockMedia{}, nil)

	task := &queue.Task{Kind: queue.KindPruneOriginal, Payload: []byte(`{"attachment_id":"att"}`)}
	if err := reactor.HandleTask(context.Background(), task); err != nil {
		t.Fatalf("HandleTask: %v", err)
	}
	if len(storage.PrunedIds) != 1 {
		t.Error("event did not reach the pruner")
	}
}
