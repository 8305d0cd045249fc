package service

import (
	"context"

	"github.com/unifeed-dev/unifeed/internal/domain"
	"github.com/unifeed-dev/unifeed/internal/logger"
	"github.com/unifeed-dev/unifeed/internal/mediapath"
	"github.com/unifeed-dev/unifeed/internal/metrics"
	"github.com/unifeed-dev/unifeed/internal/queue"
)

type PrunerStorage interface {
	GetAttachment(ctx context.Context, id domain.AttachmentId) (*domain.MediaAttachment, error)
	MarkPruned(ctx context.Context, id domain.AttachmentId) (bool, error)
}

type PrunerMedia interface {
	Exists(relativePath string) (bool, error)
	DeleteFile(relativePath string) error
	DeletePrefix(relativePath string) error
}

// OriginalPruningReactor deletes an attachment's original bytes once every
// required rendition is confirmed ready. It reacts to RenditionSetCompleted
// events and must never run ahead of them: the original is the only source
// for renditions that do not exist yet.
type OriginalPruningReactor struct {
	storage  PrunerStorage
	media    PrunerMedia
	resolver mediapath.IdentityResolver
}

func NewOriginalPruningReactor(storage PrunerStorage, media PrunerMedia, resolver mediapath.IdentityResolver) *OriginalPruningReactor {
	return &OriginalPruningReactor{storage: storage, media: media, resolver: resolver}
}

// HandleTask adapts Prune to the queue subscription.
func (r *OriginalPruningReactor) HandleTask(ctx context.Context, task *queue.Task) error {
	var event domain.RenditionSetCompleted
	if err := task.UnmarshalPayload(&event); err != nil {
		return err
	}
	return r.Prune(ctx, event.AttachmentId)
}

// Prune idempotently removes the original file and the oversized
// responsive-image intermediates derived from it.
func (r *OriginalPruningReactor) Prune(ctx context.Context, id domain.AttachmentId) error {
	att, err := r.storage.GetAttachment(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}

	if att.Pruned {
		// A previous delivery already did the work.
		return nil
	}

	if !att.RenditionsReady() {
		// Out-of-order or partial event delivery. The watcher path will
		// trigger completion again; deleting now would destroy the only
		// source for the missing renditions.
		logger.Log.Debug("prune skipped, renditions incomplete", "attachment", att.Id)
		return nil
	}

	exists, err := r.media.Exists(att.DiskPath)
	if err != nil {
		return err
	}
	if exists {
		if err := r.media.DeleteFile(att.DiskPath); err != nil {
			return err
		}
	}
	// If the original is gone already, someone external removed it; still
	// mark pruned so nothing retries this attachment.

	responsive := mediapath.ResponsiveImages(att.Owner.Kind, att.Owner.Id, att.Collection, att.Id, att.Hints, r.resolver)
	if err := r.media.DeletePrefix(responsive); err != nil {
		return err
	}

	won, err := r.storage.MarkPruned(ctx, att.Id)
	if err != nil {
		return err
	}
	if won {
		metrics.OriginalPruned()
	}
	return nil
}
