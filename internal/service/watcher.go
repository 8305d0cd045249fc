package service

import (
	"context"
	"errors"
	"time"

	internal_errors "github.com/unifeed-dev/unifeed/internal/errors"

	"github.com/unifeed-dev/unifeed/internal/domain"
	"github.com/unifeed-dev/unifeed/internal/logger"
	"github.com/unifeed-dev/unifeed/internal/mediapath"
	"github.com/unifeed-dev/unifeed/internal/metrics"
	"github.com/unifeed-dev/unifeed/internal/queue"
)

// ConversionCheckPayload is the queue payload for one watcher run.
type ConversionCheckPayload struct {
	OwnerKind domain.OwnerKind `json:"owner_kind"`
	OwnerId   int64            `json:"owner_id"`
}

type WatcherStorage interface {
	GetOwner(ctx context.Context, ref domain.OwnerRef) (*domain.Owner, error)
	ListAttachments(ctx context.Context, owner domain.OwnerRef, collection domain.Collection) ([]*domain.MediaAttachment, error)
	PublishOwner(ctx context.Context, ref domain.OwnerRef, publishedAt time.Time) error
	DeleteOwner(ctx context.Context, ref domain.OwnerRef) error
}

type WatcherMedia interface {
	Exists(relativePath string) (bool, error)
	DeletePrefix(relativePath string) error
}

// ConversionWatcher polls rendition readiness for an owner's governing
// collection and publishes the owner once everything is ready. "Not ready
// yet" is the expected steady state, answered by rescheduling, never by an
// error. There is no retry cap: a permanently stuck engine means indefinite
// rechecking at the configured delay.
type ConversionWatcher struct {
	storage      WatcherStorage
	media        WatcherMedia
	resolver     mediapath.IdentityResolver
	recheckDelay time.Duration
}

func NewConversionWatcher(storage WatcherStorage, media WatcherMedia, resolver mediapath.IdentityResolver, recheckDelay time.Duration) *ConversionWatcher {
	return &ConversionWatcher{storage: storage, media: media, resolver: resolver, recheckDelay: recheckDelay}
}

// HandleTask adapts Check to the queue.
func (w *ConversionWatcher) HandleTask(ctx context.Context, task *queue.Task) error {
	var payload ConversionCheckPayload
	if err := task.UnmarshalPayload(&payload); err != nil {
		return err
	}
	return w.Check(ctx, domain.OwnerRef{Kind: payload.OwnerKind, Id: payload.OwnerId})
}

// Check runs one watcher step for an owner. Safe under re-delivery: every
// transition it performs is a no-op the second time.
func (w *ConversionWatcher) Check(ctx context.Context, ref domain.OwnerRef) error {
	owner, err := w.storage.GetOwner(ctx, ref)
	if err != nil {
		if isNotFound(err) {
			// Owner deleted while we were queued. Nothing to do.
			return nil
		}
		return err
	}

	policy := domain.PolicyFor(ref.Kind)
	attachments, err := w.storage.ListAttachments(ctx, ref, policy.Collection)
	if err != nil {
		return err
	}

	if policy.RequiresAttachment {
		if orphaned, err := w.orphaned(attachments); err != nil {
			return err
		} else if orphaned {
			// The owner exists only to carry its attachment and that
			// attachment can never complete. Reap the placeholder.
			logger.Log.Warn("reaping owner with unrecoverable attachment",
				"owner_kind", ref.Kind, "owner_id", ref.Id)
			return w.reap(ctx, ref, attachments)
		}
	}

	for _, att := range attachments {
		if !att.RenditionsReady() {
			return queue.RetryLater(w.recheckDelay)
		}
	}

	if len(attachments) == 0 && !policy.AllowEmptyPublish {
		// The collection cannot publish without media; wait for the upload.
		return queue.RetryLater(w.recheckDelay)
	}

	if owner.Published {
		return nil
	}

	if err := w.storage.PublishOwner(ctx, ref, time.Now().UTC()); err != nil {
		return err
	}
	metrics.OwnerPublished(string(ref.Kind))
	return nil
}

// reap removes an unrecoverable owner: everything the attachments left on
// disk (partial renditions, responsive images), then the database rows.
func (w *ConversionWatcher) reap(ctx context.Context, ref domain.OwnerRef, attachments []*domain.MediaAttachment) error {
	for _, att := range attachments {
		if err := w.media.DeletePrefix(mediapath.ForAttachment(att, w.resolver)); err != nil {
			return err
		}
	}
	return w.storage.DeleteOwner(ctx, ref)
}

// orphaned reports whether a requires-attachment owner has no path to
// readiness: either it lost its attachment record, or the attachment's
// original disappeared from storage before its renditions completed.
func (w *ConversionWatcher) orphaned(attachments []*domain.MediaAttachment) (bool, error) {
	if len(attachments) == 0 {
		return true, nil
	}
	for _, att := range attachments {
		if att.RenditionsReady() || att.Pruned {
			continue
		}
		exists, err := w.media.Exists(att.DiskPath)
		if err != nil {
			return false, err
		}
		if !exists {
			return true, nil
		}
	}
	return false, nil
}

func isNotFound(err error) bool {
	var statusErr *internal_errors.ErrorWithStatusCode
	return errors.As(err, &statusErr) && statusErr.StatusCode == 404
}
