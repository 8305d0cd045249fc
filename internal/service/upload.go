package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	internal_errors "github.com/unifeed-dev/unifeed/internal/errors"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/unifeed-dev/unifeed/internal/derivation"
	"github.com/unifeed-dev/unifeed/internal/domain"
	"github.com/unifeed-dev/unifeed/internal/mediapath"
	"github.com/unifeed-dev/unifeed/internal/queue"
)

// PendingUpload is one validated file from a multipart request.
type PendingUpload struct {
	FileName  string
	MimeType  string
	SizeBytes int64
	Caption   string
	Data      io.Reader
}

type UploadStorage interface {
	GetOwner(ctx context.Context, ref domain.OwnerRef) (*domain.Owner, error)
	ListAttachments(ctx context.Context, owner domain.OwnerRef, collection domain.Collection) ([]*domain.MediaAttachment, error)
	CreateAttachment(ctx context.Context, att *domain.MediaAttachment) error
	DeleteAttachment(ctx context.Context, id domain.AttachmentId) error
}

type UploadMedia interface {
	Save(fileData io.Reader, relativePath string) error
	DeletePrefix(relativePath string) error
}

// Upload is the pipeline's entry point: it stores the original, records the
// attachment, hands it to the derivation engine and enqueues the first
// watcher check.
type Upload struct {
	storage       UploadStorage
	media         UploadMedia
	engine        derivation.Engine
	queue         TaskEnqueuer
	resolver      mediapath.IdentityResolver
	sanitizer     *bluemonday.Policy
	maxPostPhotos int
}

func NewUpload(storage UploadStorage, media UploadMedia, engine derivation.Engine, queue TaskEnqueuer, resolver mediapath.IdentityResolver, maxPostPhotos int) *Upload {
	return &Upload{
		storage:       storage,
		media:         media,
		engine:        engine,
		queue:         queue,
		resolver:      resolver,
		sanitizer:     bluemonday.StrictPolicy(),
		maxPostPhotos: maxPostPhotos,
	}
}

// Attach adds one uploaded file to the owner's governing collection.
func (u *Upload) Attach(ctx context.Context, ref domain.OwnerRef, requester domain.UserId, upload *PendingUpload) (*domain.MediaAttachment, error) {
	owner, err := u.storage.GetOwner(ctx, ref)
	if err != nil {
		return nil, err
	}
	if owner.CreatorId != requester {
		return nil, &internal_errors.ErrorWithStatusCode{Message: "Forbidden", StatusCode: 403}
	}

	policy := domain.PolicyFor(ref.Kind)
	existing, err := u.storage.ListAttachments(ctx, ref, policy.Collection)
	if err != nil {
		return nil, err
	}

	if policy.SingleFile {
		// Single-file collections replace on re-upload.
		for _, old := range existing {
			if err := u.replaceAttachment(ctx, old); err != nil {
				return nil, err
			}
		}
	} else if len(existing) >= u.maxPostPhotos {
		return nil, &internal_errors.ErrorWithStatusCode{
			Message:    fmt.Sprintf("Collection is full, at most %d files", u.maxPostPhotos),
			StatusCode: 400,
		}
	}

	att := &domain.MediaAttachment{
		Id:          uuid.NewString(),
		Owner:       ref,
		Collection:  policy.Collection,
		FileName:    upload.FileName,
		MimeType:    upload.MimeType,
		SizeBytes:   upload.SizeBytes,
		Caption:     u.sanitizer.Sanitize(upload.Caption),
		Conversions: map[string]bool{},
		Hints:       u.identityHints(ref),
		Created:     time.Now().UTC(),
	}
	att.DiskPath = mediapath.ForAttachment(att, u.resolver) + storedFileName(upload.FileName)

	if err := u.media.Save(upload.Data, att.DiskPath); err != nil {
		return nil, err
	}
	if err := u.storage.CreateAttachment(ctx, att); err != nil {
		return nil, err
	}

	if err := u.engine.Generate(ctx, att); err != nil {
		return nil, err
	}
	payload := ConversionCheckPayload{OwnerKind: ref.Kind, OwnerId: ref.Id}
	if err := u.queue.Enqueue(ctx, queue.KindConversionCheck, payload, 0); err != nil {
		return nil, err
	}

	return att, nil
}

func (u *Upload) replaceAttachment(ctx context.Context, old *domain.MediaAttachment) error {
	if err := u.storage.DeleteAttachment(ctx, old.Id); err != nil {
		return err
	}
	// Everything under the attachment prefix goes: original, conversions,
	// responsive images.
	prefix := mediapath.ForAttachment(old, u.resolver)
	return u.media.DeletePrefix(prefix)
}

// identityHints denormalizes the owner's identity onto the attachment so
// later path building needs no lookup even if the owner is renamed or gone.
func (u *Upload) identityHints(ref domain.OwnerRef) domain.IdentityHints {
	if u.resolver == nil {
		return domain.IdentityHints{}
	}
	identity, err := u.resolver.ResolveIdentity(ref.Kind, ref.Id)
	if err != nil {
		return domain.IdentityHints{}
	}
	if ref.Kind == domain.OwnerUniversity {
		return domain.IdentityHints{UniversitySlug: identity}
	}
	return domain.IdentityHints{OwnerUsername: identity}
}

func storedFileName(fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	return mediapath.SanitizeSegment(fileName[:len(fileName)-len(ext)]) + ext
}
