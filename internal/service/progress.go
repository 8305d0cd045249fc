package service

import (
	"context"
	"math"

	internal_errors "github.com/unifeed-dev/unifeed/internal/errors"

	"github.com/unifeed-dev/unifeed/internal/domain"
)

type ProgressStorage interface {
	GetOwner(ctx context.Context, ref domain.OwnerRef) (*domain.Owner, error)
	ListAttachments(ctx context.Context, owner domain.OwnerRef, collection domain.Collection) ([]*domain.MediaAttachment, error)
}

// ProgressStatus is what polling clients see.
type ProgressStatus struct {
	Published bool `json:"published"`
	Progress  int  `json:"progress"`
}

// Progress answers "is this owner ready, and how far along is it". Pure
// read; progress only ever grows because rendition flags only accumulate.
type Progress struct {
	storage ProgressStorage
}

func NewProgress(storage ProgressStorage) *Progress {
	return &Progress{storage: storage}
}

// Query returns the owner's publication state and a 0-100 completion
// fraction. Only the owner's creator may see an unpublished resource.
func (p *Progress) Query(ctx context.Context, ref domain.OwnerRef, requester domain.UserId) (*ProgressStatus, error) {
	owner, err := p.storage.GetOwner(ctx, ref)
	if err != nil {
		return nil, err
	}

	if owner.CreatorId != requester && !owner.Published {
		return nil, &internal_errors.ErrorWithStatusCode{Message: "Forbidden", StatusCode: 403}
	}

	if owner.Published {
		return &ProgressStatus{Published: true, Progress: 100}, nil
	}

	policy := domain.PolicyFor(ref.Kind)
	attachments, err := p.storage.ListAttachments(ctx, ref, policy.Collection)
	if err != nil {
		return nil, err
	}

	if len(attachments) == 0 {
		return &ProgressStatus{Published: false, Progress: 0}, nil
	}

	ready := 0
	for _, att := range attachments {
		// An attachment counts only when its full rendition set is ready;
		// partially-converted attachments are not fractionally ready.
		if att.RenditionsReady() {
			ready++
		}
	}

	progress := int(math.Round(float64(ready) / float64(len(attachments)) * 100))
	return &ProgressStatus{Published: false, Progress: progress}, nil
}
