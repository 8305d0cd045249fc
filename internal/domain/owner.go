package domain

import "time"

type UserId = int64

// OwnerKind tags the application entity a media attachment belongs to.
type OwnerKind string

const (
	OwnerUser          OwnerKind = "user"
	OwnerPost          OwnerKind = "post"
	OwnerUniversity    OwnerKind = "university"
	OwnerFeaturedImage OwnerKind = "featured_image"
)

func (k OwnerKind) Valid() bool {
	switch k {
	case OwnerUser, OwnerPost, OwnerUniversity, OwnerFeaturedImage:
		return true
	}
	return false
}

// OwnerRef identifies one owner record. Ids are per-kind sequences, so the
// kind is part of the identity.
type OwnerRef struct {
	Kind OwnerKind
	Id   int64
}

// Owner is the pipeline's view of an owning record: who created it and
// whether it has been published. The publication flag only ever flips
// false -> true.
type Owner struct {
	Ref         OwnerRef
	CreatorId   UserId
	Published   bool
	PublishedAt *time.Time
}

// CollectionPolicy describes how an owner kind's governing collection
// behaves: cardinality, publish rules and rendition widths.
type CollectionPolicy struct {
	Collection Collection
	SingleFile bool
	// RequiresAttachment marks owners that exist only to carry their single
	// attachment; if the original disappears before conversion the owner is
	// deleted instead of retried forever.
	RequiresAttachment bool
	// AllowEmptyPublish lets an owner with zero attachments publish (a post
	// with a text body and no photos).
	AllowEmptyPublish bool
	ThumbWidth        int
	FullWidth         int
}

// PolicyFor returns the governing collection policy for an owner kind.
// Widths mirror the registered conversions of the original models.
func PolicyFor(kind OwnerKind) CollectionPolicy {
	switch kind {
	case OwnerUser:
		return CollectionPolicy{Collection: CollectionAvatar, SingleFile: true, AllowEmptyPublish: true, ThumbWidth: 200, FullWidth: 1200}
	case OwnerUniversity:
		return CollectionPolicy{Collection: CollectionLogo, SingleFile: true, AllowEmptyPublish: true, ThumbWidth: 200, FullWidth: 1200}
	case OwnerFeaturedImage:
		return CollectionPolicy{Collection: CollectionFeaturedImages, SingleFile: true, RequiresAttachment: true, ThumbWidth: 400, FullWidth: 1200}
	default:
		return CollectionPolicy{Collection: CollectionPostPhotos, AllowEmptyPublish: true, ThumbWidth: 400, FullWidth: 1200}
	}
}
