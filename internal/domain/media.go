package domain

import "time"

type AttachmentId = string

// Collection is the semantic grouping of an owner's media.
type Collection string

const (
	CollectionAvatar         Collection = "avatar"
	CollectionPostPhotos     Collection = "post_photos"
	CollectionLogo           Collection = "logo"
	CollectionFeaturedImages Collection = "featured_images"
)

// Rendition names every collection must produce before its owner can publish.
const (
	RenditionThumb = "thumb"
	RenditionFull  = "full"
)

func RequiredRenditions(collection Collection) []string {
	return []string{RenditionThumb, RenditionFull}
}

// IdentityHints are denormalized owner identity fields stored on the
// attachment so path building does not need an owner lookup.
type IdentityHints struct {
	OwnerUsername  string
	UniversitySlug string
}

// MediaAttachment is one uploaded file plus its rendition readiness state.
// Conversion flags are flipped only by the derivation engine; Pruned only by
// the pruning reactor, and never back.
type MediaAttachment struct {
	Id         AttachmentId
	Owner      OwnerRef
	Collection Collection

	FileName  string
	DiskPath  string // original file, relative to the media root
	MimeType  string
	SizeBytes int64
	Caption   string

	Conversions map[string]bool // rendition name -> ready
	Hints       IdentityHints
	Pruned      bool
	Created     time.Time
}

// RenditionsReady reports whether every required rendition of the
// attachment's collection is marked ready.
func (m *MediaAttachment) RenditionsReady() bool {
	for _, name := range RequiredRenditions(m.Collection) {
		if !m.Conversions[name] {
			return false
		}
	}
	return true
}

// RenditionSetCompleted is emitted by the derivation engine once all required
// renditions for one attachment exist. The pruning reactor subscribes to it.
type RenditionSetCompleted struct {
	AttachmentId AttachmentId `json:"attachment_id"`
}
