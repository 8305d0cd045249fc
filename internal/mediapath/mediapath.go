// Package mediapath computes deterministic storage prefixes for media
// attachments. It is pure: no disk or network access, the only lookup goes
// through the IdentityResolver capability the caller passes in.
package mediapath

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/unifeed-dev/unifeed/internal/domain"
)

// IdentityResolver resolves an owner's canonical identity segment (username
// or slug) by id. Used only when the attachment carries no denormalized hint.
type IdentityResolver interface {
	ResolveIdentity(kind domain.OwnerKind, ownerId int64) (string, error)
}

const unknownSegment = "unknown"

var nonSegmentChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// Build returns the storage prefix for an attachment's original file,
// ending with "/". Identity resolution order: stored hint, resolver lookup,
// the literal "unknown".
func Build(kind domain.OwnerKind, ownerId int64, collection domain.Collection, attachmentId domain.AttachmentId, hints domain.IdentityHints, resolver IdentityResolver) string {
	return basePath(kind, ownerId, collection, attachmentId, hints, resolver) + "/"
}

// Conversions returns the sub-prefix holding derived renditions.
func Conversions(kind domain.OwnerKind, ownerId int64, collection domain.Collection, attachmentId domain.AttachmentId, hints domain.IdentityHints, resolver IdentityResolver) string {
	return basePath(kind, ownerId, collection, attachmentId, hints, resolver) + "/conversions/"
}

// ResponsiveImages returns the sub-prefix holding the responsive image chain.
func ResponsiveImages(kind domain.OwnerKind, ownerId int64, collection domain.Collection, attachmentId domain.AttachmentId, hints domain.IdentityHints, resolver IdentityResolver) string {
	return basePath(kind, ownerId, collection, attachmentId, hints, resolver) + "/responsive-images/"
}

// ForAttachment is a convenience wrapper over Build.
func ForAttachment(att *domain.MediaAttachment, resolver IdentityResolver) string {
	return Build(att.Owner.Kind, att.Owner.Id, att.Collection, att.Id, att.Hints, resolver)
}

func basePath(kind domain.OwnerKind, ownerId int64, collection domain.Collection, attachmentId domain.AttachmentId, hints domain.IdentityHints, resolver IdentityResolver) string {
	id := SanitizeSegment(attachmentId)

	switch kind {
	case domain.OwnerUser:
		return fmt.Sprintf("students/%s/profile-photos/%s", usernameSegment(kind, ownerId, hints.OwnerUsername, resolver), id)
	case domain.OwnerPost:
		return fmt.Sprintf("students/%s/post-photos/%s", usernameSegment(kind, ownerId, hints.OwnerUsername, resolver), id)
	case domain.OwnerUniversity:
		return fmt.Sprintf("universities/%s/logos/%s", identitySegment(kind, ownerId, hints.UniversitySlug, resolver), id)
	default:
		return fmt.Sprintf("uploads/%s/%s/%s", SanitizeSegment(string(kind)), SanitizeSegment(string(collection)), id)
	}
}

func usernameSegment(kind domain.OwnerKind, ownerId int64, hint string, resolver IdentityResolver) string {
	return identitySegment(kind, ownerId, strings.TrimPrefix(hint, "@"), resolver)
}

func identitySegment(kind domain.OwnerKind, ownerId int64, hint string, resolver IdentityResolver) string {
	if s := SanitizeSegment(hint); s != unknownSegment {
		return s
	}
	if resolver != nil {
		if resolved, err := resolver.ResolveIdentity(kind, ownerId); err == nil {
			return SanitizeSegment(strings.TrimPrefix(resolved, "@"))
		}
	}
	return unknownSegment
}

// SanitizeSegment lowercases, collapses runs of disallowed characters to a
// hyphen and trims boundary punctuation. An empty result becomes "unknown".
func SanitizeSegment(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = nonSegmentChars.ReplaceAllString(normalized, "-")
	normalized = strings.Trim(normalized, "-_.")

	if normalized == "" {
		return unknownSegment
	}
	return normalized
}
