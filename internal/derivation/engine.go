// Package derivation produces named renditions ("thumb", "full") from an
// uploaded original. The pipeline only depends on the Engine contract; the
// local engine in this package is the default collaborator.
package derivation

import (
	"context"
	"io"

	"github.com/unifeed-dev/unifeed/internal/domain"
)

// Engine accepts an attachment and asynchronously produces its collection's
// rendition set, flipping per-rendition readiness flags as each one lands
// and emitting one RenditionSetCompleted event per attachment at the end.
// An engine must tolerate attachments whose source file is gone: that is a
// graceful skip, never a hard failure.
type Engine interface {
	Generate(ctx context.Context, att *domain.MediaAttachment) error
}

// Repo is what the engine needs from the attachment store.
type Repo interface {
	GetAttachment(ctx context.Context, id domain.AttachmentId) (*domain.MediaAttachment, error)
	SetRenditionReady(ctx context.Context, id domain.AttachmentId, rendition string) error
}

// MediaStorage is the slice of file storage the engine touches.
type MediaStorage interface {
	Read(relativePath string) (io.ReadCloser, error)
	Save(fileData io.Reader, relativePath string) error
	Exists(relativePath string) (bool, error)
}

// CompletionPublisher delivers the per-attachment completion event to
// whoever subscribed (the pruning reactor, via the task queue).
type CompletionPublisher interface {
	RenditionSetCompleted(ctx context.Context, event domain.RenditionSetCompleted) error
}
