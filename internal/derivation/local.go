package derivation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"path"
	"strings"
	"time"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	internal_errors "github.com/unifeed-dev/unifeed/internal/errors"

	"github.com/unifeed-dev/unifeed/internal/domain"
	"github.com/unifeed-dev/unifeed/internal/logger"
	"github.com/unifeed-dev/unifeed/internal/mediapath"
	"github.com/unifeed-dev/unifeed/internal/metrics"
	"github.com/unifeed-dev/unifeed/internal/queue"
)

// Renditions are encoded as JPEG at this quality. The width comes from the
// owner kind's collection policy.
const jpegQuality = 80

// Responsive image chain: halve the full-rendition width until this floor.
const minResponsiveWidth = 150

// Enqueuer is the slice of the task queue the local engine schedules
// itself on.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind string, payload any, delay time.Duration) error
}

// GeneratePayload is the queue payload for one rendition-generation run.
type GeneratePayload struct {
	AttachmentId domain.AttachmentId `json:"attachment_id"`
}

// LocalEngine converts images in-process on the worker pool. Generate only
// enqueues; the actual work happens in Process when a worker picks the task
// up, so the upload request never blocks on image decoding.
type LocalEngine struct {
	repo      Repo
	media     MediaStorage
	resolver  mediapath.IdentityResolver
	queue     Enqueuer
	taskKind  string
	publisher CompletionPublisher
}

func NewLocalEngine(repo Repo, media MediaStorage, resolver mediapath.IdentityResolver, queue Enqueuer, taskKind string, publisher CompletionPublisher) *LocalEngine {
	return &LocalEngine{
		repo:      repo,
		media:     media,
		resolver:  resolver,
		queue:     queue,
		taskKind:  taskKind,
		publisher: publisher,
	}
}

var _ Engine = (*LocalEngine)(nil)

func (e *LocalEngine) Generate(ctx context.Context, att *domain.MediaAttachment) error {
	return e.queue.Enqueue(ctx, e.taskKind, GeneratePayload{AttachmentId: att.Id}, 0)
}

// HandleTask adapts Process to the queue.
func (e *LocalEngine) HandleTask(ctx context.Context, task *queue.Task) error {
	var payload GeneratePayload
	if err := task.UnmarshalPayload(&payload); err != nil {
		return err
	}
	return e.Process(ctx, payload.AttachmentId)
}

// Process runs one generation task. It is idempotent: renditions already
// marked ready are skipped, so re-delivery after a partial run only fills
// in the gaps.
func (e *LocalEngine) Process(ctx context.Context, attachmentId domain.AttachmentId) error {
	att, err := e.repo.GetAttachment(ctx, attachmentId)
	if err != nil {
		if isNotFound(err) {
			// Attachment deleted while the task was queued.
			return nil
		}
		return err
	}

	exists, err := e.media.Exists(att.DiskPath)
	if err != nil {
		return err
	}
	if !exists {
		// Benign terminal outcome: without a source there is nothing to
		// derive, and retrying will not bring it back.
		logger.Log.Warn("source file missing, skipping rendition generation",
			"attachment", att.Id, "path", att.DiskPath)
		return nil
	}

	src, err := e.decodeOriginal(att)
	if err != nil {
		logger.Log.Warn("undecodable original, skipping rendition generation",
			"attachment", att.Id, "error", err)
		return nil
	}

	policy := domain.PolicyFor(att.Owner.Kind)
	conversionsPrefix := mediapath.Conversions(att.Owner.Kind, att.Owner.Id, att.Collection, att.Id, att.Hints, e.resolver)
	base := baseName(att.FileName)

	widths := map[string]int{
		domain.RenditionThumb: policy.ThumbWidth,
		domain.RenditionFull:  policy.FullWidth,
	}
	for _, rendition := range domain.RequiredRenditions(att.Collection) {
		if att.Conversions[rendition] {
			continue
		}

		scaled := scaleToWidth(src, widths[rendition])
		target := fmt.Sprintf("%s%s-%s.jpg", conversionsPrefix, base, rendition)
		if err := e.encodeTo(scaled, target); err != nil {
			return fmt.Errorf("write rendition %s: %w", rendition, err)
		}

		if err := e.repo.SetRenditionReady(ctx, att.Id, rendition); err != nil {
			return err
		}
		metrics.RenditionGenerated(string(att.Collection), rendition)
	}

	if err := e.generateResponsiveImages(att, src, base); err != nil {
		return err
	}

	return e.publisher.RenditionSetCompleted(ctx, domain.RenditionSetCompleted{AttachmentId: att.Id})
}

// generateResponsiveImages writes a halving-width chain of the original
// under responsive-images/. These serve progressive loading while the
// conversion is in flight; the pruning reactor removes them together with
// the original once the rendition set is complete.
func (e *LocalEngine) generateResponsiveImages(att *domain.MediaAttachment, src image.Image, base string) error {
	prefix := mediapath.ResponsiveImages(att.Owner.Kind, att.Owner.Id, att.Collection, att.Id, att.Hints, e.resolver)
	for width := src.Bounds().Dx() / 2; width >= minResponsiveWidth; width /= 2 {
		target := fmt.Sprintf("%s%s-w%d.jpg", prefix, base, width)
		if ok, err := e.media.Exists(target); err != nil {
			return err
		} else if ok {
			continue
		}
		if err := e.encodeTo(scaleToWidth(src, width), target); err != nil {
			return fmt.Errorf("write responsive image w%d: %w", width, err)
		}
	}
	return nil
}

func (e *LocalEngine) decodeOriginal(att *domain.MediaAttachment) (image.Image, error) {
	r, err := e.media.Read(att.DiskPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", att.FileName, err)
	}
	return img, nil
}

func (e *LocalEngine) encodeTo(img image.Image, relativePath string) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return err
	}
	return e.media.Save(&buf, relativePath)
}

// scaleToWidth resizes preserving aspect ratio. Images narrower than the
// target are left at their native size; renditions never upscale.
func scaleToWidth(src image.Image, width int) image.Image {
	bounds := src.Bounds()
	if bounds.Dx() <= width {
		return src
	}
	height := bounds.Dy() * width / bounds.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

func baseName(fileName string) string {
	name := strings.TrimSuffix(fileName, path.Ext(fileName))
	return mediapath.SanitizeSegment(name)
}

func isNotFound(err error) bool {
	var statusErr *internal_errors.ErrorWithStatusCode
	return errors.As(err, &statusErr) && statusErr.StatusCode == 404
}
