package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	internal_errors "github.com/unifeed-dev/unifeed/internal/errors"

	"github.com/unifeed-dev/unifeed/internal/domain"
)

const attachmentColumns = `id, owner_kind, owner_id, collection, file_name, disk_path, mime_type, size_bytes, caption, conversions, owner_username, university_slug, pruned, created`

func scanAttachment(row interface{ Scan(...any) error }) (*domain.MediaAttachment, error) {
	var att domain.MediaAttachment
	var conversions []byte
	err := row.Scan(
		&att.Id, &att.Owner.Kind, &att.Owner.Id, &att.Collection,
		&att.FileName, &att.DiskPath, &att.MimeType, &att.SizeBytes, &att.Caption,
		&conversions, &att.Hints.OwnerUsername, &att.Hints.UniversitySlug,
		&att.Pruned, &att.Created,
	)
	if err != nil {
		return nil, err
	}
	att.Conversions = map[string]bool{}
	if len(conversions) > 0 {
		if err := json.Unmarshal(conversions, &att.Conversions); err != nil {
			return nil, fmt.Errorf("decode conversions: %w", err)
		}
	}
	return &att, nil
}

func (s *Storage) CreateAttachment(ctx context.Context, att *domain.MediaAttachment) error {
	conversions, err := json.Marshal(att.Conversions)
	if err != nil {
		return err
	}
	created := att.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO media_attachments(id, owner_kind, owner_id, collection, file_name, disk_path, mime_type, size_bytes, caption, conversions, owner_username, university_slug, created)
	VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		att.Id, att.Owner.Kind, att.Owner.Id, att.Collection,
		att.FileName, att.DiskPath, att.MimeType, att.SizeBytes, att.Caption,
		conversions, att.Hints.OwnerUsername, att.Hints.UniversitySlug, created)
	return err
}

func (s *Storage) GetAttachment(ctx context.Context, id domain.AttachmentId) (*domain.MediaAttachment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attachmentColumns+` FROM media_attachments WHERE id = $1`, id)
	att, err := scanAttachment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &internal_errors.ErrorWithStatusCode{Message: "Attachment not found", StatusCode: 404}
		}
		return nil, err
	}
	return att, nil
}

// ListAttachments returns an owner's attachments in one collection, oldest
// first.
func (s *Storage) ListAttachments(ctx context.Context, owner domain.OwnerRef, collection domain.Collection) ([]*domain.MediaAttachment, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT `+attachmentColumns+`
	FROM media_attachments
	WHERE owner_kind = $1 AND owner_id = $2 AND collection = $3
	ORDER BY created, id`, owner.Kind, owner.Id, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attachments []*domain.MediaAttachment
	for rows.Next() {
		att, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, att)
	}
	return attachments, rows.Err()
}

// SetRenditionReady flips one rendition flag to true. Only the derivation
// engine calls this; flags never go back to false.
func (s *Storage) SetRenditionReady(ctx context.Context, id domain.AttachmentId, rendition string) error {
	result, err := s.db.ExecContext(ctx, `
	UPDATE media_attachments
	SET conversions = jsonb_set(COALESCE(conversions, '{}'::jsonb), ARRAY[$2], 'true'::jsonb)
	WHERE id = $1`, id, rendition)
	if err != nil {
		return err
	}
	updated, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if updated == 0 {
		return &internal_errors.ErrorWithStatusCode{Message: "Attachment not found", StatusCode: 404}
	}
	return nil
}

// MarkPruned sets the pruned flag and reports whether this call won the
// transition. A false return means another delivery already pruned it.
func (s *Storage) MarkPruned(ctx context.Context, id domain.AttachmentId) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE media_attachments SET pruned = TRUE WHERE id = $1 AND NOT pruned`, id)
	if err != nil {
		return false, err
	}
	updated, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return updated > 0, nil
}

// DeleteAttachment removes an attachment row (single-file collection
// replacement). The caller is responsible for the bytes on disk.
func (s *Storage) DeleteAttachment(ctx context.Context, id domain.AttachmentId) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM media_attachments WHERE id = $1`, id)
	return err
}
