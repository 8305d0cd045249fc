package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	internal_errors "github.com/unifeed-dev/unifeed/internal/errors"

	"github.com/unifeed-dev/unifeed/internal/domain"
)

// ownerTable maps an owner kind to its table and creator column. Kinds are
// a closed enum, so the returned identifiers are safe to interpolate.
func ownerTable(kind domain.OwnerKind) (table, creatorColumn string, err error) {
	switch kind {
	case domain.OwnerUser:
		return "users", "id", nil
	case domain.OwnerPost:
		return "posts", "user_id", nil
	case domain.OwnerUniversity:
		return "universities", "id", nil
	case domain.OwnerFeaturedImage:
		return "featured_images", "created_by", nil
	default:
		return "", "", fmt.Errorf("unknown owner kind: %s", kind)
	}
}

// GetOwner loads the pipeline view of an owner record.
func (s *Storage) GetOwner(ctx context.Context, ref domain.OwnerRef) (*domain.Owner, error) {
	table, creatorColumn, err := ownerTable(ref.Kind)
	if err != nil {
		return nil, err
	}

	owner := domain.Owner{Ref: ref}
	var publishedAt sql.NullTime
	query := fmt.Sprintf(`SELECT %s, published, published_at FROM %s WHERE id = $1`, creatorColumn, table)
	err = s.db.QueryRowContext(ctx, query, ref.Id).Scan(&owner.CreatorId, &owner.Published, &publishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &internal_errors.ErrorWithStatusCode{Message: "Owner not found", StatusCode: 404}
		}
		return nil, err
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		owner.PublishedAt = &t
	}
	return &owner, nil
}

// PublishOwner flips published to true and stamps published_at. The WHERE
// guard makes the transition monotonic: re-delivered tasks hit zero rows.
func (s *Storage) PublishOwner(ctx context.Context, ref domain.OwnerRef, publishedAt time.Time) error {
	table, _, err := ownerTable(ref.Kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET published = TRUE, published_at = $1 WHERE id = $2 AND NOT published`, table)
	_, err = s.db.ExecContext(ctx, query, publishedAt.UTC(), ref.Id)
	return err
}

// DeleteOwner removes an owner record and its attachment rows. Used by the
// watcher to reap featured-image placeholders whose source disappeared.
func (s *Storage) DeleteOwner(ctx context.Context, ref domain.OwnerRef) error {
	table, _, err := ownerTable(ref.Kind)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // The rollback will be ignored if the tx has been committed later in the function.

	if _, err := tx.ExecContext(ctx, `DELETE FROM media_attachments WHERE owner_kind = $1 AND owner_id = $2`, ref.Kind, ref.Id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), ref.Id); err != nil {
		return err
	}

	return tx.Commit()
}

// ResolveIdentity implements mediapath.IdentityResolver: it looks up the
// owner's canonical identity segment when an attachment has no stored hint.
func (s *Storage) ResolveIdentity(kind domain.OwnerKind, ownerId int64) (string, error) {
	var query string
	switch kind {
	case domain.OwnerUser:
		query = `SELECT username FROM users WHERE id = $1`
	case domain.OwnerPost:
		query = `SELECT u.username FROM posts p JOIN users u ON u.id = p.user_id WHERE p.id = $1`
	case domain.OwnerUniversity:
		query = `SELECT slug FROM universities WHERE id = $1`
	default:
		return "", fmt.Errorf("no identity source for owner kind: %s", kind)
	}

	var identity string
	if err := s.db.QueryRow(query, ownerId).Scan(&identity); err != nil {
		return "", err
	}
	return identity, nil
}

// Record creation below exists for the CRUD layer and test fixtures; the
// pipeline itself never creates owners.

func (s *Storage) CreateUser(ctx context.Context, user *domain.User) (domain.UserId, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users(email, username, admin) VALUES($1, $2, $3) RETURNING id`,
		user.Email, user.Username, user.Admin).Scan(&id)
	return id, err
}

func (s *Storage) CreatePost(ctx context.Context, authorId domain.UserId, body string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO posts(user_id, body) VALUES($1, $2) RETURNING id`,
		authorId, body).Scan(&id)
	return id, err
}

func (s *Storage) CreateUniversity(ctx context.Context, name, slug string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO universities(name, slug) VALUES($1, $2) RETURNING id`,
		name, slug).Scan(&id)
	return id, err
}

func (s *Storage) CreateFeaturedImage(ctx context.Context, createdBy domain.UserId) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO featured_images(created_by) VALUES($1) RETURNING id`,
		createdBy).Scan(&id)
	return id, err
}

func (s *Storage) CreateCourse(ctx context.Context, course *domain.Course) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO courses(university_id, name, short_name, shortcode) VALUES($1, $2, $3, $4) RETURNING id`,
		course.UniversityId, course.Name, course.ShortName, course.Shortcode).Scan(&id)
	return id, err
}

// CourseShortcodeExists is the existence-check capability handed to the
// shortcode generator.
func (s *Storage) CourseShortcodeExists(ctx context.Context, shortcode string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM courses WHERE shortcode = $1)`, shortcode).Scan(&exists)
	return exists, err
}
