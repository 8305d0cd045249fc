package pg

import (
	"context"
	"database/sql"
	"errors"

	internal_errors "github.com/unifeed-dev/unifeed/internal/errors"

	"github.com/lib/pq"
	"github.com/unifeed-dev/unifeed/internal/domain"
)

const cohortColumns = `id, course_id, year, slug, admin_id`

func scanCohort(row interface{ Scan(...any) error }) (*domain.Cohort, error) {
	var cohort domain.Cohort
	var adminId sql.NullInt64
	if err := row.Scan(&cohort.Id, &cohort.CourseId, &cohort.Year, &cohort.Slug, &adminId); err != nil {
		return nil, err
	}
	if adminId.Valid {
		id := adminId.Int64
		cohort.AdminId = &id
	}
	return &cohort, nil
}

// GetOrCreateCohort materializes the cohort for (courseId, year), creating
// it on first reference. A row lock on the existing row serializes
// concurrent callers; the unique constraint on (course_id, year) is the
// second line of defense when the lock cannot see a row that does not exist
// yet. Exactly one row is ever created and every caller gets it.
//
// slugFor derives the cohort slug from the course short name; it runs
// inside the transaction so the slug is fixed at creation.
func (s *Storage) GetOrCreateCohort(ctx context.Context, courseId int64, year string, slugFor func(shortName, year string) string) (*domain.Cohort, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() // The rollback will be ignored if the tx has been committed later in the function.

	row := tx.QueryRowContext(ctx,
		`SELECT `+cohortColumns+` FROM cohorts WHERE course_id = $1 AND year = $2 FOR UPDATE`,
		courseId, year)
	cohort, err := scanCohort(row)
	if err == nil {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return cohort, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	var shortName string
	err = tx.QueryRowContext(ctx, `SELECT short_name FROM courses WHERE id = $1`, courseId).Scan(&shortName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &internal_errors.ErrorWithStatusCode{Message: "Course not found", StatusCode: 404}
		}
		return nil, err
	}

	row = tx.QueryRowContext(ctx,
		`INSERT INTO cohorts(course_id, year, slug) VALUES($1, $2, $3) RETURNING `+cohortColumns,
		courseId, year, slugFor(shortName, year))
	cohort, err = scanCohort(row)
	if err != nil {
		if isUniqueViolation(err) {
			// Someone else won the race between our SELECT and INSERT.
			// Abandon this transaction and return the winner's row.
			tx.Rollback()
			return s.getCohort(ctx, courseId, year)
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return cohort, nil
}

func (s *Storage) getCohort(ctx context.Context, courseId int64, year string) (*domain.Cohort, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+cohortColumns+` FROM cohorts WHERE course_id = $1 AND year = $2`,
		courseId, year)
	cohort, err := scanCohort(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &internal_errors.ErrorWithStatusCode{Message: "Cohort not found", StatusCode: 404}
		}
		return nil, err
	}
	return cohort, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
