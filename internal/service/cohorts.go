package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	internal_errors "github.com/unifeed-dev/unifeed/internal/errors"

	"github.com/unifeed-dev/unifeed/internal/domain"
)

type CohortStorage interface {
	GetOrCreateCohort(ctx context.Context, courseId int64, year string, slugFor func(shortName, year string) string) (*domain.Cohort, error)
}

// Cohorts materializes "class of {year}" records on first reference. The
// race safety lives in the storage layer (row lock plus unique-constraint
// recovery); this service adds validation and slug derivation.
type Cohorts struct {
	storage CohortStorage
}

func NewCohorts(storage CohortStorage) *Cohorts {
	return &Cohorts{storage: storage}
}

var yearPattern = regexp.MustCompile(`^\d{4}$`)

// GetOrCreate returns the cohort for (courseId, year), creating it if this
// is the first reference. Concurrent callers all get the same record.
func (c *Cohorts) GetOrCreate(ctx context.Context, courseId int64, year string) (*domain.Cohort, error) {
	if !yearPattern.MatchString(year) {
		return nil, &internal_errors.ErrorWithStatusCode{Message: "Invalid cohort year", StatusCode: 400}
	}
	return c.storage.GetOrCreateCohort(ctx, courseId, year, CohortSlug)
}

// CohortSlug derives the canonical cohort slug from a course short name.
func CohortSlug(shortName, year string) string {
	return fmt.Sprintf("course/%s-class-of-%s", sanitizeShortName(shortName), year)
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

func sanitizeShortName(shortName string) string {
	sanitized := strings.ToLower(strings.TrimSpace(shortName))
	sanitized = nonSlugChars.ReplaceAllString(sanitized, "-")
	sanitized = strings.Trim(sanitized, "-")
	if sanitized == "" {
		return "course"
	}
	return sanitized
}
