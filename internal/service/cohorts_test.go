package service

import (
	"context"
	"testing"

	"github.com/unifeed-dev/unifeed/internal/domain"
)

type MockCohortStorage struct {
	GetOrCreateCohortFunc func(ctx context.Context, courseId int64, year string, slugFor func(shortName, year string) string) (*domain.Cohort, error)
}

func (m *MockCohortStorage) GetOrCreateCohort(ctx context.Context, courseId int64, year string, slugFor func(shortName, year string) string) (*domain.Cohort, error) {
	if m.GetOrCreateCohortFunc != nil {
		return m.GetOrCreateCohortFunc(ctx, courseId, year, slugFor)
	}
	return &domain.Cohort{Id: 1, CourseId: courseId, Year: year, Slug: slugFor("BSc CompSci", year)}, nil
}

func TestCohortGetOrCreateDerivesSlug(t *testing.T) {
	cohorts := NewCohorts(&MockCohortStorage{})

	cohort, err := cohorts.GetOrCreate(context.Background(), 3, "2026")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if cohort.Slug != "course/bsc-compsci-class-of-2026" {
		t.Errorf("slug = %q", cohort.Slug)
	}
}

func TestCohortRejectsMalformedYear(t *testing.T) {
	cohorts := NewCohorts(&MockCohortStorage{
		GetOrCreateCohortFunc: func(ctx context.Context, courseId int64, year string, slugFor func(shortName, year string) string) (*domain.Cohort, error) {
			t.Fatal("storage must not be reached for an invalid year")
			return nil, nil
		},
	})

	for _, year := range []string{"", "26", "20261", "twenty", "2026 "} {
		_, err := cohorts.GetOrCreate(context.Background(), 3, year)
		if code := statusCodeOf(t, err); code != 400 {
			t.Errorf("year %q: status code = %d, want 400", year, code)
		}
	}
}

func TestCohortSlugSanitization(t *testing.T) {
	tests := []struct {
		shortName string
		want      string
	}{
		{"BSc CompSci", "course/bsc-compsci-class-of-2026"},
		{"M.Eng (Hons)", "course/m-eng-hons-class-of-2026"},
		{"  law  ", "course/law-class-of-2026"},
		{"***", "course/course-class-of-2026"},
	}
	for _, tc := range tests {
		if got := CohortSlug(tc.shortName, "2026"); got != tc.want {
			t.Errorf("CohortSlug(%q) = %q, want %q", tc.shortName, got, tc.want)
		}
	}
}
