package domain

// Course is a degree program at a university.
type Course struct {
	Id           int64
	UniversityId int64
	Name         string
	ShortName    string
	Shortcode    string
}

// Cohort is the year-scoped grouping under a course ("class of 2026").
// Cohorts are materialized on first reference, never created directly.
type Cohort struct {
	Id       int64
	CourseId int64
	Year     string
	Slug     string
	AdminId  *UserId
}
