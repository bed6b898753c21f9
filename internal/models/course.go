package models

import "time"

// Course is a sellable programme offered by the institute.
type Course struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Code         string    `db:"code" json:"code"`
	Description  *string   `db:"description" json:"description,omitempty"`
	DurationWeek int       `db:"duration_weeks" json:"duration_weeks"`
	Fee          int64     `db:"fee" json:"fee"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Batch is a scheduled cohort of a course.
type Batch struct {
	ID        string     `db:"id" json:"id"`
	CourseID  string     `db:"course_id" json:"course_id"`
	Name      string     `db:"name" json:"name"`
	Schedule  *string    `db:"schedule" json:"schedule,omitempty"`
	StartDate *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate   *time.Time `db:"end_date" json:"end_date,omitempty"`
	Capacity  int        `db:"capacity" json:"capacity"`
	TeacherID *string    `db:"teacher_id" json:"teacher_id,omitempty"`
	Archived  bool       `db:"archived" json:"archived"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// CourseFilter constrains course catalog listings.
type CourseFilter struct {
	Active   *bool
	Search   string
	Page     int
	PageSize int
}
