package dto

import "time"

// CreateCourseRequest adds a course to the catalog.
type CreateCourseRequest struct {
	Name          string  `json:"name" validate:"required"`
	Code          string  `json:"code" validate:"required"`
	Description   *string `json:"description,omitempty"`
	DurationWeeks int     `json:"duration_weeks" validate:"gte=0"`
	Fee           int64   `json:"fee" validate:"gte=0"`
}

// UpdateCourseRequest mutates catalog fields. Nil fields are untouched.
type UpdateCourseRequest struct {
	Name          *string `json:"name,omitempty"`
	Description   *string `json:"description,omitempty"`
	DurationWeeks *int    `json:"duration_weeks,omitempty"`
	Fee           *int64  `json:"fee,omitempty"`
	Active        *bool   `json:"active,omitempty"`
}

// CreateBatchRequest schedules a new cohort under a course.
type CreateBatchRequest struct {
	Name      string     `json:"name" validate:"required"`
	Schedule  *string    `json:"schedule,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Capacity  int        `json:"capacity" validate:"gte=0"`
	TeacherID *string    `json:"teacher_id,omitempty"`
}

// UpdateBatchRequest mutates batch fields. Nil fields are untouched.
type UpdateBatchRequest struct {
	Name      *string    `json:"name,omitempty"`
	Schedule  *string    `json:"schedule,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Capacity  *int       `json:"capacity,omitempty"`
	TeacherID *string    `json:"teacher_id,omitempty"`
	Archived  *bool      `json:"archived,omitempty"`
}
