package dto

import "time"

// CreateAssignmentRequest adds coursework to a batch.
type CreateAssignmentRequest struct {
	Title       string     `json:"title" validate:"required"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	MaxScore    int        `json:"max_score" validate:"gt=0"`
}

// SubmitAssignmentRequest records a student's answer.
type SubmitAssignmentRequest struct {
	Content *string `json:"content,omitempty"`
	FileURL *string `json:"file_url,omitempty"`
}

// GradeSubmissionRequest records teacher feedback.
type GradeSubmissionRequest struct {
	Score    int    `json:"score" validate:"gte=0"`
	Feedback string `json:"feedback,omitempty"`
}

// CreateMaterialRequest shares a study material reference with a batch.
type CreateMaterialRequest struct {
	Title   string `json:"title" validate:"required"`
	Type    string `json:"type" validate:"required"`
	FileURL string `json:"file_url" validate:"required,url"`
}
