package models

import "time"

// Assignment is coursework attached to a batch.
type Assignment struct {
	ID          string     `db:"id" json:"id"`
	BatchID     string     `db:"batch_id" json:"batch_id"`
	Title       string     `db:"title" json:"title"`
	Description *string    `db:"description" json:"description,omitempty"`
	DueDate     *time.Time `db:"due_date" json:"due_date,omitempty"`
	MaxScore    int        `db:"max_score" json:"max_score"`
	CreatedBy   string     `db:"created_by" json:"created_by"`
	Archived    bool       `db:"archived" json:"archived"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Submission is a student's answer to an assignment. One per student.
type Submission struct {
	ID           string     `db:"id" json:"id"`
	AssignmentID string     `db:"assignment_id" json:"assignment_id"`
	StudentID    string     `db:"student_id" json:"student_id"`
	Content      *string    `db:"content" json:"content,omitempty"`
	FileURL      *string    `db:"file_url" json:"file_url,omitempty"`
	Score        *int       `db:"score" json:"score,omitempty"`
	Feedback     *string    `db:"feedback" json:"feedback,omitempty"`
	SubmittedAt  time.Time  `db:"submitted_at" json:"submitted_at"`
	GradedBy     *string    `db:"graded_by" json:"graded_by,omitempty"`
	GradedAt     *time.Time `db:"graded_at" json:"graded_at,omitempty"`
}

// StudyMaterial is a learning resource shared with a batch.
type StudyMaterial struct {
	ID         string    `db:"id" json:"id"`
	BatchID    string    `db:"batch_id" json:"batch_id"`
	Title      string    `db:"title" json:"title"`
	Type       string    `db:"type" json:"type"`
	FileURL    string    `db:"file_url" json:"file_url"`
	UploadedBy string    `db:"uploaded_by" json:"uploaded_by"`
	Archived   bool      `db:"archived" json:"archived"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
