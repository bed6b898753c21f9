package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edupanel/institute-api/internal/models"
)

const assignmentColumns = `id, batch_id, title, description, due_date, max_score, created_by, archived, created_at, updated_at`
const submissionColumns = `id, assignment_id, student_id, content, file_url, score, feedback, submitted_at, graded_by, graded_at`
const materialColumns = `id, batch_id, title, type, file_url, uploaded_by, archived, created_at, updated_at`

// AcademicsRepository persists assignments, submissions and study materials.
type AcademicsRepository struct {
	db *sqlx.DB
}

// NewAcademicsRepository constructs the repository.
func NewAcademicsRepository(db *sqlx.DB) *AcademicsRepository {
	return &AcademicsRepository{db: db}
}

// ListAssignments returns the non-archived assignments of a batch, due first.
func (r *AcademicsRepository) ListAssignments(ctx context.Context, batchID string) ([]models.Assignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM assignments WHERE batch_id = $1 AND archived = FALSE ORDER BY due_date ASC NULLS LAST, created_at DESC`, assignmentColumns)
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, batchID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// FindAssignmentByID returns an assignment by identifier.
func (r *AcademicsRepository) FindAssignmentByID(ctx context.Context, id string) (*models.Assignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM assignments WHERE id = $1 LIMIT 1`, assignmentColumns)
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// CreateAssignment inserts a new assignment.
func (r *AcademicsRepository) CreateAssignment(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now
	const query = `INSERT INTO assignments (id, batch_id, title, description, due_date, max_score, created_by, archived, created_at, updated_at)
		VALUES (:id, :batch_id, :title, :description, :due_date, :max_score, :created_by, :archived, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// ArchiveAssignment soft-archives an assignment.
func (r *AcademicsRepository) ArchiveAssignment(ctx context.Context, id string) error {
	const query = `UPDATE assignments SET archived = TRUE, updated_at = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("archive assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check archive rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListSubmissions returns submissions for an assignment, earliest first.
func (r *AcademicsRepository) ListSubmissions(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE assignment_id = $1 ORDER BY submitted_at ASC`, submissionColumns)
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// FindSubmission returns a student's submission for an assignment, if any.
func (r *AcademicsRepository) FindSubmission(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE assignment_id = $1 AND student_id = $2 LIMIT 1`, submissionColumns)
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, assignmentID, studentID); err != nil {
		return nil, err
	}
	return &submission, nil
}

// FindSubmissionByID returns a submission by identifier.
func (r *AcademicsRepository) FindSubmissionByID(ctx context.Context, id string) (*models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE id = $1 LIMIT 1`, submissionColumns)
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// CreateSubmission inserts a student's answer.
func (r *AcademicsRepository) CreateSubmission(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO submissions (id, assignment_id, student_id, content, file_url, submitted_at)
		VALUES (:id, :assignment_id, :student_id, :content, :file_url, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// GradeSubmission records score and feedback.
func (r *AcademicsRepository) GradeSubmission(ctx context.Context, id string, score int, feedback string, graderID string, gradedAt time.Time) error {
	const query = `UPDATE submissions SET score = $2, feedback = $3, graded_by = $4, graded_at = $5 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, score, feedback, graderID, gradedAt)
	if err != nil {
		return fmt.Errorf("grade submission: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check grade rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListMaterials returns the non-archived study materials of a batch.
func (r *AcademicsRepository) ListMaterials(ctx context.Context, batchID string) ([]models.StudyMaterial, error) {
	query := fmt.Sprintf(`SELECT %s FROM study_materials WHERE batch_id = $1 AND archived = FALSE ORDER BY created_at DESC`, materialColumns)
	var materials []models.StudyMaterial
	if err := r.db.SelectContext(ctx, &materials, query, batchID); err != nil {
		return nil, fmt.Errorf("list study materials: %w", err)
	}
	return materials, nil
}

// CreateMaterial inserts a study material reference.
func (r *AcademicsRepository) CreateMaterial(ctx context.Context, material *models.StudyMaterial) error {
	if material.ID == "" {
		material.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if material.CreatedAt.IsZero() {
		material.CreatedAt = now
	}
	material.UpdatedAt = now
	const query = `INSERT INTO study_materials (id, batch_id, title, type, file_url, uploaded_by, archived, created_at, updated_at)
		VALUES (:id, :batch_id, :title, :type, :file_url, :uploaded_by, :archived, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, material); err != nil {
		return fmt.Errorf("create study material: %w", err)
	}
	return nil
}

// ArchiveMaterial soft-archives a study material.
func (r *AcademicsRepository) ArchiveMaterial(ctx context.Context, id string) error {
	const query = `UPDATE study_materials SET archived = TRUE, updated_at = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("archive study material: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check archive rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
