package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edupanel/institute-api/internal/models"
)

const registrationColumns = `id, student_id, course_id, batch_preference, documents, status,
       academic_reviewed_by, academic_reviewed_at, financial_verified_by, financial_verified_at,
       approved_by, approved_at, admin_notes, created_at, updated_at`

// RegistrationRepository persists student applications and their gate decisions.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create inserts a new registration row in its initial state.
func (r *RegistrationRepository) Create(ctx context.Context, registration *models.Registration) error {
	if registration.ID == "" {
		registration.ID = uuid.NewString()
	}
	if registration.Status == "" {
		registration.Status = models.RegistrationStatusPending
	}
	now := time.Now().UTC()
	if registration.CreatedAt.IsZero() {
		registration.CreatedAt = now
	}
	registration.UpdatedAt = now
	const query = `INSERT INTO registrations
	(id, student_id, course_id, batch_preference, documents, status, admin_notes, created_at, updated_at)
	VALUES (:id, :student_id, :course_id, :batch_preference, :documents, :status, :admin_notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, registration); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// GetByID fetches a registration by identifier.
func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations WHERE id = $1`, registrationColumns)
	var registration models.Registration
	if err := r.db.GetContext(ctx, &registration, query, id); err != nil {
		return nil, err
	}
	return &registration, nil
}

// List returns registrations matching the filter, oldest first so the
// approval queue surfaces the longest-waiting applications.
func (r *RegistrationRepository) List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM registrations`, registrationColumns))

	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at ASC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var registrations []models.Registration
	if err := r.db.SelectContext(ctx, &registrations, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return registrations, nil
}

// TransitionParams groups the columns written by a single gate decision.
type TransitionParams struct {
	ID         string
	From       models.RegistrationStatus
	To         models.RegistrationStatus
	ActorID    string
	DecidedAt  time.Time
	AdminNotes *string
}

// Transition advances a registration, conditioned on the expected source
// status so a concurrent reviewer cannot double-advance the same record.
// Returns sql.ErrNoRows when the record was not in the expected state.
func (r *RegistrationRepository) Transition(ctx context.Context, params TransitionParams) error {
	actorColumn, tsColumn, err := gateColumns(params.To)
	if err != nil {
		return err
	}

	setParts := []string{
		"status = :status",
		fmt.Sprintf("%s = :actor_id", actorColumn),
		fmt.Sprintf("%s = :decided_at", tsColumn),
		"updated_at = :decided_at",
	}
	if params.AdminNotes != nil {
		setParts = append(setParts, "admin_notes = :admin_notes")
	}
	query := fmt.Sprintf("UPDATE registrations SET %s WHERE id = :id AND status = :from_status",
		strings.Join(setParts, ", "))

	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          params.ID,
		"status":      params.To,
		"from_status": params.From,
		"actor_id":    params.ActorID,
		"decided_at":  params.DecidedAt,
		"admin_notes": params.AdminNotes,
	})
	if err != nil {
		return fmt.Errorf("transition registration: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check transition rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func gateColumns(to models.RegistrationStatus) (actor, ts string, err error) {
	switch to {
	case models.RegistrationStatusAcademicReviewed:
		return "academic_reviewed_by", "academic_reviewed_at", nil
	case models.RegistrationStatusFinancialVerified:
		return "financial_verified_by", "financial_verified_at", nil
	case models.RegistrationStatusApproved, models.RegistrationStatusRejected:
		return "approved_by", "approved_at", nil
	default:
		return "", "", fmt.Errorf("no gate columns for status %s", to)
	}
}
