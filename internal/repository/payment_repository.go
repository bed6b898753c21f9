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

const paymentColumns = `id, student_id, enrollment_id, amount, method, proof_url, status, approved_by, approved_at, notes, created_at, updated_at`

// PaymentRepository persists payment proofs and their verification outcomes.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a new payment record awaiting verification.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.Status == "" {
		payment.Status = models.PaymentStatusPending
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	const query = `INSERT INTO payments (id, student_id, enrollment_id, amount, method, proof_url, status, notes, created_at, updated_at)
		VALUES (:id, :student_id, :enrollment_id, :amount, :method, :proof_url, :status, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// GetByID fetches a payment by identifier.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// List returns payments matching the filter, newest first.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	base := `FROM payments WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.EnrollmentID != "" {
		conditions = append(conditions, fmt.Sprintf("enrollment_id = $%d", len(args)+1))
		args = append(args, filter.EnrollmentID)
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", paymentColumns, base, size, offset)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// ReviewParams groups the columns written by a verification decision.
type ReviewParams struct {
	ID         string
	Status     models.PaymentStatus
	ReviewerID string
	ReviewedAt time.Time
	Notes      *string
}

// Review persists the verification outcome, conditioned on the record not
// yet being finalized so two reviewers cannot both decide. approved_by and
// approved_at are written only when the decision is APPROVED. Returns
// sql.ErrNoRows when the payment was already decided.
func (r *PaymentRepository) Review(ctx context.Context, params ReviewParams) error {
	setParts := []string{
		"status = :status",
		"updated_at = :reviewed_at",
	}
	if params.Status == models.PaymentStatusApproved {
		setParts = append(setParts, "approved_by = :reviewer_id", "approved_at = :reviewed_at")
	}
	if params.Notes != nil {
		setParts = append(setParts, "notes = :notes")
	}
	query := fmt.Sprintf("UPDATE payments SET %s WHERE id = :id AND status IN ('%s', '%s')",
		strings.Join(setParts, ", "),
		models.PaymentStatusPending,
		models.PaymentStatusPartial,
	)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          params.ID,
		"status":      params.Status,
		"reviewer_id": params.ReviewerID,
		"reviewed_at": params.ReviewedAt,
		"notes":       params.Notes,
	})
	if err != nil {
		return fmt.Errorf("review payment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check payment review rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
