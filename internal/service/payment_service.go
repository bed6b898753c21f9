package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupanel/institute-api/internal/dto"
	"github.com/edupanel/institute-api/internal/models"
	"github.com/edupanel/institute-api/internal/repository"
	appErrors "github.com/edupanel/institute-api/pkg/errors"
	"github.com/edupanel/institute-api/pkg/export"
)

type paymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	Review(ctx context.Context, params repository.ReviewParams) error
}

type paymentEnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	UpdatePaymentState(ctx context.Context, id string, state models.PaymentState) error
}

type paymentAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// PaymentService handles payment proof submission and verification.
type PaymentService struct {
	repo        paymentRepository
	enrollments paymentEnrollmentRepository
	auditor     paymentAuditor
	receipts    *export.PDFExporter
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewPaymentService constructs the service.
func NewPaymentService(
	repo paymentRepository,
	enrollments paymentEnrollmentRepository,
	auditor paymentAuditor,
	receipts *export.PDFExporter,
	validate *validator.Validate,
	logger *zap.Logger,
) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PaymentService{
		repo:        repo,
		enrollments: enrollments,
		auditor:     auditor,
		receipts:    receipts,
		validator:   validate,
		logger:      logger,
	}
}

// Submit records a payment proof against the student's own enrollment.
func (s *PaymentService) Submit(ctx context.Context, studentID string, req dto.SubmitPaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}

	payment := &models.Payment{
		StudentID:    studentID,
		EnrollmentID: req.EnrollmentID,
		Amount:       req.Amount,
		Method:       req.Method,
		ProofURL:     req.ProofURL,
		Status:       models.PaymentStatusPending,
		Notes:        req.Notes,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment")
	}

	s.audit(ctx, &studentID, models.AuditActionPaymentSubmit, payment.ID, nil, payment)
	return payment, nil
}

// Get returns a payment. Students may only read their own payments.
func (s *PaymentService) Get(ctx context.Context, id string, requesterID string, requesterRole models.UserRole) (*models.Payment, error) {
	payment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if requesterRole == models.RoleStudent && payment.StudentID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "payment belongs to another student")
	}
	return payment, nil
}

// List returns payments matching the query.
func (s *PaymentService) List(ctx context.Context, query dto.PaymentQuery) ([]models.Payment, int, error) {
	payments, total, err := s.repo.List(ctx, models.PaymentFilter{
		StudentID:    query.StudentID,
		EnrollmentID: query.EnrollmentID,
		Status:       query.Status,
		Page:         query.Page,
		PageSize:     query.PageSize,
	})
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, total, nil
}

// Review records the verification outcome for a pending payment. The update
// is conditioned on the payment not yet being finalized; losing that race
// surfaces as a Conflict. Approval rolls the enrollment payment state
// forward to PAID (or PARTIAL for a partial decision).
func (s *PaymentService) Review(ctx context.Context, id string, reviewerID string, req dto.ReviewPaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	switch req.Status {
	case models.PaymentStatusApproved, models.PaymentStatusRejected, models.PaymentStatusPartial:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "review status must be APPROVED, REJECTED or PARTIAL")
	}

	payment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if payment.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "payment is already decided")
	}

	var notes *string
	if req.Notes != "" {
		notes = &req.Notes
	}
	params := repository.ReviewParams{
		ID:         id,
		Status:     req.Status,
		ReviewerID: reviewerID,
		ReviewedAt: time.Now().UTC(),
		Notes:      notes,
	}
	if err := s.repo.Review(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "payment was decided by another reviewer")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment")
	}

	switch req.Status {
	case models.PaymentStatusApproved:
		if err := s.enrollments.UpdatePaymentState(ctx, payment.EnrollmentID, models.PaymentStatePaid); err != nil {
			s.logger.Error("failed to mark enrollment paid",
				zap.String("enrollment_id", payment.EnrollmentID), zap.Error(err))
		}
	case models.PaymentStatusPartial:
		if err := s.enrollments.UpdatePaymentState(ctx, payment.EnrollmentID, models.PaymentStatePartial); err != nil {
			s.logger.Error("failed to mark enrollment partially paid",
				zap.String("enrollment_id", payment.EnrollmentID), zap.Error(err))
		}
	}

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload payment")
	}

	s.audit(ctx, &reviewerID, models.AuditActionPaymentReview, id, payment, updated)
	return updated, nil
}

// Receipt renders a PDF receipt for an approved payment.
func (s *PaymentService) Receipt(ctx context.Context, id string, requesterID string, requesterRole models.UserRole) ([]byte, error) {
	payment, err := s.Get(ctx, id, requesterID, requesterRole)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "receipt is only available for approved payments")
	}

	fields := [][2]string{
		{"Receipt No", payment.ID},
		{"Student", payment.StudentID},
		{"Enrollment", payment.EnrollmentID},
		{"Amount", fmt.Sprintf("%d", payment.Amount)},
		{"Method", payment.Method},
		{"Status", string(payment.Status)},
	}
	if payment.ApprovedAt != nil {
		fields = append(fields, [2]string{"Approved At", payment.ApprovedAt.Format(time.RFC3339)})
	}
	doc, err := s.receipts.Receipt(fields, "Payment Receipt")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return doc, nil
}

func (s *PaymentService) audit(ctx context.Context, actorID *string, action, resourceID string, oldValue, newValue interface{}) {
	log := &models.AuditLog{
		UserID:     actorID,
		Action:     action,
		Resource:   "payments",
		ResourceID: &resourceID,
	}
	if oldValue != nil {
		if raw, err := json.Marshal(oldValue); err == nil {
			log.OldValues = raw
		}
	}
	if newValue != nil {
		if raw, err := json.Marshal(newValue); err == nil {
			log.NewValues = raw
		}
	}
	if err := s.auditor.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record payment audit log", zap.Error(err))
	}
}
