package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupanel/institute-api/internal/dto"
	"github.com/edupanel/institute-api/internal/models"
	appErrors "github.com/edupanel/institute-api/pkg/errors"
	"github.com/edupanel/institute-api/pkg/export"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ExistsActive(ctx context.Context, studentID, batchID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
}

type enrollmentBatchRepository interface {
	FindBatchByID(ctx context.Context, id string) (*models.Batch, error)
}

type enrollmentAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// EnrollmentService manages student-batch enrollments.
type EnrollmentService struct {
	repo      enrollmentRepository
	batches   enrollmentBatchRepository
	auditor   enrollmentAuditor
	exporter  *export.CSVExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs the service.
func NewEnrollmentService(
	repo enrollmentRepository,
	batches enrollmentBatchRepository,
	auditor enrollmentAuditor,
	exporter *export.CSVExporter,
	validate *validator.Validate,
	logger *zap.Logger,
) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EnrollmentService{
		repo:      repo,
		batches:   batches,
		auditor:   auditor,
		exporter:  exporter,
		validator: validate,
		logger:    logger,
	}
}

// List returns enrollments matching the filter with joined display columns.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, total, nil
}

// Get returns an enrollment. Students may only read their own.
func (s *EnrollmentService) Get(ctx context.Context, id string, requesterID string, requesterRole models.UserRole) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if requesterRole == models.RoleStudent && enrollment.StudentID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}
	return enrollment, nil
}

// Create enrolls a student directly, bypassing the registration workflow.
// Duplicate active enrollments in the same batch are rejected.
func (s *EnrollmentService) Create(ctx context.Context, actorID string, req dto.CreateEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	if _, err := s.batches.FindBatchByID(ctx, req.BatchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}

	exists, err := s.repo.ExistsActive(ctx, req.StudentID, req.BatchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this batch")
	}

	enrollment := &models.Enrollment{
		StudentID:     req.StudentID,
		BatchID:       req.BatchID,
		Status:        models.EnrollmentStatusActive,
		PaymentStatus: models.PaymentStatePending,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	if raw, mErr := json.Marshal(enrollment); mErr == nil {
		if aErr := s.auditor.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actorID,
			Action:     models.AuditActionEnrollmentCreate,
			Resource:   "enrollments",
			ResourceID: &enrollment.ID,
			NewValues:  raw,
		}); aErr != nil {
			s.logger.Warn("failed to record enrollment audit log", zap.Error(aErr))
		}
	}
	return enrollment, nil
}

// UpdateStatus moves an enrollment through its lifecycle.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id string, req dto.UpdateEnrollmentStatusRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	switch req.Status {
	case models.EnrollmentStatusPending, models.EnrollmentStatusActive,
		models.EnrollmentStatusCompleted, models.EnrollmentStatusCancelled:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown enrollment status")
	}

	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}

	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload enrollment")
	}
	return enrollment, nil
}

// ExportCSV renders the filtered enrollment list as CSV for staff reporting.
// The repository caps list page sizes, so the export pages through until the
// result set is exhausted.
func (s *EnrollmentService) ExportCSV(ctx context.Context, filter models.EnrollmentFilter) ([]byte, error) {
	const pageSize = 100
	filter.PageSize = pageSize
	var enrollments []models.EnrollmentDetail
	for page := 1; ; page++ {
		filter.Page = page
		batch, _, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
		}
		enrollments = append(enrollments, batch...)
		if len(batch) < pageSize {
			break
		}
	}

	data := export.Dataset{
		Headers: []string{"ID", "Student", "Course", "Batch", "Status", "Payment", "Joined At"},
		Rows:    make([]map[string]string, 0, len(enrollments)),
	}
	for _, e := range enrollments {
		data.Rows = append(data.Rows, map[string]string{
			"ID":        e.ID,
			"Student":   e.StudentName,
			"Course":    e.CourseName,
			"Batch":     e.BatchName,
			"Status":    string(e.Status),
			"Payment":   string(e.PaymentStatus),
			"Joined At": e.JoinedAt.Format("2006-01-02"),
		})
	}

	out, err := s.exporter.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return out, nil
}
