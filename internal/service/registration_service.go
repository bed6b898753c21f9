package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupanel/institute-api/internal/dto"
	"github.com/edupanel/institute-api/internal/models"
	"github.com/edupanel/institute-api/internal/repository"
	appErrors "github.com/edupanel/institute-api/pkg/errors"
	"github.com/edupanel/institute-api/pkg/export"
)

type registrationRepository interface {
	Create(ctx context.Context, registration *models.Registration) error
	GetByID(ctx context.Context, id string) (*models.Registration, error)
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, error)
	Transition(ctx context.Context, params repository.TransitionParams) error
}

type registrationCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindBatchByID(ctx context.Context, id string) (*models.Batch, error)
	FirstOpenBatch(ctx context.Context, courseID string) (*models.Batch, error)
}

type enrollmentCreator interface {
	ExistsActive(ctx context.Context, studentID, batchID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
}

type registrationAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

const queueCachePrefix = "queue:registrations"

// RegistrationService drives the application approval workflow. Each gate
// decision is applied through the transition table and committed with a
// compare-and-set update so concurrent reviewers cannot double-advance.
// Queue listings are cached briefly; decisions invalidate the cache.
type RegistrationService struct {
	repo        registrationRepository
	courses     registrationCourseRepository
	enrollments enrollmentCreator
	auditor     registrationAuditor
	cache       catalogCache
	queueTTL    time.Duration
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewRegistrationService constructs the service. A nil cache disables
// queue caching.
func NewRegistrationService(
	repo registrationRepository,
	courses registrationCourseRepository,
	enrollments enrollmentCreator,
	auditor registrationAuditor,
	cache catalogCache,
	queueTTL time.Duration,
	validate *validator.Validate,
	logger *zap.Logger,
) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RegistrationService{
		repo:        repo,
		courses:     courses,
		enrollments: enrollments,
		auditor:     auditor,
		cache:       cache,
		queueTTL:    queueTTL,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		validator:   validate,
		logger:      logger,
	}
}

// Create submits a student application in the PENDING state.
func (s *RegistrationService) Create(ctx context.Context, studentID string, req dto.CreateRegistrationRequest) (*models.Registration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if req.BatchPreference != nil {
		batch, err := s.courses.FindBatchByID(ctx, *req.BatchPreference)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "preferred batch not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
		}
		if batch.CourseID != req.CourseID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "preferred batch does not belong to the course")
		}
	}

	registration := &models.Registration{
		StudentID:       studentID,
		CourseID:        req.CourseID,
		BatchPreference: req.BatchPreference,
		Documents:       req.Documents,
		Status:          models.RegistrationStatusPending,
	}
	if err := s.repo.Create(ctx, registration); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration")
	}

	s.invalidateQueue(ctx)
	s.audit(ctx, &studentID, models.AuditActionRegistrationCreate, registration.ID, nil, registration)
	return registration, nil
}

// Get returns a registration. Students may only read their own applications.
func (s *RegistrationService) Get(ctx context.Context, id string, requesterID string, requesterRole models.UserRole) (*models.Registration, error) {
	registration, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	if requesterRole == models.RoleStudent && registration.StudentID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "registration belongs to another student")
	}
	return registration, nil
}

// openStatuses are the states still awaiting a decision. Queue reads
// default to them so staff never wade through settled applications.
var openStatuses = []models.RegistrationStatus{
	models.RegistrationStatusPending,
	models.RegistrationStatusAcademicReviewed,
	models.RegistrationStatusFinancialVerified,
}

// List returns the approval queue, oldest applications first.
func (s *RegistrationService) List(ctx context.Context, query dto.RegistrationQuery) ([]models.Registration, error) {
	if len(query.Status) == 0 {
		query.Status = openStatuses
	}
	cacheKey := queueCacheKey(query)
	if s.cache != nil {
		var cached []models.Registration
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	registrations, err := s.repo.List(ctx, models.RegistrationFilter{
		Status:   query.Status,
		CourseID: query.CourseID,
		Limit:    query.Limit,
		Offset:   query.Offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, registrations, s.queueTTL); err != nil {
			s.logger.Warn("failed to cache registration queue", zap.Error(err))
		}
	}
	return registrations, nil
}

// ListForStudent returns the student's own applications.
func (s *RegistrationService) ListForStudent(ctx context.Context, studentID string) ([]models.Registration, error) {
	registrations, err := s.repo.List(ctx, models.RegistrationFilter{StudentID: studentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	return registrations, nil
}

// Review applies a single gate decision to a registration. The action names
// the gate; the transition table decides whether the current status admits
// it. A registration that is not in the expected state yields a Conflict,
// both when checked up front and when the conditional update loses a race.
func (s *RegistrationService) Review(ctx context.Context, id string, action models.RegistrationAction, actorID string, notes string) (*models.Registration, error) {
	registration, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}

	next, err := models.ApplyTransition(registration.Status, action)
	if err != nil {
		return nil, err
	}

	var adminNotes *string
	if notes != "" {
		adminNotes = &notes
	}
	params := repository.TransitionParams{
		ID:         id,
		From:       registration.Status,
		To:         next,
		ActorID:    actorID,
		DecidedAt:  time.Now().UTC(),
		AdminNotes: adminNotes,
	}
	if err := s.repo.Transition(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "registration was modified by another reviewer")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update registration")
	}

	if next == models.RegistrationStatusApproved {
		if err := s.enrollOnApproval(ctx, registration); err != nil {
			// The approval itself stands; enrollment failures are surfaced
			// in the logs and resolved by staff through the enrollment API.
			s.logger.Error("failed to enroll approved registration",
				zap.String("registration_id", id), zap.Error(err))
		}
	}

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload registration")
	}

	s.invalidateQueue(ctx)
	s.audit(ctx, &actorID, models.AuditActionRegistrationReview, id, registration, updated)
	return updated, nil
}

// ExportQueue renders the filtered queue as CSV or PDF for staff reporting.
// The repository caps list page sizes, so the export pages through until the
// queue is exhausted.
func (s *RegistrationService) ExportQueue(ctx context.Context, query dto.RegistrationQuery, format string) ([]byte, string, error) {
	if len(query.Status) == 0 {
		query.Status = openStatuses
	}

	const pageSize = 200
	var registrations []models.Registration
	for offset := 0; ; offset += pageSize {
		page, err := s.repo.List(ctx, models.RegistrationFilter{
			Status:   query.Status,
			CourseID: query.CourseID,
			Limit:    pageSize,
			Offset:   offset,
		})
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
		}
		registrations = append(registrations, page...)
		if len(page) < pageSize {
			break
		}
	}

	data := export.Dataset{
		Headers: []string{"ID", "Student", "Course", "Status", "Submitted At"},
		Rows:    make([]map[string]string, 0, len(registrations)),
	}
	for _, r := range registrations {
		data.Rows = append(data.Rows, map[string]string{
			"ID":           r.ID,
			"Student":      r.StudentID,
			"Course":       r.CourseID,
			"Status":       string(r.Status),
			"Submitted At": r.CreatedAt.Format("2006-01-02 15:04"),
		})
	}

	switch strings.ToLower(format) {
	case "csv", "":
		out, err := s.csv.Render(data)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
		}
		return out, "text/csv", nil
	case "pdf":
		out, err := s.pdf.Render(data, "Registration Queue")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
		}
		return out, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func queueCacheKey(query dto.RegistrationQuery) string {
	statuses := make([]string, len(query.Status))
	for i, s := range query.Status {
		statuses[i] = string(s)
	}
	return fmt.Sprintf("%s:%s:%s:%d:%d", queueCachePrefix,
		strings.Join(statuses, ","), query.CourseID, query.Limit, query.Offset)
}

func (s *RegistrationService) invalidateQueue(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, queueCachePrefix+":*"); err != nil {
		s.logger.Warn("failed to invalidate queue cache", zap.Error(err))
	}
}

// enrollOnApproval creates the student's enrollment once the final gate
// passes, using the preferred batch when one was named and the earliest
// open batch otherwise.
func (s *RegistrationService) enrollOnApproval(ctx context.Context, registration *models.Registration) error {
	var batch *models.Batch
	var err error
	if registration.BatchPreference != nil {
		batch, err = s.courses.FindBatchByID(ctx, *registration.BatchPreference)
	} else {
		batch, err = s.courses.FirstOpenBatch(ctx, registration.CourseID)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "no open batch available for the course")
		}
		return err
	}

	exists, err := s.enrollments.ExistsActive(ctx, registration.StudentID, batch.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	enrollment := &models.Enrollment{
		StudentID:     registration.StudentID,
		BatchID:       batch.ID,
		Status:        models.EnrollmentStatusActive,
		PaymentStatus: models.PaymentStatePending,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return err
	}

	raw, _ := json.Marshal(enrollment)
	if err := s.auditor.CreateAuditLog(ctx, &models.AuditLog{
		Action:     models.AuditActionEnrollmentCreate,
		Resource:   "enrollments",
		ResourceID: &enrollment.ID,
		NewValues:  raw,
	}); err != nil {
		s.logger.Warn("failed to record enrollment audit log", zap.Error(err))
	}
	return nil
}

func (s *RegistrationService) audit(ctx context.Context, actorID *string, action, resourceID string, oldValue, newValue interface{}) {
	log := &models.AuditLog{
		UserID:     actorID,
		Action:     action,
		Resource:   "registrations",
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
		s.logger.Warn("failed to record registration audit log", zap.Error(err))
	}
}
