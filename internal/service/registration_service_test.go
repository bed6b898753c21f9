package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edupanel/institute-api/internal/dto"
	"github.com/edupanel/institute-api/internal/models"
	"github.com/edupanel/institute-api/internal/repository"
	appErrors "github.com/edupanel/institute-api/pkg/errors"
)

type mockRegistrationRepo struct {
	registrations map[string]*models.Registration
	transitions   []repository.TransitionParams
	listFilters   []models.RegistrationFilter
	pages         [][]models.Registration
}

func (m *mockRegistrationRepo) Create(ctx context.Context, registration *models.Registration) error {
	if registration.ID == "" {
		registration.ID = "reg-1"
	}
	registration.Status = models.RegistrationStatusPending
	if m.registrations == nil {
		m.registrations = make(map[string]*models.Registration)
	}
	m.registrations[registration.ID] = registration
	return nil
}

func (m *mockRegistrationRepo) GetByID(ctx context.Context, id string) (*models.Registration, error) {
	registration, ok := m.registrations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *registration
	return &copied, nil
}

// List records every filter it receives. With canned pages set it serves
// them in call order; otherwise it applies the status filter to the map.
func (m *mockRegistrationRepo) List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, error) {
	m.listFilters = append(m.listFilters, filter)
	if m.pages != nil {
		call := len(m.listFilters) - 1
		if call < len(m.pages) {
			return m.pages[call], nil
		}
		return nil, nil
	}
	out := make([]models.Registration, 0, len(m.registrations))
	for _, r := range m.registrations {
		if len(filter.Status) > 0 && !statusIn(r.Status, filter.Status) {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func statusIn(status models.RegistrationStatus, set []models.RegistrationStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

// Transition mirrors the conditional UPDATE: it only applies when the stored
// status matches the expected source, otherwise reports zero rows.
func (m *mockRegistrationRepo) Transition(ctx context.Context, params repository.TransitionParams) error {
	registration, ok := m.registrations[params.ID]
	if !ok || registration.Status != params.From {
		return sql.ErrNoRows
	}
	m.transitions = append(m.transitions, params)
	registration.Status = params.To
	switch params.To {
	case models.RegistrationStatusAcademicReviewed:
		registration.AcademicReviewedBy = &params.ActorID
		registration.AcademicReviewedAt = &params.DecidedAt
	case models.RegistrationStatusFinancialVerified:
		registration.FinancialVerifiedBy = &params.ActorID
		registration.FinancialVerifiedAt = &params.DecidedAt
	case models.RegistrationStatusApproved, models.RegistrationStatusRejected:
		registration.ApprovedBy = &params.ActorID
		registration.ApprovedAt = &params.DecidedAt
	}
	if params.AdminNotes != nil {
		registration.AdminNotes = params.AdminNotes
	}
	registration.UpdatedAt = params.DecidedAt
	return nil
}

type mockCourseRepo struct {
	course    *models.Course
	batch     *models.Batch
	openBatch *models.Batch
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if m.course == nil {
		return nil, sql.ErrNoRows
	}
	return m.course, nil
}

func (m *mockCourseRepo) FindBatchByID(ctx context.Context, id string) (*models.Batch, error) {
	if m.batch == nil {
		return nil, sql.ErrNoRows
	}
	return m.batch, nil
}

func (m *mockCourseRepo) FirstOpenBatch(ctx context.Context, courseID string) (*models.Batch, error) {
	if m.openBatch == nil {
		return nil, sql.ErrNoRows
	}
	return m.openBatch, nil
}

type mockEnrollmentCreator struct {
	existing bool
	created  []*models.Enrollment
}

func (m *mockEnrollmentCreator) ExistsActive(ctx context.Context, studentID, batchID string) (bool, error) {
	return m.existing, nil
}

func (m *mockEnrollmentCreator) Create(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = "enr-1"
	m.created = append(m.created, enrollment)
	return nil
}

type mockAuditor struct {
	logs []*models.AuditLog
}

func (m *mockAuditor) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func newTestRegistrationService(repo *mockRegistrationRepo, courses *mockCourseRepo, enrollments *mockEnrollmentCreator) (*RegistrationService, *mockAuditor) {
	auditor := &mockAuditor{}
	svc := NewRegistrationService(repo, courses, enrollments, auditor, nil, time.Minute, validator.New(), zap.NewNop())
	return svc, auditor
}

func seedRegistration(status models.RegistrationStatus) *mockRegistrationRepo {
	return &mockRegistrationRepo{registrations: map[string]*models.Registration{
		"reg-1": {
			ID:        "reg-1",
			StudentID: "student-1",
			CourseID:  "course-1",
			Status:    status,
			Documents: []byte(`{"id_card":"ref"}`),
		},
	}}
}

func TestRegistrationCreateStartsPending(t *testing.T) {
	repo := &mockRegistrationRepo{}
	courses := &mockCourseRepo{course: &models.Course{ID: "course-1"}}
	svc, auditor := newTestRegistrationService(repo, courses, &mockEnrollmentCreator{})

	registration, err := svc.Create(context.Background(), "student-1", dto.CreateRegistrationRequest{
		CourseID:  "course-1",
		Documents: []byte(`{"id_card":"ref"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusPending, registration.Status)
	assert.Equal(t, "student-1", registration.StudentID)
	assert.NotEmpty(t, auditor.logs)
}

func TestRegistrationReviewHappyPath(t *testing.T) {
	repo := seedRegistration(models.RegistrationStatusPending)
	enrollments := &mockEnrollmentCreator{}
	courses := &mockCourseRepo{course: &models.Course{ID: "course-1"}, openBatch: &models.Batch{ID: "batch-1", CourseID: "course-1"}}
	svc, _ := newTestRegistrationService(repo, courses, enrollments)
	ctx := context.Background()

	registration, err := svc.Review(ctx, "reg-1", models.ActionAcademicReview, "staff-1", "ok")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusAcademicReviewed, registration.Status)
	require.NotNil(t, registration.AcademicReviewedBy)
	assert.Equal(t, "staff-1", *registration.AcademicReviewedBy)
	assert.NotNil(t, registration.AcademicReviewedAt)

	registration, err = svc.Review(ctx, "reg-1", models.ActionFinancialVerify, "finance-1", "")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusFinancialVerified, registration.Status)
	require.NotNil(t, registration.FinancialVerifiedBy)
	assert.Equal(t, "finance-1", *registration.FinancialVerifiedBy)

	registration, err = svc.Review(ctx, "reg-1", models.ActionApprove, "admin-1", "")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusApproved, registration.Status)
	require.NotNil(t, registration.ApprovedBy)
	assert.Equal(t, "admin-1", *registration.ApprovedBy)

	require.Len(t, enrollments.created, 1)
	assert.Equal(t, "student-1", enrollments.created[0].StudentID)
	assert.Equal(t, "batch-1", enrollments.created[0].BatchID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollments.created[0].Status)
	assert.Equal(t, models.PaymentStatePending, enrollments.created[0].PaymentStatus)
}

func TestRegistrationReviewSkippedGateConflicts(t *testing.T) {
	repo := seedRegistration(models.RegistrationStatusPending)
	svc, _ := newTestRegistrationService(repo, &mockCourseRepo{}, &mockEnrollmentCreator{})

	_, err := svc.Review(context.Background(), "reg-1", models.ActionFinancialVerify, "finance-1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.RegistrationStatusPending, repo.registrations["reg-1"].Status)

	_, err = svc.Review(context.Background(), "reg-1", models.ActionApprove, "admin-1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.transitions)
}

func TestRegistrationReviewRepeatedGateConflicts(t *testing.T) {
	repo := seedRegistration(models.RegistrationStatusAcademicReviewed)
	svc, _ := newTestRegistrationService(repo, &mockCourseRepo{}, &mockEnrollmentCreator{})

	_, err := svc.Review(context.Background(), "reg-1", models.ActionAcademicReview, "staff-2", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.RegistrationStatusAcademicReviewed, repo.registrations["reg-1"].Status)
}

func TestRegistrationTerminalIsImmutable(t *testing.T) {
	for _, status := range []models.RegistrationStatus{models.RegistrationStatusApproved, models.RegistrationStatusRejected} {
		repo := seedRegistration(status)
		svc, _ := newTestRegistrationService(repo, &mockCourseRepo{}, &mockEnrollmentCreator{})

		for _, action := range []models.RegistrationAction{
			models.ActionAcademicReview, models.ActionFinancialVerify,
			models.ActionApprove, models.ActionReject,
		} {
			_, err := svc.Review(context.Background(), "reg-1", action, "admin-1", "")
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
		}
		assert.Equal(t, status, repo.registrations["reg-1"].Status)
		assert.Empty(t, repo.transitions)
	}
}

func TestRegistrationRejectFromEveryNonTerminalState(t *testing.T) {
	for _, status := range []models.RegistrationStatus{
		models.RegistrationStatusPending,
		models.RegistrationStatusAcademicReviewed,
		models.RegistrationStatusFinancialVerified,
	} {
		repo := seedRegistration(status)
		svc, _ := newTestRegistrationService(repo, &mockCourseRepo{}, &mockEnrollmentCreator{})

		registration, err := svc.Review(context.Background(), "reg-1", models.ActionReject, "admin-1", "missing documents")
		require.NoError(t, err)
		assert.Equal(t, models.RegistrationStatusRejected, registration.Status)
		require.NotNil(t, registration.ApprovedBy)
		assert.Equal(t, "admin-1", *registration.ApprovedBy)
		assert.NotNil(t, registration.ApprovedAt)
		require.NotNil(t, registration.AdminNotes)
		assert.Equal(t, "missing documents", *registration.AdminNotes)
	}
}

func TestRegistrationReviewUnknownIDNotFound(t *testing.T) {
	svc, _ := newTestRegistrationService(&mockRegistrationRepo{}, &mockCourseRepo{}, &mockEnrollmentCreator{})

	_, err := svc.Review(context.Background(), "missing", models.ActionAcademicReview, "staff-1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRegistrationApproveUsesBatchPreference(t *testing.T) {
	preference := "batch-9"
	repo := &mockRegistrationRepo{registrations: map[string]*models.Registration{
		"reg-1": {
			ID:              "reg-1",
			StudentID:       "student-1",
			CourseID:        "course-1",
			BatchPreference: &preference,
			Status:          models.RegistrationStatusFinancialVerified,
		},
	}}
	enrollments := &mockEnrollmentCreator{}
	courses := &mockCourseRepo{batch: &models.Batch{ID: "batch-9", CourseID: "course-1"}}
	svc, _ := newTestRegistrationService(repo, courses, enrollments)

	_, err := svc.Review(context.Background(), "reg-1", models.ActionApprove, "admin-1", "")
	require.NoError(t, err)
	require.Len(t, enrollments.created, 1)
	assert.Equal(t, "batch-9", enrollments.created[0].BatchID)
}

func TestRegistrationApproveSkipsDuplicateEnrollment(t *testing.T) {
	repo := seedRegistration(models.RegistrationStatusFinancialVerified)
	enrollments := &mockEnrollmentCreator{existing: true}
	courses := &mockCourseRepo{openBatch: &models.Batch{ID: "batch-1", CourseID: "course-1"}}
	svc, _ := newTestRegistrationService(repo, courses, enrollments)

	registration, err := svc.Review(context.Background(), "reg-1", models.ActionApprove, "admin-1", "")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusApproved, registration.Status)
	assert.Empty(t, enrollments.created)
}

func TestRegistrationListDefaultsToOpenQueue(t *testing.T) {
	repo := &mockRegistrationRepo{registrations: map[string]*models.Registration{
		"reg-1": {ID: "reg-1", Status: models.RegistrationStatusPending},
		"reg-2": {ID: "reg-2", Status: models.RegistrationStatusApproved},
		"reg-3": {ID: "reg-3", Status: models.RegistrationStatusRejected},
	}}
	svc, _ := newTestRegistrationService(repo, &mockCourseRepo{}, &mockEnrollmentCreator{})

	registrations, err := svc.List(context.Background(), dto.RegistrationQuery{})
	require.NoError(t, err)
	require.Len(t, registrations, 1)
	assert.Equal(t, "reg-1", registrations[0].ID)
	require.Len(t, repo.listFilters, 1)
	assert.ElementsMatch(t, []models.RegistrationStatus{
		models.RegistrationStatusPending,
		models.RegistrationStatusAcademicReviewed,
		models.RegistrationStatusFinancialVerified,
	}, repo.listFilters[0].Status)
}

func TestRegistrationListExplicitStatusWins(t *testing.T) {
	repo := &mockRegistrationRepo{registrations: map[string]*models.Registration{
		"reg-1": {ID: "reg-1", Status: models.RegistrationStatusPending},
		"reg-2": {ID: "reg-2", Status: models.RegistrationStatusApproved},
	}}
	svc, _ := newTestRegistrationService(repo, &mockCourseRepo{}, &mockEnrollmentCreator{})

	registrations, err := svc.List(context.Background(), dto.RegistrationQuery{
		Status: []models.RegistrationStatus{models.RegistrationStatusApproved},
	})
	require.NoError(t, err)
	require.Len(t, registrations, 1)
	assert.Equal(t, "reg-2", registrations[0].ID)
}

func TestRegistrationExportQueueCSV(t *testing.T) {
	repo := seedRegistration(models.RegistrationStatusPending)
	svc, _ := newTestRegistrationService(repo, &mockCourseRepo{}, &mockEnrollmentCreator{})

	out, contentType, err := svc.ExportQueue(context.Background(), dto.RegistrationQuery{}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ID,Student,Course,Status,Submitted At", lines[0])
	assert.Contains(t, lines[1], "reg-1,student-1,course-1,PENDING")
	require.NotEmpty(t, repo.listFilters)
	assert.ElementsMatch(t, []models.RegistrationStatus{
		models.RegistrationStatusPending,
		models.RegistrationStatusAcademicReviewed,
		models.RegistrationStatusFinancialVerified,
	}, repo.listFilters[0].Status)
}

func TestRegistrationExportQueuePagesThroughRepository(t *testing.T) {
	first := make([]models.Registration, 200)
	for i := range first {
		first[i] = models.Registration{ID: fmt.Sprintf("reg-%d", i), Status: models.RegistrationStatusPending}
	}
	repo := &mockRegistrationRepo{pages: [][]models.Registration{
		first,
		{{ID: "reg-last", Status: models.RegistrationStatusPending}},
	}}
	svc, _ := newTestRegistrationService(repo, &mockCourseRepo{}, &mockEnrollmentCreator{})

	out, _, err := svc.ExportQueue(context.Background(), dto.RegistrationQuery{}, "csv")
	require.NoError(t, err)
	require.Len(t, repo.listFilters, 2)
	assert.Equal(t, 0, repo.listFilters[0].Offset)
	assert.Equal(t, 200, repo.listFilters[1].Offset)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	assert.Len(t, lines, 202)
}

func TestRegistrationExportQueuePDF(t *testing.T) {
	repo := seedRegistration(models.RegistrationStatusPending)
	svc, _ := newTestRegistrationService(repo, &mockCourseRepo{}, &mockEnrollmentCreator{})

	out, contentType, err := svc.ExportQueue(context.Background(), dto.RegistrationQuery{}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRegistrationExportQueueUnknownFormat(t *testing.T) {
	repo := seedRegistration(models.RegistrationStatusPending)
	svc, _ := newTestRegistrationService(repo, &mockCourseRepo{}, &mockEnrollmentCreator{})

	_, _, err := svc.ExportQueue(context.Background(), dto.RegistrationQuery{}, "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestApplyTransitionTable(t *testing.T) {
	next, err := models.ApplyTransition(models.RegistrationStatusPending, models.ActionAcademicReview)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusAcademicReviewed, next)

	_, err = models.ApplyTransition(models.RegistrationStatusPending, models.ActionApprove)
	require.Error(t, err)

	_, err = models.ApplyTransition(models.RegistrationStatusApproved, models.ActionReject)
	require.Error(t, err)

	_, err = models.ApplyTransition(models.RegistrationStatusPending, models.RegistrationAction("bogus"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
