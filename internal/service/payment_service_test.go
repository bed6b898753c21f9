package service

import (
	"context"
	"database/sql"
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
	"github.com/edupanel/institute-api/pkg/export"
)

type mockPaymentRepo struct {
	payments map[string]*models.Payment
	reviews  []repository.ReviewParams
}

func (m *mockPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = "pay-1"
	}
	if m.payments == nil {
		m.payments = make(map[string]*models.Payment)
	}
	m.payments[payment.ID] = payment
	return nil
}

func (m *mockPaymentRepo) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	payment, ok := m.payments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *payment
	return &copied, nil
}

func (m *mockPaymentRepo) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	out := make([]models.Payment, 0, len(m.payments))
	for _, p := range m.payments {
		out = append(out, *p)
	}
	return out, len(out), nil
}

// Review mirrors the conditional UPDATE: it only applies while the record
// is still undecided, otherwise reports zero rows.
func (m *mockPaymentRepo) Review(ctx context.Context, params repository.ReviewParams) error {
	payment, ok := m.payments[params.ID]
	if !ok || payment.Status.Terminal() {
		return sql.ErrNoRows
	}
	m.reviews = append(m.reviews, params)
	payment.Status = params.Status
	if params.Status == models.PaymentStatusApproved {
		payment.ApprovedBy = &params.ReviewerID
		payment.ApprovedAt = &params.ReviewedAt
	}
	if params.Notes != nil {
		payment.Notes = params.Notes
	}
	return nil
}

type mockPaymentEnrollments struct {
	enrollment *models.Enrollment
	states     []models.PaymentState
}

func (m *mockPaymentEnrollments) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if m.enrollment == nil {
		return nil, sql.ErrNoRows
	}
	return m.enrollment, nil
}

func (m *mockPaymentEnrollments) UpdatePaymentState(ctx context.Context, id string, state models.PaymentState) error {
	m.states = append(m.states, state)
	return nil
}

func newTestPaymentService(repo *mockPaymentRepo, enrollments *mockPaymentEnrollments) (*PaymentService, *mockAuditor) {
	auditor := &mockAuditor{}
	svc := NewPaymentService(repo, enrollments, auditor, export.NewPDFExporter(), validator.New(), zap.NewNop())
	return svc, auditor
}

func TestPaymentSubmit(t *testing.T) {
	repo := &mockPaymentRepo{}
	enrollments := &mockPaymentEnrollments{enrollment: &models.Enrollment{ID: "enr-1", StudentID: "student-1"}}
	svc, auditor := newTestPaymentService(repo, enrollments)

	payment, err := svc.Submit(context.Background(), "student-1", dto.SubmitPaymentRequest{
		EnrollmentID: "enr-1",
		Amount:       150000,
		Method:       "bank_transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.NotEmpty(t, auditor.logs)
}

func TestPaymentSubmitForeignEnrollmentForbidden(t *testing.T) {
	repo := &mockPaymentRepo{}
	enrollments := &mockPaymentEnrollments{enrollment: &models.Enrollment{ID: "enr-1", StudentID: "someone-else"}}
	svc, _ := newTestPaymentService(repo, enrollments)

	_, err := svc.Submit(context.Background(), "student-1", dto.SubmitPaymentRequest{
		EnrollmentID: "enr-1",
		Amount:       150000,
		Method:       "bank_transfer",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestPaymentReviewApprovalMarksEnrollmentPaid(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[string]*models.Payment{
		"pay-1": {ID: "pay-1", StudentID: "student-1", EnrollmentID: "enr-1", Status: models.PaymentStatusPending},
	}}
	enrollments := &mockPaymentEnrollments{enrollment: &models.Enrollment{ID: "enr-1", StudentID: "student-1"}}
	svc, _ := newTestPaymentService(repo, enrollments)

	payment, err := svc.Review(context.Background(), "pay-1", "finance-1", dto.ReviewPaymentRequest{Status: models.PaymentStatusApproved})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusApproved, payment.Status)
	require.NotNil(t, payment.ApprovedBy)
	assert.Equal(t, "finance-1", *payment.ApprovedBy)
	assert.NotNil(t, payment.ApprovedAt)
	require.Len(t, enrollments.states, 1)
	assert.Equal(t, models.PaymentStatePaid, enrollments.states[0])
}

func TestPaymentReviewPartialMarksEnrollmentPartial(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[string]*models.Payment{
		"pay-1": {ID: "pay-1", StudentID: "student-1", EnrollmentID: "enr-1", Status: models.PaymentStatusPending},
	}}
	enrollments := &mockPaymentEnrollments{}
	svc, _ := newTestPaymentService(repo, enrollments)

	payment, err := svc.Review(context.Background(), "pay-1", "finance-1", dto.ReviewPaymentRequest{Status: models.PaymentStatusPartial})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPartial, payment.Status)
	assert.Nil(t, payment.ApprovedBy)
	require.Len(t, enrollments.states, 1)
	assert.Equal(t, models.PaymentStatePartial, enrollments.states[0])
}

func TestPaymentReviewDecidedConflicts(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[string]*models.Payment{
		"pay-1": {ID: "pay-1", StudentID: "student-1", EnrollmentID: "enr-1", Status: models.PaymentStatusApproved},
	}}
	svc, _ := newTestPaymentService(repo, &mockPaymentEnrollments{})

	_, err := svc.Review(context.Background(), "pay-1", "finance-1", dto.ReviewPaymentRequest{Status: models.PaymentStatusRejected})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.reviews)
}

func TestPaymentReviewInvalidStatus(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[string]*models.Payment{
		"pay-1": {ID: "pay-1", Status: models.PaymentStatusPending},
	}}
	svc, _ := newTestPaymentService(repo, &mockPaymentEnrollments{})

	_, err := svc.Review(context.Background(), "pay-1", "finance-1", dto.ReviewPaymentRequest{Status: models.PaymentStatusPending})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPaymentGetOwnership(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[string]*models.Payment{
		"pay-1": {ID: "pay-1", StudentID: "student-1", Status: models.PaymentStatusPending},
	}}
	svc, _ := newTestPaymentService(repo, &mockPaymentEnrollments{})
	ctx := context.Background()

	_, err := svc.Get(ctx, "pay-1", "student-2", models.RoleStudent)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	payment, err := svc.Get(ctx, "pay-1", "finance-1", models.RoleFinance)
	require.NoError(t, err)
	assert.Equal(t, "pay-1", payment.ID)
}

func TestPaymentReceiptRequiresApproval(t *testing.T) {
	approvedAt := time.Now().UTC()
	approver := "finance-1"
	repo := &mockPaymentRepo{payments: map[string]*models.Payment{
		"pending": {ID: "pending", StudentID: "student-1", Status: models.PaymentStatusPending},
		"approved": {
			ID: "approved", StudentID: "student-1", EnrollmentID: "enr-1",
			Amount: 150000, Method: "bank_transfer",
			Status: models.PaymentStatusApproved, ApprovedBy: &approver, ApprovedAt: &approvedAt,
		},
	}}
	svc, _ := newTestPaymentService(repo, &mockPaymentEnrollments{})
	ctx := context.Background()

	_, err := svc.Receipt(ctx, "pending", "student-1", models.RoleStudent)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	doc, err := svc.Receipt(ctx, "approved", "student-1", models.RoleStudent)
	require.NoError(t, err)
	assert.NotEmpty(t, doc)
}
