package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupanel/institute-api/internal/models"
)

func TestPaymentReviewApprovedWritesApprover(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)

	const expected = `UPDATE payments SET status = $1, updated_at = $2, approved_by = $3, approved_at = $4 WHERE id = $5 AND status IN ('PENDING', 'PARTIAL')`
	mock.ExpectExec(regexp.QuoteMeta(expected)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Review(context.Background(), ReviewParams{
		ID:         "pay-1",
		Status:     models.PaymentStatusApproved,
		ReviewerID: "finance-1",
		ReviewedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentReviewPartialSkipsApprover(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)

	const expected = `UPDATE payments SET status = $1, updated_at = $2 WHERE id = $3 AND status IN ('PENDING', 'PARTIAL')`
	mock.ExpectExec(regexp.QuoteMeta(expected)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Review(context.Background(), ReviewParams{
		ID:         "pay-1",
		Status:     models.PaymentStatusPartial,
		ReviewerID: "finance-1",
		ReviewedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentReviewAlreadyDecidedReturnsNoRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Review(context.Background(), ReviewParams{
		ID:         "pay-1",
		Status:     models.PaymentStatusRejected,
		ReviewerID: "finance-1",
		ReviewedAt: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentListCountsTotal(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "amount", "status"}).
		AddRow("pay-1", "student-1", 1500.0, string(models.PaymentStatusPending)).
		AddRow("pay-2", "student-1", 500.0, string(models.PaymentStatusPartial))
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE 1=1 AND student_id = $1")).
		WithArgs("student-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM payments WHERE 1=1 AND student_id = $1")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	payments, total, err := repo.List(context.Background(), models.PaymentFilter{StudentID: "student-1"})
	require.NoError(t, err)
	assert.Len(t, payments, 2)
	assert.Equal(t, 2, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
