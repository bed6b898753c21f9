package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupanel/institute-api/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestRegistrationCreateFillsDefaults(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRegistrationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registrations")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	registration := &models.Registration{
		StudentID: "student-1",
		CourseID:  "course-1",
	}
	require.NoError(t, repo.Create(context.Background(), registration))
	assert.NotEmpty(t, registration.ID)
	assert.Equal(t, models.RegistrationStatusPending, registration.Status)
	assert.False(t, registration.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationTransitionConditionsOnExpectedStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRegistrationRepository(db)

	const expected = `UPDATE registrations SET status = $1, academic_reviewed_by = $2, academic_reviewed_at = $3, updated_at = $4 WHERE id = $5 AND status = $6`
	mock.ExpectExec(regexp.QuoteMeta(expected)).
		WithArgs(
			string(models.RegistrationStatusAcademicReviewed),
			"reviewer-1",
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			"reg-1",
			string(models.RegistrationStatusPending),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Transition(context.Background(), TransitionParams{
		ID:        "reg-1",
		From:      models.RegistrationStatusPending,
		To:        models.RegistrationStatusAcademicReviewed,
		ActorID:   "reviewer-1",
		DecidedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationTransitionLostRaceReturnsNoRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRegistrationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Transition(context.Background(), TransitionParams{
		ID:        "reg-1",
		From:      models.RegistrationStatusAcademicReviewed,
		To:        models.RegistrationStatusFinancialVerified,
		ActorID:   "reviewer-2",
		DecidedAt: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationTransitionRejectWritesApprovalColumns(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRegistrationRepository(db)

	notes := "missing documents"
	const expected = `UPDATE registrations SET status = $1, approved_by = $2, approved_at = $3, updated_at = $4, admin_notes = $5 WHERE id = $6 AND status = $7`
	mock.ExpectExec(regexp.QuoteMeta(expected)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Transition(context.Background(), TransitionParams{
		ID:         "reg-1",
		From:       models.RegistrationStatusFinancialVerified,
		To:         models.RegistrationStatusRejected,
		ActorID:    "admin-1",
		DecidedAt:  time.Now().UTC(),
		AdminNotes: &notes,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationTransitionUnknownTarget(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewRegistrationRepository(db)

	err := repo.Transition(context.Background(), TransitionParams{
		ID:   "reg-1",
		From: models.RegistrationStatusApproved,
		To:   models.RegistrationStatusPending,
	})
	assert.Error(t, err)
}

func TestRegistrationListFiltersByStatusAndCourse(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRegistrationRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "status"}).
		AddRow("reg-1", "student-1", "course-1", string(models.RegistrationStatusPending))
	mock.ExpectQuery(regexp.QuoteMeta("status IN ($1,$2) AND course_id = $3")).
		WithArgs(
			string(models.RegistrationStatusPending),
			string(models.RegistrationStatusAcademicReviewed),
			"course-1",
		).
		WillReturnRows(rows)

	registrations, err := repo.List(context.Background(), models.RegistrationFilter{
		Status:   []models.RegistrationStatus{models.RegistrationStatusPending, models.RegistrationStatusAcademicReviewed},
		CourseID: "course-1",
	})
	require.NoError(t, err)
	require.Len(t, registrations, 1)
	assert.Equal(t, "reg-1", registrations[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
