package models

import "time"

// EnrollmentStatus enumerates enrollment lifecycle states.
type EnrollmentStatus string

const (
	EnrollmentStatusPending   EnrollmentStatus = "PENDING"
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// PaymentState tracks how much of the enrollment fee has cleared.
type PaymentState string

const (
	PaymentStatePending PaymentState = "PENDING"
	PaymentStatePartial PaymentState = "PARTIAL"
	PaymentStatePaid    PaymentState = "PAID"
)

// Enrollment links a student to a batch.
type Enrollment struct {
	ID            string           `db:"id" json:"id"`
	StudentID     string           `db:"student_id" json:"student_id"`
	BatchID       string           `db:"batch_id" json:"batch_id"`
	Status        EnrollmentStatus `db:"status" json:"status"`
	PaymentStatus PaymentState     `db:"payment_status" json:"payment_status"`
	JoinedAt      time.Time        `db:"joined_at" json:"joined_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail joins student and batch display columns onto an enrollment.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	BatchName   string `db:"batch_name" json:"batch_name"`
	CourseName  string `db:"course_name" json:"course_name"`
}

// EnrollmentFilter constrains enrollment listings.
type EnrollmentFilter struct {
	StudentID string
	BatchID   string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
}
