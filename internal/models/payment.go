package models

import "time"

// PaymentStatus captures the review state of a submitted payment proof.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusApproved PaymentStatus = "APPROVED"
	PaymentStatusRejected PaymentStatus = "REJECTED"
	PaymentStatusPartial  PaymentStatus = "PARTIAL"
)

// Terminal reports whether the payment review is finished.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusApproved || s == PaymentStatusRejected
}

// Payment records funds tied to a student and enrollment. The proof itself
// lives in external storage; only its reference is kept here.
type Payment struct {
	ID           string        `db:"id" json:"id"`
	StudentID    string        `db:"student_id" json:"student_id"`
	EnrollmentID string        `db:"enrollment_id" json:"enrollment_id"`
	Amount       int64         `db:"amount" json:"amount"`
	Method       string        `db:"method" json:"method"`
	ProofURL     *string       `db:"proof_url" json:"proof_url,omitempty"`
	Status       PaymentStatus `db:"status" json:"status"`
	ApprovedBy   *string       `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt   *time.Time    `db:"approved_at" json:"approved_at,omitempty"`
	Notes        *string       `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentFilter constrains payment listings.
type PaymentFilter struct {
	StudentID    string
	EnrollmentID string
	Status       []PaymentStatus
	Page         int
	PageSize     int
}
