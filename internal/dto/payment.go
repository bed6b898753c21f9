package dto

import "github.com/edupanel/institute-api/internal/models"

// SubmitPaymentRequest records a payment proof for review.
type SubmitPaymentRequest struct {
	EnrollmentID string  `json:"enrollment_id" validate:"required"`
	Amount       int64   `json:"amount" validate:"required,gt=0"`
	Method       string  `json:"method" validate:"required"`
	ProofURL     *string `json:"proof_url,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// ReviewPaymentRequest carries the verification decision.
type ReviewPaymentRequest struct {
	Status models.PaymentStatus `json:"status" validate:"required"`
	Notes  string               `json:"notes,omitempty"`
}

// PaymentQuery filters payment listings.
type PaymentQuery struct {
	StudentID    string
	EnrollmentID string
	Status       []models.PaymentStatus
	Page         int
	PageSize     int
}
