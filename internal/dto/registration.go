package dto

import (
	"encoding/json"

	"github.com/edupanel/institute-api/internal/models"
)

// CreateRegistrationRequest submits a new student application.
type CreateRegistrationRequest struct {
	CourseID        string          `json:"course_id" validate:"required"`
	BatchPreference *string         `json:"batch_preference,omitempty"`
	Documents       json.RawMessage `json:"documents" validate:"required"`
}

// ReviewRegistrationRequest carries a gate decision. Status names the target
// state; the route determines which gate is being exercised.
type ReviewRegistrationRequest struct {
	Status     models.RegistrationStatus `json:"status" validate:"required"`
	AdminNotes string                    `json:"admin_notes,omitempty"`
}

// RegistrationQuery filters the approval queue listing.
type RegistrationQuery struct {
	Status   []models.RegistrationStatus
	CourseID string
	Limit    int
	Offset   int
}
