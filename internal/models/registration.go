package models

import (
	"encoding/json"
	"time"

	appErrors "github.com/edupanel/institute-api/pkg/errors"
)

// RegistrationStatus captures workflow states for student applications.
type RegistrationStatus string

const (
	RegistrationStatusPending           RegistrationStatus = "PENDING"
	RegistrationStatusAcademicReviewed  RegistrationStatus = "ACADEMIC_REVIEWED"
	RegistrationStatusFinancialVerified RegistrationStatus = "FINANCIAL_VERIFIED"
	RegistrationStatusApproved          RegistrationStatus = "APPROVED"
	RegistrationStatusRejected          RegistrationStatus = "REJECTED"
)

// Terminal reports whether the status admits no further transitions.
func (s RegistrationStatus) Terminal() bool {
	return s == RegistrationStatusApproved || s == RegistrationStatusRejected
}

// RegistrationAction names a gate decision applied to a registration.
type RegistrationAction string

const (
	ActionAcademicReview  RegistrationAction = "academic-review"
	ActionFinancialVerify RegistrationAction = "financial-verify"
	ActionApprove         RegistrationAction = "approve"
	ActionReject          RegistrationAction = "reject"
)

// registrationTransitions is the authoritative transition table. Reject is
// permitted from every non-terminal state; all other actions require the
// single expected source state.
var registrationTransitions = map[RegistrationAction]struct {
	from map[RegistrationStatus]struct{}
	to   RegistrationStatus
}{
	ActionAcademicReview: {
		from: stateSet(RegistrationStatusPending),
		to:   RegistrationStatusAcademicReviewed,
	},
	ActionFinancialVerify: {
		from: stateSet(RegistrationStatusAcademicReviewed),
		to:   RegistrationStatusFinancialVerified,
	},
	ActionApprove: {
		from: stateSet(RegistrationStatusFinancialVerified),
		to:   RegistrationStatusApproved,
	},
	ActionReject: {
		from: stateSet(RegistrationStatusPending, RegistrationStatusAcademicReviewed, RegistrationStatusFinancialVerified),
		to:   RegistrationStatusRejected,
	},
}

func stateSet(states ...RegistrationStatus) map[RegistrationStatus]struct{} {
	set := make(map[RegistrationStatus]struct{}, len(states))
	for _, s := range states {
		set[s] = struct{}{}
	}
	return set
}

// ApplyTransition resolves the next status for the given action, or a
// Conflict error when the current status is not an allowed source.
func ApplyTransition(current RegistrationStatus, action RegistrationAction) (RegistrationStatus, error) {
	transition, ok := registrationTransitions[action]
	if !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, "unknown registration action")
	}
	if current.Terminal() {
		return "", appErrors.Clone(appErrors.ErrConflict, "registration is already finalized")
	}
	if _, allowed := transition.from[current]; !allowed {
		return "", appErrors.Clone(appErrors.ErrConflict, "registration is not in the expected state for this action")
	}
	return transition.to, nil
}

// Registration is a student's application to a course.
type Registration struct {
	ID                  string             `db:"id" json:"id"`
	StudentID           string             `db:"student_id" json:"student_id"`
	CourseID            string             `db:"course_id" json:"course_id"`
	BatchPreference     *string            `db:"batch_preference" json:"batch_preference,omitempty"`
	Documents           json.RawMessage    `db:"documents" json:"documents,omitempty"`
	Status              RegistrationStatus `db:"status" json:"status"`
	AcademicReviewedBy  *string            `db:"academic_reviewed_by" json:"academic_reviewed_by,omitempty"`
	AcademicReviewedAt  *time.Time         `db:"academic_reviewed_at" json:"academic_reviewed_at,omitempty"`
	FinancialVerifiedBy *string            `db:"financial_verified_by" json:"financial_verified_by,omitempty"`
	FinancialVerifiedAt *time.Time         `db:"financial_verified_at" json:"financial_verified_at,omitempty"`
	ApprovedBy          *string            `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt          *time.Time         `db:"approved_at" json:"approved_at,omitempty"`
	AdminNotes          *string            `db:"admin_notes" json:"admin_notes,omitempty"`
	CreatedAt           time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time          `db:"updated_at" json:"updated_at"`
}

// RegistrationFilter constrains listing queries.
type RegistrationFilter struct {
	Status    []RegistrationStatus
	StudentID string
	CourseID  string
	Limit     int
	Offset    int
}
