package dto

import "github.com/edupanel/institute-api/internal/models"

// CreateUserRequest provisions an account from the admin panel.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=6"`
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required"`
	Phone    *string         `json:"phone,omitempty"`
	Address  *string         `json:"address,omitempty"`
}

// UpdateUserRequest mutates profile fields. Nil fields are untouched.
type UpdateUserRequest struct {
	FullName  *string          `json:"full_name,omitempty"`
	Phone     *string          `json:"phone,omitempty"`
	Address   *string          `json:"address,omitempty"`
	AvatarURL *string          `json:"avatar_url,omitempty"`
	Role      *models.UserRole `json:"role,omitempty"`
}

// ChangeUserStatusRequest drives account lifecycle transitions. Accounts are
// never hard-deleted.
type ChangeUserStatusRequest struct {
	Status models.UserStatus `json:"status" validate:"required"`
}

// CreateEnrollmentRequest enrolls a student directly (admin action).
type CreateEnrollmentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	BatchID   string `json:"batch_id" validate:"required"`
}

// UpdateEnrollmentStatusRequest moves an enrollment through its lifecycle.
type UpdateEnrollmentStatusRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"required"`
}
