package dto

import (
	"time"

	"github.com/spec-kit/verification-service/internal/domain"
)

// StaffLoginRequest payload.
type StaffLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// StaffLoginResponse carries the access token and profile.
type StaffLoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Staff     StaffProfile `json:"staff"`
}

// CreateStaffRequest payload.
type CreateStaffRequest struct {
	Username string           `json:"username"`
	Password string           `json:"password"`
	FullName string           `json:"full_name"`
	Email    string           `json:"email"`
	Role     domain.StaffRole `json:"role"`
}

// StaffProfile response.
type StaffProfile struct {
	ID       string           `json:"id"`
	Username string           `json:"username"`
	FullName string           `json:"full_name"`
	Email    string           `json:"email,omitempty"`
	Role     domain.StaffRole `json:"role"`
}
