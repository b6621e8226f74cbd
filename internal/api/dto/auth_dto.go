package dto

import (
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

// RegisterRequest payload.
type RegisterRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// PromoteRoleRequest payload.
type PromoteRoleRequest struct {
	Role domain.Role `json:"role"`
}

// ProfileResponse sanitized profile.
type ProfileResponse struct {
	ID        string      `json:"id"`
	FullName  string      `json:"full_name"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone,omitempty"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// AuthResponse token envelope.
type AuthResponse struct {
	Profile   ProfileResponse `json:"profile"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
}
