package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// RegisterRequest holds the public registration payload.
type RegisterRequest struct {
	Email            string     `json:"email" validate:"required,email"`
	Password         string     `json:"password" validate:"required,min=6"`
	FullName         string     `json:"fullName" validate:"required"`
	Phone            string     `json:"phone"`
	Role             UserRole   `json:"role" validate:"required,oneof=resident officer woreda_admin subcity_admin"`
	Woreda           string     `json:"woreda"`
	Department       Department `json:"department"`
	CustomWoredaName string     `json:"customWoredaName"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse returns the issued token and user info plus account-state
// flags consumed by the frontend login flow.
type AuthResponse struct {
	Token                  string   `json:"token"`
	User                   UserInfo `json:"user"`
	RequiresActivation     bool     `json:"requiresActivation,omitempty"`
	RequiresPasswordChange bool     `json:"requiresPasswordChange,omitempty"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID         string      `json:"id"`
	Email      string      `json:"email"`
	FullName   string      `json:"fullName"`
	Role       UserRole    `json:"role"`
	Woreda     string      `json:"woreda,omitempty"`
	Department *Department `json:"department,omitempty"`
}

// UpdateDetailsRequest payload for profile edits.
type UpdateDetailsRequest struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone"`
}

// UpdatePasswordRequest payload for changing the password while logged in.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

// ForgotPasswordRequest initiates the reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest completes the reset flow.
type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

// ActivateRequest activates a pending account by setting a new password.
type ActivateRequest struct {
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}
