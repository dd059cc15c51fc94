package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account roles.
const (
	RoleUser       = "USER"
	RoleAdmin      = "ADMIN"
	RoleSuperAdmin = "SUPER_ADMIN"
)

// IsAdminRole reports whether the role grants access to the admin surface.
func IsAdminRole(role string) bool {
	return role == RoleAdmin || role == RoleSuperAdmin
}

// Account represents a tenant account. CreditsRemaining is a materialized
// projection of the credit ledger, updated in the same transaction as every
// ledger append.
type Account struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	DisplayName      string    `json:"displayName"`
	Password         string    `json:"-"` // bcrypt hash, never serialized
	Role             string    `json:"role"`
	PlanID           string    `json:"planId"`
	CreditsRemaining int64     `json:"creditsRemaining"`
	CreditsTotal     int64     `json:"creditsTotal"`
	IsActive         bool      `json:"isActive"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// RegisterRequest is the validated input for self-service signup.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"displayName" validate:"required,min=1,max=100"`
}

// LoginRequest is the input for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned on successful authentication.
type LoginResponse struct {
	Token string          `json:"token"`
	User  AccountResponse `json:"user"`
}

// CreateAccountRequest is the validated input for admin account creation.
type CreateAccountRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"displayName" validate:"required,min=1,max=100"`
	Role        string `json:"role" validate:"omitempty,oneof=USER ADMIN SUPER_ADMIN"`
	PlanID      string `json:"planId" validate:"omitempty"`
}

// UpdateAccountRequest is the validated input for admin account updates.
// Nil fields are left unchanged.
type UpdateAccountRequest struct {
	DisplayName *string `json:"displayName" validate:"omitempty,min=1,max=100"`
	Role        *string `json:"role" validate:"omitempty,oneof=USER ADMIN SUPER_ADMIN"`
	IsActive    *bool   `json:"isActive"`
}

// AccountResponse is the safe API representation of an account (no password).
type AccountResponse struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	DisplayName      string    `json:"displayName"`
	Role             string    `json:"role"`
	PlanID           string    `json:"planId"`
	CreditsRemaining int64     `json:"creditsRemaining"`
	CreditsTotal     int64     `json:"creditsTotal"`
	IsActive         bool      `json:"isActive"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Response converts an Account to its API representation.
func (a *Account) Response() AccountResponse {
	return AccountResponse{
		ID:               a.ID,
		Email:            a.Email,
		DisplayName:      a.DisplayName,
		Role:             a.Role,
		PlanID:           a.PlanID,
		CreditsRemaining: a.CreditsRemaining,
		CreditsTotal:     a.CreditsTotal,
		IsActive:         a.IsActive,
		CreatedAt:        a.CreatedAt,
	}
}

// JWTClaims represents the JWT payload.
type JWTClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// NewID generates a new UUID string for any entity.
func NewID() string {
	return uuid.New().String()
}
