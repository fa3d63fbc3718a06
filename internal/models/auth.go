package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required"`
	Role     UserRole `json:"role" validate:"required"`
}

// RegisterRequest creates an account. Department and class fields depend on the role.
type RegisterRequest struct {
	Name               string   `json:"name" form:"name" validate:"required"`
	Email              string   `json:"email" form:"email" validate:"required,email"`
	Password           string   `json:"password" form:"password" validate:"required,min=6"`
	Role               UserRole `json:"role" form:"role" validate:"required"`
	StudentNumber      string   `json:"studentId" form:"studentId"`
	Department         string   `json:"department" form:"department"`
	ClassName          string   `json:"class" form:"class"`
	AssignedDepartment string   `json:"assignedDepartment" form:"assignedDepartment"`
	AssignedClass      string   `json:"assignedClass" form:"assignedClass"`
}

// AuthResponse returns the issued token and user profile.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
