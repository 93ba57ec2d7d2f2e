package dto

import (
	"time"

	"github.com/spec-kit/campus-desk/internal/domain"
)

// UserRegisterRequest payload for new students.
type UserRegisterRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	StudentID  string `json:"studentId"`
	Department string `json:"department"`
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse is the public projection of a directory user.
type UserResponse struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Role       domain.Role `json:"role"`
	StudentID  string      `json:"studentId,omitempty"`
	Department string      `json:"department,omitempty"`
}

// NewUserResponse projects a user without its credential.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		StudentID:  u.StudentID,
		Department: u.Department,
	}
}
