package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/campus-desk/internal/auth"
	"github.com/spec-kit/campus-desk/internal/config"
	"github.com/spec-kit/campus-desk/internal/domain"
	"github.com/spec-kit/campus-desk/internal/repository"
	apperrors "github.com/spec-kit/campus-desk/pkg/util"
)

const minPasswordLength = 3

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// RegisterInput describes a self-service student registration.
type RegisterInput struct {
	Name       string
	Email      string
	Password   string
	StudentID  string
	Department string
}

// Session is an authenticated user and its bearer token.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository, tokens *auth.TokenManager) *AuthService {
	return &AuthService{
		users:      users,
		tokenMgr:   tokens,
		bcryptCost: cfg.BcryptCost,
	}
}

// RegisterUser creates a student account. Staff accounts only come from the directory seed.
func (s *AuthService) RegisterUser(ctx context.Context, input RegisterInput) (*Session, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", nil)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("invalid email", map[string]any{"email": input.Email})
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperrors.NewValidationError("password too short", map[string]any{"min": minPasswordLength})
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		StudentID:    strings.TrimSpace(input.StudentID),
		Department:   strings.TrimSpace(input.Department),
		Email:        email,
		Role:         domain.RoleStudent,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
		}
		return nil, err
	}
	return s.issue(user)
}

// Login authenticates any directory user.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *domain.User) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}
