package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/verification-service/internal/auth"
	"github.com/spec-kit/verification-service/internal/config"
	"github.com/spec-kit/verification-service/internal/domain"
	"github.com/spec-kit/verification-service/internal/repository"
	apperrors "github.com/spec-kit/verification-service/pkg/util"
)

// AuthService handles staff credential checks, token issuance and account
// provisioning.
type AuthService struct {
	cfg    config.AuthConfig
	staff  repository.StaffRepository
	tokens *auth.TokenManager
	logger *zap.Logger
}

// NewAuthService creates the service.
func NewAuthService(cfg config.AuthConfig, staff repository.StaffRepository, tokens *auth.TokenManager, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{cfg: cfg, staff: staff, tokens: tokens, logger: logger}
}

// LoginResult carries the issued token and the authenticated staff member.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Staff     *domain.StaffMember
}

// Login verifies credentials and returns a signed access token. Unknown
// usernames and wrong passwords report the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	member, err := s.staff.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if !member.Active {
		return nil, apperrors.NewUnauthorized("account disabled")
	}
	if err := auth.ComparePassword(member.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(member.ID, member.Role)
	if err != nil {
		s.logger.Error("token generation failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Staff: member}, nil
}

// CreateStaffInput describes a new operator account.
type CreateStaffInput struct {
	Username string
	Password string
	FullName string
	Email    string
	Role     domain.StaffRole
}

// CreateStaff provisions an operator account. Only administrators may create
// staff; the seeded admin uses this to replace itself with real accounts.
func (s *AuthService) CreateStaff(ctx context.Context, actor *domain.StaffMember, input CreateStaffInput) (*domain.StaffMember, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("only administrators can create staff accounts")
	}

	username := strings.TrimSpace(input.Username)
	fullName := strings.TrimSpace(input.FullName)
	if username == "" || fullName == "" {
		return nil, apperrors.NewValidationError("username and full name are required", nil)
	}
	if len(input.Password) < 8 {
		return nil, apperrors.NewValidationError("password must be at least 8 characters", nil)
	}
	role := input.Role
	if role == "" {
		role = domain.StaffRoleAgent
	}
	if role != domain.StaffRoleAgent && role != domain.StaffRoleAdmin {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}

	if _, err := s.staff.GetByUsername(ctx, username); err == nil {
		return nil, apperrors.NewConflict("username already taken", map[string]any{"username": username})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	member := &domain.StaffMember{
		Username:     username,
		FullName:     fullName,
		Email:        strings.TrimSpace(input.Email),
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := s.staff.Create(ctx, member); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("staff account created",
		zap.String("username", member.Username),
		zap.String("role", string(member.Role)))
	return member, nil
}
