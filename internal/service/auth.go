// Package service contains the business logic layer of the application.
//
//	Handler (HTTP) → Service (business rules) → Repository (DB)
//	               ↘ TokenService (JWT)
//
// Services take repository interfaces, never concrete gorm types, and return
// *apperror.AppError values the handlers translate into status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/product-registry/internal/apperror"
	"github.com/sakif/product-registry/internal/auth"
	"github.com/sakif/product-registry/internal/model"
	"github.com/sakif/product-registry/internal/repository"
)

const MinPasswordLength = 8

// errBadCredentials is shared by the unknown-email and wrong-password paths
// so a caller cannot tell which one failed.
const errBadCredentials = "incorrect email or password"

// AuthService handles registration, login and the user account.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

type RegisterInput struct {
	Nom       string
	Prenom    string
	Email     string
	Telephone string
	Role      model.Role
	Password  string
}

// TokenPair is what a successful login hands back.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Register creates a user account. The repository hashes the password and
// rejects an email that is already taken.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	if len(in.Password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	user := &model.User{
		Nom:       strings.TrimSpace(in.Nom),
		Prenom:    strings.TrimSpace(in.Prenom),
		Email:     in.Email,
		Telephone: strings.TrimSpace(in.Telephone),
		Role:      in.Role,
	}
	if err := s.users.Create(ctx, user, in.Password); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID.String()),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

// Login checks the credentials and issues an access and a refresh token.
// Unknown email and wrong password fail with the same ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(errBadCredentials)
		}
		return nil, err
	}
	if !s.passwords.Verify(password, user.Password) {
		s.logger.Warn("login rejected", slog.String("userID", user.ID.String()))
		return nil, apperror.Unauthorized(errBadCredentials)
	}

	subject := user.ID.String()
	access, err := s.tokens.CreateAccessToken(subject)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing access token for %s: %w", subject, err)
	}
	refresh, err := s.tokens.CreateRefreshToken(subject)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing refresh token for %s: %w", subject, err)
	}

	s.logger.Info("user logged in", slog.String("userID", subject))
	return &TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: s.tokens.AccessTTL()}, nil
}

// Refresh trades a refresh token for a new access token. An access token is
// rejected with ErrTokenInvalid.
func (s *AuthService) Refresh(refreshToken string) (string, error) {
	claims, err := s.tokens.DecodeRefreshToken(refreshToken)
	if err != nil {
		return "", err
	}
	access, err := s.tokens.CreateAccessToken(claims.Subject)
	if err != nil {
		return "", fmt.Errorf("service/auth: issuing access token for %s: %w", claims.Subject, err)
	}
	return access, nil
}

// Authenticate returns the subject of a valid access token.
func (s *AuthService) Authenticate(accessToken string) (string, error) {
	claims, err := s.tokens.DecodeAccessToken(accessToken)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (s *AuthService) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.users.FindByID(ctx, id)
}

// UpdateUser lets callerID change its own account only.
func (s *AuthService) UpdateUser(ctx context.Context, callerID, id string, patch repository.UserPatch) (*model.User, error) {
	if callerID != id {
		return nil, apperror.Forbidden("you can only update your own account")
	}
	if patch.Password != nil && len(*patch.Password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	user, err := s.users.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user updated", slog.String("userID", id))
	return user, nil
}

// DeleteUser soft-deletes callerID's own account.
func (s *AuthService) DeleteUser(ctx context.Context, callerID, id string) error {
	if callerID != id {
		return apperror.Forbidden("you can only delete your own account")
	}
	if err := s.users.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", slog.String("userID", id))
	return nil
}
