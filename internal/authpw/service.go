// Package authpw provides email/username + password authentication with
// email verification and password resets.
package authpw

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"sharesync/api/internal/auth"
	"sharesync/api/internal/store"
	"sharesync/api/internal/util"
)

const (
	verificationTTL = 24 * time.Hour
	resetTTL        = time.Hour
	minPasswordLen  = 8
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.-]{3,32}$`)

var (
	ErrMissingFields           = errors.New("email, username, password and display name are required")
	ErrInvalidEmail            = errors.New("email address is invalid")
	ErrInvalidUsername         = errors.New("username must be 3-32 characters of a-z, 0-9, '_', '.' or '-'")
	ErrWeakPassword            = errors.New("password must be at least 8 characters")
	ErrEmailExists             = errors.New("email already registered")
	ErrUsernameExists          = errors.New("username already taken")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrEmailNotVerified        = errors.New("email address has not been verified")
	ErrInvalidVerificationCode = errors.New("invalid or expired verification token")
	ErrInvalidResetToken       = errors.New("invalid or expired reset token")
)

// Service provides password authentication
type Service struct {
	store UserStore
	cost  int
}

// UserStore defines the storage interface for auth
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByUsername(ctx context.Context, username string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
	UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	VerifyUserEmail(ctx context.Context, token string) error
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
	CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error
	ConsumePasswordReset(ctx context.Context, token string) (string, error)
}

// NewService creates a new auth service
func NewService(store UserStore) *Service {
	return &Service{store: store, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

type SignUpRequest struct {
	Email       string
	Username    string
	Password    string
	DisplayName string
}

type SignUpResponse struct {
	User              store.User
	VerificationToken string
}

// SignUp creates an unverified account with a 24h verification token.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.ToLower(strings.TrimSpace(req.Username))
	displayName := strings.TrimSpace(req.DisplayName)

	if email == "" || username == "" || req.Password == "" || displayName == "" {
		return nil, ErrMissingFields
	}
	if !strings.Contains(email, "@") || strings.HasPrefix(email, "@") || strings.HasSuffix(email, "@") {
		return nil, ErrInvalidEmail
	}
	if !usernamePattern.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if len(req.Password) < minPasswordLen {
		return nil, ErrWeakPassword
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	}
	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return nil, ErrUsernameExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	verificationToken, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}

	user := store.User{
		ID:                util.NewID("usr"),
		Username:          username,
		Email:             email,
		DisplayName:       displayName,
		PasswordHash:      string(hash),
		VerificationToken: verificationToken,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		// Lost a race with a concurrent sign-up.
		if constraint, ok := store.UniqueViolation(err); ok {
			if strings.Contains(constraint, "username") {
				return nil, ErrUsernameExists
			}
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	expiresAt := time.Now().UTC().Add(verificationTTL)
	if err := s.store.UpdateUserVerificationToken(ctx, user.ID, verificationToken, expiresAt); err != nil {
		return nil, fmt.Errorf("set verification expiry: %w", err)
	}
	user.VerificationExpiresAt = &expiresAt

	return &SignUpResponse{User: user, VerificationToken: verificationToken}, nil
}

// SignIn authenticates by email or username.
func (s *Service) SignIn(ctx context.Context, identifier, password string) (store.User, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" || password == "" {
		return store.User{}, ErrInvalidCredentials
	}

	lookup := s.store.GetUserByUsername
	if strings.Contains(identifier, "@") {
		lookup = s.store.GetUserByEmail
	}
	user, err := lookup(ctx, identifier)
	if err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	if !user.IsEmailVerified {
		return user, ErrEmailNotVerified
	}
	return user, nil
}

// VerifyEmail verifies an email address using a token
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidVerificationCode
	}
	if err := s.store.VerifyUserEmail(ctx, token); err != nil {
		return ErrInvalidVerificationCode
	}
	return nil
}

// RequestPasswordReset creates a single-use reset token. Unknown emails yield
// an empty token and no error so callers cannot probe for accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, store.User, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", store.User{}, nil
	}

	token, err := generateToken()
	if err != nil {
		return "", store.User{}, fmt.Errorf("generate reset token: %w", err)
	}
	if err := s.store.CreatePasswordReset(ctx, user.ID, auth.HashToken(token), time.Now().UTC().Add(resetTTL)); err != nil {
		return "", store.User{}, fmt.Errorf("create password reset: %w", err)
	}
	return token, user, nil
}

// ResetPassword resets a user's password using a reset token
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidResetToken
	}
	if len(newPassword) < minPasswordLen {
		return ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	// One conditional update spends the token; concurrent resets cannot both pass.
	userID, err := s.store.ConsumePasswordReset(ctx, auth.HashToken(token))
	if err != nil {
		return ErrInvalidResetToken
	}
	if err := s.store.UpdateUserPassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// RefreshVerificationToken issues a new verification token for an unverified user.
func (s *Service) RefreshVerificationToken(ctx context.Context, userID string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	if err := s.store.UpdateUserVerificationToken(ctx, userID, token, time.Now().UTC().Add(verificationTTL)); err != nil {
		return "", fmt.Errorf("update verification token: %w", err)
	}
	return token, nil
}

// generateToken creates a secure random token
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
