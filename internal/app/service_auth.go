package app

import (
	"context"
	"net/url"
	"strings"

	"sharesync/api/internal/authpw"
	"sharesync/api/internal/logging"
)

func (s *Service) SignUp(ctx context.Context, email, username, password, displayName string) (map[string]any, error) {
	resp, err := s.authpw.SignUp(ctx, authpw.SignUpRequest{
		Email:       email,
		Username:    username,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"userId":  resp.User.ID,
		"message": "Please check your email to verify your account",
	}
	if !s.SMTPConfigured() {
		payload["devVerificationToken"] = resp.VerificationToken
		payload["message"] = "Account created. Verify your email to continue."
		return payload, nil
	}

	user := resp.User
	verifyURL := s.link("/verify-email?token=" + url.QueryEscape(resp.VerificationToken))
	s.background("send verification email", func() error {
		return s.mailer.SendVerificationEmail(user.Email, user.DisplayName, verifyURL)
	})
	return payload, nil
}

// SignIn accepts an email or username as identifier.
func (s *Service) SignIn(ctx context.Context, identifier, password string) (Session, error) {
	user, err := s.authpw.SignIn(ctx, identifier, password)
	if err != nil {
		return Session{}, err
	}
	session, err := s.issueSession(ctx, user)
	if err != nil {
		return Session{}, err
	}
	s.logger.Info().Str(logging.USER, user.ID).Msg("user signed in")
	return session, nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	return s.authpw.VerifyEmail(ctx, token)
}

// ResendVerification issues a fresh token for an unverified account. Unknown
// or already verified emails return an empty payload so accounts cannot be
// probed.
func (s *Service) ResendVerification(ctx context.Context, email string) (map[string]any, error) {
	payload := map[string]any{"message": "If the account needs verification, a new email has been sent"}
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil || user.IsEmailVerified {
		return payload, nil
	}
	token, err := s.authpw.RefreshVerificationToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if !s.SMTPConfigured() {
		payload["devVerificationToken"] = token
		return payload, nil
	}
	verifyURL := s.link("/verify-email?token=" + url.QueryEscape(token))
	s.background("send verification email", func() error {
		return s.mailer.SendVerificationEmail(user.Email, user.DisplayName, verifyURL)
	})
	return payload, nil
}

// RequestPasswordReset always succeeds; the token is only echoed back when
// email delivery is not configured.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (map[string]any, error) {
	token, user, err := s.authpw.RequestPasswordReset(ctx, email)
	if err != nil {
		s.logger.Error().Err(err).Msg("create password reset")
	}

	payload := map[string]any{"message": "If an account exists, a reset email has been sent"}
	if token == "" {
		return payload, nil
	}
	if !s.SMTPConfigured() {
		payload["devResetToken"] = token
		return payload, nil
	}
	resetURL := s.link("/reset-password?token=" + url.QueryEscape(token))
	s.background("send password reset email", func() error {
		return s.mailer.SendPasswordResetEmail(user.Email, user.DisplayName, resetURL)
	})
	return payload, nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	return s.authpw.ResetPassword(ctx, token, newPassword)
}
