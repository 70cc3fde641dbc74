package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"sharesync/api/internal/auth"
	"sharesync/api/internal/authpw"
	"sharesync/api/internal/export"
	"sharesync/api/internal/session"
	"sharesync/api/internal/storage"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

func forbidden() *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func notFound(what string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", what+" not found", nil)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken), errors.Is(err, session.ErrSessionNotFound):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, authpw.ErrMissingFields), errors.Is(err, authpw.ErrInvalidEmail),
		errors.Is(err, authpw.ErrInvalidUsername), errors.Is(err, authpw.ErrWeakPassword):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, authpw.ErrEmailExists):
		return http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil
	case errors.Is(err, authpw.ErrUsernameExists):
		return http.StatusConflict, "USERNAME_EXISTS", "Username already taken", nil
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email, username or password", nil
	case errors.Is(err, authpw.ErrEmailNotVerified):
		return http.StatusForbidden, "EMAIL_NOT_VERIFIED", "Please verify your email before signing in", nil
	case errors.Is(err, authpw.ErrInvalidVerificationCode):
		return http.StatusBadRequest, "VERIFICATION_FAILED", err.Error(), nil
	case errors.Is(err, authpw.ErrInvalidResetToken):
		return http.StatusBadRequest, "RESET_FAILED", err.Error(), nil
	case errors.Is(err, storage.ErrNotConfigured):
		return http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "File storage is not configured", nil
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available on this server", nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be 'html' or 'pdf'", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
