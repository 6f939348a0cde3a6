package shared

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the service-wide error type. Sentinels below are compared with
// errors.Is; WithDetails derives a copy carrying extra context without
// breaking that comparison.
type AppError struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any AppError with the same code, so sentinel comparisons survive
// WithDetails copies.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithDetails returns a copy of the error annotated with formatted details.
func (e *AppError) WithDetails(format string, args ...any) *AppError {
	clone := *e
	clone.Details = fmt.Sprintf(format, args...)
	return &clone
}

var (
	ErrNotFound          = &AppError{Code: "NOT_FOUND", Status: http.StatusNotFound, Message: "resource not found"}
	ErrConflict          = &AppError{Code: "CONFLICT", Status: http.StatusConflict, Message: "resource already exists"}
	ErrValidation        = &AppError{Code: "VALIDATION", Status: http.StatusBadRequest, Message: "invalid request"}
	ErrUnauthorized      = &AppError{Code: "UNAUTHORIZED", Status: http.StatusUnauthorized, Message: "authentication required"}
	ErrSnapshotMissing   = &AppError{Code: "SNAPSHOT_MISSING", Status: http.StatusBadGateway, Message: "provider snapshot not found"}
	ErrSnapshotInvalid   = &AppError{Code: "SNAPSHOT_INVALID", Status: http.StatusBadGateway, Message: "provider snapshot unreadable"}
	ErrPolicyUnavailable = &AppError{Code: "POLICY_UNAVAILABLE", Status: http.StatusServiceUnavailable, Message: "allocation policy advisor unavailable"}
	ErrQuotaExhausted    = &AppError{Code: "QUOTA_EXHAUSTED", Status: http.StatusTooManyRequests, Message: "advisor quota exhausted"}
	ErrDBFailure         = &AppError{Code: "DB_FAILURE", Status: http.StatusInternalServerError, Message: "database operation failed"}
	ErrEmailDispatch     = &AppError{Code: "EMAIL_DISPATCH", Status: http.StatusInternalServerError, Message: "email dispatch failed"}
)

// StatusOf maps an error chain to an HTTP status, defaulting to 500.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
