package sqlstore

import (
	"net/http"
	"strings"

	apperrors "github.com/kbukum/scalestore/errors"
)

// IsConnectionError checks if a database error is a connection error that
// might be resolved by reconnecting.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, p := range []string{
		"unable to open database",
		"database is closed",
		"driver: bad connection",
		"sql: database is closed",
	} {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}

// IsBusyError reports whether SQLite refused the statement because another
// connection held the write lock.
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "database is locked") || strings.Contains(errStr, "sqlite_busy")
}

// FromDatabase converts a database error to an AppError.
func FromDatabase(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	if IsConnectionError(err) {
		return (&apperrors.AppError{
			Code:       apperrors.ErrCodeServiceUnavailable,
			Message:    "The document database is unavailable.",
			HTTPStatus: http.StatusServiceUnavailable,
			Retryable:  true,
		}).WithCause(err)
	}
	if IsBusyError(err) {
		return (&apperrors.AppError{
			Code:       apperrors.ErrCodeDatabaseError,
			Message:    "The document database is busy.",
			HTTPStatus: http.StatusServiceUnavailable,
			Retryable:  true,
		}).WithCause(err)
	}
	return apperrors.DatabaseError(err)
}
