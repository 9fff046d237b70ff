package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Connection/Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates the service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeRateLimited indicates the caller is rate limited.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
)

// Store errors. Read, save and delete operations share these codes and
// record which operation failed in the "operation" detail.
const (
	// ErrCodeNotFound indicates the requested record was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeKeyConflict indicates an insert-only write hit an existing key.
	ErrCodeKeyConflict ErrorCode = "KEY_CONFLICT"
	// ErrCodeInconsistentData indicates the caller's copy of a record no
	// longer matches what is stored.
	ErrCodeInconsistentData ErrorCode = "INCONSISTENT_DATA"
	// ErrCodeUnexpectedResponse indicates the backend answered with a status
	// outside the expected set.
	ErrCodeUnexpectedResponse ErrorCode = "UNEXPECTED_RESPONSE"
	// ErrCodeConflict indicates a revision precondition failed because
	// another writer updated the record first.
	ErrCodeConflict ErrorCode = "CONFLICT"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeInvalidArgument indicates a call was made with an unusable
	// combination of arguments.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeDatabaseError indicates a database error.
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	// ErrCodeExternalService indicates an error from an external service.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodeRateLimited:        true,
	ErrCodeDatabaseError:      true,
	ErrCodeExternalService:    true,
	ErrCodeConflict:           true,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
// Nothing in this module retries on its own; the flag is advice for callers.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
