package docstore

import (
	"fmt"

	"github.com/kbukum/scalestore/errors"
)

// Operation names the store operation an error belongs to.
type Operation string

const (
	OpRead   Operation = "read"
	OpList   Operation = "list"
	OpSave   Operation = "save"
	OpDelete Operation = "delete"
)

// Detail keys attached to every store error.
const (
	DetailOperation = "operation"
	DetailTable     = "table"
	DetailID        = "id"
)

func withContext(err *errors.AppError, op Operation, table, id string) *errors.AppError {
	err = err.WithDetail(DetailOperation, string(op)).WithDetail(DetailTable, table)
	if id != "" {
		err = err.WithDetail(DetailID, id)
	}
	return err
}

func errNotFound(op Operation, table, id string) *errors.AppError {
	return withContext(errors.NotFound(table+" record", id), op, table, id)
}

func errKeyConflict(table, id string) *errors.AppError {
	return withContext(errors.KeyConflict(table+" record", id), OpSave, table, id)
}

func errInconsistent(op Operation, table, id, reason string) *errors.AppError {
	return withContext(errors.InconsistentData(reason), op, table, id)
}

func errConflict(op Operation, table, id string) *errors.AppError {
	msg := fmt.Sprintf("%s record %q was modified by another writer", table, id)
	return withContext(errors.Conflict(msg), op, table, id)
}

func errUnexpected(op Operation, table, id string, status Status) *errors.AppError {
	return withContext(errors.UnexpectedResponse("document store", int(status)), op, table, id)
}

// errBackend wraps a failure raised by the backend itself rather than
// reported as a status. The backend's own error stays reachable as the cause.
func errBackend(op Operation, table, id string, cause error) *errors.AppError {
	return errUnexpected(op, table, id, 0).WithCause(cause)
}

// IsNotFound reports whether err is a NOT_FOUND store error.
func IsNotFound(err error) bool { return errors.HasCode(err, errors.ErrCodeNotFound) }

// IsKeyConflict reports whether err is an insert-only KEY_CONFLICT.
func IsKeyConflict(err error) bool { return errors.HasCode(err, errors.ErrCodeKeyConflict) }

// IsInconsistentData reports whether err is an INCONSISTENT_DATA error.
func IsInconsistentData(err error) bool {
	return errors.HasCode(err, errors.ErrCodeInconsistentData)
}

// IsConflict reports whether err is a failed revision precondition.
func IsConflict(err error) bool { return errors.HasCode(err, errors.ErrCodeConflict) }

// IsUnexpectedResponse reports whether err is an UNEXPECTED_RESPONSE error.
func IsUnexpectedResponse(err error) bool {
	return errors.HasCode(err, errors.ErrCodeUnexpectedResponse)
}
