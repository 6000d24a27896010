package utils

import (
	"errors"
	"fmt"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

var ErrorRecordNotFound = errors.New("record not found")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}

// ValidationError rejects a request whose inputs are well-formed JSON but
// violate a business rule (bad quantity, exceeds balance, exceeds target).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError marks a missing or inactive required entity. Entity is the
// lowercase noun used in the client-facing message ("group", "employee", ...).
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string { return e.Entity + " not found" }

func NewNotFoundError(entity string) *NotFoundError {
	return &NotFoundError{Entity: entity}
}

// ConflictError marks concurrent-write collisions. Retryable conflicts
// (lock wait timeout, deadlock) are safe for the client to replay.
type ConflictError struct {
	Msg       string
	Retryable bool
}

func (e *ConflictError) Error() string { return e.Msg }

func NewConflictError(msg string, retryable bool) *ConflictError {
	return &ConflictError{Msg: msg, Retryable: retryable}
}

// MySQL server error numbers this service classifies.
const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

func IsDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrDuplicateEntry
	}
	return false
}

// ClassifyDBError maps driver-level errors into the service taxonomy.
// Lock waits and deadlocks become retryable conflicts; everything else
// passes through unchanged for the handler to treat as internal.
func ClassifyDBError(err error) error {
	if err == nil {
		return nil
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrLockWaitTimeout:
			return NewConflictError("operation timed out waiting for a concurrent update, please retry", true)
		case mysqlErrDeadlock:
			return NewConflictError("operation conflicted with a concurrent update, please retry", true)
		}
	}
	return err
}
