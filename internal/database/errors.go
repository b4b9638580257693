package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/suriekke/shopeasy2-sub000/internal/apperrors"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
	ErrorClassConstraint
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeNotNullViolation     = "23502"
	codeCheckViolation       = "23514"
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerializationFailure:
			return ErrorClassSerialization
		case codeDeadlockDetected:
			return ErrorClassDeadlock
		case codeLockNotAvailable, codeQueryCanceled:
			return ErrorClassTransient
		case codeUniqueViolation, codeForeignKeyViolation, codeNotNullViolation, codeCheckViolation:
			return ErrorClassConstraint
		}
		// Class 08 is connection exceptions.
		if len(pqErr.Code) >= 2 && pqErr.Code[:2] == "08" {
			return ErrorClassTransient
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return ErrorClassTransient
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// IsUniqueViolation reports whether err is a duplicate key error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation
}

// MapError turns a driver error into an apperrors value. Typed errors pass through.
func MapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if typed := apperrors.As(err); typed != nil {
		return typed
	}
	if errors.Is(err, context.Canceled) {
		return apperrors.Wrap(apperrors.CodeDependency, err, op+": request cancelled")
	}
	switch ClassifyError(err) {
	case ErrorClassConstraint:
		if IsUniqueViolation(err) {
			return apperrors.Wrap(apperrors.CodeConflict, err, op+": duplicate value")
		}
		return apperrors.Wrap(apperrors.CodeValidation, err, op+": constraint violated")
	default:
		return apperrors.Infrastructure(err, op)
	}
}
