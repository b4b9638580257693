// Package apperrors defines the typed failures returned by the cart and order core.
//
// Every error carries a Kind, which decides the HTTP status and whether a caller may retry,
// and a stable Code that clients branch on.
package apperrors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindInfrastructure Kind = "infrastructure"
	KindUnauthorized   Kind = "unauthorized"
	KindForbidden      Kind = "forbidden"
	KindRateLimited    Kind = "rate_limited"
	KindInternal       Kind = "internal"
)

type Code string

const (
	CodeValidation             Code = "VALIDATION_ERROR"
	CodeNotFound               Code = "NOT_FOUND"
	CodeEmptyCart              Code = "EMPTY_CART"
	CodeInsufficientStock      Code = "INSUFFICIENT_STOCK"
	CodeInvalidTransition      Code = "INVALID_TRANSITION"
	CodeConcurrentModification Code = "CONCURRENT_MODIFICATION"
	CodeConflict               Code = "CONFLICT"
	CodeOTPInvalid             Code = "OTP_INVALID"
	CodeUnauthorized           Code = "UNAUTHORIZED"
	CodeForbidden              Code = "FORBIDDEN"
	CodeRateLimit              Code = "RATE_LIMIT_EXCEEDED"
	CodeDependency             Code = "DEPENDENCY_ERROR"
	CodeInternal               Code = "INTERNAL_ERROR"
)

type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
}

var metadataByKind = map[Kind]Metadata{
	KindValidation:     {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed"},
	KindNotFound:       {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
	KindConflict:       {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected"},
	KindUnauthorized:   {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
	KindForbidden:      {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
	KindRateLimited:    {HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded"},
	KindInfrastructure: {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable"},
	KindInternal:       {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error"},
}

var kindByCode = map[Code]Kind{
	CodeValidation:             KindValidation,
	CodeNotFound:               KindNotFound,
	CodeEmptyCart:              KindConflict,
	CodeInsufficientStock:      KindConflict,
	CodeInvalidTransition:      KindConflict,
	CodeConcurrentModification: KindConflict,
	CodeConflict:               KindConflict,
	CodeOTPInvalid:             KindUnauthorized,
	CodeUnauthorized:           KindUnauthorized,
	CodeForbidden:              KindForbidden,
	CodeRateLimit:              KindRateLimited,
	CodeDependency:             KindInfrastructure,
	CodeInternal:               KindInternal,
}

func MetadataFor(kind Kind) Metadata {
	if meta, ok := metadataByKind[kind]; ok {
		return meta
	}
	return metadataByKind[KindInternal]
}

// KindOf returns the class a code belongs to.
func KindOf(code Code) Kind {
	if kind, ok := kindByCode[code]; ok {
		return kind
	}
	return KindInternal
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Kind() Kind {
	return KindOf(e.Code())
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Retryable() bool {
	return MetadataFor(e.Kind()).Retryable
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether target is an *Error with the same code, so sentinels
// such as ErrEmptyCart match any error built with that code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.code == t.code
}

// As returns the typed error in err's chain, or nil.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code of the typed error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

func IsKind(err error, kind Kind) bool {
	typed := As(err)
	return typed != nil && typed.Kind() == kind
}
