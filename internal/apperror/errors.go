package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the caller.
type Kind string

const (
	KindUnauthenticated    Kind = "UNAUTHENTICATED"
	KindNotFound           Kind = "NOT_FOUND"
	KindValidation         Kind = "VALIDATION_ERROR"
	KindConflict           Kind = "CONFLICT"
	KindGatewayUnavailable Kind = "GATEWAY_UNAVAILABLE"
	KindSignatureInvalid   Kind = "SIGNATURE_INVALID"
	KindInternal           Kind = "INTERNAL_ERROR"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Unauthenticated(message string) *Error {
	return New(KindUnauthenticated, message)
}

func NotFound(resource string) *Error {
	return New(KindNotFound, fmt.Sprintf("%s not found", resource))
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

func GatewayUnavailable(err error) *Error {
	return Wrap(err, KindGatewayUnavailable, "payment gateway unavailable")
}

func SignatureInvalid() *Error {
	return New(KindSignatureInvalid, "invalid signature")
}

func Internal(message string, err error) *Error {
	return Wrap(err, KindInternal, message)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindSignatureInvalid:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindGatewayUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to a client. Internal
// errors are collapsed to a generic message.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "An unexpected error occurred"
}
