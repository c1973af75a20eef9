package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so that clones and wrapped copies compare equal
// to the predefined sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "authentication failed")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// Session and credential failures. Callers only ever see ErrUnauthorized for
// these (see Public); the codes exist for logs and metrics.
var (
	ErrInvalidCredentials    = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid username or password")
	ErrTokenExpired          = New("TOKEN_EXPIRED", http.StatusUnauthorized, "token expired")
	ErrTokenMalformed        = New("TOKEN_MALFORMED", http.StatusUnauthorized, "token malformed")
	ErrTokenSignatureInvalid = New("TOKEN_SIGNATURE_INVALID", http.StatusUnauthorized, "token signature invalid")
	ErrSessionRevoked        = New("SESSION_REVOKED", http.StatusUnauthorized, "session revoked")
	ErrStoreUnavailable      = New("STORE_UNAVAILABLE", http.StatusUnauthorized, "session store unavailable")
)

// Tenant binding failures are integration errors and are reported verbatim.
var (
	ErrMissingTenantContext    = New("MISSING_TENANT_CONTEXT", http.StatusForbidden, "tenant context required")
	ErrUnexpectedTenantContext = New("UNEXPECTED_TENANT_CONTEXT", http.StatusForbidden, "tenant context not allowed for this account")
	ErrUnknownTenant           = New("UNKNOWN_TENANT", http.StatusForbidden, "unknown tenant")
	ErrTenantMismatch          = New("TENANT_MISMATCH", http.StatusForbidden, "tenant does not match session")
)

var opaqueCodes = map[string]struct{}{
	ErrInvalidCredentials.Code:    {},
	ErrTokenMalformed.Code:        {},
	ErrTokenSignatureInvalid.Code: {},
	ErrSessionRevoked.Code:        {},
	ErrStoreUnavailable.Code:      {},
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Public returns the caller-visible form of err. Credential, session and
// store failures collapse into ErrUnauthorized so responses never reveal
// whether an account or session existed.
func Public(err error) *Error {
	appErr := FromError(err)
	if appErr == nil {
		return nil
	}
	if _, ok := opaqueCodes[appErr.Code]; ok {
		return Clone(ErrUnauthorized, "")
	}
	if appErr.Code == ErrInternal.Code {
		return Clone(ErrInternal, "")
	}
	return &Error{Code: appErr.Code, Status: appErr.Status, Message: appErr.Message}
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Code reports the code of err, or the internal error code for foreign errors.
func Code(err error) string {
	if appErr := FromError(err); appErr != nil {
		return appErr.Code
	}
	return ""
}
