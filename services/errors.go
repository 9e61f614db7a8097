package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeUnavailable  ErrorType = "unavailable"
)

// ErrorCode distinguishes errors that share a type, e.g. an expired credential from a forged one
type ErrorCode string

const (
	CodeInvalidCredentials    ErrorCode = "invalid_credentials"
	CodeInvalidCredential     ErrorCode = "invalid_credential"
	CodeExpiredCredential     ErrorCode = "expired_credential"
	CodeWrongTokenType        ErrorCode = "wrong_token_type"
	CodeTokenRevoked          ErrorCode = "token_revoked"
	CodeSessionNotFound       ErrorCode = "session_not_found"
	CodeUnauthorized          ErrorCode = "unauthorized"
	CodeForbidden             ErrorCode = "forbidden"
	CodeRateLimited           ErrorCode = "rate_limited"
	CodeDependencyUnavailable ErrorCode = "dependency_unavailable"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Code    ErrorCode
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is. A target carrying a code only matches that code;
// a target without one matches any error of the same type.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if t.Code != "" {
		return e.Code == t.Code
	}
	return e.Type == t.Type
}

// Wrap returns a copy of the error with err attached as its cause
func (e *DomainError) Wrap(err error) *DomainError {
	c := e.clone()
	c.Err = err
	return c
}

// WithDetail returns a copy of the error with an extra detail set
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	c := e.clone()
	c.Details[key] = value
	return c
}

func (e *DomainError) clone() *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	return &DomainError{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: details,
	}
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

func newCodedError(errType ErrorType, code ErrorCode, message string) *DomainError {
	e := NewDomainError(errType, message, nil)
	e.Code = code
	return e
}

// Domain error variables

var (
	// Credential errors
	ErrInvalidCredentials = newCodedError(ErrorTypeUnauthorized, CodeInvalidCredentials, "incorrect username or password")
	ErrInvalidCredential  = newCodedError(ErrorTypeUnauthorized, CodeInvalidCredential, "invalid token")
	ErrExpiredCredential  = newCodedError(ErrorTypeUnauthorized, CodeExpiredCredential, "token expired")
	ErrWrongTokenType     = newCodedError(ErrorTypeUnauthorized, CodeWrongTokenType, "unexpected token type")
	ErrTokenRevoked       = newCodedError(ErrorTypeUnauthorized, CodeTokenRevoked, "token revoked")
	ErrSessionNotFound    = newCodedError(ErrorTypeUnauthorized, CodeSessionNotFound, "session not found")

	// Access errors
	ErrUnauthorized = newCodedError(ErrorTypeUnauthorized, CodeUnauthorized, "unauthorized")
	ErrForbidden    = newCodedError(ErrorTypeForbidden, CodeForbidden, "insufficient permissions")
	ErrRateLimited  = newCodedError(ErrorTypeRateLimit, CodeRateLimited, "rate limit exceeded")

	// Infrastructure errors
	ErrDependencyUnavailable = newCodedError(ErrorTypeUnavailable, CodeDependencyUnavailable, "dependency unavailable")
	ErrInternal              = NewDomainError(ErrorTypeInternal, "internal server error", nil)

	// Not found / conflict / validation
	ErrUserNotFound          = NewDomainError(ErrorTypeNotFound, "user not found", nil)
	ErrRoleNotFound          = NewDomainError(ErrorTypeNotFound, "role not found", nil)
	ErrProviderNotFound      = NewDomainError(ErrorTypeNotFound, "oauth provider not found", nil)
	ErrSocialAccountNotFound = NewDomainError(ErrorTypeNotFound, "social account not linked", nil)
	ErrDuplicateUsername     = NewDomainError(ErrorTypeConflict, "username already taken", nil)
	ErrDuplicateRole         = NewDomainError(ErrorTypeConflict, "role already exists", nil)
	ErrInvalidInput          = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInvalidOAuthState     = NewDomainError(ErrorTypeValidation, "invalid oauth state", nil)
	ErrWrongPassword         = NewDomainError(ErrorTypeValidation, "wrong password", nil)
	ErrNoChanges             = NewDomainError(ErrorTypeValidation, "no changes provided, specify a username or a password", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnauthorized
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return GetErrorType(err) == ErrorTypeForbidden
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	return GetErrorType(err) == ErrorTypeRateLimit
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	return GetErrorType(err) == ErrorTypeConflict
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// IsUnavailableError checks if an error reports an unreachable dependency
func IsUnavailableError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnavailable
}

// GetErrorType returns the ErrorType of the outermost domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorCode returns the ErrorCode of the outermost domain error
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// CauseCode returns the code of the innermost coded domain error in the
// chain, so ErrUnauthorized wrapping ErrTokenRevoked reports token_revoked
func CauseCode(err error) ErrorCode {
	var code ErrorCode
	for err != nil {
		if d, ok := err.(*DomainError); ok && d.Code != "" {
			code = d.Code
		}
		err = errors.Unwrap(err)
	}
	return code
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapUnavailable wraps a store failure as DependencyUnavailable
func WrapUnavailable(err error) error {
	return ErrDependencyUnavailable.Wrap(err)
}
