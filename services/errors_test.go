package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNotFound, "resource not found", baseErr)

	assert.Equal(t, ErrorTypeNotFound, domainErr.Type)
	assert.Equal(t, "resource not found", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeNotFound,
				Message: "user not found",
				Err:     errors.New("db error"),
			},
			wantMsg: "not_found: user not found (db error)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeValidation,
				Message: "invalid input",
			},
			wantMsg: "validation: invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same code", ErrExpiredCredential, ErrExpiredCredential, true},
		{"same type different code", ErrExpiredCredential, ErrInvalidCredential, false},
		{"untyped target matches type", NewDomainError(ErrorTypeNotFound, "x", nil), ErrUserNotFound, true},
		{"different type", ErrInvalidInput, ErrUserNotFound, false},
		{"wrapped cause is found", ErrUnauthorized.Wrap(ErrTokenRevoked), ErrTokenRevoked, true},
		{"wrapper itself is found", ErrUnauthorized.Wrap(ErrTokenRevoked), ErrUnauthorized, true},
		{"fmt wrapped", fmt.Errorf("refresh: %w", ErrSessionNotFound), ErrSessionNotFound, true},
		{"not a domain error", ErrInternal, errors.New("regular error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_WrapDoesNotMutateShared(t *testing.T) {
	cause := errors.New("redis down")
	wrapped := ErrDependencyUnavailable.Wrap(cause)

	assert.Nil(t, ErrDependencyUnavailable.Err)
	assert.Equal(t, cause, errors.Unwrap(wrapped))
	assert.Equal(t, CodeDependencyUnavailable, wrapped.Code)
}

func TestDomainError_WithDetail(t *testing.T) {
	err := ErrRateLimited.WithDetail("retry_after", 3).WithDetail("limit", 5)

	assert.Equal(t, 3, err.Details["retry_after"])
	assert.Equal(t, 5, err.Details["limit"])
	assert.Empty(t, ErrRateLimited.Details)
}

func TestErrorTypeHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"not found", ErrUserNotFound, IsNotFoundError, true},
		{"wrapped not found", fmt.Errorf("wrapped: %w", ErrRoleNotFound), IsNotFoundError, true},
		{"validation", ErrInvalidInput, IsValidationError, true},
		{"unauthorized credential", ErrInvalidCredential, IsUnauthorizedError, true},
		{"unauthorized login", ErrInvalidCredentials, IsUnauthorizedError, true},
		{"forbidden", ErrForbidden, IsForbiddenError, true},
		{"rate limit", ErrRateLimited, IsRateLimitError, true},
		{"conflict", ErrDuplicateUsername, IsConflictError, true},
		{"internal", WrapInternal("boom", errors.New("x")), IsInternalError, true},
		{"unavailable", WrapUnavailable(errors.New("dial tcp")), IsUnavailableError, true},
		{"regular error", errors.New("regular"), IsNotFoundError, false},
		{"nil error", nil, IsUnauthorizedError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, CodeWrongTokenType, GetErrorCode(ErrWrongTokenType))
	assert.Equal(t, CodeUnauthorized, GetErrorCode(ErrUnauthorized.Wrap(ErrWrongTokenType)))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}

func TestCauseCode(t *testing.T) {
	assert.Equal(t, CodeTokenRevoked, CauseCode(ErrUnauthorized.Wrap(ErrTokenRevoked)))
	assert.Equal(t, CodeDependencyUnavailable, CauseCode(ErrUnauthorized.Wrap(WrapUnavailable(errors.New("dial tcp")))))
	assert.Equal(t, CodeUnauthorized, CauseCode(ErrUnauthorized.Wrap(errors.New("missing bearer token"))))
	assert.Equal(t, CodeSessionNotFound, CauseCode(fmt.Errorf("refresh: %w", ErrSessionNotFound)))
	assert.Equal(t, ErrorCode(""), CauseCode(errors.New("plain")))
}
