package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/upb/auth-service/services"
	"github.com/upb/auth-service/services/principal"
	"go.uber.org/zap"
)

// MockPrincipalResolver is a mock implementation of PrincipalResolver
type MockPrincipalResolver struct {
	mock.Mock
}

func (m *MockPrincipalResolver) Optional(ctx context.Context, bearer string) *principal.Principal {
	return m.Called(ctx, bearer).Get(0).(*principal.Principal)
}

func (m *MockPrincipalResolver) Strict(ctx context.Context, bearer string) (*principal.Principal, error) {
	args := m.Called(ctx, bearer)
	if p := args.Get(0); p != nil {
		return p.(*principal.Principal), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPrincipalResolver) WithRoles(ctx context.Context, bearer string, required ...string) (*principal.Principal, error) {
	args := m.Called(ctx, bearer, required)
	if p := args.Get(0); p != nil {
		return p.(*principal.Principal), args.Error(1)
	}
	return nil, args.Error(1)
}

func okHandler(t *testing.T, check func(p *principal.Principal)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := GetPrincipalFromContext(r.Context())
		if check != nil {
			check(p)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid token attaches principal", func(t *testing.T) {
		resolver := new(MockPrincipalResolver)
		caller := &principal.Principal{UserID: uuid.New(), Username: "alice"}
		resolver.On("Strict", mock.Anything, "valid-token").Return(caller, nil)

		handler := NewAuthMiddleware(resolver, logger).RequireAuth(okHandler(t, func(p *principal.Principal) {
			assert.Equal(t, caller, p)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		resolver.AssertExpectations(t)
	})

	tests := []struct {
		name  string
		cause error
		code  string
	}{
		{"missing token", errors.New("missing bearer token"), "unauthorized"},
		{"expired token", services.ErrExpiredCredential, "expired_credential"},
		{"revoked token", services.ErrTokenRevoked, "token_revoked"},
		{"revocation store down", services.WrapUnavailable(errors.New("dial tcp")), "dependency_unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := new(MockPrincipalResolver)
			resolver.On("Strict", mock.Anything, "").Return(nil, services.ErrUnauthorized.Wrap(tt.cause))

			called := false
			handler := NewAuthMiddleware(resolver, logger).RequireAuth(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				called = true
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))

			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			assert.Contains(t, w.Body.String(), "Could not validate credentials")
			assert.Contains(t, w.Body.String(), `"code":"`+tt.code+`"`)
		})
	}
}

func TestRequireRoles(t *testing.T) {
	logger := zap.NewNop()

	t.Run("caller holds role", func(t *testing.T) {
		resolver := new(MockPrincipalResolver)
		resolver.On("WithRoles", mock.Anything, "tok", []string{"admin"}).
			Return(&principal.Principal{Roles: []string{"admin"}}, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/roles", nil)
		req.Header.Set("Authorization", "Bearer tok")
		NewAuthMiddleware(resolver, logger).RequireRoles("admin")(okHandler(t, nil)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("caller lacks role", func(t *testing.T) {
		resolver := new(MockPrincipalResolver)
		resolver.On("WithRoles", mock.Anything, "tok", []string{"admin"}).Return(nil, services.ErrForbidden)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/roles", nil)
		req.Header.Set("Authorization", "Bearer tok")
		NewAuthMiddleware(resolver, logger).RequireRoles("admin")(okHandler(t, nil)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("anonymous caller", func(t *testing.T) {
		resolver := new(MockPrincipalResolver)
		resolver.On("WithRoles", mock.Anything, "", []string{"admin"}).Return(nil, services.ErrUnauthorized)

		w := httptest.NewRecorder()
		NewAuthMiddleware(resolver, logger).RequireRoles("admin")(okHandler(t, nil)).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/roles", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestResolvePrincipal(t *testing.T) {
	resolver := new(MockPrincipalResolver)
	guest := &principal.Principal{Username: principal.AnonymousUsername, Anonymous: true}
	resolver.On("Optional", mock.Anything, "garbage").Return(guest)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	NewAuthMiddleware(resolver, zap.NewNop()).ResolvePrincipal(okHandler(t, func(p *principal.Principal) {
		assert.True(t, p.Anonymous)
	})).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
