package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/upb/auth-service/middleware"
	"github.com/upb/auth-service/models"
	"github.com/upb/auth-service/services"
	"github.com/upb/auth-service/services/account"
	"github.com/upb/auth-service/utils"
	"go.uber.org/zap"
)

// AccountService is what the account endpoints need from services/account
type AccountService interface {
	Signup(ctx context.Context, in account.SignupInput) (*models.User, error)
	Update(ctx context.Context, userID uuid.UUID, in account.UpdateInput) (*account.UpdateResult, error)
	LoginHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.LoginHistory, error)
}

// SessionTerminator ends every session of a user
type SessionTerminator interface {
	LogoutAll(ctx context.Context, userID string) (int, error)
}

// SignupRequest represents the request body for creating a password account
type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=150,username"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// UpdateAccountRequest changes the caller's username, password or both
type UpdateAccountRequest struct {
	Username    string `json:"username" validate:"omitempty,min=3,max=150,username"`
	OldPassword string `json:"old_password" validate:"required_with=NewPassword,max=72"`
	NewPassword string `json:"new_password" validate:"required_with=OldPassword,omitempty,min=8,max=72"`
}

// UpdateAccountResponse reports the outcome of an account update
type UpdateAccountResponse struct {
	User            *models.User `json:"user"`
	RevokedSessions int          `json:"revoked_sessions"`
}

// AccountHandler handles self-service account endpoints
type AccountHandler struct {
	service  AccountService
	sessions SessionTerminator
	logger   *zap.Logger
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(service AccountService, sessions SessionTerminator, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{service: service, sessions: sessions, logger: logger}
}

// HandleSignup handles POST /api/v1/auth/signup
func (h *AccountHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	user, err := h.service.Signup(r.Context(), account.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteCreated(w, user); err != nil {
		h.logger.Error("failed to write signup response", zap.Error(err))
	}
}

// HandleUpdate handles PATCH /api/v1/auth/update. A password change ends
// every session of the caller.
func (h *AccountHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipalFromContext(r.Context())
	if p == nil || p.Anonymous {
		HandleServiceError(w, services.ErrUnauthorized, h.logger)
		return
	}

	var req UpdateAccountRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	res, err := h.service.Update(r.Context(), p.UserID, account.UpdateInput{
		Username:    req.Username,
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	resp := UpdateAccountResponse{User: res.User}
	if res.PasswordChanged {
		revoked, err := h.sessions.LogoutAll(r.Context(), p.UserID.String())
		if err != nil {
			h.logger.Error("password changed but sessions were not revoked",
				zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
				zap.String("user_id", p.UserID.String()),
				zap.Error(err))
			HandleServiceError(w, err, h.logger)
			return
		}
		resp.RevokedSessions = revoked
	}

	if err := utils.WriteOK(w, resp); err != nil {
		h.logger.Error("failed to write update response", zap.Error(err))
	}
}

// HandleHistory handles GET /api/v1/users/me/history?limit=&offset=
func (h *AccountHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipalFromContext(r.Context())
	if p == nil || p.Anonymous {
		HandleServiceError(w, services.ErrUnauthorized, h.logger)
		return
	}

	limit, offset, err := pagination(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	entries, err := h.service.LoginHistory(r.Context(), p.UserID, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if entries == nil {
		entries = []*models.LoginHistory{}
	}

	if err := utils.WriteOK(w, entries); err != nil {
		h.logger.Error("failed to write history response", zap.Error(err))
	}
}

func pagination(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			return 0, 0, services.ErrInvalidInput.WithDetail("limit", v)
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, services.ErrInvalidInput.WithDetail("offset", v)
		}
	}
	return limit, offset, nil
}
