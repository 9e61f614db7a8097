package handlers

import (
	"context"
	"mime"
	"net/http"

	"github.com/google/uuid"
	"github.com/upb/auth-service/internal/shared"
	"github.com/upb/auth-service/middleware"
	"github.com/upb/auth-service/models"
	"github.com/upb/auth-service/services"
	"github.com/upb/auth-service/services/token"
	"github.com/upb/auth-service/utils"
	"go.uber.org/zap"
)

// TokenService is the token lifecycle the auth endpoints drive
type TokenService interface {
	Login(ctx context.Context, username, password string) (*token.Pair, *models.User, error)
	Refresh(ctx context.Context, refreshToken string) (*token.Pair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID string) (int, error)
	RevokeAccess(ctx context.Context, claims *token.Claims) error
}

// LoginRecorder stores successful sign-ins
type LoginRecorder interface {
	RecordLogin(ctx context.Context, userID uuid.UUID, userAgent, ip string) error
}

// LoginRequest is accepted as a form or as JSON
type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required,max=150"`
	Password string `json:"password" form:"password" validate:"required,max=128"`
}

// PrincipalResponse describes the caller
type PrincipalResponse struct {
	ID        string   `json:"id,omitempty"`
	Username  string   `json:"username"`
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles"`
	Anonymous bool     `json:"anonymous"`
}

// AuthHandler handles password login and the refresh token lifecycle
type AuthHandler struct {
	tokens  TokenService
	history LoginRecorder
	cookie  RefreshCookie
	logger  *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(tokens TokenService, history LoginRecorder, cookie RefreshCookie, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		tokens:  tokens,
		history: history,
		cookie:  cookie,
		logger:  logger,
	}
}

// HandleLogin handles POST /api/v1/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req LoginRequest
	if err := decodeLogin(w, r, &req); err != nil {
		h.logger.Warn("failed to parse login request",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	pair, user, err := h.tokens.Login(ctx, req.Username, req.Password)
	if err != nil {
		h.logger.Info("login failed",
			zap.String("request_id", requestID),
			zap.String("username", req.Username),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	recordLogin(ctx, h.history, h.logger, user.ID, r.UserAgent())
	h.cookie.Set(w, pair.RefreshToken)

	if err := utils.WriteJSON(w, http.StatusOK, pair); err != nil {
		h.logger.Error("failed to write login response", zap.Error(err))
	}
}

// HandleRefresh handles POST /api/v1/auth/refresh
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	refreshToken := readRefreshCookie(r)
	if refreshToken == "" {
		HandleServiceError(w, services.ErrInvalidCredential, h.logger)
		return
	}

	pair, err := h.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		h.logger.Info("refresh rejected",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.Error(err))
		if services.IsUnauthorizedError(err) {
			h.cookie.Clear(w)
		}
		HandleServiceError(w, err, h.logger)
		return
	}

	h.cookie.Set(w, pair.RefreshToken)
	if err := utils.WriteJSON(w, http.StatusOK, pair); err != nil {
		h.logger.Error("failed to write refresh response", zap.Error(err))
	}
}

// HandleLogout handles POST /api/v1/auth/logout.
// Without a cookie there is nothing to revoke and the call still succeeds.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	refreshToken := readRefreshCookie(r)
	if refreshToken == "" {
		h.cookie.Clear(w)
		utils.WriteNoContent(w)
		return
	}

	if err := h.tokens.Logout(r.Context(), refreshToken); err != nil {
		// Keep the cookie when the store is down so the client can retry
		if !services.IsUnavailableError(err) {
			h.cookie.Clear(w)
		}
		HandleServiceError(w, err, h.logger)
		return
	}

	h.cookie.Clear(w)
	utils.WriteNoContent(w)
}

// HandleLogoutAll handles POST /api/v1/auth/logout-all. It ends every
// session of the caller and denies the access token used for the call.
func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p := middleware.GetPrincipalFromContext(ctx)
	if p == nil || p.Anonymous {
		HandleServiceError(w, services.ErrUnauthorized, h.logger)
		return
	}

	revoked, err := h.tokens.LogoutAll(ctx, p.UserID.String())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if p.Claims != nil {
		if err := h.tokens.RevokeAccess(ctx, p.Claims); err != nil {
			HandleServiceError(w, err, h.logger)
			return
		}
	}

	h.cookie.Clear(w)
	if err := utils.WriteOK(w, map[string]int{"revoked_sessions": revoked}); err != nil {
		h.logger.Error("failed to write logout-all response", zap.Error(err))
	}
}

// HandleMe handles GET /api/v1/auth/me. Anonymous callers are described as
// the guest principal.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipalFromContext(r.Context())
	if p == nil {
		HandleServiceError(w, services.ErrUnauthorized, h.logger)
		return
	}

	resp := PrincipalResponse{
		Username:  p.Username,
		Email:     p.Email,
		Roles:     p.Roles,
		Anonymous: p.Anonymous,
	}
	if resp.Roles == nil {
		resp.Roles = []string{}
	}
	if !p.Anonymous {
		resp.ID = p.UserID.String()
	}

	if err := utils.WriteOK(w, resp); err != nil {
		h.logger.Error("failed to write principal response", zap.Error(err))
	}
}

// recordLogin is best effort; a lost history row must not fail the login
func recordLogin(ctx context.Context, history LoginRecorder, logger *zap.Logger, userID uuid.UUID, userAgent string) {
	if history == nil {
		return
	}
	if err := history.RecordLogin(ctx, userID, userAgent, shared.ClientIP(ctx)); err != nil {
		logger.Warn("failed to record login",
			zap.String("request_id", shared.RequestID(ctx)),
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}
}

func decodeLogin(w http.ResponseWriter, r *http.Request, req *LoginRequest) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return utils.DecodeJSON(w, r, req)
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := r.ParseForm(); err != nil {
		return err
	}
	req.Username = r.PostForm.Get("username")
	req.Password = r.PostForm.Get("password")
	return nil
}
