package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/auth-service/middleware"
	"github.com/upb/auth-service/models"
	"github.com/upb/auth-service/services"
	"github.com/upb/auth-service/services/oauth"
	"github.com/upb/auth-service/services/token"
	"github.com/upb/auth-service/utils"
	"go.uber.org/zap"
)

// OAuthService runs the authorization code flow against external providers
type OAuthService interface {
	AuthorizeURL(provider, state string) (string, error)
	Callback(ctx context.Context, provider, code string) (*token.Pair, *models.User, error)
	Unlink(ctx context.Context, userID uuid.UUID, provider string) error
	Providers() []string
}

// CallbackRequest holds the query parameters a provider redirects back with
type CallbackRequest struct {
	Code  string `form:"code" validate:"required,max=2048"`
	State string `form:"state" validate:"required,max=256"`
}

// OAuthHandler handles sign-in through Google and Yandex
type OAuthHandler struct {
	service OAuthService
	history LoginRecorder
	cookie  RefreshCookie
	logger  *zap.Logger
}

// NewOAuthHandler creates a new OAuthHandler
func NewOAuthHandler(service OAuthService, history LoginRecorder, cookie RefreshCookie, logger *zap.Logger) *OAuthHandler {
	return &OAuthHandler{
		service: service,
		history: history,
		cookie:  cookie,
		logger:  logger,
	}
}

// HandleProviders handles GET /api/v1/oauth/providers
func (h *OAuthHandler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	names := h.service.Providers()
	if names == nil {
		names = []string{}
	}
	if err := utils.WriteOK(w, names); err != nil {
		h.logger.Error("failed to write providers response", zap.Error(err))
	}
}

// HandleLogin handles GET /api/v1/oauth/{provider}/login.
// It redirects to the provider with a fresh state bound to a cookie.
func (h *OAuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := oauth.NewState()

	authURL, err := h.service.AuthorizeURL(chi.URLParam(r, "provider"), state)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	setStateCookie(w, state, h.cookie.Secure)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback handles GET /api/v1/oauth/{provider}/callback
func (h *OAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")

	req := CallbackRequest{
		Code:  r.URL.Query().Get("code"),
		State: r.URL.Query().Get("state"),
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	stateCookie, err := r.Cookie(StateCookieName)
	if err != nil || subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(req.State)) != 1 {
		h.logger.Warn("oauth state mismatch",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.String("provider", provider))
		HandleServiceError(w, services.ErrInvalidOAuthState, h.logger)
		return
	}
	clearStateCookie(w, h.cookie.Secure)

	pair, user, err := h.service.Callback(ctx, provider, req.Code)
	if err != nil {
		h.logger.Info("oauth callback failed",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.String("provider", provider),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	recordLogin(ctx, h.history, h.logger, user.ID, r.UserAgent())
	h.cookie.Set(w, pair.RefreshToken)
	if err := utils.WriteJSON(w, http.StatusOK, pair); err != nil {
		h.logger.Error("failed to write callback response", zap.Error(err))
	}
}

// HandleUnlink handles DELETE /api/v1/oauth/{provider}
func (h *OAuthHandler) HandleUnlink(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipalFromContext(r.Context())
	if p == nil || p.Anonymous {
		HandleServiceError(w, services.ErrUnauthorized, h.logger)
		return
	}

	if err := h.service.Unlink(r.Context(), p.UserID, chi.URLParam(r, "provider")); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}
