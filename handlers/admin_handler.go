package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/auth-service/middleware"
	"github.com/upb/auth-service/models"
	"github.com/upb/auth-service/utils"
	"go.uber.org/zap"
)

// SessionAdmin lists and ends the sessions of any user
type SessionAdmin interface {
	Sessions(ctx context.Context, userID string) ([]models.Session, error)
	LogoutAll(ctx context.Context, userID string) (int, error)
}

// UserAdmin looks up and deletes users
type UserAdmin interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// RoleAdmin manages roles and grants
type RoleAdmin interface {
	Create(ctx context.Context, name, description string) (*models.Role, error)
	List(ctx context.Context) ([]*models.Role, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Assign(ctx context.Context, userID uuid.UUID, roleName string) error
	Unassign(ctx context.Context, userID uuid.UUID, roleName string) error
}

// CreateRoleRequest represents the request body for creating a role
type CreateRoleRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=64,username"`
	Description string `json:"description" validate:"max=255"`
}

// SessionsResponse lists a user's live sessions
type SessionsResponse struct {
	UserID   string           `json:"user_id"`
	Sessions []models.Session `json:"sessions"`
}

// AdminHandler serves the admin-only user, session and role endpoints
type AdminHandler struct {
	sessions SessionAdmin
	users    UserAdmin
	roles    RoleAdmin
	logger   *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(sessions SessionAdmin, users UserAdmin, roles RoleAdmin, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		sessions: sessions,
		users:    users,
		roles:    roles,
		logger:   logger,
	}
}

// HandleListSessions handles GET /api/v1/users/{id}/sessions
func (h *AdminHandler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.existingUser(w, r)
	if !ok {
		return
	}

	sessions, err := h.sessions.Sessions(r.Context(), userID.String())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}

	if err := utils.WriteOK(w, SessionsResponse{UserID: userID.String(), Sessions: sessions}); err != nil {
		h.logger.Error("failed to write sessions response", zap.Error(err))
	}
}

// HandleRevokeSessions handles DELETE /api/v1/users/{id}/sessions
func (h *AdminHandler) HandleRevokeSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.existingUser(w, r)
	if !ok {
		return
	}

	revoked, err := h.sessions.LogoutAll(r.Context(), userID.String())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("sessions revoked by admin",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("admin_id", adminID(r)),
		zap.String("user_id", userID.String()),
		zap.Int("sessions", revoked))

	if err := utils.WriteOK(w, map[string]int{"revoked_sessions": revoked}); err != nil {
		h.logger.Error("failed to write revoke response", zap.Error(err))
	}
}

// HandleDeleteUser handles DELETE /api/v1/users/{id}. Sessions are revoked
// before the row goes so no refresh token outlives its user.
func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.existingUser(w, r)
	if !ok {
		return
	}

	revoked, err := h.sessions.LogoutAll(r.Context(), userID.String())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if err := h.users.Delete(r.Context(), userID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("user deleted by admin",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("admin_id", adminID(r)),
		zap.String("user_id", userID.String()),
		zap.Int("revoked_sessions", revoked))

	utils.WriteNoContent(w)
}

// HandleListRoles handles GET /api/v1/roles
func (h *AdminHandler) HandleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if roles == nil {
		roles = []*models.Role{}
	}
	if err := utils.WriteOK(w, roles); err != nil {
		h.logger.Error("failed to write roles response", zap.Error(err))
	}
}

// HandleCreateRole handles POST /api/v1/roles
func (h *AdminHandler) HandleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	role, err := h.roles.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if err := utils.WriteCreated(w, role); err != nil {
		h.logger.Error("failed to write role response", zap.Error(err))
	}
}

// HandleDeleteRole handles DELETE /api/v1/roles/{id}
func (h *AdminHandler) HandleDeleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid role ID", nil)
		return
	}

	if err := h.roles.Delete(r.Context(), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}

// HandleAssignRole handles PUT /api/v1/users/{id}/roles/{role}
func (h *AdminHandler) HandleAssignRole(w http.ResponseWriter, r *http.Request) {
	h.changeGrant(w, r, h.roles.Assign)
}

// HandleUnassignRole handles DELETE /api/v1/users/{id}/roles/{role}
func (h *AdminHandler) HandleUnassignRole(w http.ResponseWriter, r *http.Request) {
	h.changeGrant(w, r, h.roles.Unassign)
}

func (h *AdminHandler) changeGrant(w http.ResponseWriter, r *http.Request, apply func(context.Context, uuid.UUID, string) error) {
	userID, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid user ID", nil)
		return
	}

	if err := apply(r.Context(), userID, chi.URLParam(r, "role")); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}

func (h *AdminHandler) existingUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid user ID", nil)
		return uuid.Nil, false
	}
	if _, err := h.users.GetUser(r.Context(), userID); err != nil {
		HandleServiceError(w, err, h.logger)
		return uuid.Nil, false
	}
	return userID, true
}

func adminID(r *http.Request) string {
	if p := middleware.GetPrincipalFromContext(r.Context()); p != nil {
		return p.UserID.String()
	}
	return ""
}
