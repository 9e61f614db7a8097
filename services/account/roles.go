package account

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/auth-service/models"
	"github.com/upb/auth-service/repositories"
	"github.com/upb/auth-service/services"
	"go.uber.org/zap"
)

// RoleService manages roles and their assignment to users
type RoleService struct {
	users  repositories.UserRepository
	roles  repositories.RoleRepository
	logger *zap.Logger
}

// NewRoleService creates a new role service
func NewRoleService(repos *repositories.Repositories, logger *zap.Logger) *RoleService {
	return &RoleService{users: repos.Users, roles: repos.Roles, logger: logger}
}

func (s *RoleService) Create(ctx context.Context, name, description string) (*models.Role, error) {
	role := models.NewRole(name, description)
	if err := s.roles.Create(ctx, role); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, services.ErrDuplicateRole
		}
		return nil, services.WrapInternal("failed to create role", err)
	}
	s.logger.Info("role created", zap.String("role", name))
	return role, nil
}

func (s *RoleService) List(ctx context.Context) ([]*models.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, services.WrapInternal("failed to list roles", err)
	}
	return roles, nil
}

func (s *RoleService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.roles.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrRoleNotFound
		}
		return services.WrapInternal("failed to delete role", err)
	}
	s.logger.Info("role deleted", zap.String("role_id", id.String()))
	return nil
}

// Assign grants roleName to the user; granting a held role is a no-op
func (s *RoleService) Assign(ctx context.Context, userID uuid.UUID, roleName string) error {
	role, err := s.resolve(ctx, userID, roleName)
	if err != nil {
		return err
	}
	if err := s.roles.Assign(ctx, userID, role.ID); err != nil {
		return services.WrapInternal("failed to assign role", err)
	}
	return nil
}

func (s *RoleService) Unassign(ctx context.Context, userID uuid.UUID, roleName string) error {
	role, err := s.resolve(ctx, userID, roleName)
	if err != nil {
		return err
	}
	if err := s.roles.Unassign(ctx, userID, role.ID); err != nil {
		return services.WrapInternal("failed to remove role", err)
	}
	return nil
}

func (s *RoleService) resolve(ctx context.Context, userID uuid.UUID, roleName string) (*models.Role, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, services.WrapInternal("failed to load user", err)
	}
	if user == nil {
		return nil, services.ErrUserNotFound
	}
	role, err := s.roles.FindByName(ctx, roleName)
	if err != nil {
		return nil, services.WrapInternal("failed to load role", err)
	}
	if role == nil {
		return nil, services.ErrRoleNotFound
	}
	return role, nil
}

// RoleNames lists the names of the user's roles
func (s *RoleService) RoleNames(ctx context.Context, userID uuid.UUID) ([]string, error) {
	names, err := s.roles.RoleNamesForUser(ctx, userID)
	if err != nil {
		return nil, services.WrapUnavailable(err)
	}
	return names, nil
}

// RoleExists reports whether a role with this name is defined
func (s *RoleService) RoleExists(ctx context.Context, name string) (bool, error) {
	role, err := s.roles.FindByName(ctx, name)
	if err != nil {
		return false, services.WrapUnavailable(err)
	}
	return role != nil, nil
}
