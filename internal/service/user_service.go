package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ocms-api/internal/models"
	appErrors "github.com/noah-isme/ocms-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateStatus(ctx context.Context, id string, active bool) error
	UpdateRole(ctx context.Context, id string, role models.UserRole) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UserService handles admin user management. Accounts are only created
// through registration; admins promote them by assigning a role.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list users")
	}

	page, pageSize := models.NormalizePage(filter.Page, filter.PageSize)
	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return user, nil
}

// UpdateStatus activates or deactivates an account. Deactivation ends every
// session of the user.
func (s *UserService) UpdateStatus(ctx context.Context, id string, req models.UpdateUserStatusRequest, actorID string, meta models.RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid status payload")
	}
	if id == actorID && !*req.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot deactivate your own account")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	oldPayload, _ := json.Marshal(map[string]interface{}{"active": user.Active})

	if err := s.repo.UpdateStatus(ctx, id, *req.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to update user status")
	}
	user.Active = *req.Active

	if !user.Active {
		if err := s.repo.RevokeUserRefreshTokens(ctx, id); err != nil {
			s.logger.Warn("failed to revoke sessions of deactivated user", zap.String("user_id", id), zap.Error(err))
		}
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"active": user.Active})
	s.audit(ctx, actorID, models.AuditActionUserStatus, id, oldPayload, newPayload, meta)
	return user, nil
}

// UpdateRole assigns a role to another user.
func (s *UserService) UpdateRole(ctx context.Context, id string, req models.UpdateUserRoleRequest, actorID string, meta models.RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid role payload")
	}
	if !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	if id == actorID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot change your own role")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == req.Role {
		return user, nil
	}
	oldPayload, _ := json.Marshal(map[string]interface{}{"role": user.Role})

	if err := s.repo.UpdateRole(ctx, id, req.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to update user role")
	}
	user.Role = req.Role

	// Access tokens carry the role; force a fresh login.
	if err := s.repo.RevokeUserRefreshTokens(ctx, id); err != nil {
		s.logger.Warn("failed to revoke sessions after role change", zap.String("user_id", id), zap.Error(err))
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"role": user.Role})
	s.audit(ctx, actorID, models.AuditActionUserRole, id, oldPayload, newPayload, meta)
	return user, nil
}

func (s *UserService) audit(ctx context.Context, actorID, action, targetID string, oldValues, newValues []byte, meta models.RequestMeta) {
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "users",
		ResourceID: &targetID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record user audit log", zap.String("action", action), zap.Error(err))
	}
}
