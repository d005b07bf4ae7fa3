package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/yegara-dev/community-api/internal/models"
	"github.com/yegara-dev/community-api/internal/scope"
	"github.com/yegara-dev/community-api/internal/woreda"
	appErrors "github.com/yegara-dev/community-api/pkg/errors"
)

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

// CreateUserRequest is the admin provisioning payload.
type CreateUserRequest struct {
	Email      string            `json:"email" validate:"required,email"`
	FullName   string            `json:"fullName" validate:"required"`
	Phone      string            `json:"phone"`
	Role       models.UserRole   `json:"role" validate:"required,oneof=officer woreda_admin"`
	Woreda     string            `json:"woreda"`
	Department models.Department `json:"department"`
}

// UpdateUserRequest is the admin edit payload. Nil fields are left unchanged.
type UpdateUserRequest struct {
	FullName   *string            `json:"fullName"`
	Phone      *string            `json:"phone"`
	Woreda     *string            `json:"woreda"`
	Department *models.Department `json:"department"`
	IsActive   *bool              `json:"isActive"`
}

// UserService provides administration of user accounts.
type UserService struct {
	repo      userRepository
	notifier  notificationDispatcher
	validator *validator.Validate
	logger    *zap.Logger

	frontendURL string
}

// NewUserService constructs a UserService instance.
func NewUserService(repo userRepository, notifier notificationDispatcher, validate *validator.Validate, logger *zap.Logger, frontendURL string) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, notifier: notifier, validator: validate, logger: logger, frontendURL: frontendURL}
}

// Create provisions an account on behalf of an administrator. Sub-city
// admins create woreda admins; woreda admins create department officers in
// their own district. The account starts inactive with a temporary password
// and an access code mailed to the new user.
func (s *UserService) Create(ctx context.Context, actor *models.User, req CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	targetWoreda := req.Woreda
	if actor.Role == models.RoleWoredaAdmin && targetWoreda == "" {
		targetWoreda = actor.Woreda
	}
	if err := scope.CanCreateUser(actor, req.Role, targetWoreda); err != nil {
		return nil, err
	}
	if req.Role == models.RoleOfficer && req.Department == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "department is required for officers")
	}
	if req.Role == models.RoleWoredaAdmin && targetWoreda == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "woreda is required for woreda admins")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if existing, err := s.repo.FindByEmail(ctx, email); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("check existing email: %w", err)
	}

	tempPassword, err := randomToken(8)
	if err != nil {
		return nil, fmt.Errorf("generate temporary password: %w", err)
	}
	accessCode, err := randomToken(4)
	if err != nil {
		return nil, fmt.Errorf("generate access code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash temporary password: %w", err)
	}

	user := &models.User{
		Email:              email,
		PasswordHash:       string(hash),
		FullName:           req.FullName,
		Phone:              req.Phone,
		Role:               req.Role,
		Woreda:             targetWoreda,
		AccessCode:         &accessCode,
		IsActive:           false,
		MustChangePassword: true,
	}
	if req.Role == models.RoleOfficer {
		dept := req.Department
		user.Department = &dept
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if s.notifier != nil {
		s.notifier.Dispatch(models.NotificationIntent{
			Recipients: []models.Recipient{{UserID: user.ID, Email: user.Email}},
			Subject:    "Your account is ready",
			HTMLBody: fmt.Sprintf(
				"<p>An account was created for you.</p><p>Temporary password: <b>%s</b><br>Access code: <b>%s</b></p><p><a href=%q>Sign in</a> and set a new password to activate your account.</p>",
				tempPassword, accessCode, s.frontendURL+"/login"),
		})
	}

	s.logger.Info("user provisioned",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.String("created_by", actor.ID))
	return user, nil
}

// List returns the users visible to the actor. Woreda admins see their own
// district only; officers and residents cannot list users at all.
func (s *UserService) List(ctx context.Context, actor *models.User, filter models.UserFilter) ([]models.User, error) {
	sc, err := scope.ForList(actor, scope.KindUsers)
	if err != nil {
		return nil, err
	}
	if !sc.Unrestricted {
		filter.Woreda = sc.Woreda
		filter.WoredaPattern = sc.WoredaPattern
	}

	users, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Get returns one user record subject to the actor's visibility.
func (s *UserService) Get(ctx context.Context, actor *models.User, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	if err := scope.CanViewUser(actor, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListByWoreda returns users of one district. Woreda admins may only query
// their own district.
func (s *UserService) ListByWoreda(ctx context.Context, actor *models.User, target string) ([]models.User, error) {
	if actor.Role != models.RoleWoredaAdmin && actor.Role != models.RoleSubcityAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized to list users")
	}
	if err := scope.CanAccessWoreda(actor, target); err != nil {
		return nil, err
	}

	users, err := s.repo.List(ctx, models.UserFilter{WoredaPattern: woreda.MatchPattern(target)})
	if err != nil {
		return nil, fmt.Errorf("list users by woreda: %w", err)
	}
	return users, nil
}

// ListByRole returns users of one role within the actor's visibility.
func (s *UserService) ListByRole(ctx context.Context, actor *models.User, role models.UserRole) ([]models.User, error) {
	if !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	sc, err := scope.ForList(actor, scope.KindUsers)
	if err != nil {
		return nil, err
	}

	filter := models.UserFilter{Role: &role}
	if !sc.Unrestricted {
		filter.Woreda = sc.Woreda
		filter.WoredaPattern = sc.WoredaPattern
	}

	users, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return users, nil
}

// Update applies partial edits to a user record.
func (s *UserService) Update(ctx context.Context, actor *models.User, id string, req UpdateUserRequest) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	if err := scope.CanUpdateUser(actor, user); err != nil {
		return nil, err
	}

	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Woreda != nil {
		user.Woreda = *req.Woreda
	}
	if req.Department != nil {
		user.Department = req.Department
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// Delete removes a user account. Admins cannot delete their own account and
// woreda admins cannot reach outside their district.
func (s *UserService) Delete(ctx context.Context, actor *models.User, id string) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return fmt.Errorf("find user by id: %w", err)
	}
	if err := scope.CanDeleteUser(actor, user); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.Info("user deleted",
		zap.String("user_id", id),
		zap.String("deleted_by", actor.ID))
	return nil
}
