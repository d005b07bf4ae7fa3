package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/yegara-dev/community-api/internal/models"
	appErrors "github.com/yegara-dev/community-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Activate(ctx context.Context, id, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, id string) error
}

type notificationDispatcher interface {
	Dispatch(intent models.NotificationIntent)
}

// AuthConfig defines configuration for the authentication flows.
type AuthConfig struct {
	TokenSecret   string
	TokenExpiry   time.Duration
	ResetTokenTTL time.Duration
	FrontendURL   string
}

// AuthService provides registration, login and credential management.
type AuthService struct {
	repo      authUserRepository
	notifier  notificationDispatcher
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, notifier notificationDispatcher, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.ResetTokenTTL <= 0 {
		config.ResetTokenTTL = 10 * time.Minute
	}
	return &AuthService{repo: repo, notifier: notifier, validator: validate, logger: logger, config: config}
}

// Register creates a self-service account. Residents are active immediately;
// officer and admin registrations start inactive pending an access code
// issued by their administrator.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	if req.Role == models.RoleResident && req.Woreda == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "woreda is required for residents")
	}
	if req.Role == models.RoleOfficer && req.Department == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "department is required for officers")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if existing, err := s.repo.FindByEmail(ctx, email); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("check existing email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Phone:        req.Phone,
		Role:         req.Role,
		Woreda:       req.Woreda,
		IsActive:     req.Role == models.RoleResident,
	}
	if req.Role == models.RoleOfficer {
		dept := models.DepartmentForCategory(models.ReportCategory(req.Department))
		user.Department = &dept
	}
	if req.CustomWoredaName != "" {
		user.CustomWoredaName = &req.CustomWoredaName
	}

	var accessCode string
	if !user.IsActive {
		accessCode, err = randomToken(4)
		if err != nil {
			return nil, fmt.Errorf("generate access code: %w", err)
		}
		user.AccessCode = &accessCode
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if user.CustomWoredaName != nil {
		s.notifyCustomWoredaRequest(ctx, user)
	}

	if !user.IsActive {
		if s.notifier != nil {
			s.notifier.Dispatch(models.NotificationIntent{
				Recipients: []models.Recipient{{UserID: user.ID, Email: user.Email}},
				Subject:    "Registration received",
				HTMLBody: fmt.Sprintf(
					"<p>Thanks for registering, %s.</p><p>Your access code: <b>%s</b></p><p>Your account stays inactive until an administrator approves it. Keep the code for your first sign-in.</p>",
					user.FullName, accessCode),
			})
		}
		return &models.AuthResponse{
			User:               userInfo(user),
			RequiresActivation: true,
		}, nil
	}
	return s.issueToken(ctx, user)
}

// notifyCustomWoredaRequest tells the sub-city admins that a registration
// named a woreda outside the known list. Delivery failures only log; the
// registration itself already succeeded.
func (s *AuthService) notifyCustomWoredaRequest(ctx context.Context, user *models.User) {
	if s.notifier == nil {
		return
	}
	role := models.RoleSubcityAdmin
	admins, err := s.repo.List(ctx, models.UserFilter{Role: &role, ActiveOnly: true})
	if err != nil {
		s.logger.Warn("failed to list sub-city admins for custom woreda request", zap.Error(err))
		return
	}
	recipients := make([]models.Recipient, 0, len(admins))
	for _, admin := range admins {
		recipients = append(recipients, models.Recipient{UserID: admin.ID, Email: admin.Email})
	}
	if len(recipients) == 0 {
		return
	}
	s.notifier.Dispatch(models.NotificationIntent{
		Recipients: recipients,
		Subject:    "New woreda requested",
		HTMLBody: fmt.Sprintf(
			"<p>%s registered under a woreda that is not in the list yet: <b>%s</b>.</p><p>Review the request from the admin dashboard.</p>",
			user.FullName, *user.CustomWoredaName),
	})
}

// Login authenticates credentials and returns a signed token. Inactive and
// must-change-password accounts still receive a token; the account-state
// flags tell the client which gate applies.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "please provide an email and password")
	}

	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	return s.issueToken(ctx, user)
}

// Me returns the authenticated user's record.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return user, nil
}

// Activate completes first login for a provisioned account: the user sets a
// real password, the account turns active and the change-password flag
// clears.
func (s *AuthService) Activate(ctx context.Context, userID string, req models.ActivateRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activation payload")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.Activate(ctx, user.ID, string(hash)); err != nil {
		return nil, fmt.Errorf("activate account: %w", err)
	}

	user.IsActive = true
	user.MustChangePassword = false
	return s.issueToken(ctx, user)
}

// UpdateDetails edits the authenticated user's profile fields.
func (s *AuthService) UpdateDetails(ctx context.Context, userID string, req models.UpdateDetailsRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}

	user.FullName = req.FullName
	user.Email = strings.ToLower(strings.TrimSpace(req.Email))
	user.Phone = req.Phone
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// UpdatePassword changes the password after verifying the current one.
func (s *AuthService) UpdatePassword(ctx context.Context, userID string, req models.UpdatePasswordRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid password payload")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	return s.issueToken(ctx, user)
}

// ForgotPassword issues a reset token and mails the reset link. Only the
// SHA-256 of the token is stored; the raw token travels in the mail alone.
func (s *AuthService) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid email")
	}

	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "there is no user with that email")
		}
		return fmt.Errorf("find user by email: %w", err)
	}

	rawToken, err := randomToken(20)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	tokenHash := hashToken(rawToken)
	expiresAt := time.Now().UTC().Add(s.config.ResetTokenTTL)

	if err := s.repo.SetResetToken(ctx, user.ID, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password/%s", s.config.FrontendURL, rawToken)
	if s.notifier != nil {
		s.notifier.Dispatch(models.NotificationIntent{
			Recipients: []models.Recipient{{UserID: user.ID, Email: user.Email}},
			Subject:    "Password reset request",
			HTMLBody: fmt.Sprintf(
				"<p>You requested a password reset.</p><p><a href=%q>Reset your password</a></p><p>The link expires in %s.</p>",
				resetURL, s.config.ResetTokenTTL),
		})
	}
	return nil
}

// ResetPassword completes the forgot-password flow with the mailed token.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken string, req models.ResetPasswordRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid password payload")
	}

	user, err := s.repo.FindByResetToken(ctx, hashToken(rawToken), time.Now().UTC())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid or expired reset token")
		}
		return nil, fmt.Errorf("find user by reset token: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	if err := s.repo.ClearResetToken(ctx, user.ID); err != nil {
		s.logger.Warn("failed to clear reset token", zap.Error(err))
	}
	return s.issueToken(ctx, user)
}

// ParseToken validates a signed token and returns its claims.
func (s *AuthService) ParseToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.config.TokenSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	return claims, nil
}

func (s *AuthService) issueToken(ctx context.Context, user *models.User) (*models.AuthResponse, error) {
	now := time.Now().UTC()
	claims := models.JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenExpiry)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.TokenSecret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &models.AuthResponse{
		Token:                  token,
		User:                   userInfo(user),
		RequiresActivation:     !user.IsActive,
		RequiresPasswordChange: user.MustChangePassword,
	}, nil
}

func userInfo(user *models.User) models.UserInfo {
	return models.UserInfo{
		ID:         user.ID,
		Email:      user.Email,
		FullName:   user.FullName,
		Role:       user.Role,
		Woreda:     user.Woreda,
		Department: user.Department,
	}
}

func randomToken(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
