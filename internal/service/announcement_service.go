package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yegara-dev/community-api/internal/models"
	"github.com/yegara-dev/community-api/internal/woreda"
	appErrors "github.com/yegara-dev/community-api/pkg/errors"
)

type announcementRepository interface {
	Create(ctx context.Context, a *models.Announcement) error
	FindByID(ctx context.Context, id string) (*models.Announcement, error)
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, error)
	Delete(ctx context.Context, id string) error
}

type announcementUserRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
}

// CreateAnnouncementRequest is the broadcast payload. An empty audience
// defaults to everyone.
type CreateAnnouncementRequest struct {
	Title         string   `json:"title" validate:"required"`
	Message       string   `json:"message" validate:"required"`
	Category      string   `json:"category"`
	AudienceRoles []string `json:"audienceRoles"`
	Woreda        *string  `json:"woreda"`
}

// AnnouncementService publishes targeted broadcasts and fans them out to
// the matching audience.
type AnnouncementService struct {
	repo      announcementRepository
	users     announcementUserRepository
	notifier  notificationDispatcher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAnnouncementService constructs an AnnouncementService instance.
func NewAnnouncementService(repo announcementRepository, users announcementUserRepository, notifier notificationDispatcher, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AnnouncementService{repo: repo, users: users, notifier: notifier, validator: validate, logger: logger}
}

// Create publishes an announcement and notifies every user in its audience.
// Officers and woreda admins broadcast inside their own district only.
func (s *AnnouncementService) Create(ctx context.Context, actor *models.User, req CreateAnnouncementRequest) (*models.Announcement, error) {
	if actor.Role == models.RoleResident {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized to create announcements")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}

	for _, role := range req.AudienceRoles {
		if role != models.AudienceAll && !models.UserRole(role).Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown audience role %q", role))
		}
	}

	targetWoreda := req.Woreda
	if actor.Role != models.RoleSubcityAdmin {
		if targetWoreda == nil {
			targetWoreda = &actor.Woreda
		} else if !woreda.Same(*targetWoreda, actor.Woreda) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot announce outside your woreda")
		}
	}

	announcement := &models.Announcement{
		Title:         req.Title,
		Message:       req.Message,
		Category:      req.Category,
		AudienceRoles: req.AudienceRoles,
		Woreda:        targetWoreda,
		CreatedBy:     actor.ID,
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, fmt.Errorf("create announcement: %w", err)
	}

	s.fanOut(ctx, announcement)

	s.logger.Info("announcement published",
		zap.String("announcement_id", announcement.ID),
		zap.Strings("audience", announcement.AudienceRoles))
	return announcement, nil
}

// List returns announcements visible to the actor: audience role match plus
// district scoping for non-admin viewers.
func (s *AnnouncementService) List(ctx context.Context, actor *models.User) ([]models.Announcement, error) {
	filter := models.AnnouncementFilter{}
	if actor.Role != models.RoleSubcityAdmin {
		filter.Role = actor.Role
		filter.WoredaPattern = woreda.MatchPattern(actor.Woreda)
	}
	announcements, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return announcements, nil
}

// Get returns one announcement subject to audience visibility.
func (s *AnnouncementService) Get(ctx context.Context, actor *models.User, id string) (*models.Announcement, error) {
	announcement, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, fmt.Errorf("find announcement by id: %w", err)
	}
	if actor.Role != models.RoleSubcityAdmin && !announcement.VisibleTo(actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized to access this announcement")
	}
	return announcement, nil
}

// Delete removes an announcement. Only its creator or a sub-city admin may
// delete.
func (s *AnnouncementService) Delete(ctx context.Context, actor *models.User, id string) error {
	announcement, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return fmt.Errorf("find announcement by id: %w", err)
	}
	if actor.Role != models.RoleSubcityAdmin && announcement.CreatedBy != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "not authorized to delete this announcement")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	return nil
}

// fanOut resolves the audience and dispatches one intent covering all of
// them. Role wildcard covers every role; a woreda scope bounds the user set.
func (s *AnnouncementService) fanOut(ctx context.Context, announcement *models.Announcement) {
	if s.notifier == nil {
		return
	}

	roles := announcement.AudienceRoles
	wildcard := false
	for _, r := range roles {
		if r == models.AudienceAll {
			wildcard = true
			break
		}
	}

	filter := models.UserFilter{ActiveOnly: true}
	if announcement.Woreda != nil {
		filter.WoredaPattern = woreda.MatchPattern(*announcement.Woreda)
	}

	var audience []models.User
	if wildcard {
		users, err := s.users.List(ctx, filter)
		if err != nil {
			s.logger.Warn("failed to resolve announcement audience", zap.Error(err))
			return
		}
		audience = users
	} else {
		for _, raw := range roles {
			role := models.UserRole(raw)
			roleFilter := filter
			roleFilter.Role = &role
			users, err := s.users.List(ctx, roleFilter)
			if err != nil {
				s.logger.Warn("failed to resolve announcement audience",
					zap.String("role", raw), zap.Error(err))
				continue
			}
			audience = append(audience, users...)
		}
	}
	if len(audience) == 0 {
		return
	}

	seen := make(map[string]bool, len(audience))
	recipients := make([]models.Recipient, 0, len(audience))
	for _, user := range audience {
		if seen[user.ID] {
			continue
		}
		seen[user.ID] = true
		recipients = append(recipients, models.Recipient{UserID: user.ID, Email: user.Email})
	}

	s.notifier.Dispatch(models.NotificationIntent{
		Recipients: recipients,
		Subject:    fmt.Sprintf("Announcement: %s", announcement.Title),
		HTMLBody:   fmt.Sprintf("<p><b>%s</b></p><p>%s</p>", announcement.Title, announcement.Message),
		Push: &models.PushEvent{
			Type:       "announcement",
			Message:    announcement.Title,
			ResourceID: announcement.ID,
		},
	})
}
