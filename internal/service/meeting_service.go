package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yegara-dev/community-api/internal/models"
	"github.com/yegara-dev/community-api/internal/scope"
	"github.com/yegara-dev/community-api/internal/woreda"
	appErrors "github.com/yegara-dev/community-api/pkg/errors"
)

type meetingRepository interface {
	Create(ctx context.Context, meeting *models.Meeting) error
	FindByID(ctx context.Context, id string) (*models.Meeting, error)
	List(ctx context.Context, woredaPattern string, q models.ListQuery) ([]models.Meeting, int, error)
	Update(ctx context.Context, meeting *models.Meeting, replaceParticipants bool) error
	Delete(ctx context.Context, id string) error
}

type meetingUserRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	FindByEmails(ctx context.Context, emails []string) ([]models.User, error)
}

// CreateMeetingRequest is the meeting scheduling payload. Participants are
// an explicit email list plus an optional role whose users in the meeting's
// woreda are all invited.
type CreateMeetingRequest struct {
	Title             string          `json:"title" validate:"required"`
	Description       *string         `json:"description"`
	MeetingLink       string          `json:"meetingLink" validate:"required,url"`
	ScheduledAt       time.Time       `json:"scheduledAt" validate:"required"`
	Woreda            string          `json:"woreda"`
	ParticipantEmails []string        `json:"participantEmails"`
	InviteRole        models.UserRole `json:"inviteRole"`
}

// UpdateMeetingRequest carries a partial meeting edit.
type UpdateMeetingRequest struct {
	Title       *string               `json:"title"`
	Description *string               `json:"description"`
	MeetingLink *string               `json:"meetingLink"`
	ScheduledAt *time.Time            `json:"scheduledAt"`
	Status      *models.MeetingStatus `json:"status"`
}

// MeetingService schedules virtual meetings and resolves their invitees.
type MeetingService struct {
	repo      meetingRepository
	users     meetingUserRepository
	notifier  notificationDispatcher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMeetingService constructs a MeetingService instance.
func NewMeetingService(repo meetingRepository, users meetingUserRepository, notifier notificationDispatcher, validate *validator.Validate, logger *zap.Logger) *MeetingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MeetingService{repo: repo, users: users, notifier: notifier, validator: validate, logger: logger}
}

// Create schedules a meeting. The participant set is the union of the
// explicit email list and all users holding the invite role in the meeting's
// woreda, deduplicated by user identity.
func (s *MeetingService) Create(ctx context.Context, actor *models.User, req CreateMeetingRequest) (*models.Meeting, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid meeting payload")
	}

	meetingWoreda := req.Woreda
	if meetingWoreda == "" {
		meetingWoreda = actor.Woreda
	}
	if err := scope.CanAccessWoreda(actor, meetingWoreda); err != nil {
		return nil, err
	}

	participants, err := s.resolveParticipants(ctx, meetingWoreda, req.ParticipantEmails, req.InviteRole)
	if err != nil {
		return nil, err
	}

	meeting := &models.Meeting{
		Title:        req.Title,
		Description:  req.Description,
		MeetingLink:  req.MeetingLink,
		ScheduledAt:  req.ScheduledAt,
		Woreda:       meetingWoreda,
		CreatedBy:    actor.ID,
		Status:       models.MeetingScheduled,
		Participants: participants,
	}
	if err := s.repo.Create(ctx, meeting); err != nil {
		return nil, fmt.Errorf("create meeting: %w", err)
	}

	s.sendInvites(meeting)

	s.logger.Info("meeting scheduled",
		zap.String("meeting_id", meeting.ID),
		zap.Int("participants", len(participants)))
	return meeting, nil
}

// List returns meetings visible to the actor. Woreda admins are bounded to
// their district.
func (s *MeetingService) List(ctx context.Context, actor *models.User, q models.ListQuery) ([]models.Meeting, int, error) {
	sc, err := scope.ForList(actor, scope.KindMeetings)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, sc.WoredaPattern, q)
}

// Get returns one meeting with its participant list.
func (s *MeetingService) Get(ctx context.Context, actor *models.User, id string) (*models.Meeting, error) {
	meeting, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return nil, fmt.Errorf("find meeting by id: %w", err)
	}
	if actor.Role == models.RoleWoredaAdmin && !woreda.Same(meeting.Woreda, actor.Woreda) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "meeting is outside your woreda")
	}
	return meeting, nil
}

// Update applies a partial edit to a meeting.
func (s *MeetingService) Update(ctx context.Context, actor *models.User, id string, req UpdateMeetingRequest) (*models.Meeting, error) {
	meeting, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		meeting.Title = *req.Title
	}
	if req.Description != nil {
		meeting.Description = req.Description
	}
	if req.MeetingLink != nil {
		meeting.MeetingLink = *req.MeetingLink
	}
	if req.ScheduledAt != nil {
		meeting.ScheduledAt = *req.ScheduledAt
	}
	if req.Status != nil {
		meeting.Status = *req.Status
	}

	if err := s.repo.Update(ctx, meeting, false); err != nil {
		return nil, fmt.Errorf("update meeting: %w", err)
	}
	return meeting, nil
}

// Delete removes a meeting and its participant rows.
func (s *MeetingService) Delete(ctx context.Context, actor *models.User, id string) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	return nil
}

// resolveParticipants builds the deduplicated invite set. Emails that match
// a known user carry that user's identity; unknown emails are invited as
// bare addresses. Two entries naming the same user collapse to one.
func (s *MeetingService) resolveParticipants(ctx context.Context, meetingWoreda string, emails []string, inviteRole models.UserRole) ([]models.MeetingParticipant, error) {
	seenUsers := make(map[string]bool)
	seenEmails := make(map[string]bool)
	var participants []models.MeetingParticipant

	add := func(userID *string, email string, role models.UserRole) {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			return
		}
		if userID != nil {
			if seenUsers[*userID] {
				return
			}
			seenUsers[*userID] = true
		} else if seenEmails[email] {
			return
		}
		seenEmails[email] = true
		participants = append(participants, models.MeetingParticipant{UserID: userID, Email: email, Role: role})
	}

	if len(emails) > 0 {
		known, err := s.users.FindByEmails(ctx, emails)
		if err != nil {
			return nil, fmt.Errorf("resolve participant emails: %w", err)
		}
		byEmail := make(map[string]*models.User, len(known))
		for i := range known {
			byEmail[strings.ToLower(known[i].Email)] = &known[i]
		}
		for _, email := range emails {
			if user, ok := byEmail[strings.ToLower(strings.TrimSpace(email))]; ok {
				id := user.ID
				add(&id, user.Email, user.Role)
			} else {
				add(nil, email, "")
			}
		}
	}

	if inviteRole != "" {
		if !inviteRole.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown invite role")
		}
		roleUsers, err := s.users.List(ctx, models.UserFilter{
			Role:          &inviteRole,
			WoredaPattern: woreda.MatchPattern(meetingWoreda),
			ActiveOnly:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("resolve invite role users: %w", err)
		}
		for i := range roleUsers {
			id := roleUsers[i].ID
			add(&id, roleUsers[i].Email, roleUsers[i].Role)
		}
	}

	return participants, nil
}

func (s *MeetingService) sendInvites(meeting *models.Meeting) {
	if s.notifier == nil || len(meeting.Participants) == 0 {
		return
	}
	recipients := make([]models.Recipient, 0, len(meeting.Participants))
	for _, p := range meeting.Participants {
		recipient := models.Recipient{Email: p.Email}
		if p.UserID != nil {
			recipient.UserID = *p.UserID
		}
		recipients = append(recipients, recipient)
	}
	s.notifier.Dispatch(models.NotificationIntent{
		Recipients: recipients,
		Subject:    fmt.Sprintf("Meeting invitation: %s", meeting.Title),
		HTMLBody: fmt.Sprintf("<p>You are invited to <b>%s</b> on %s.</p><p><a href=%q>Join the meeting</a></p>",
			meeting.Title, meeting.ScheduledAt.Format("Jan 2, 2006 15:04"), meeting.MeetingLink),
		Push: &models.PushEvent{
			Type:       "meeting_invite",
			Message:    fmt.Sprintf("Invited to %s", meeting.Title),
			ResourceID: meeting.ID,
		},
	})
}
