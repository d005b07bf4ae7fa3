package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yegara-dev/community-api/internal/models"
	"github.com/yegara-dev/community-api/internal/scope"
	"github.com/yegara-dev/community-api/internal/woreda"
	appErrors "github.com/yegara-dev/community-api/pkg/errors"
)

type eventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, q models.ListQuery) ([]models.Event, int, error)
	ListByWoredaPattern(ctx context.Context, pattern, exact string) ([]models.Event, error)
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id string) error
	AddAttendee(ctx context.Context, eventID, userID string) error
}

// CreateEventRequest is the event creation payload.
type CreateEventRequest struct {
	Title        string     `json:"title" validate:"required"`
	Description  *string    `json:"description"`
	Date         time.Time  `json:"date" validate:"required"`
	EndDate      *time.Time `json:"endDate"`
	Location     string     `json:"location" validate:"required"`
	Woreda       string     `json:"woreda"`
	Category     *string    `json:"category"`
	MaxAttendees *int       `json:"maxAttendees"`
	Images       []string   `json:"images"`
	MeetingLink  *string    `json:"meetingLink"`
}

// UpdateEventRequest carries a partial event edit.
type UpdateEventRequest struct {
	Title        *string             `json:"title"`
	Description  *string             `json:"description"`
	Date         *time.Time          `json:"date"`
	EndDate      *time.Time          `json:"endDate"`
	Location     *string             `json:"location"`
	Category     *string             `json:"category"`
	MaxAttendees *int                `json:"maxAttendees"`
	Status       *models.EventStatus `json:"status"`
	MeetingLink  *string             `json:"meetingLink"`
}

// EventService manages community events and attendee registration.
type EventService struct {
	repo      eventRepository
	notifier  notificationDispatcher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEventService constructs an EventService instance.
func NewEventService(repo eventRepository, notifier notificationDispatcher, validate *validator.Validate, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EventService{repo: repo, notifier: notifier, validator: validate, logger: logger}
}

// Create publishes a new event. Woreda admins host in their own district.
func (s *EventService) Create(ctx context.Context, actor *models.User, req CreateEventRequest) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}

	eventWoreda := req.Woreda
	if eventWoreda == "" {
		eventWoreda = actor.Woreda
	}
	if err := scope.CanAccessWoreda(actor, eventWoreda); err != nil {
		return nil, err
	}

	event := &models.Event{
		Title:        req.Title,
		Description:  req.Description,
		Date:         req.Date,
		EndDate:      req.EndDate,
		Location:     req.Location,
		OrganizerID:  actor.ID,
		Woreda:       eventWoreda,
		Category:     req.Category,
		MaxAttendees: req.MaxAttendees,
		Status:       models.EventUpcoming,
		Images:       req.Images,
		MeetingLink:  req.MeetingLink,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.logger.Info("event created",
		zap.String("event_id", event.ID),
		zap.String("woreda", event.Woreda))
	return event, nil
}

// List returns events matching the ad-hoc query with total count. Event
// listings are open to every authenticated role.
func (s *EventService) List(ctx context.Context, q models.ListQuery) ([]models.Event, int, error) {
	return s.repo.List(ctx, q)
}

// Get returns one event with its attendee set.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, fmt.Errorf("find event by id: %w", err)
	}
	return event, nil
}

// ListByWoreda returns events of one district, fuzzy-matched on the name.
func (s *EventService) ListByWoreda(ctx context.Context, target string) ([]models.Event, error) {
	return s.repo.ListByWoredaPattern(ctx, woreda.MatchPattern(target), target)
}

// Update applies a partial edit to an event. Only the organizer or an admin
// of the hosting district may edit.
func (s *EventService) Update(ctx context.Context, actor *models.User, id string, req UpdateEventRequest) (*models.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, fmt.Errorf("find event by id: %w", err)
	}
	if err := s.canManage(actor, event); err != nil {
		return nil, err
	}

	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.Description != nil {
		event.Description = req.Description
	}
	if req.Date != nil {
		event.Date = *req.Date
	}
	if req.EndDate != nil {
		event.EndDate = req.EndDate
	}
	if req.Location != nil {
		event.Location = *req.Location
	}
	if req.Category != nil {
		event.Category = req.Category
	}
	if req.MaxAttendees != nil {
		event.MaxAttendees = req.MaxAttendees
	}
	if req.MeetingLink != nil {
		event.MeetingLink = req.MeetingLink
	}
	if req.Status != nil {
		event.Status = *req.Status
	}

	if err := s.repo.Update(ctx, event); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return event, nil
}

// Delete removes an event and its registrations.
func (s *EventService) Delete(ctx context.Context, actor *models.User, id string) error {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return fmt.Errorf("find event by id: %w", err)
	}
	if err := s.canManage(actor, event); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// Register adds the actor to an event's attendee set. Registration fails on
// closed events, duplicate registration and full capacity.
func (s *EventService) Register(ctx context.Context, actor *models.User, id string) (*models.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, fmt.Errorf("find event by id: %w", err)
	}

	if !event.Status.OpenForRegistration() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot register for a %s event", event.Status))
	}
	for _, attendee := range event.AttendeeIDs {
		if attendee == actor.ID {
			return nil, appErrors.Clone(appErrors.ErrConflict, "already registered for this event")
		}
	}
	if event.MaxAttendees != nil && len(event.AttendeeIDs) >= *event.MaxAttendees {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event is at full capacity")
	}

	if err := s.repo.AddAttendee(ctx, event.ID, actor.ID); err != nil {
		return nil, fmt.Errorf("register attendee: %w", err)
	}
	event.AttendeeIDs = append(event.AttendeeIDs, actor.ID)
	event.AttendeeCount = len(event.AttendeeIDs)

	if s.notifier != nil {
		s.notifier.Dispatch(models.NotificationIntent{
			Recipients: []models.Recipient{{UserID: actor.ID, Email: actor.Email}},
			Subject:    fmt.Sprintf("Registration confirmed: %s", event.Title),
			HTMLBody: fmt.Sprintf("<p>You are registered for <b>%s</b> on %s at %s.</p>",
				event.Title, event.Date.Format("Jan 2, 2006 15:04"), event.Location),
			Push: &models.PushEvent{
				Type:       "event_registration",
				Message:    fmt.Sprintf("Registered for %s", event.Title),
				ResourceID: event.ID,
			},
		})
	}
	return event, nil
}

func (s *EventService) canManage(actor *models.User, event *models.Event) error {
	if actor.Role == models.RoleSubcityAdmin || event.OrganizerID == actor.ID {
		return nil
	}
	if actor.Role == models.RoleWoredaAdmin && woreda.Same(event.Woreda, actor.Woreda) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not authorized to manage this event")
}
