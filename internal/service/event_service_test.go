package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yegara-dev/community-api/internal/models"
)

type eventRepoStub struct {
	events map[string]*models.Event
}

func newEventRepoStub() *eventRepoStub {
	return &eventRepoStub{events: map[string]*models.Event{}}
}

func (r *eventRepoStub) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	clone := *event
	r.events[event.ID] = &clone
	return nil
}

func (r *eventRepoStub) FindByID(ctx context.Context, id string) (*models.Event, error) {
	event, ok := r.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *event
	clone.AttendeeIDs = append([]string(nil), event.AttendeeIDs...)
	return &clone, nil
}

func (r *eventRepoStub) List(ctx context.Context, q models.ListQuery) ([]models.Event, int, error) {
	var out []models.Event
	for _, event := range r.events {
		out = append(out, *event)
	}
	return out, len(out), nil
}

func (r *eventRepoStub) ListByWoredaPattern(ctx context.Context, pattern, exact string) ([]models.Event, error) {
	var out []models.Event
	for _, event := range r.events {
		if event.Woreda == exact {
			out = append(out, *event)
		}
	}
	return out, nil
}

func (r *eventRepoStub) Update(ctx context.Context, event *models.Event) error {
	if _, ok := r.events[event.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *event
	r.events[event.ID] = &clone
	return nil
}

func (r *eventRepoStub) Delete(ctx context.Context, id string) error {
	delete(r.events, id)
	return nil
}

func (r *eventRepoStub) AddAttendee(ctx context.Context, eventID, userID string) error {
	event, ok := r.events[eventID]
	if !ok {
		return sql.ErrNoRows
	}
	event.AttendeeIDs = append(event.AttendeeIDs, userID)
	return nil
}

func testWoredaAdmin() *models.User {
	return &models.User{
		ID:       "admin-1",
		Email:    "admin@example.com",
		FullName: "Meron Haile",
		Role:     models.RoleWoredaAdmin,
		Woreda:   "Woreda 1",
		IsActive: true,
	}
}

func newEventServiceForTest(t *testing.T) (*EventService, *eventRepoStub, *notifierStub) {
	t.Helper()
	repo := newEventRepoStub()
	notifier := &notifierStub{}
	svc := NewEventService(repo, notifier, nil, zap.NewNop())
	return svc, repo, notifier
}

func createTestEvent(t *testing.T, svc *EventService, admin *models.User, maxAttendees *int) *models.Event {
	t.Helper()
	event, err := svc.Create(context.Background(), admin, CreateEventRequest{
		Title:        "Community cleanup",
		Date:         time.Now().Add(48 * time.Hour),
		Location:     "Main square",
		MaxAttendees: maxAttendees,
	})
	require.NoError(t, err)
	return event
}

func TestEventServiceCreateDefaultsToUpcoming(t *testing.T) {
	admin := testWoredaAdmin()
	svc, _, _ := newEventServiceForTest(t)

	event := createTestEvent(t, svc, admin, nil)
	assert.Equal(t, models.EventUpcoming, event.Status)
	assert.Equal(t, admin.ID, event.OrganizerID)
	assert.Equal(t, admin.Woreda, event.Woreda)
}

func TestEventServiceCreateOutsideDistrictForbidden(t *testing.T) {
	admin := testWoredaAdmin()
	svc, _, _ := newEventServiceForTest(t)

	_, err := svc.Create(context.Background(), admin, CreateEventRequest{
		Title:    "Out of district",
		Date:     time.Now().Add(24 * time.Hour),
		Location: "Elsewhere",
		Woreda:   "Woreda 9",
	})
	require.Error(t, err)
}

func TestEventServiceRegister(t *testing.T) {
	admin := testWoredaAdmin()
	resident := testResident()
	svc, _, notifier := newEventServiceForTest(t)
	event := createTestEvent(t, svc, admin, nil)

	registered, err := svc.Register(context.Background(), resident, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, registered.AttendeeCount)
	assert.Contains(t, registered.AttendeeIDs, resident.ID)

	require.Len(t, notifier.intents, 1)
	require.NotNil(t, notifier.intents[0].Push)
	assert.Equal(t, "event_registration", notifier.intents[0].Push.Type)
}

func TestEventServiceRegisterTwiceConflicts(t *testing.T) {
	admin := testWoredaAdmin()
	resident := testResident()
	svc, _, _ := newEventServiceForTest(t)
	event := createTestEvent(t, svc, admin, nil)

	_, err := svc.Register(context.Background(), resident, event.ID)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), resident, event.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestEventServiceRegisterFullCapacity(t *testing.T) {
	admin := testWoredaAdmin()
	svc, _, _ := newEventServiceForTest(t)
	one := 1
	event := createTestEvent(t, svc, admin, &one)

	first := &models.User{ID: "resident-a", Email: "a@example.com", Role: models.RoleResident}
	second := &models.User{ID: "resident-b", Email: "b@example.com", Role: models.RoleResident}

	_, err := svc.Register(context.Background(), first, event.ID)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), second, event.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "full capacity")
}

func TestEventServiceRegisterClosedEvent(t *testing.T) {
	admin := testWoredaAdmin()
	resident := testResident()
	svc, _, _ := newEventServiceForTest(t)
	event := createTestEvent(t, svc, admin, nil)

	cancelled := models.EventCancelled
	_, err := svc.Update(context.Background(), admin, event.ID, UpdateEventRequest{Status: &cancelled})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), resident, event.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot register")
}

func TestEventServiceManagePermissions(t *testing.T) {
	admin := testWoredaAdmin()
	resident := testResident()
	svc, _, _ := newEventServiceForTest(t)
	event := createTestEvent(t, svc, admin, nil)

	newTitle := "Renamed"
	_, err := svc.Update(context.Background(), resident, event.ID, UpdateEventRequest{Title: &newTitle})
	require.Error(t, err)

	otherAdmin := &models.User{ID: "admin-2", Role: models.RoleWoredaAdmin, Woreda: "Woreda 2"}
	_, err = svc.Update(context.Background(), otherAdmin, event.ID, UpdateEventRequest{Title: &newTitle})
	require.Error(t, err)

	subcity := &models.User{ID: "subcity-1", Role: models.RoleSubcityAdmin}
	updated, err := svc.Update(context.Background(), subcity, event.ID, UpdateEventRequest{Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
}
