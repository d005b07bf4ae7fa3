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

type meetingRepoStub struct {
	meetings map[string]*models.Meeting
}

func newMeetingRepoStub() *meetingRepoStub {
	return &meetingRepoStub{meetings: map[string]*models.Meeting{}}
}

func (r *meetingRepoStub) Create(ctx context.Context, meeting *models.Meeting) error {
	if meeting.ID == "" {
		meeting.ID = uuid.NewString()
	}
	meeting.CreatedAt = time.Now().UTC()
	clone := *meeting
	r.meetings[meeting.ID] = &clone
	return nil
}

func (r *meetingRepoStub) FindByID(ctx context.Context, id string) (*models.Meeting, error) {
	meeting, ok := r.meetings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *meeting
	return &clone, nil
}

func (r *meetingRepoStub) List(ctx context.Context, woredaPattern string, q models.ListQuery) ([]models.Meeting, int, error) {
	var out []models.Meeting
	for _, meeting := range r.meetings {
		out = append(out, *meeting)
	}
	return out, len(out), nil
}

func (r *meetingRepoStub) Update(ctx context.Context, meeting *models.Meeting, replaceParticipants bool) error {
	if _, ok := r.meetings[meeting.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *meeting
	r.meetings[meeting.ID] = &clone
	return nil
}

func (r *meetingRepoStub) Delete(ctx context.Context, id string) error {
	delete(r.meetings, id)
	return nil
}

func newMeetingServiceForTest(t *testing.T, users ...*models.User) (*MeetingService, *meetingRepoStub, *notifierStub) {
	t.Helper()
	repo := newMeetingRepoStub()
	notifier := &notifierStub{}
	svc := NewMeetingService(repo, newUserLookupStub(users...), notifier, nil, zap.NewNop())
	return svc, repo, notifier
}

func TestMeetingServiceCreateDeduplicatesParticipants(t *testing.T) {
	admin := testWoredaAdmin()
	officer := testOfficer(models.DepartmentWater)
	svc, _, notifier := newMeetingServiceForTest(t, admin, officer)

	// The officer is named explicitly and also matched by the invite role;
	// the participant set must carry them once.
	meeting, err := svc.Create(context.Background(), admin, CreateMeetingRequest{
		Title:             "Quarterly review",
		MeetingLink:       "https://meet.example.com/q1",
		ScheduledAt:       time.Now().Add(48 * time.Hour),
		ParticipantEmails: []string{officer.Email, "guest@example.com"},
		InviteRole:        models.RoleOfficer,
	})
	require.NoError(t, err)

	require.Len(t, meeting.Participants, 2)
	byEmail := map[string]models.MeetingParticipant{}
	for _, p := range meeting.Participants {
		byEmail[p.Email] = p
	}
	require.Contains(t, byEmail, officer.Email)
	require.NotNil(t, byEmail[officer.Email].UserID)
	assert.Equal(t, officer.ID, *byEmail[officer.Email].UserID)
	// Unknown emails are invited as bare addresses.
	require.Contains(t, byEmail, "guest@example.com")
	assert.Nil(t, byEmail["guest@example.com"].UserID)

	require.Len(t, notifier.intents, 1)
	assert.Len(t, notifier.intents[0].Recipients, 2)
	assert.Contains(t, notifier.intents[0].Subject, "Quarterly review")
}

func TestMeetingServiceCreateDefaultsToOwnWoreda(t *testing.T) {
	admin := testWoredaAdmin()
	svc, _, _ := newMeetingServiceForTest(t, admin)

	meeting, err := svc.Create(context.Background(), admin, CreateMeetingRequest{
		Title:       "Town hall",
		MeetingLink: "https://meet.example.com/hall",
		ScheduledAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, admin.Woreda, meeting.Woreda)
	assert.Equal(t, models.MeetingScheduled, meeting.Status)
}

func TestMeetingServiceCreateOutsideDistrictForbidden(t *testing.T) {
	admin := testWoredaAdmin()
	svc, _, _ := newMeetingServiceForTest(t, admin)

	_, err := svc.Create(context.Background(), admin, CreateMeetingRequest{
		Title:       "Town hall",
		MeetingLink: "https://meet.example.com/hall",
		ScheduledAt: time.Now().Add(time.Hour),
		Woreda:      "Woreda 9",
	})
	require.Error(t, err)
}

func TestMeetingServiceCreateUnknownInviteRole(t *testing.T) {
	admin := testWoredaAdmin()
	svc, _, _ := newMeetingServiceForTest(t, admin)

	_, err := svc.Create(context.Background(), admin, CreateMeetingRequest{
		Title:       "Town hall",
		MeetingLink: "https://meet.example.com/hall",
		ScheduledAt: time.Now().Add(time.Hour),
		InviteRole:  "mayor",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown invite role")
}

func TestMeetingServiceReadsOpenToResidents(t *testing.T) {
	resident := testResident()
	svc, repo, _ := newMeetingServiceForTest(t, resident)
	repo.meetings["m1"] = &models.Meeting{ID: "m1", Title: "Town hall", Woreda: "Woreda 9"}

	// Any authenticated user may browse meetings, including ones scheduled
	// in other districts.
	meetings, _, err := svc.List(context.Background(), resident, models.ListQuery{})
	require.NoError(t, err)
	assert.Len(t, meetings, 1)

	meeting, err := svc.Get(context.Background(), resident, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Town hall", meeting.Title)
}

func TestMeetingServiceGetOutsideDistrictForbidden(t *testing.T) {
	admin := testWoredaAdmin()
	svc, repo, _ := newMeetingServiceForTest(t, admin)
	repo.meetings["m1"] = &models.Meeting{ID: "m1", Title: "Elsewhere", Woreda: "Woreda 9"}

	_, err := svc.Get(context.Background(), admin, "m1")
	require.Error(t, err)
}

func TestMeetingServiceUpdateStatus(t *testing.T) {
	admin := testWoredaAdmin()
	svc, repo, _ := newMeetingServiceForTest(t, admin)
	repo.meetings["m1"] = &models.Meeting{ID: "m1", Title: "Review", Woreda: admin.Woreda, Status: models.MeetingScheduled}

	status := models.MeetingCancelled
	meeting, err := svc.Update(context.Background(), admin, "m1", UpdateMeetingRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.MeetingCancelled, meeting.Status)
}
