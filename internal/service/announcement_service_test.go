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

type announcementRepoStub struct {
	announcements map[string]*models.Announcement
}

func newAnnouncementRepoStub() *announcementRepoStub {
	return &announcementRepoStub{announcements: map[string]*models.Announcement{}}
}

func (r *announcementRepoStub) Create(ctx context.Context, a *models.Announcement) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()
	clone := *a
	r.announcements[a.ID] = &clone
	return nil
}

func (r *announcementRepoStub) FindByID(ctx context.Context, id string) (*models.Announcement, error) {
	a, ok := r.announcements[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *a
	return &clone, nil
}

func (r *announcementRepoStub) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, error) {
	var out []models.Announcement
	for _, a := range r.announcements {
		if filter.Role != "" && !a.VisibleTo(filter.Role) {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (r *announcementRepoStub) Delete(ctx context.Context, id string) error {
	delete(r.announcements, id)
	return nil
}

func newAnnouncementServiceForTest(t *testing.T, users ...*models.User) (*AnnouncementService, *announcementRepoStub, *notifierStub) {
	t.Helper()
	repo := newAnnouncementRepoStub()
	notifier := &notifierStub{}
	svc := NewAnnouncementService(repo, newUserLookupStub(users...), notifier, nil, zap.NewNop())
	return svc, repo, notifier
}

func TestAnnouncementServiceCreateFansOutToAudience(t *testing.T) {
	admin := testWoredaAdmin()
	resident := testResident()
	officer := testOfficer(models.DepartmentWater)
	svc, _, notifier := newAnnouncementServiceForTest(t, admin, resident, officer)

	announcement, err := svc.Create(context.Background(), admin, CreateAnnouncementRequest{
		Title:         "Water outage",
		Message:       "Maintenance on Saturday",
		AudienceRoles: []string{string(models.RoleResident)},
	})
	require.NoError(t, err)

	// Woreda admins publish into their own district.
	require.NotNil(t, announcement.Woreda)
	assert.Equal(t, admin.Woreda, *announcement.Woreda)

	require.Len(t, notifier.intents, 1)
	require.Len(t, notifier.intents[0].Recipients, 1)
	assert.Equal(t, resident.Email, notifier.intents[0].Recipients[0].Email)
}

func TestAnnouncementServiceCreateWildcardAudience(t *testing.T) {
	admin := testWoredaAdmin()
	resident := testResident()
	officer := testOfficer(models.DepartmentWater)
	svc, _, notifier := newAnnouncementServiceForTest(t, admin, resident, officer)

	_, err := svc.Create(context.Background(), admin, CreateAnnouncementRequest{
		Title:         "Holiday notice",
		Message:       "Offices closed Monday",
		AudienceRoles: []string{models.AudienceAll},
	})
	require.NoError(t, err)

	require.Len(t, notifier.intents, 1)
	assert.Len(t, notifier.intents[0].Recipients, 3)
}

func TestAnnouncementServiceCreateGuards(t *testing.T) {
	admin := testWoredaAdmin()
	svc, _, _ := newAnnouncementServiceForTest(t, admin)

	_, err := svc.Create(context.Background(), testResident(), CreateAnnouncementRequest{
		Title:   "Nope",
		Message: "Residents cannot broadcast",
	})
	require.Error(t, err)

	other := "Woreda 9"
	_, err = svc.Create(context.Background(), admin, CreateAnnouncementRequest{
		Title:   "Elsewhere",
		Message: "Outside own district",
		Woreda:  &other,
	})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), admin, CreateAnnouncementRequest{
		Title:         "Bad audience",
		Message:       "Unknown role",
		AudienceRoles: []string{"mayor"},
	})
	require.Error(t, err)
}

func TestAnnouncementServiceGetVisibility(t *testing.T) {
	resident := testResident()
	svc, repo, _ := newAnnouncementServiceForTest(t, resident)
	repo.announcements["a1"] = &models.Announcement{
		ID:            "a1",
		Title:         "Officer briefing",
		AudienceRoles: []string{string(models.RoleOfficer)},
	}

	_, err := svc.Get(context.Background(), resident, "a1")
	require.Error(t, err)

	subcity := &models.User{ID: "subcity-1", Role: models.RoleSubcityAdmin}
	got, err := svc.Get(context.Background(), subcity, "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)
}

func TestAnnouncementServiceDeleteAuthorOrSubcityOnly(t *testing.T) {
	admin := testWoredaAdmin()
	svc, repo, _ := newAnnouncementServiceForTest(t, admin)
	repo.announcements["a1"] = &models.Announcement{
		ID:            "a1",
		Title:         "Old notice",
		AudienceRoles: []string{models.AudienceAll},
		CreatedBy:     "someone-else",
	}

	err := svc.Delete(context.Background(), admin, "a1")
	require.Error(t, err)

	subcity := &models.User{ID: "subcity-1", Role: models.RoleSubcityAdmin}
	require.NoError(t, svc.Delete(context.Background(), subcity, "a1"))
	assert.Empty(t, repo.announcements)
}
