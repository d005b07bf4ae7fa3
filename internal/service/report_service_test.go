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

type reportRepoStub struct {
	reports map[string]*models.Report
	updates map[string][]models.ReportUpdate
}

func newReportRepoStub() *reportRepoStub {
	return &reportRepoStub{
		reports: map[string]*models.Report{},
		updates: map[string][]models.ReportUpdate{},
	}
}

func (r *reportRepoStub) Create(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	report.CreatedAt = time.Now().UTC()
	clone := *report
	r.reports[report.ID] = &clone
	return nil
}

func (r *reportRepoStub) FindByID(ctx context.Context, id string) (*models.Report, error) {
	report, ok := r.reports[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *report
	clone.Updates = append([]models.ReportUpdate(nil), r.updates[id]...)
	return &clone, nil
}

func (r *reportRepoStub) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error) {
	var out []models.Report
	for _, report := range r.reports {
		if filter.ResidentID != "" && report.ResidentID != filter.ResidentID {
			continue
		}
		if filter.Department != nil && report.Department != *filter.Department {
			continue
		}
		out = append(out, *report)
	}
	return out, len(out), nil
}

func (r *reportRepoStub) Update(ctx context.Context, report *models.Report) error {
	if _, ok := r.reports[report.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *report
	r.reports[report.ID] = &clone
	return nil
}

func (r *reportRepoStub) AppendUpdate(ctx context.Context, update *models.ReportUpdate) error {
	if update.ID == "" {
		update.ID = uuid.NewString()
	}
	update.CreatedAt = time.Now().UTC()
	r.updates[update.ReportID] = append(r.updates[update.ReportID], *update)
	return nil
}

func (r *reportRepoStub) Delete(ctx context.Context, id string) error {
	delete(r.reports, id)
	delete(r.updates, id)
	return nil
}

func (r *reportRepoStub) ListByWoredaPattern(ctx context.Context, pattern, exact string) ([]models.Report, error) {
	var out []models.Report
	for _, report := range r.reports {
		if report.Woreda == exact {
			out = append(out, *report)
		}
	}
	return out, nil
}

func (r *reportRepoStub) ListByDepartment(ctx context.Context, department models.Department) ([]models.Report, error) {
	var out []models.Report
	for _, report := range r.reports {
		if report.Department == department {
			out = append(out, *report)
		}
	}
	return out, nil
}

type userLookupStub struct {
	users map[string]*models.User
}

func newUserLookupStub(users ...*models.User) *userLookupStub {
	stub := &userLookupStub{users: map[string]*models.User{}}
	for _, u := range users {
		stub.users[u.ID] = u
	}
	return stub
}

func (s *userLookupStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (s *userLookupStub) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	var out []models.User
	for _, user := range s.users {
		if filter.Role != nil && user.Role != *filter.Role {
			continue
		}
		if filter.Department != nil && (user.Department == nil || *user.Department != *filter.Department) {
			continue
		}
		if filter.ActiveOnly && !user.IsActive {
			continue
		}
		out = append(out, *user)
	}
	return out, nil
}

func (s *userLookupStub) FindByEmails(ctx context.Context, emails []string) ([]models.User, error) {
	var out []models.User
	for _, email := range emails {
		for _, user := range s.users {
			if user.Email == email {
				out = append(out, *user)
			}
		}
	}
	return out, nil
}

type notifierStub struct {
	intents []models.NotificationIntent
}

func (n *notifierStub) Dispatch(intent models.NotificationIntent) {
	n.intents = append(n.intents, intent)
}

func testResident() *models.User {
	return &models.User{
		ID:       "resident-1",
		Email:    "resident@example.com",
		FullName: "Abebe Kebede",
		Role:     models.RoleResident,
		Woreda:   "Woreda 1",
		IsActive: true,
	}
}

func testOfficer(department models.Department) *models.User {
	return &models.User{
		ID:         "officer-1",
		Email:      "officer@example.com",
		FullName:   "Sara Tadesse",
		Role:       models.RoleOfficer,
		Woreda:     "Woreda 1",
		Department: &department,
		IsActive:   true,
	}
}

func newReportServiceForTest(t *testing.T, users ...*models.User) (*ReportService, *reportRepoStub, *notifierStub) {
	t.Helper()
	repo := newReportRepoStub()
	notifier := &notifierStub{}
	svc := NewReportService(repo, newUserLookupStub(users...), notifier, nil, nil, zap.NewNop())
	return svc, repo, notifier
}

func TestReportServiceCreateDerivesDepartment(t *testing.T) {
	resident := testResident()
	officer := testOfficer(models.DepartmentWater)
	svc, repo, notifier := newReportServiceForTest(t, resident, officer)

	report, err := svc.Create(context.Background(), resident, CreateReportRequest{
		Title:       "Broken water pipe",
		Description: "Pipe burst on the main road",
		Category:    models.CategoryWater,
	})
	require.NoError(t, err)

	assert.Equal(t, models.DepartmentWater, report.Department)
	assert.Equal(t, models.StatusPending, report.Status)
	assert.Equal(t, models.PriorityMedium, report.Priority)
	assert.Equal(t, "Woreda 1", report.Woreda)

	require.Len(t, report.Updates, 1)
	assert.Equal(t, "Report submitted", report.Updates[0].Message)

	stored, err := repo.FindByID(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DepartmentWater, stored.Department)

	require.Len(t, notifier.intents, 1)
	require.Len(t, notifier.intents[0].Recipients, 1)
	assert.Equal(t, officer.Email, notifier.intents[0].Recipients[0].Email)
}

func TestReportServiceCreateUnknownCategoryFallsBack(t *testing.T) {
	resident := testResident()
	svc, _, _ := newReportServiceForTest(t, resident)

	report, err := svc.Create(context.Background(), resident, CreateReportRequest{
		Title:       "Stray dogs",
		Description: "Pack of stray dogs near the school",
		Category:    "Wildlife",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DepartmentOther, report.Department)
}

func TestReportServiceCreateRequiresWoreda(t *testing.T) {
	resident := testResident()
	resident.Woreda = ""
	svc, _, _ := newReportServiceForTest(t, resident)

	_, err := svc.Create(context.Background(), resident, CreateReportRequest{
		Title:       "No district",
		Description: "Missing woreda",
		Category:    models.CategoryRoad,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "woreda is required")
}

func TestReportServiceUpdateStatusStampsResolvedAtOnce(t *testing.T) {
	resident := testResident()
	officer := testOfficer(models.DepartmentWater)
	svc, repo, notifier := newReportServiceForTest(t, resident, officer)

	report, err := svc.Create(context.Background(), resident, CreateReportRequest{
		Title:       "Leaking hydrant",
		Description: "Hydrant leaking for days",
		Category:    models.CategoryWater,
	})
	require.NoError(t, err)
	notifier.intents = nil

	inProgress := models.StatusInProgress
	updated, err := svc.Update(context.Background(), officer, report.ID, UpdateReportRequest{Status: &inProgress})
	require.NoError(t, err)
	assert.Nil(t, updated.ResolvedAt)

	resolved := models.StatusResolved
	updated, err = svc.Update(context.Background(), officer, report.ID, UpdateReportRequest{
		Status:  &resolved,
		Message: "Pipe replaced",
	})
	require.NoError(t, err)
	require.NotNil(t, updated.ResolvedAt)

	stored, err := repo.FindByID(context.Background(), report.ID)
	require.NoError(t, err)
	require.Len(t, stored.Updates, 3)
	assert.Equal(t, "Pipe replaced", stored.Updates[2].Message)

	// Both status changes notified the resident.
	require.Len(t, notifier.intents, 2)
	assert.Equal(t, resident.Email, notifier.intents[1].Recipients[0].Email)
	require.NotNil(t, notifier.intents[1].Push)
	assert.Equal(t, "report_status", notifier.intents[1].Push.Type)
}

func TestReportServiceUpdateRejectsTerminalReport(t *testing.T) {
	resident := testResident()
	officer := testOfficer(models.DepartmentWater)
	svc, _, _ := newReportServiceForTest(t, resident, officer)

	report, err := svc.Create(context.Background(), resident, CreateReportRequest{
		Title:       "Pothole",
		Description: "Deep pothole",
		Category:    models.CategoryWater,
	})
	require.NoError(t, err)

	resolved := models.StatusResolved
	_, err = svc.Update(context.Background(), officer, report.ID, UpdateReportRequest{Status: &resolved})
	require.NoError(t, err)

	newTitle := "Still a pothole"
	_, err = svc.Update(context.Background(), officer, report.ID, UpdateReportRequest{Title: &newTitle})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be modified")
}

func TestReportServiceResidentCannotTriage(t *testing.T) {
	resident := testResident()
	svc, _, _ := newReportServiceForTest(t, resident)

	report, err := svc.Create(context.Background(), resident, CreateReportRequest{
		Title:       "Blackout",
		Description: "No power since yesterday",
		Category:    models.CategoryElectricity,
	})
	require.NoError(t, err)

	high := models.PriorityHigh
	_, err = svc.Update(context.Background(), resident, report.ID, UpdateReportRequest{Priority: &high})
	require.Error(t, err)

	// The narrative stays editable.
	newDescription := "No power since two days"
	updated, err := svc.Update(context.Background(), resident, report.ID, UpdateReportRequest{Description: &newDescription})
	require.NoError(t, err)
	assert.Equal(t, newDescription, updated.Description)
}

func TestReportServiceCategoryChangeRederivesDepartment(t *testing.T) {
	resident := testResident()
	officer := testOfficer(models.DepartmentWater)
	svc, _, _ := newReportServiceForTest(t, resident, officer)

	report, err := svc.Create(context.Background(), resident, CreateReportRequest{
		Title:       "Misc issue",
		Description: "Filed under the wrong category",
		Category:    models.CategoryWater,
	})
	require.NoError(t, err)

	road := models.CategoryRoad
	updated, err := svc.Update(context.Background(), officer, report.ID, UpdateReportRequest{Category: &road})
	require.NoError(t, err)
	assert.Equal(t, models.DepartmentRoad, updated.Department)
}

func TestReportServiceDistrictListingsDenyResidents(t *testing.T) {
	resident := testResident()
	officer := testOfficer(models.DepartmentWater)
	svc, _, _ := newReportServiceForTest(t, resident, officer)

	_, err := svc.Create(context.Background(), resident, CreateReportRequest{
		Title:       "Burst main",
		Description: "Water flooding the street",
		Category:    models.CategoryWater,
	})
	require.NoError(t, err)

	// Residents never see the district-wide listings, not even their own.
	_, err = svc.ListByWoreda(context.Background(), resident, resident.Woreda)
	require.Error(t, err)

	_, err = svc.ListByDepartment(context.Background(), resident, models.DepartmentWater)
	require.Error(t, err)

	// Officers read their own department, nothing beyond it.
	reports, err := svc.ListByDepartment(context.Background(), officer, models.DepartmentWater)
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	_, err = svc.ListByDepartment(context.Background(), officer, models.DepartmentRoad)
	require.Error(t, err)

	// District admins stay inside their own woreda.
	admin := testWoredaAdmin()
	reports, err = svc.ListByWoreda(context.Background(), admin, admin.Woreda)
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	_, err = svc.ListByWoreda(context.Background(), admin, "Woreda 9")
	require.Error(t, err)
}

func TestReportServiceAddUpdateKeepsCurrentStatus(t *testing.T) {
	resident := testResident()
	officer := testOfficer(models.DepartmentWater)
	svc, repo, _ := newReportServiceForTest(t, resident, officer)

	report, err := svc.Create(context.Background(), resident, CreateReportRequest{
		Title:       "Dry tap",
		Description: "No water supply on the block",
		Category:    models.CategoryWater,
	})
	require.NoError(t, err)

	// A progress note without a status change still lands on the timeline,
	// stamped with the report's current status.
	updated, err := svc.AddUpdate(context.Background(), officer, report.ID, "", "Crew dispatched, repair expected in two days")
	require.NoError(t, err)
	require.Len(t, updated.Updates, 2)
	assert.Equal(t, models.StatusPending, updated.Updates[1].Status)
	assert.Equal(t, "Crew dispatched, repair expected in two days", updated.Updates[1].Message)
	assert.Equal(t, officer.ID, updated.Updates[1].UpdatedBy)
	assert.Equal(t, models.StatusPending, updated.Status)

	stored, err := repo.FindByID(context.Background(), report.ID)
	require.NoError(t, err)
	require.Len(t, stored.Updates, 2)

	_, err = svc.AddUpdate(context.Background(), officer, report.ID, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message is required")
}
