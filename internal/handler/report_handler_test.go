package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yegara-dev/community-api/internal/middleware"
	"github.com/yegara-dev/community-api/internal/models"
	"github.com/yegara-dev/community-api/internal/service"
	"github.com/yegara-dev/community-api/pkg/response"
)

type reportRepoFake struct {
	reports map[string]*models.Report
	updates map[string][]models.ReportUpdate
}

func newReportRepoFake() *reportRepoFake {
	return &reportRepoFake{
		reports: map[string]*models.Report{},
		updates: map[string][]models.ReportUpdate{},
	}
}

func (r *reportRepoFake) Create(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	clone := *report
	r.reports[report.ID] = &clone
	return nil
}

func (r *reportRepoFake) FindByID(ctx context.Context, id string) (*models.Report, error) {
	report, ok := r.reports[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *report
	clone.Updates = append([]models.ReportUpdate(nil), r.updates[id]...)
	return &clone, nil
}

func (r *reportRepoFake) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error) {
	var out []models.Report
	for _, report := range r.reports {
		if filter.ResidentID != "" && report.ResidentID != filter.ResidentID {
			continue
		}
		out = append(out, *report)
	}
	return out, len(out), nil
}

func (r *reportRepoFake) Update(ctx context.Context, report *models.Report) error {
	clone := *report
	r.reports[report.ID] = &clone
	return nil
}

func (r *reportRepoFake) AppendUpdate(ctx context.Context, update *models.ReportUpdate) error {
	if update.ID == "" {
		update.ID = uuid.NewString()
	}
	r.updates[update.ReportID] = append(r.updates[update.ReportID], *update)
	return nil
}

func (r *reportRepoFake) Delete(ctx context.Context, id string) error {
	delete(r.reports, id)
	return nil
}

func (r *reportRepoFake) ListByWoredaPattern(ctx context.Context, pattern, exact string) ([]models.Report, error) {
	return nil, nil
}

func (r *reportRepoFake) ListByDepartment(ctx context.Context, department models.Department) ([]models.Report, error) {
	return nil, nil
}

type userRepoFake struct{}

func (userRepoFake) FindByID(ctx context.Context, id string) (*models.User, error) {
	return nil, sql.ErrNoRows
}

func (userRepoFake) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	return nil, nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func newReportHandlerForTest(t *testing.T) (*ReportHandler, *reportRepoFake) {
	t.Helper()
	repo := newReportRepoFake()
	svc := service.NewReportService(repo, userRepoFake{}, nil, nil, nil, zap.NewNop())
	return NewReportHandler(svc), repo
}

func reportTestResident() *models.User {
	return &models.User{
		ID:       "resident-1",
		Email:    "resident@example.com",
		Role:     models.RoleResident,
		Woreda:   "Woreda 1",
		IsActive: true,
	}
}

func TestReportHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo := newReportHandlerForTest(t)

	payload, _ := json.Marshal(service.CreateReportRequest{
		Title:       "Broken street light",
		Description: "Dark corner at night",
		Category:    models.CategoryElectricity,
	})
	c, w := newGinContext(http.MethodPost, "/reports", payload)
	c.Set(middleware.ContextAccountKey, reportTestResident())

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	require.Len(t, repo.reports, 1)
}

func TestReportHandlerCreateInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newReportHandlerForTest(t)

	c, w := newGinContext(http.MethodPost, "/reports", []byte(`{"title":`))
	c.Set(middleware.ContextAccountKey, reportTestResident())

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerCreateUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newReportHandlerForTest(t)

	c, w := newGinContext(http.MethodPost, "/reports", []byte(`{}`))
	handler.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReportHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newReportHandlerForTest(t)

	c, w := newGinContext(http.MethodGet, "/reports/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	c.Set(middleware.ContextAccountKey, reportTestResident())

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportHandlerListMine(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo := newReportHandlerForTest(t)
	resident := reportTestResident()

	require.NoError(t, repo.Create(context.Background(), &models.Report{
		Title:      "Mine",
		ResidentID: resident.ID,
		Status:     models.StatusPending,
	}))
	require.NoError(t, repo.Create(context.Background(), &models.Report{
		Title:      "Someone else's",
		ResidentID: "resident-2",
		Status:     models.StatusPending,
	}))

	c, w := newGinContext(http.MethodGet, "/reports/my-reports", nil)
	c.Set(middleware.ContextAccountKey, resident)

	handler.ListMine(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Count)
	require.Equal(t, 1, *envelope.Count)
}
