package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yegara-dev/community-api/internal/middleware"
	"github.com/yegara-dev/community-api/internal/models"
	"github.com/yegara-dev/community-api/internal/service"
	appErrors "github.com/yegara-dev/community-api/pkg/errors"
	"github.com/yegara-dev/community-api/pkg/response"
)

// ReportHandler exposes issue report endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// List godoc
// @Summary List reports in the caller's scope
// @Tags Reports
// @Produce json
// @Param select query string false "Comma-separated projection"
// @Param sort query string false "Sort field, '-' prefix for descending"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	actor, ok := middleware.Account(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	q := models.ParseListQuery(c.Request.URL.Query())

	reports, total, err := h.reports.List(c.Request.Context(), actor, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, reports, len(reports), models.NewPagination(q.Page, q.Limit, total))
}

// ListMine godoc
// @Summary List the caller's own reports
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/my-reports [get]
func (h *ReportHandler) ListMine(c *gin.Context) {
	actor, ok := middleware.Account(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	q := models.ParseListQuery(c.Request.URL.Query())

	reports, total, err := h.reports.ListMine(c.Request.Context(), actor, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, reports, len(reports), models.NewPagination(q.Page, q.Limit, total))
}

// Create godoc
// @Summary File a new report
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body service.CreateReportRequest true "Report payload"
// @Success 201 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	actor, ok := middleware.Account(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.reports.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

// Get godoc
// @Summary Get one report with its update history
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	actor, ok := middleware.Account(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	report, err := h.reports.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// ListByWoreda godoc
// @Summary List reports of one woreda
// @Tags Reports
// @Produce json
// @Param woreda path string true "Woreda name"
// @Success 200 {object} response.Envelope
// @Router /reports/woreda/{woreda} [get]
func (h *ReportHandler) ListByWoreda(c *gin.Context) {
	actor, ok := middleware.Account(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	reports, err := h.reports.ListByWoreda(c.Request.Context(), actor, c.Param("woreda"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, reports, len(reports), nil)
}

// ListByDepartment godoc
// @Summary List reports routed to one department
// @Tags Reports
// @Produce json
// @Param department path string true "Department name"
// @Success 200 {object} response.Envelope
// @Router /reports/department/{department} [get]
func (h *ReportHandler) ListByDepartment(c *gin.Context) {
	actor, ok := middleware.Account(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	reports, err := h.reports.ListByDepartment(c.Request.Context(), actor, models.Department(c.Param("department")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, reports, len(reports), nil)
}

// Update godoc
// @Summary Update one report
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body service.UpdateReportRequest true "Partial report payload"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [put]
func (h *ReportHandler) Update(c *gin.Context) {
	actor, ok := middleware.Account(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.reports.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// AddUpdate godoc
// @Summary Append a progress update to one report
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/updates [post]
func (h *ReportHandler) AddUpdate(c *gin.Context) {
	actor, ok := middleware.Account(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req struct {
		Status  models.ReportStatus `json:"status"`
		Message string              `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.reports.AddUpdate(c.Request.Context(), actor, c.Param("id"), req.Status, req.Message)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// Delete godoc
// @Summary Delete one report
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [delete]
func (h *ReportHandler) Delete(c *gin.Context) {
	actor, ok := middleware.Account(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.reports.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, nil, "report deleted")
}
