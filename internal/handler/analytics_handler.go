package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yegara-dev/community-api/internal/middleware"
	"github.com/yegara-dev/community-api/internal/service"
	appErrors "github.com/yegara-dev/community-api/pkg/errors"
	"github.com/yegara-dev/community-api/pkg/response"
)

// AnalyticsHandler exposes analytics endpoints.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs AnalyticsHandler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Generate godoc
// @Summary Generate the analytics report for the caller's scope
// @Tags Analytics
// @Produce json
// @Param period query string false "daily, weekly, monthly or yearly"
// @Param woreda query string false "restrict to one district, or all"
// @Success 200 {object} response.Envelope
// @Router /analytics [get]
func (h *AnalyticsHandler) Generate(c *gin.Context) {
	actor, ok := middleware.Account(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	report, err := h.analytics.Generate(c.Request.Context(), actor, c.Query("period"), c.Query("woreda"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// Realtime godoc
// @Summary Live dashboard counters
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/realtime [get]
func (h *AnalyticsHandler) Realtime(c *gin.Context) {
	actor, ok := middleware.Account(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stats, err := h.analytics.Realtime(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats)
}

// Export godoc
// @Summary Export analytics data
// @Tags Analytics
// @Produce json
// @Param period query string false "daily, weekly, monthly or yearly"
// @Param woreda query string false "restrict to one district, or all"
// @Param type query string false "summary, reports, users or events"
// @Param format query string false "json, csv or pdf"
// @Success 200 {file} binary
// @Router /analytics/export [get]
func (h *AnalyticsHandler) Export(c *gin.Context) {
	actor, ok := middleware.Account(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	subject := service.ExportSubject(c.DefaultQuery("type", "summary"))
	format := service.ExportFormat(c.DefaultQuery("format", "json"))
	payload, contentType, err := h.analytics.Export(c.Request.Context(), actor, c.Query("period"), c.Query("woreda"), subject, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("analytics-%s-%s.%s", subject, time.Now().UTC().Format("2006-01-02"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
