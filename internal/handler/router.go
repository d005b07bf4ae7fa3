package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/yegara-dev/community-api/internal/middleware"
	"github.com/yegara-dev/community-api/internal/models"
	"github.com/yegara-dev/community-api/internal/service"
)

// Handlers groups every HTTP handler wired into the API surface.
type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Reports       *ReportHandler
	Events        *EventHandler
	Meetings      *MeetingHandler
	Resources     *ResourceHandler
	Announcements *AnnouncementHandler
	Analytics     *AnalyticsHandler
}

// RegisterRoutes mounts all API routes under prefix. The authenticated groups
// run the JWT and account-state middleware before any role check.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, auth *service.AuthService, accounts middleware.AccountLoader) {
	adminOnly := middleware.RequireRoles(models.RoleWoredaAdmin, models.RoleSubcityAdmin)
	staffOnly := middleware.RequireRoles(models.RoleOfficer, models.RoleWoredaAdmin, models.RoleSubcityAdmin)

	api := r.Group(prefix)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/forgotpassword", h.Auth.ForgotPassword)
		authGroup.PUT("/resetpassword/:resettoken", h.Auth.ResetPassword)

		protected := authGroup.Group("")
		protected.Use(middleware.JWT(auth), middleware.AccountState(accounts))
		{
			protected.GET("/logout", h.Auth.Logout)
			protected.GET("/me", h.Auth.Me)
			protected.PUT("/activate", h.Auth.Activate)
			protected.PUT("/updatedetails", h.Auth.UpdateDetails)
			protected.PUT("/updatepassword", h.Auth.UpdatePassword)
		}
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(auth), middleware.AccountState(accounts))

	userGroup := secured.Group("/users", adminOnly)
	{
		userGroup.GET("", h.Users.List)
		userGroup.POST("", h.Users.Create)
		userGroup.GET("/woreda/:woreda", h.Users.ListByWoreda)
		userGroup.GET("/role/:role", h.Users.ListByRole)
		userGroup.GET("/:id", h.Users.Get)
		userGroup.PUT("/:id", h.Users.Update)
		userGroup.DELETE("/:id", h.Users.Delete)
	}

	reportGroup := secured.Group("/reports")
	{
		reportGroup.GET("", h.Reports.List)
		reportGroup.POST("", h.Reports.Create)
		reportGroup.GET("/my-reports", h.Reports.ListMine)
		reportGroup.GET("/woreda/:woreda", adminOnly, h.Reports.ListByWoreda)
		reportGroup.GET("/department/:department", staffOnly, h.Reports.ListByDepartment)
		reportGroup.GET("/:id", h.Reports.Get)
		reportGroup.PUT("/:id", h.Reports.Update)
		reportGroup.POST("/:id/updates", staffOnly, h.Reports.AddUpdate)
		reportGroup.DELETE("/:id", h.Reports.Delete)
	}

	eventGroup := secured.Group("/events")
	{
		eventGroup.GET("", h.Events.List)
		eventGroup.GET("/woreda/:woreda", h.Events.ListByWoreda)
		eventGroup.GET("/:id", h.Events.Get)
		eventGroup.POST("/:id/register", h.Events.Register)

		eventGroup.POST("", adminOnly, h.Events.Create)
		eventGroup.PUT("/:id", adminOnly, h.Events.Update)
		eventGroup.DELETE("/:id", adminOnly, h.Events.Delete)
	}

	meetingGroup := secured.Group("/meetings")
	{
		meetingGroup.GET("", h.Meetings.List)
		meetingGroup.GET("/:id", h.Meetings.Get)

		meetingGroup.POST("", adminOnly, h.Meetings.Create)
		meetingGroup.PUT("/:id", adminOnly, h.Meetings.Update)
		meetingGroup.DELETE("/:id", adminOnly, h.Meetings.Delete)
	}

	resourceGroup := secured.Group("/resources")
	{
		resourceGroup.GET("", h.Resources.List)
		resourceGroup.GET("/:id", h.Resources.Get)
		resourceGroup.GET("/:id/download", h.Resources.Download)

		resourceGroup.POST("", staffOnly, h.Resources.Upload)
		resourceGroup.PUT("/:id", staffOnly, h.Resources.Update)
		resourceGroup.DELETE("/:id", staffOnly, h.Resources.Delete)
	}

	announcementGroup := secured.Group("/announcements")
	{
		announcementGroup.GET("", h.Announcements.List)
		announcementGroup.GET("/:id", h.Announcements.Get)
		announcementGroup.POST("", staffOnly, h.Announcements.Create)
		announcementGroup.DELETE("/:id", staffOnly, h.Announcements.Delete)
	}

	analyticsGroup := secured.Group("/analytics", middleware.RequireRoles(models.RoleSubcityAdmin))
	{
		analyticsGroup.GET("", h.Analytics.Generate)
		analyticsGroup.GET("/realtime", h.Analytics.Realtime)
		analyticsGroup.GET("/export", h.Analytics.Export)
	}
}
