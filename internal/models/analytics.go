package models

import (
	"encoding/json"
	"time"
)

// AnalyticsPeriod selects the aggregation window.
type AnalyticsPeriod string

const (
	PeriodDaily   AnalyticsPeriod = "daily"
	PeriodWeekly  AnalyticsPeriod = "weekly"
	PeriodMonthly AnalyticsPeriod = "monthly"
	PeriodYearly  AnalyticsPeriod = "yearly"
)

// NormalizePeriod maps unrecognised values onto the monthly default.
func NormalizePeriod(raw string) AnalyticsPeriod {
	switch AnalyticsPeriod(raw) {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly:
		return AnalyticsPeriod(raw)
	}
	return PeriodMonthly
}

// WindowStart returns the inclusive window start for the period, counting
// back from end.
func (p AnalyticsPeriod) WindowStart(end time.Time) time.Time {
	switch p {
	case PeriodDaily:
		return end.AddDate(0, 0, -1)
	case PeriodWeekly:
		return end.AddDate(0, 0, -7)
	case PeriodYearly:
		return end.AddDate(-1, 0, 0)
	default:
		return end.AddDate(0, -1, 0)
	}
}

// StatusCount is a grouped count of reports per lifecycle status.
type StatusCount struct {
	Status ReportStatus `db:"status" json:"status"`
	Count  int          `db:"count" json:"count"`
}

// CategoryCount is a grouped count of reports per category.
type CategoryCount struct {
	Category ReportCategory `db:"category" json:"category"`
	Count    int            `db:"count" json:"count"`
}

// MonthlyTrend is the per-calendar-month report volume with its resolved
// subset, ordered by month index ascending.
type MonthlyTrend struct {
	MonthIndex int    `db:"month_index" json:"-"`
	Month      string `db:"-" json:"month"`
	Reports    int    `db:"reports" json:"reports"`
	Resolved   int    `db:"resolved" json:"resolved"`
}

// RoleCount is the per-role user registration breakdown within the window.
type RoleCount struct {
	Role   UserRole `db:"role" json:"role"`
	Count  int      `db:"count" json:"count"`
	Active int      `db:"active" json:"active"`
}

// WoredaPerformance is the per-district resolution rollup.
// AverageResolutionDays is nil when the district has no resolved reports.
type WoredaPerformance struct {
	Woreda                string   `db:"woreda" json:"woreda"`
	TotalReports          int      `db:"total" json:"totalReports"`
	ResolvedReports       int      `db:"resolved" json:"resolvedReports"`
	ResolutionRate        float64  `db:"-" json:"resolutionRate"`
	AverageResolutionDays *float64 `db:"avg_resolution_days" json:"averageResolutionDays,omitempty"`
}

// DepartmentPerformance is the per-department workload rollup.
type DepartmentPerformance struct {
	Department        Department `db:"department" json:"department"`
	TotalReports      int        `db:"total" json:"totalReports"`
	ResolvedReports   int        `db:"resolved" json:"resolvedReports"`
	PendingReports    int        `db:"pending" json:"pendingReports"`
	InProgressReports int        `db:"in_progress" json:"inProgressReports"`
	ResolutionRate    float64    `db:"-" json:"resolutionRate"`
}

// AnalyticsSummary is the headline overview of an aggregation run.
type AnalyticsSummary struct {
	TotalReports    int     `json:"totalReports"`
	ResolvedReports int     `json:"resolvedReports"`
	ResolutionRate  float64 `json:"resolutionRate"`
	ActiveUsers     int     `json:"activeUsers"`
}

// AnalyticsReport is the full aggregation result returned to the caller and
// persisted as a snapshot payload.
type AnalyticsReport struct {
	Summary               AnalyticsSummary        `json:"summary"`
	ReportsByStatus       []StatusCount           `json:"reportsByStatus"`
	ReportsByCategory     []CategoryCount         `json:"reportsByCategory"`
	TrendData             []MonthlyTrend          `json:"trendData"`
	UserStats             []RoleCount             `json:"userStats"`
	WoredaPerformance     []WoredaPerformance     `json:"woredaPerformance"`
	DepartmentPerformance []DepartmentPerformance `json:"departmentPerformance"`
	RecentReports         []Report                `json:"recentReports"`
}

// AnalyticsSnapshot is a persisted, point-in-time aggregation result. Rows
// are write-once: a generation inserts a new snapshot and nothing updates it.
type AnalyticsSnapshot struct {
	ID          string          `db:"id" json:"id"`
	Period      AnalyticsPeriod `db:"period" json:"period"`
	Woreda      string          `db:"woreda" json:"woreda"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	GeneratedAt time.Time       `db:"generated_at" json:"generatedAt"`
}

// RealtimeStats is the live dashboard counter set.
type RealtimeStats struct {
	ReportsLastHour  int       `json:"reportsLastHour"`
	ReportsToday     int       `json:"reportsToday"`
	ActiveUsersToday int       `json:"activeUsersToday"`
	PendingReports   int       `json:"pendingReports"`
	RecentActivities []Report  `json:"recentActivities"`
	Timestamp        time.Time `json:"timestamp"`
}

// MonthName returns the short English month name for a 1-based month index.
func MonthName(index int) string {
	names := []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
	if index < 1 || index > 12 {
		return ""
	}
	return names[index-1]
}
