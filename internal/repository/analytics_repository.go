package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yegara-dev/community-api/internal/models"
)

// AnalyticsRepository runs the aggregate queries behind the analytics
// dashboards and persists generated snapshots. Every aggregate accepts the
// same window bounds and optional fuzzy woreda pattern so one scope policy
// covers the whole report.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository creates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

func reportWindow(woredaPattern string, from, to time.Time) (string, []interface{}) {
	where := "created_at >= $1 AND created_at < $2"
	args := []interface{}{from, to}
	if woredaPattern != "" {
		args = append(args, woredaPattern)
		where += fmt.Sprintf(" AND woreda ~* $%d", len(args))
	}
	return where, args
}

// CountReports returns total and resolved report counts inside the window.
func (r *AnalyticsRepository) CountReports(ctx context.Context, woredaPattern string, from, to time.Time) (total, resolved int, err error) {
	where, args := reportWindow(woredaPattern, from, to)
	query := fmt.Sprintf(`SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE status = 'Resolved') AS resolved FROM reports WHERE %s`, where)

	var row struct {
		Total    int `db:"total"`
		Resolved int `db:"resolved"`
	}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return 0, 0, fmt.Errorf("count reports: %w", err)
	}
	return row.Total, row.Resolved, nil
}

// CountByStatus returns the per-status report breakdown inside the window.
func (r *AnalyticsRepository) CountByStatus(ctx context.Context, woredaPattern string, from, to time.Time) ([]models.StatusCount, error) {
	where, args := reportWindow(woredaPattern, from, to)
	query := fmt.Sprintf(`SELECT status, COUNT(*) AS count FROM reports WHERE %s GROUP BY status ORDER BY count DESC`, where)

	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count reports by status: %w", err)
	}
	return counts, nil
}

// CountByCategory returns the per-category report breakdown inside the window.
func (r *AnalyticsRepository) CountByCategory(ctx context.Context, woredaPattern string, from, to time.Time) ([]models.CategoryCount, error) {
	where, args := reportWindow(woredaPattern, from, to)
	query := fmt.Sprintf(`SELECT category, COUNT(*) AS count FROM reports WHERE %s GROUP BY category ORDER BY count DESC`, where)

	var counts []models.CategoryCount
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count reports by category: %w", err)
	}
	return counts, nil
}

// MonthlyTrend returns per-calendar-month report volume with the resolved
// subset inside the window, month index ascending.
func (r *AnalyticsRepository) MonthlyTrend(ctx context.Context, woredaPattern string, from, to time.Time) ([]models.MonthlyTrend, error) {
	where, args := reportWindow(woredaPattern, from, to)
	query := fmt.Sprintf(`SELECT EXTRACT(MONTH FROM created_at)::int AS month_index,
COUNT(*) AS reports,
COUNT(*) FILTER (WHERE status = 'Resolved') AS resolved
FROM reports WHERE %s GROUP BY month_index ORDER BY month_index ASC`, where)

	var trend []models.MonthlyTrend
	if err := r.db.SelectContext(ctx, &trend, query, args...); err != nil {
		return nil, fmt.Errorf("monthly report trend: %w", err)
	}
	for i := range trend {
		trend[i].Month = models.MonthName(trend[i].MonthIndex)
	}
	return trend, nil
}

// UserRoleStats returns per-role registration counts inside the window with
// the active subset.
func (r *AnalyticsRepository) UserRoleStats(ctx context.Context, woredaPattern string, from, to time.Time) ([]models.RoleCount, error) {
	where, args := reportWindow(woredaPattern, from, to)
	query := fmt.Sprintf(`SELECT role, COUNT(*) AS count,
COUNT(*) FILTER (WHERE is_active) AS active
FROM users WHERE %s GROUP BY role ORDER BY count DESC`, where)

	var counts []models.RoleCount
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("user role stats: %w", err)
	}
	return counts, nil
}

// WoredaPerformance returns per-district resolution rollups inside the
// window. Average resolution days covers resolved reports only and is NULL
// for districts without any.
func (r *AnalyticsRepository) WoredaPerformance(ctx context.Context, woredaPattern string, from, to time.Time) ([]models.WoredaPerformance, error) {
	where, args := reportWindow(woredaPattern, from, to)
	query := fmt.Sprintf(`SELECT woreda,
COUNT(*) AS total,
COUNT(*) FILTER (WHERE status = 'Resolved') AS resolved,
AVG(EXTRACT(EPOCH FROM (resolved_at - created_at)) / 86400.0) FILTER (WHERE status = 'Resolved' AND resolved_at IS NOT NULL) AS avg_resolution_days
FROM reports WHERE %s GROUP BY woreda ORDER BY total DESC`, where)

	var rows []models.WoredaPerformance
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("woreda performance: %w", err)
	}
	return rows, nil
}

// DepartmentPerformance returns per-department workload rollups inside the
// window.
func (r *AnalyticsRepository) DepartmentPerformance(ctx context.Context, woredaPattern string, from, to time.Time) ([]models.DepartmentPerformance, error) {
	where, args := reportWindow(woredaPattern, from, to)
	query := fmt.Sprintf(`SELECT department,
COUNT(*) AS total,
COUNT(*) FILTER (WHERE status = 'Resolved') AS resolved,
COUNT(*) FILTER (WHERE status = 'Pending') AS pending,
COUNT(*) FILTER (WHERE status = 'In Progress') AS in_progress
FROM reports WHERE %s GROUP BY department ORDER BY total DESC`, where)

	var rows []models.DepartmentPerformance
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("department performance: %w", err)
	}
	return rows, nil
}

// RecentReports returns the n newest reports in scope.
func (r *AnalyticsRepository) RecentReports(ctx context.Context, woredaPattern string, n int) ([]models.Report, error) {
	conds := "1=1"
	var args []interface{}
	if woredaPattern != "" {
		args = append(args, woredaPattern)
		conds = fmt.Sprintf("woreda ~* $%d", len(args))
	}
	query := fmt.Sprintf(`SELECT %s FROM reports WHERE %s ORDER BY created_at DESC LIMIT %d`, reportColumns, conds, n)

	var reports []models.Report
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, fmt.Errorf("recent reports: %w", err)
	}
	return reports, nil
}

// ExportReports returns every report in scope, newest first.
func (r *AnalyticsRepository) ExportReports(ctx context.Context, woredaPattern string) ([]models.Report, error) {
	conds := "1=1"
	var args []interface{}
	if woredaPattern != "" {
		args = append(args, woredaPattern)
		conds = fmt.Sprintf("woreda ~* $%d", len(args))
	}
	query := fmt.Sprintf(`SELECT %s FROM reports WHERE %s ORDER BY created_at DESC`, reportColumns, conds)

	var reports []models.Report
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, fmt.Errorf("export reports: %w", err)
	}
	return reports, nil
}

// ExportUsers returns every account in scope, newest first.
func (r *AnalyticsRepository) ExportUsers(ctx context.Context, woredaPattern string) ([]models.User, error) {
	conds := "1=1"
	var args []interface{}
	if woredaPattern != "" {
		args = append(args, woredaPattern)
		conds = fmt.Sprintf("woreda ~* $%d", len(args))
	}
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY created_at DESC`, userColumns, conds)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("export users: %w", err)
	}
	return users, nil
}

// ExportEvents returns every event in scope with attendee counts, newest
// first.
func (r *AnalyticsRepository) ExportEvents(ctx context.Context, woredaPattern string) ([]models.Event, error) {
	conds := "1=1"
	var args []interface{}
	if woredaPattern != "" {
		args = append(args, woredaPattern)
		conds = fmt.Sprintf("e.woreda ~* $%d", len(args))
	}
	query := fmt.Sprintf(`SELECT %s, (SELECT COUNT(*) FROM event_attendees a WHERE a.event_id = e.id) AS attendee_count
FROM events e WHERE %s ORDER BY e.created_at DESC`, eventColumns, conds)

	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("export events: %w", err)
	}
	return events, nil
}

// CountReportsSince returns the number of reports filed at or after the
// given instant.
func (r *AnalyticsRepository) CountReportsSince(ctx context.Context, woredaPattern string, since time.Time) (int, error) {
	conds := "created_at >= $1"
	args := []interface{}{since}
	if woredaPattern != "" {
		args = append(args, woredaPattern)
		conds += fmt.Sprintf(" AND woreda ~* $%d", len(args))
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM reports WHERE %s`, conds)

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count reports since: %w", err)
	}
	return count, nil
}

// CountPendingReports returns the number of reports currently pending.
func (r *AnalyticsRepository) CountPendingReports(ctx context.Context, woredaPattern string) (int, error) {
	conds := "status = 'Pending'"
	var args []interface{}
	if woredaPattern != "" {
		args = append(args, woredaPattern)
		conds += fmt.Sprintf(" AND woreda ~* $%d", len(args))
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM reports WHERE %s`, conds)

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count pending reports: %w", err)
	}
	return count, nil
}

// CountUsersActiveSince returns active accounts whose last login falls at or
// after the given instant.
func (r *AnalyticsRepository) CountUsersActiveSince(ctx context.Context, woredaPattern string, since time.Time) (int, error) {
	conds := "is_active = TRUE AND last_login IS NOT NULL AND last_login >= $1"
	args := []interface{}{since}
	if woredaPattern != "" {
		args = append(args, woredaPattern)
		conds += fmt.Sprintf(" AND woreda ~* $%d", len(args))
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM users WHERE %s`, conds)

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count users active since: %w", err)
	}
	return count, nil
}

// SaveSnapshot persists a generated aggregation result. Snapshots are
// write-once; nothing in the system updates a saved row.
func (r *AnalyticsRepository) SaveSnapshot(ctx context.Context, snapshot *models.AnalyticsSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.GeneratedAt.IsZero() {
		snapshot.GeneratedAt = time.Now().UTC()
	}
	const query = `INSERT INTO analytics_snapshots (id, period, woreda, payload, generated_at)
VALUES (:id, :period, :woreda, :payload, :generated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, snapshot); err != nil {
		return fmt.Errorf("save analytics snapshot: %w", err)
	}
	return nil
}
