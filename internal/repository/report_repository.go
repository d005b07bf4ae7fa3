package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yegara-dev/community-api/internal/models"
)

const reportColumns = `id, title, description, category, department, status, priority, resident_id, woreda, assigned_officer, latitude, longitude, address, images, resolved_at, created_at, updated_at`

// ReportRepository provides persistence for issue reports and their
// append-only update history.
type ReportRepository struct {
	db    *sqlx.DB
	query *sqlListQuery
}

// NewReportRepository creates the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{
		db: db,
		query: newSQLListQuery(
			"title", "category", "department", "status", "priority",
			"resident_id", "woreda", "created_at", "resolved_at",
		),
	}
}

// Create inserts a new report.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = now

	const query = `INSERT INTO reports (id, title, description, category, department, status, priority, resident_id, woreda, assigned_officer, latitude, longitude, address, images, created_at, updated_at)
VALUES (:id, :title, :description, :category, :department, :status, :priority, :resident_id, :woreda, :assigned_officer, :latitude, :longitude, :address, :images, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

// FindByID returns a report with its update history, oldest update first.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.Report, error) {
	query := fmt.Sprintf(`SELECT %s FROM reports WHERE id = $1 LIMIT 1`, reportColumns)
	var report models.Report
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find report by id: %w", err)
	}

	const updatesQuery = `SELECT id, report_id, status, message, updated_by, created_at FROM report_updates WHERE report_id = $1 ORDER BY created_at ASC, id ASC`
	if err := r.db.SelectContext(ctx, &report.Updates, updatesQuery, id); err != nil {
		return nil, fmt.Errorf("load report updates: %w", err)
	}
	return &report, nil
}

// List returns reports bounded by the filter with total count.
func (r *ReportRepository) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error) {
	conds := []string{"1=1"}
	var args []interface{}

	if filter.ResidentID != "" {
		conds = append(conds, fmt.Sprintf("resident_id = $%d", len(args)+1))
		args = append(args, filter.ResidentID)
	}
	if filter.Department != nil {
		conds = append(conds, fmt.Sprintf("department = $%d", len(args)+1))
		args = append(args, *filter.Department)
	}
	if filter.WoredaPattern != "" {
		conds = append(conds, fmt.Sprintf("woreda ~* $%d", len(args)+1))
		args = append(args, filter.WoredaPattern)
	} else if filter.Woreda != "" {
		conds = append(conds, fmt.Sprintf("woreda = $%d", len(args)+1))
		args = append(args, filter.Woreda)
	}

	extra, args := r.query.conditions(filter.Query, args)
	conds = append(conds, extra...)
	where := joinAnd(conds)

	limit := filter.Query.Limit
	if limit <= 0 {
		limit = 25
	}

	listQuery := fmt.Sprintf("SELECT %s FROM reports WHERE %s ORDER BY %s LIMIT %d OFFSET %d",
		r.query.projection(filter.Query, reportColumns), where, r.query.orderBy(filter.Query), limit, filter.Query.Offset())

	var reports []models.Report
	if err := r.db.SelectContext(ctx, &reports, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM reports WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}
	return reports, total, nil
}

// Update writes the mutable fields of a report.
func (r *ReportRepository) Update(ctx context.Context, report *models.Report) error {
	report.UpdatedAt = time.Now().UTC()
	const query = `UPDATE reports SET title = :title, description = :description, category = :category, department = :department, status = :status, priority = :priority, assigned_officer = :assigned_officer, latitude = :latitude, longitude = :longitude, address = :address, images = :images, resolved_at = :resolved_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	return nil
}

// AppendUpdate inserts one entry into a report's update log. The log is
// append-only: nothing edits or deletes rows in report_updates.
func (r *ReportRepository) AppendUpdate(ctx context.Context, update *models.ReportUpdate) error {
	if update.ID == "" {
		update.ID = uuid.NewString()
	}
	if update.CreatedAt.IsZero() {
		update.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO report_updates (id, report_id, status, message, updated_by, created_at)
VALUES (:id, :report_id, :status, :message, :updated_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, update); err != nil {
		return fmt.Errorf("append report update: %w", err)
	}
	return nil
}

// Delete removes a report and its update history.
func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM report_updates WHERE report_id = $1`, id); err != nil {
		return fmt.Errorf("delete report updates: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return nil
}

// ListByWoredaPattern returns reports whose woreda loosely matches the
// pattern, newest first.
func (r *ReportRepository) ListByWoredaPattern(ctx context.Context, pattern, exact string) ([]models.Report, error) {
	var (
		query string
		arg   interface{}
	)
	if pattern != "" {
		query = fmt.Sprintf(`SELECT %s FROM reports WHERE woreda ~* $1 ORDER BY created_at DESC`, reportColumns)
		arg = pattern
	} else {
		query = fmt.Sprintf(`SELECT %s FROM reports WHERE woreda = $1 ORDER BY created_at DESC`, reportColumns)
		arg = exact
	}
	var reports []models.Report
	if err := r.db.SelectContext(ctx, &reports, query, arg); err != nil {
		return nil, fmt.Errorf("list reports by woreda: %w", err)
	}
	return reports, nil
}

// ListByDepartment returns reports for one department, newest first.
func (r *ReportRepository) ListByDepartment(ctx context.Context, department models.Department) ([]models.Report, error) {
	query := fmt.Sprintf(`SELECT %s FROM reports WHERE department = $1 ORDER BY created_at DESC`, reportColumns)
	var reports []models.Report
	if err := r.db.SelectContext(ctx, &reports, query, department); err != nil {
		return nil, fmt.Errorf("list reports by department: %w", err)
	}
	return reports, nil
}
