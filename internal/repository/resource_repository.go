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

const resourceColumns = `id, title, description, file_url, file_name, file_type, file_size, uploaded_by, department, woreda, category, download_count, is_public, created_at, updated_at`

// ResourceRepository provides persistence for shared documents.
type ResourceRepository struct {
	db    *sqlx.DB
	query *sqlListQuery
}

// NewResourceRepository creates the repository.
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{
		db: db,
		query: newSQLListQuery(
			"title", "category", "department", "woreda", "is_public", "download_count", "created_at",
		),
	}
}

// Create inserts a resource record.
func (r *ResourceRepository) Create(ctx context.Context, resource *models.Resource) error {
	if resource.ID == "" {
		resource.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if resource.CreatedAt.IsZero() {
		resource.CreatedAt = now
	}
	resource.UpdatedAt = now

	const query = `INSERT INTO resources (id, title, description, file_url, file_name, file_type, file_size, uploaded_by, department, woreda, category, download_count, is_public, created_at, updated_at)
VALUES (:id, :title, :description, :file_url, :file_name, :file_type, :file_size, :uploaded_by, :department, :woreda, :category, :download_count, :is_public, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, resource); err != nil {
		return fmt.Errorf("create resource: %w", err)
	}
	return nil
}

// FindByID returns a single resource.
func (r *ResourceRepository) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	query := fmt.Sprintf(`SELECT %s FROM resources WHERE id = $1 LIMIT 1`, resourceColumns)
	var resource models.Resource
	if err := r.db.GetContext(ctx, &resource, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find resource by id: %w", err)
	}
	return &resource, nil
}

// List returns resources visible under the filter with total count.
// Residents see public resources plus those scoped to their district.
func (r *ResourceRepository) List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, int, error) {
	conds := []string{"1=1"}
	var args []interface{}

	if filter.PublicOnly {
		if filter.Woreda != "" {
			args = append(args, filter.Woreda)
			conds = append(conds, fmt.Sprintf("(is_public = TRUE OR woreda ~* $%d)", len(args)))
		} else {
			conds = append(conds, "is_public = TRUE")
		}
	} else if filter.Woreda != "" {
		args = append(args, filter.Woreda)
		conds = append(conds, fmt.Sprintf("(woreda IS NULL OR woreda ~* $%d)", len(args)))
	}

	extra, args := r.query.conditions(filter.Query, args)
	conds = append(conds, extra...)
	where := joinAnd(conds)

	limit := filter.Query.Limit
	if limit <= 0 {
		limit = 25
	}

	listQuery := fmt.Sprintf(`SELECT %s FROM resources WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		r.query.projection(filter.Query, resourceColumns), where, r.query.orderBy(filter.Query), limit, filter.Query.Offset())

	var resources []models.Resource
	if err := r.db.SelectContext(ctx, &resources, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list resources: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM resources WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count resources: %w", err)
	}
	return resources, total, nil
}

// Update writes the mutable metadata fields of a resource.
func (r *ResourceRepository) Update(ctx context.Context, resource *models.Resource) error {
	resource.UpdatedAt = time.Now().UTC()
	const query = `UPDATE resources SET title = :title, description = :description, department = :department, woreda = :woreda, category = :category, is_public = :is_public, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, resource); err != nil {
		return fmt.Errorf("update resource: %w", err)
	}
	return nil
}

// IncrementDownloadCount bumps the download counter atomically.
func (r *ResourceRepository) IncrementDownloadCount(ctx context.Context, id string) error {
	const query = `UPDATE resources SET download_count = download_count + 1 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("increment download count: %w", err)
	}
	return nil
}

// Delete removes a resource record.
func (r *ResourceRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM resources WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	return nil
}
