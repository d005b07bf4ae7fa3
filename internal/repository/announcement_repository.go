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

const announcementColumns = `id, title, message, category, audience_roles, woreda, created_by, created_at`

// AnnouncementRepository provides persistence for targeted announcements.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository creates the repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// Create inserts an announcement.
func (r *AnnouncementRepository) Create(ctx context.Context, a *models.Announcement) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if len(a.AudienceRoles) == 0 {
		a.AudienceRoles = []string{models.AudienceAll}
	}

	const query = `INSERT INTO announcements (id, title, message, category, audience_roles, woreda, created_by, created_at)
VALUES (:id, :title, :message, :category, :audience_roles, :woreda, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// FindByID returns a single announcement.
func (r *AnnouncementRepository) FindByID(ctx context.Context, id string) (*models.Announcement, error) {
	query := fmt.Sprintf(`SELECT %s FROM announcements WHERE id = $1 LIMIT 1`, announcementColumns)
	var a models.Announcement
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find announcement by id: %w", err)
	}
	return &a, nil
}

// List returns announcements visible to the viewer described by the
// filter, newest first. Role targeting honours the wildcard audience;
// woreda-less announcements are visible everywhere.
func (r *AnnouncementRepository) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, error) {
	conds := []string{"1=1"}
	var args []interface{}

	if filter.Role != "" {
		args = append(args, string(filter.Role))
		conds = append(conds, fmt.Sprintf("($%d = ANY(audience_roles) OR '%s' = ANY(audience_roles))", len(args), models.AudienceAll))
	}
	if filter.WoredaPattern != "" {
		args = append(args, filter.WoredaPattern)
		conds = append(conds, fmt.Sprintf("(woreda IS NULL OR woreda ~* $%d)", len(args)))
	} else if filter.Woreda != "" {
		args = append(args, filter.Woreda)
		conds = append(conds, fmt.Sprintf("(woreda IS NULL OR woreda = $%d)", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM announcements WHERE %s ORDER BY created_at DESC`,
		announcementColumns, joinAnd(conds))

	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, query, args...); err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	return announcements, nil
}

// Delete removes an announcement.
func (r *AnnouncementRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	return nil
}
