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

const meetingColumns = `id, title, description, meeting_link, scheduled_at, woreda, created_by, status, created_at, updated_at`

// MeetingRepository provides persistence for meetings and their invited
// participants.
type MeetingRepository struct {
	db    *sqlx.DB
	query *sqlListQuery
}

// NewMeetingRepository creates the repository.
func NewMeetingRepository(db *sqlx.DB) *MeetingRepository {
	return &MeetingRepository{
		db: db,
		query: newSQLListQuery(
			"title", "woreda", "status", "scheduled_at", "created_at",
		),
	}
}

// Create inserts a meeting together with its participant rows.
func (r *MeetingRepository) Create(ctx context.Context, meeting *models.Meeting) error {
	if meeting.ID == "" {
		meeting.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if meeting.CreatedAt.IsZero() {
		meeting.CreatedAt = now
	}
	meeting.UpdatedAt = now
	if meeting.Status == "" {
		meeting.Status = models.MeetingScheduled
	}

	const query = `INSERT INTO meetings (id, title, description, meeting_link, scheduled_at, woreda, created_by, status, created_at, updated_at)
VALUES (:id, :title, :description, :meeting_link, :scheduled_at, :woreda, :created_by, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, meeting); err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}
	return r.insertParticipants(ctx, meeting.ID, meeting.Participants)
}

// FindByID returns a meeting with its participant list.
func (r *MeetingRepository) FindByID(ctx context.Context, id string) (*models.Meeting, error) {
	query := fmt.Sprintf(`SELECT %s FROM meetings WHERE id = $1 LIMIT 1`, meetingColumns)
	var meeting models.Meeting
	if err := r.db.GetContext(ctx, &meeting, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find meeting by id: %w", err)
	}

	const participantsQuery = `SELECT id, meeting_id, user_id, email, role FROM meeting_participants WHERE meeting_id = $1 ORDER BY email ASC`
	if err := r.db.SelectContext(ctx, &meeting.Participants, participantsQuery, id); err != nil {
		return nil, fmt.Errorf("load meeting participants: %w", err)
	}
	return &meeting, nil
}

// List returns meetings matching the ad-hoc query with total count. The
// woreda pattern restricts district admins to their own district.
func (r *MeetingRepository) List(ctx context.Context, woredaPattern string, q models.ListQuery) ([]models.Meeting, int, error) {
	conds := []string{"1=1"}
	var args []interface{}

	if woredaPattern != "" {
		args = append(args, woredaPattern)
		conds = append(conds, fmt.Sprintf("woreda ~* $%d", len(args)))
	}

	extra, args := r.query.conditions(q, args)
	conds = append(conds, extra...)
	where := joinAnd(conds)

	limit := q.Limit
	if limit <= 0 {
		limit = 25
	}

	listQuery := fmt.Sprintf(`SELECT %s FROM meetings WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		r.query.projection(q, meetingColumns), where, r.query.orderBy(q), limit, q.Offset())

	var meetings []models.Meeting
	if err := r.db.SelectContext(ctx, &meetings, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list meetings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM meetings WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count meetings: %w", err)
	}
	return meetings, total, nil
}

// Update writes the mutable fields of a meeting and replaces its
// participant list when one is supplied.
func (r *MeetingRepository) Update(ctx context.Context, meeting *models.Meeting, replaceParticipants bool) error {
	meeting.UpdatedAt = time.Now().UTC()
	const query = `UPDATE meetings SET title = :title, description = :description, meeting_link = :meeting_link, scheduled_at = :scheduled_at, woreda = :woreda, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, meeting); err != nil {
		return fmt.Errorf("update meeting: %w", err)
	}
	if !replaceParticipants {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM meeting_participants WHERE meeting_id = $1`, meeting.ID); err != nil {
		return fmt.Errorf("clear meeting participants: %w", err)
	}
	return r.insertParticipants(ctx, meeting.ID, meeting.Participants)
}

// Delete removes a meeting and its participant rows.
func (r *MeetingRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM meeting_participants WHERE meeting_id = $1`, id); err != nil {
		return fmt.Errorf("delete meeting participants: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM meetings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	return nil
}

func (r *MeetingRepository) insertParticipants(ctx context.Context, meetingID string, participants []models.MeetingParticipant) error {
	const query = `INSERT INTO meeting_participants (id, meeting_id, user_id, email, role) VALUES ($1, $2, $3, $4, $5)`
	for _, p := range participants {
		pid := p.ID
		if pid == "" {
			pid = uuid.NewString()
		}
		if _, err := r.db.ExecContext(ctx, query, pid, meetingID, p.UserID, p.Email, p.Role); err != nil {
			return fmt.Errorf("insert meeting participant: %w", err)
		}
	}
	return nil
}
