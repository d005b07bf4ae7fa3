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

const eventColumns = `e.id, e.title, e.description, e.date, e.end_date, e.location, e.organizer_id, e.woreda, e.category, e.max_attendees, e.status, e.images, e.meeting_link, e.created_at, e.updated_at`

// EventRepository provides persistence for community events and their
// attendee sets.
type EventRepository struct {
	db    *sqlx.DB
	query *sqlListQuery
}

// NewEventRepository creates the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{
		db: db,
		query: newSQLListQuery(
			"title", "woreda", "category", "status", "date", "created_at",
		),
	}
}

// Create inserts a new event.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	if event.Status == "" {
		event.Status = models.EventUpcoming
	}

	const query = `INSERT INTO events (id, title, description, date, end_date, location, organizer_id, woreda, category, max_attendees, status, images, meeting_link, created_at, updated_at)
VALUES (:id, :title, :description, :date, :end_date, :location, :organizer_id, :woreda, :category, :max_attendees, :status, :images, :meeting_link, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// FindByID returns an event with its attendee id set.
func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.Event, error) {
	query := fmt.Sprintf(`SELECT %s, (SELECT COUNT(*) FROM event_attendees a WHERE a.event_id = e.id) AS attendee_count FROM events e WHERE e.id = $1 LIMIT 1`, eventColumns)
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find event by id: %w", err)
	}

	const attendeesQuery = `SELECT user_id FROM event_attendees WHERE event_id = $1 ORDER BY registered_at ASC`
	if err := r.db.SelectContext(ctx, &event.AttendeeIDs, attendeesQuery, id); err != nil {
		return nil, fmt.Errorf("load event attendees: %w", err)
	}
	return &event, nil
}

// List returns events matching the ad-hoc query with total count.
func (r *EventRepository) List(ctx context.Context, q models.ListQuery) ([]models.Event, int, error) {
	conds := []string{"1=1"}
	var args []interface{}

	extra, args := r.query.conditions(q, args)
	conds = append(conds, extra...)
	where := joinAnd(conds)

	limit := q.Limit
	if limit <= 0 {
		limit = 25
	}

	listQuery := fmt.Sprintf(`SELECT %s, (SELECT COUNT(*) FROM event_attendees a WHERE a.event_id = e.id) AS attendee_count
FROM events e WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		r.query.projection(q, eventColumns), where, r.query.orderBy(q), limit, q.Offset())

	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM events e WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	return events, total, nil
}

// ListByWoredaPattern returns events whose woreda loosely matches, newest
// first.
func (r *EventRepository) ListByWoredaPattern(ctx context.Context, pattern, exact string) ([]models.Event, error) {
	var (
		query string
		arg   interface{}
	)
	base := fmt.Sprintf(`SELECT %s, (SELECT COUNT(*) FROM event_attendees a WHERE a.event_id = e.id) AS attendee_count FROM events e`, eventColumns)
	if pattern != "" {
		query = base + ` WHERE e.woreda ~* $1 ORDER BY e.created_at DESC`
		arg = pattern
	} else {
		query = base + ` WHERE e.woreda = $1 ORDER BY e.created_at DESC`
		arg = exact
	}
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, arg); err != nil {
		return nil, fmt.Errorf("list events by woreda: %w", err)
	}
	return events, nil
}

// Update writes the mutable fields of an event.
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE events SET title = :title, description = :description, date = :date, end_date = :end_date, location = :location, woreda = :woreda, category = :category, max_attendees = :max_attendees, status = :status, images = :images, meeting_link = :meeting_link, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

// Delete removes an event and its attendee rows.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM event_attendees WHERE event_id = $1`, id); err != nil {
		return fmt.Errorf("delete event attendees: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// AddAttendee registers a user for an event. The primary key on
// (event_id, user_id) gives the attendee list set semantics.
func (r *EventRepository) AddAttendee(ctx context.Context, eventID, userID string) error {
	const query = `INSERT INTO event_attendees (event_id, user_id, registered_at) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, eventID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add event attendee: %w", err)
	}
	return nil
}
