package models

import "time"

// MeetingStatus tracks the lifecycle of a virtual meeting.
type MeetingStatus string

const (
	MeetingScheduled MeetingStatus = "Scheduled"
	MeetingCompleted MeetingStatus = "Completed"
	MeetingCancelled MeetingStatus = "Cancelled"
)

// Meeting represents a virtual meeting scheduled by a woreda admin.
type Meeting struct {
	ID          string        `db:"id" json:"id"`
	Title       string        `db:"title" json:"title"`
	Description *string       `db:"description" json:"description,omitempty"`
	MeetingLink string        `db:"meeting_link" json:"meetingLink"`
	ScheduledAt time.Time     `db:"scheduled_at" json:"scheduledAt"`
	Woreda      string        `db:"woreda" json:"woreda"`
	CreatedBy   string        `db:"created_by" json:"createdBy"`
	Status      MeetingStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updatedAt"`

	Participants []MeetingParticipant `db:"-" json:"participants,omitempty"`
}

// MeetingParticipant is one invited participant: either a resolved user
// reference or a bare email address. The participant set is deduplicated by
// user identity.
type MeetingParticipant struct {
	ID        string   `db:"id" json:"-"`
	MeetingID string   `db:"meeting_id" json:"-"`
	UserID    *string  `db:"user_id" json:"user,omitempty"`
	Email     string   `db:"email" json:"email"`
	Role      UserRole `db:"role" json:"role,omitempty"`
}
