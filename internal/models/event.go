package models

import (
	"time"

	"github.com/lib/pq"
)

// EventStatus tracks the publication state of a community event.
type EventStatus string

const (
	EventUpcoming  EventStatus = "Upcoming"
	EventOngoing   EventStatus = "Ongoing"
	EventCompleted EventStatus = "Completed"
	EventRejected  EventStatus = "Rejected"
	EventCancelled EventStatus = "Cancelled"
)

// OpenForRegistration reports whether attendees may still register.
func (s EventStatus) OpenForRegistration() bool {
	return s != EventCancelled && s != EventCompleted
}

// Event represents a community event organised within a woreda.
type Event struct {
	ID           string         `db:"id" json:"id"`
	Title        string         `db:"title" json:"title"`
	Description  *string        `db:"description" json:"description,omitempty"`
	Date         time.Time      `db:"date" json:"date"`
	EndDate      *time.Time     `db:"end_date" json:"endDate,omitempty"`
	Location     string         `db:"location" json:"location"`
	OrganizerID  string         `db:"organizer_id" json:"organizer"`
	Woreda       string         `db:"woreda" json:"woreda"`
	Category     *string        `db:"category" json:"category,omitempty"`
	MaxAttendees *int           `db:"max_attendees" json:"maxAttendees,omitempty"`
	Status       EventStatus    `db:"status" json:"status"`
	Images       pq.StringArray `db:"images" json:"images"`
	MeetingLink  *string        `db:"meeting_link" json:"meetingLink,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updatedAt"`

	// AttendeeIDs is populated on single-event reads. Set semantics: a user
	// registers at most once.
	AttendeeIDs []string `db:"-" json:"attendees,omitempty"`
	// AttendeeCount is populated on listings.
	AttendeeCount int `db:"attendee_count" json:"attendeeCount"`
}
