package models

import (
	"time"

	"github.com/lib/pq"
)

// AudienceAll is the wildcard audience role: everyone sees the announcement.
const AudienceAll = "all"

// Announcement represents a broadcast message targeted at a set of roles,
// optionally scoped to one woreda.
type Announcement struct {
	ID            string         `db:"id" json:"id"`
	Title         string         `db:"title" json:"title"`
	Message       string         `db:"message" json:"message"`
	Category      string         `db:"category" json:"category"`
	AudienceRoles pq.StringArray `db:"audience_roles" json:"audienceRoles"`
	Woreda        *string        `db:"woreda" json:"woreda,omitempty"`
	CreatedBy     string         `db:"created_by" json:"createdBy"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
}

// VisibleTo reports whether the announcement targets the given role.
func (a *Announcement) VisibleTo(role UserRole) bool {
	for _, r := range a.AudienceRoles {
		if r == AudienceAll || r == string(role) {
			return true
		}
	}
	return false
}

// AnnouncementFilter scopes announcement listings to a viewer.
type AnnouncementFilter struct {
	// Roles the viewer matches; the wildcard is added by the repository.
	Role UserRole
	// WoredaPattern limits to the viewer's woreda (fuzzy) when set.
	WoredaPattern string
	Woreda        string
}
