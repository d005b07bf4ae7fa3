package models

import (
	"time"

	"github.com/lib/pq"
)

// Department identifies the municipal department responsible for a report.
type Department string

const (
	DepartmentWater       Department = "Water"
	DepartmentRoad        Department = "Road"
	DepartmentSanitation  Department = "Sanitation"
	DepartmentElectricity Department = "Electricity"
	DepartmentHealth      Department = "Health"
	DepartmentOther       Department = "Other"
)

// ReportCategory is the resident-facing issue category. Categories map 1:1
// onto departments.
type ReportCategory string

const (
	CategoryWater       ReportCategory = "Water"
	CategoryRoad        ReportCategory = "Road"
	CategorySanitation  ReportCategory = "Sanitation"
	CategoryElectricity ReportCategory = "Electricity"
	CategoryHealth      ReportCategory = "Health"
	CategoryOther       ReportCategory = "Other"
)

// DepartmentForCategory derives the responsible department from a category.
// Unrecognised categories fall back to Other.
func DepartmentForCategory(category ReportCategory) Department {
	switch category {
	case CategoryWater:
		return DepartmentWater
	case CategoryRoad:
		return DepartmentRoad
	case CategorySanitation:
		return DepartmentSanitation
	case CategoryElectricity:
		return DepartmentElectricity
	case CategoryHealth:
		return DepartmentHealth
	default:
		return DepartmentOther
	}
}

// ReportStatus tracks a report through its lifecycle.
type ReportStatus string

const (
	StatusPending    ReportStatus = "Pending"
	StatusInProgress ReportStatus = "In Progress"
	StatusResolved   ReportStatus = "Resolved"
	StatusRejected   ReportStatus = "Rejected"
)

// Valid reports whether the status is one of the four lifecycle states.
func (s ReportStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s ReportStatus) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// ReportPriority orders reports for triage.
type ReportPriority string

const (
	PriorityLow    ReportPriority = "Low"
	PriorityMedium ReportPriority = "Medium"
	PriorityHigh   ReportPriority = "High"
)

// Report represents a resident-filed issue report.
type Report struct {
	ID              string         `db:"id" json:"id"`
	Title           string         `db:"title" json:"title"`
	Description     string         `db:"description" json:"description"`
	Category        ReportCategory `db:"category" json:"category"`
	Department      Department     `db:"department" json:"department"`
	Status          ReportStatus   `db:"status" json:"status"`
	Priority        ReportPriority `db:"priority" json:"priority"`
	ResidentID      string         `db:"resident_id" json:"residentId"`
	Woreda          string         `db:"woreda" json:"woreda"`
	AssignedOfficer *string        `db:"assigned_officer" json:"assignedOfficer,omitempty"`
	Latitude        *float64       `db:"latitude" json:"latitude,omitempty"`
	Longitude       *float64       `db:"longitude" json:"longitude,omitempty"`
	Address         *string        `db:"address" json:"address,omitempty"`
	Images          pq.StringArray `db:"images" json:"images"`
	ResolvedAt      *time.Time     `db:"resolved_at" json:"resolvedAt,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updatedAt"`

	// Updates holds the append-only status history, newest last. Populated
	// on single-report reads.
	Updates []ReportUpdate `db:"-" json:"updates,omitempty"`
}

// ReportUpdate is one entry in a report's append-only update log. Entries are
// never edited or reordered once written.
type ReportUpdate struct {
	ID        string       `db:"id" json:"id"`
	ReportID  string       `db:"report_id" json:"reportId"`
	Status    ReportStatus `db:"status" json:"status"`
	Message   string       `db:"message" json:"message"`
	UpdatedBy string       `db:"updated_by" json:"updatedBy"`
	CreatedAt time.Time    `db:"created_at" json:"timestamp"`
}

// ReportFilter captures scope restrictions and ad-hoc query filters for
// report listings.
type ReportFilter struct {
	ResidentID    string
	Department    *Department
	Woreda        string
	WoredaPattern string
	Query         ListQuery
}
