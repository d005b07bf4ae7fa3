package models

import "time"

// ResourceCategory classifies shared resources.
type ResourceCategory string

const (
	ResourceDocument ResourceCategory = "Document"
	ResourceGuide    ResourceCategory = "Guide"
	ResourceNotice   ResourceCategory = "Notice"
	ResourceForm     ResourceCategory = "Form"
	ResourceOther    ResourceCategory = "Other"
)

// Resource represents an uploaded file shared with the community.
type Resource struct {
	ID            string            `db:"id" json:"id"`
	Title         string            `db:"title" json:"title"`
	Description   *string           `db:"description" json:"description,omitempty"`
	FileURL       string            `db:"file_url" json:"fileUrl"`
	FileName      *string           `db:"file_name" json:"fileName,omitempty"`
	FileType      *string           `db:"file_type" json:"fileType,omitempty"`
	FileSize      *int64            `db:"file_size" json:"fileSize,omitempty"`
	UploadedBy    string            `db:"uploaded_by" json:"uploadedBy"`
	Department    *Department       `db:"department" json:"department,omitempty"`
	Woreda        *string           `db:"woreda" json:"woreda,omitempty"`
	Category      *ResourceCategory `db:"category" json:"category,omitempty"`
	DownloadCount int               `db:"download_count" json:"downloadCount"`
	IsPublic      bool              `db:"is_public" json:"isPublic"`
	CreatedAt     time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updatedAt"`
}

// ResourceFilter captures scope restrictions for resource listings.
type ResourceFilter struct {
	// PublicOnly restricts to public resources (residents).
	PublicOnly bool
	// Woreda, when set with PublicOnly, limits to the resident's woreda or
	// to unscoped resources.
	Woreda string
	Query  ListQuery
}
