package models

import "time"

// UserRole represents the available roles for the access-control system.
type UserRole string

const (
	RoleResident     UserRole = "resident"
	RoleOfficer      UserRole = "officer"
	RoleWoredaAdmin  UserRole = "woreda_admin"
	RoleSubcityAdmin UserRole = "subcity_admin"
)

// Valid reports whether the role is one of the four known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleResident, RoleOfficer, RoleWoredaAdmin, RoleSubcityAdmin:
		return true
	}
	return false
}

// User represents an application user stored in the users table.
// Department is set only for officers; woreda is required for residents and
// woreda admins.
type User struct {
	ID                  string      `db:"id" json:"id"`
	Email               string      `db:"email" json:"email"`
	PasswordHash        string      `db:"password_hash" json:"-"`
	FullName            string      `db:"full_name" json:"fullName"`
	Phone               string      `db:"phone" json:"phone,omitempty"`
	Role                UserRole    `db:"role" json:"role"`
	Woreda              string      `db:"woreda" json:"woreda,omitempty"`
	CustomWoredaName    *string     `db:"custom_woreda_name" json:"customWoredaName,omitempty"`
	Department          *Department `db:"department" json:"department,omitempty"`
	AccessCode          *string     `db:"access_code" json:"-"`
	IsActive            bool        `db:"is_active" json:"isActive"`
	MustChangePassword  bool        `db:"must_change_password" json:"mustChangePassword"`
	LastLogin           *time.Time  `db:"last_login" json:"lastLogin,omitempty"`
	ResetPasswordToken  *string     `db:"reset_password_token" json:"-"`
	ResetPasswordExpire *time.Time  `db:"reset_password_expire" json:"-"`
	ProfileImage        *string     `db:"profile_image" json:"profileImage,omitempty"`
	CreatedAt           time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time   `db:"updated_at" json:"updatedAt"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role          *UserRole
	Department    *Department
	Woreda        string
	WoredaPattern string
	ActiveOnly    bool
}
