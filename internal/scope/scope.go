// Package scope computes the effective record visibility for a requesting
// user. Every role-based decision in the API funnels through this package so
// the rules live in one pure, independently testable place instead of being
// scattered across handlers.
package scope

import (
	"github.com/yegara-dev/community-api/internal/models"
	"github.com/yegara-dev/community-api/internal/woreda"
	appErrors "github.com/yegara-dev/community-api/pkg/errors"
)

// Kind names a record collection a scope applies to.
type Kind string

const (
	KindReports   Kind = "reports"
	KindUsers     Kind = "users"
	KindEvents    Kind = "events"
	KindMeetings  Kind = "meetings"
	KindResources Kind = "resources"
)

// Denial reasons surfaced in authorization errors.
const (
	reasonRole     = "role is not permitted to perform this action"
	reasonDistrict = "record is outside your woreda"
	reasonSelf     = "cannot perform this action on your own account"
)

// Scope is the effective filter bounding which records the actor may see.
// Exactly the fields relevant to the actor's role are set; repositories
// translate them to storage predicates.
type Scope struct {
	// Unrestricted grants full visibility (sub-city admins).
	Unrestricted bool
	// OwnerID restricts to records owned by this user (residents).
	OwnerID string
	// Department restricts reports to one department (officers).
	Department *models.Department
	// Woreda plus WoredaPattern restrict to one district (woreda admins).
	// The pattern is the fuzzy form used for record filters; equality
	// decisions use canonical comparison, never the pattern.
	Woreda        string
	WoredaPattern string
	// PublicOnly restricts resources to public ones (residents).
	PublicOnly bool
}

// ForList resolves the listing scope for the actor over the given kind.
// It is deterministic: same actor and kind always produce the same decision.
func ForList(actor *models.User, kind Kind) (Scope, error) {
	switch actor.Role {
	case models.RoleSubcityAdmin:
		return Scope{Unrestricted: true}, nil

	case models.RoleWoredaAdmin:
		return Scope{
			Woreda:        actor.Woreda,
			WoredaPattern: woreda.MatchPattern(actor.Woreda),
		}, nil

	case models.RoleOfficer:
		switch kind {
		case KindReports:
			dept := models.DepartmentOther
			if actor.Department != nil {
				dept = *actor.Department
			}
			return Scope{Department: &dept}, nil
		case KindUsers:
			return Scope{}, appErrors.Clone(appErrors.ErrForbidden, reasonRole)
		default:
			return Scope{Unrestricted: true}, nil
		}

	case models.RoleResident:
		switch kind {
		case KindReports:
			return Scope{OwnerID: actor.ID}, nil
		case KindUsers:
			return Scope{}, appErrors.Clone(appErrors.ErrForbidden, reasonRole)
		case KindResources:
			return Scope{PublicOnly: true, Woreda: actor.Woreda}, nil
		default:
			return Scope{}, nil
		}
	}

	return Scope{}, appErrors.Clone(appErrors.ErrForbidden, reasonRole)
}

// CanReadReport decides whether the actor may view one report.
func CanReadReport(actor *models.User, report *models.Report) error {
	switch actor.Role {
	case models.RoleResident:
		if report.ResidentID != actor.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "not authorized to access this report")
		}
	case models.RoleOfficer:
		if actor.Department == nil || report.Department != *actor.Department {
			return appErrors.Clone(appErrors.ErrForbidden, "not authorized to access this report")
		}
	case models.RoleWoredaAdmin:
		if !woreda.Same(report.Woreda, actor.Woreda) {
			return appErrors.Clone(appErrors.ErrForbidden, reasonDistrict)
		}
	}
	return nil
}

// CanMutateReport decides whether the actor may change one report. Residents
// may mutate only their own reports; officers only reports in their
// department.
func CanMutateReport(actor *models.User, report *models.Report) error {
	switch actor.Role {
	case models.RoleResident:
		if report.ResidentID != actor.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "not authorized to update this report")
		}
	case models.RoleOfficer:
		if actor.Department == nil || report.Department != *actor.Department {
			return appErrors.Clone(appErrors.ErrForbidden, "not authorized to update this report")
		}
	}
	return nil
}

// CanViewUser decides whether the actor may view another user's record.
func CanViewUser(actor *models.User, target *models.User) error {
	if actor.Role == models.RoleResident && actor.ID != target.ID {
		return appErrors.Clone(appErrors.ErrForbidden, reasonRole)
	}
	if actor.Role == models.RoleWoredaAdmin && !woreda.Same(target.Woreda, actor.Woreda) {
		return appErrors.Clone(appErrors.ErrForbidden, reasonDistrict)
	}
	return nil
}

// CanUpdateUser decides whether the actor may edit another user's record.
func CanUpdateUser(actor *models.User, target *models.User) error {
	if actor.Role == models.RoleResident && actor.ID != target.ID {
		return appErrors.Clone(appErrors.ErrForbidden, reasonRole)
	}
	if actor.Role == models.RoleWoredaAdmin && !woreda.Same(target.Woreda, actor.Woreda) {
		return appErrors.Clone(appErrors.ErrForbidden, reasonDistrict)
	}
	return nil
}

// CanDeleteUser decides whether the actor may delete the target account.
// Self-deletion is a validation failure, not an authorization one: the route
// is reachable for the actor, the request itself is malformed.
func CanDeleteUser(actor *models.User, target *models.User) error {
	if actor.Role != models.RoleWoredaAdmin && actor.Role != models.RoleSubcityAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, reasonRole)
	}
	if actor.Role == models.RoleWoredaAdmin && !woreda.Same(target.Woreda, actor.Woreda) {
		return appErrors.Clone(appErrors.ErrForbidden, reasonDistrict)
	}
	if actor.ID == target.ID {
		return appErrors.Clone(appErrors.ErrValidation, "cannot delete your own account")
	}
	return nil
}

// CanCreateUser decides whether the actor may create an account with the
// given role in the given woreda. Sub-city admins create woreda admins only;
// woreda admins create department officers only, within their own district.
func CanCreateUser(actor *models.User, targetRole models.UserRole, targetWoreda string) error {
	switch actor.Role {
	case models.RoleSubcityAdmin:
		if targetRole != models.RoleWoredaAdmin {
			return appErrors.Clone(appErrors.ErrForbidden, "can only create woreda admins")
		}
	case models.RoleWoredaAdmin:
		if targetRole != models.RoleOfficer {
			return appErrors.Clone(appErrors.ErrForbidden, "can only create department officers")
		}
		if !woreda.Same(targetWoreda, actor.Woreda) {
			return appErrors.Clone(appErrors.ErrForbidden, "can only create users in your woreda")
		}
	default:
		return appErrors.Clone(appErrors.ErrForbidden, reasonRole)
	}
	return nil
}

// CanAccessWoreda decides whether the actor may query records of the named
// district. Admin roles only; woreda admins are bound to their own district
// by canonical equality, never the fuzzy pattern.
func CanAccessWoreda(actor *models.User, target string) error {
	switch actor.Role {
	case models.RoleSubcityAdmin:
		return nil
	case models.RoleWoredaAdmin:
		if !woreda.Same(target, actor.Woreda) {
			return appErrors.Clone(appErrors.ErrForbidden, reasonDistrict)
		}
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, reasonRole)
}

// CanAccessDepartment decides whether the actor may query reports of the
// named department. Officers are bound to their own department; residents
// have no department-wide visibility.
func CanAccessDepartment(actor *models.User, target models.Department) error {
	switch actor.Role {
	case models.RoleSubcityAdmin, models.RoleWoredaAdmin:
		return nil
	case models.RoleOfficer:
		if actor.Department == nil || *actor.Department != target {
			return appErrors.Clone(appErrors.ErrForbidden, "not authorized to access this department")
		}
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, reasonRole)
}
