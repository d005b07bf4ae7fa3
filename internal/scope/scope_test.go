package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegara-dev/community-api/internal/models"
	appErrors "github.com/yegara-dev/community-api/pkg/errors"
)

func dept(d models.Department) *models.Department { return &d }

func resident(id, w string) *models.User {
	return &models.User{ID: id, Role: models.RoleResident, Woreda: w}
}

func officer(id string, d models.Department) *models.User {
	return &models.User{ID: id, Role: models.RoleOfficer, Department: dept(d)}
}

func woredaAdmin(id, w string) *models.User {
	return &models.User{ID: id, Role: models.RoleWoredaAdmin, Woreda: w}
}

func subcityAdmin(id string) *models.User {
	return &models.User{ID: id, Role: models.RoleSubcityAdmin}
}

func TestForListResidentReportsOwnOnly(t *testing.T) {
	s, err := ForList(resident("u1", "Woreda 05"), KindReports)
	require.NoError(t, err)
	assert.Equal(t, "u1", s.OwnerID)
	assert.False(t, s.Unrestricted)
}

func TestForListResidentCannotListUsers(t *testing.T) {
	_, err := ForList(resident("u1", "Woreda 05"), KindUsers)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestForListOfficerReportsByDepartment(t *testing.T) {
	s, err := ForList(officer("o1", models.DepartmentWater), KindReports)
	require.NoError(t, err)
	require.NotNil(t, s.Department)
	assert.Equal(t, models.DepartmentWater, *s.Department)
	assert.Empty(t, s.Woreda, "officer scope ignores district")
}

func TestForListWoredaAdminFuzzyPattern(t *testing.T) {
	s, err := ForList(woredaAdmin("a1", "Woreda 05"), KindReports)
	require.NoError(t, err)
	assert.Equal(t, "Woreda 05", s.Woreda)
	assert.Equal(t, `w\W*o\W*r\W*e\W*d\W*a\W*0\W*5`, s.WoredaPattern)
}

func TestForListSubcityAdminUnrestricted(t *testing.T) {
	s, err := ForList(subcityAdmin("s1"), KindUsers)
	require.NoError(t, err)
	assert.True(t, s.Unrestricted)
}

func TestForListDeterministic(t *testing.T) {
	actor := woredaAdmin("a1", "Woreda 03")
	first, err1 := ForList(actor, KindUsers)
	second, err2 := ForList(actor, KindUsers)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)
}

func TestOfficerCannotTouchOtherDepartment(t *testing.T) {
	water := officer("o1", models.DepartmentWater)
	report := &models.Report{ID: "r1", Department: models.DepartmentRoad, ResidentID: "u9"}

	err := CanReadReport(water, report)
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)

	err = CanMutateReport(water, report)
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
}

func TestOfficerSameDepartmentAllowed(t *testing.T) {
	road := officer("o2", models.DepartmentRoad)
	report := &models.Report{ID: "r1", Department: models.DepartmentRoad, ResidentID: "u9"}

	assert.NoError(t, CanReadReport(road, report))
	assert.NoError(t, CanMutateReport(road, report))
}

func TestResidentOwnsReport(t *testing.T) {
	owner := resident("u1", "Woreda 05")
	other := resident("u2", "Woreda 05")
	report := &models.Report{ID: "r1", ResidentID: "u1", Woreda: "Woreda 05"}

	assert.NoError(t, CanReadReport(owner, report))
	assert.Error(t, CanReadReport(other, report))
	assert.Error(t, CanMutateReport(other, report))
}

func TestWoredaAdminDistrictEqualityIsCanonical(t *testing.T) {
	admin := woredaAdmin("a1", "Woreda 05")
	inDistrict := &models.Report{ID: "r1", ResidentID: "u1", Woreda: "woreda-05"}
	outOfDistrict := &models.Report{ID: "r2", ResidentID: "u1", Woreda: "Woreda 06"}

	assert.NoError(t, CanReadReport(admin, inDistrict))
	assert.Error(t, CanReadReport(admin, outOfDistrict))
}

func TestResidentCannotDeleteOtherResident(t *testing.T) {
	err := CanDeleteUser(resident("u1", "w"), resident("u2", "w"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAdminSelfDeleteIsValidationError(t *testing.T) {
	admin := subcityAdmin("s1")
	err := CanDeleteUser(admin, admin)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateUserMatrix(t *testing.T) {
	sub := subcityAdmin("s1")
	wa := woredaAdmin("a1", "Woreda 05")

	assert.NoError(t, CanCreateUser(sub, models.RoleWoredaAdmin, "Woreda 09"))
	assert.Error(t, CanCreateUser(sub, models.RoleOfficer, "Woreda 09"))
	assert.Error(t, CanCreateUser(sub, models.RoleSubcityAdmin, ""))

	assert.NoError(t, CanCreateUser(wa, models.RoleOfficer, "woreda 05"))
	assert.Error(t, CanCreateUser(wa, models.RoleOfficer, "Woreda 06"))
	assert.Error(t, CanCreateUser(wa, models.RoleWoredaAdmin, "Woreda 05"))

	assert.Error(t, CanCreateUser(resident("u1", "w"), models.RoleOfficer, "w"))
}

func TestCanAccessWoreda(t *testing.T) {
	admin := woredaAdmin("a1", "Woreda 05")
	assert.NoError(t, CanAccessWoreda(admin, "WOREDA_05"))
	assert.Error(t, CanAccessWoreda(admin, "Woreda 50"))
	assert.NoError(t, CanAccessWoreda(subcityAdmin("s1"), "anything"))
	// Residents and officers have no district-wide view at all.
	assert.Error(t, CanAccessWoreda(resident("u1", "Woreda 05"), "Woreda 05"))
	assert.Error(t, CanAccessWoreda(officer("o1", models.DepartmentWater), "Woreda 05"))
}

func TestCanAccessDepartment(t *testing.T) {
	water := officer("o1", models.DepartmentWater)
	assert.NoError(t, CanAccessDepartment(water, models.DepartmentWater))
	assert.Error(t, CanAccessDepartment(water, models.DepartmentRoad))
	assert.NoError(t, CanAccessDepartment(subcityAdmin("s1"), models.DepartmentRoad))
	assert.NoError(t, CanAccessDepartment(woredaAdmin("a1", "Woreda 05"), models.DepartmentRoad))
	assert.Error(t, CanAccessDepartment(resident("u1", "Woreda 05"), models.DepartmentWater))
}
