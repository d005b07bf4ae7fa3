package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/yegara-dev/community-api/internal/models"
)

type accountLoaderStub struct {
	user *models.User
}

func (s accountLoaderStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func newAccountStateRouter(user *models.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleOfficer})
	})
	r.Use(AccountState(accountLoaderStub{user: user}))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/api/reports", ok)
	r.GET("/api/auth/me", ok)
	r.PUT("/api/auth/activate", ok)
	return r
}

func perform(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestAccountStateActiveAccountPasses(t *testing.T) {
	r := newAccountStateRouter(&models.User{ID: "u1", IsActive: true})
	require.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/api/reports").Code)
}

func TestAccountStateInactiveAccountBlocked(t *testing.T) {
	r := newAccountStateRouter(&models.User{ID: "u1", Role: models.RoleOfficer, IsActive: false})
	require.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/api/reports").Code)
}

func TestAccountStateInactiveResidentPasses(t *testing.T) {
	// Residents skip the activation flow entirely, so the flag never locks
	// them out. A pending password change still does.
	r := newAccountStateRouter(&models.User{ID: "u1", Role: models.RoleResident, IsActive: false})
	require.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/api/reports").Code)

	r = newAccountStateRouter(&models.User{ID: "u1", Role: models.RoleResident, IsActive: false, MustChangePassword: true})
	require.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/api/reports").Code)
}

func TestAccountStateInactiveAccountMayActivate(t *testing.T) {
	r := newAccountStateRouter(&models.User{ID: "u1", IsActive: false})
	require.Equal(t, http.StatusOK, perform(r, http.MethodPut, "/api/auth/activate").Code)
	require.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/api/auth/me").Code)
}

func TestAccountStatePendingPasswordChangeBlocked(t *testing.T) {
	r := newAccountStateRouter(&models.User{ID: "u1", IsActive: true, MustChangePassword: true})
	require.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/api/reports").Code)
	require.Equal(t, http.StatusOK, perform(r, http.MethodPut, "/api/auth/activate").Code)
}

func TestAccountStateDeletedAccountUnauthorized(t *testing.T) {
	r := newAccountStateRouter(nil)
	require.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/api/reports").Code)
}
