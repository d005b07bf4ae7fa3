package middleware

import (
	"context"
	"database/sql"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yegara-dev/community-api/internal/models"
	appErrors "github.com/yegara-dev/community-api/pkg/errors"
	"github.com/yegara-dev/community-api/pkg/response"
)

// AccountLoader resolves the authenticated user record behind a token.
type AccountLoader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Routes exempt from the account-state gates. A user who still has to
// activate or change their password must be able to do exactly that, see who
// they are and leave.
var accountStateAllowList = map[string]struct{}{
	"activate": {},
	"me":       {},
	"logout":   {},
}

// AccountState loads the authenticated user and enforces account readiness:
// inactive staff accounts and accounts that still carry a temporary password
// are blocked everywhere except the allow-listed auth routes.
func AccountState(users AccountLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		user, err := users.FindByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if err == sql.ErrNoRows {
				response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists"))
			} else {
				response.Error(c, err)
			}
			c.Abort()
			return
		}
		c.Set(ContextAccountKey, user)

		if allowListed(c.FullPath()) {
			c.Next()
			return
		}

		// Only staff accounts go through the activation flow. Residents are
		// live from registration, so the active check does not apply to them.
		if !user.IsActive && user.Role != models.RoleResident {
			response.Error(c, appErrors.ErrInactiveAccount)
			c.Abort()
			return
		}
		if user.MustChangePassword {
			response.Error(c, appErrors.ErrPasswordChange)
			c.Abort()
			return
		}
		c.Next()
	}
}

func allowListed(fullPath string) bool {
	if fullPath == "" {
		return false
	}
	segment := fullPath[strings.LastIndex(fullPath, "/")+1:]
	_, ok := accountStateAllowList[segment]
	return ok
}
