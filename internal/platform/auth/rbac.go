package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medilink/telehealth/internal/platform/apperr"
)

// RequireRole rejects callers whose token role is not one of roles. Admin is
// not implied; list it explicitly where admins are allowed.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := allowed[RoleFromContext(c.Request().Context())]; ok {
				return next(c)
			}
			return apperr.Forbidden("this action requires the %s role", strings.Join(roles, " or "))
		}
	}
}

// ValidRole reports whether role is one of the account roles.
func ValidRole(role string) bool {
	switch role {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}
