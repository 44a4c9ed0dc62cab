package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Role names understood by the route gates.
const (
	RoleITAdmin          = "ITAdmin"
	RoleDoctor           = "Doctor"
	RoleNurse            = "Nurse"
	RoleReceptionist     = "Receptionist"
	RolePharmacist       = "Pharmacist"
	RolePharmacyTech     = "PharmacyTech"
	RoleInventoryManager = "InventoryManager"
)

// RequireRole returns middleware that admits users holding at least one of
// the given roles. ITAdmin passes every gate.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := UserFromContext(c.Request().Context())
			if user == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if user.Role == RoleITAdmin {
				return next(c)
			}
			for _, required := range roles {
				if user.Role == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
