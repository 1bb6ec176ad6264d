package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/access"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// RequireDepartmentAccess rejects authenticated staff whose profile grants no scope.
func RequireDepartmentAccess() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if access.ScopeFor(principal.Profile).IsDenied() {
			return apperrors.NewForbidden("staff profile has no department access")
		}
		return c.Next()
	}
}
