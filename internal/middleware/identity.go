package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	authpkg "github.com/octobees/contact-collector/internal/auth"
)

// Identity resolves who is making the request for quota accounting. A valid
// bearer token yields the email and plan from its claims; everything else,
// including a missing or unparseable token, falls back to the client IP on
// the free plan. Authentication itself lives outside this service.
func Identity(manager *authpkg.JWTManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity := c.RealIP()
			plan := "free"

			if header := c.Request().Header.Get("Authorization"); header != "" {
				parts := strings.SplitN(header, " ", 2)
				if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
					if claims, err := manager.ParseToken(parts[1]); err == nil && claims.Email != "" {
						identity = strings.ToLower(claims.Email)
						if claims.Plan != "" {
							plan = claims.Plan
						}
					}
				}
			}

			c.Set(ContextKeyIdentity, identity)
			c.Set(ContextKeyPlan, plan)

			return next(c)
		}
	}
}

// IdentityFromContext extracts the resolved identity, empty if unset.
func IdentityFromContext(c echo.Context) string {
	if val, ok := c.Get(ContextKeyIdentity).(string); ok {
		return val
	}
	return ""
}

// PlanFromContext extracts the resolved plan, defaulting to free.
func PlanFromContext(c echo.Context) string {
	if val, ok := c.Get(ContextKeyPlan).(string); ok && val != "" {
		return val
	}
	return "free"
}
