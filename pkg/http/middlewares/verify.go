package middlewares

import (
	"github.com/gofiber/fiber/v2"

	"github.com/polylab/auth/pkg/libs"
	"github.com/polylab/auth/pkg/models"
	"github.com/polylab/auth/pkg/objects"
)

const userLocalKey = "auth.user"

// Verify resolves the session cookie to its owning user and stashes
// the user in the request context. It does not gate on role.
func Verify(c *fiber.Ctx) error {
	sid := c.Cookies(objects.Config.SessionCookieName)
	user, err := objects.Manager.ResolveSession(sid)
	if err != nil {
		return err
	}
	c.Locals(userLocalKey, user)
	c.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Set("Pragma", "no-cache")
	return c.Next()
}

// RequireRole gates a route on the role partial order. Must run after
// Verify.
func RequireRole(required models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := UserFromCtx(c)
		if !ok {
			return libs.NewError(libs.KindUnauthenticated, "Not authenticated")
		}
		if !user.Role.Satisfies(required) {
			return libs.NewError(libs.KindForbidden, "Insufficient role")
		}
		return c.Next()
	}
}

// UserFromCtx returns the user resolved by Verify.
func UserFromCtx(c *fiber.Ctx) (models.User, bool) {
	user, ok := c.Locals(userLocalKey).(models.User)
	return user, ok
}
