package responses

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/polylab/auth/pkg/models"
	"github.com/polylab/auth/pkg/objects"
)

// OK is the terse success body used by action endpoints.
func OK(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

// UserProfile shapes the caller-visible view of an account. The
// password hash and TOTP secret never leave the server, and the ID is
// a string so JSON clients cannot lose its low bits to float64.
func UserProfile(user models.User) fiber.Map {
	return fiber.Map{
		"id":             strconv.FormatInt(user.ID, 10),
		"email":          user.Email,
		"role":           user.Role,
		"email_verified": user.EmailVerified,
		"mfa_enabled":    user.MFAEnabled(),
	}
}

// Render draws a server-side template through the configured view
// engine, falling back to JSON when no engine is installed.
func Render(c *fiber.Ctx, template string, data any, layouts ...string) error {
	if template == "" || objects.ViewEngine == nil {
		return c.JSON(data)
	}
	if objects.Layout != "" && len(layouts) == 0 {
		layouts = []string{objects.Layout}
	}
	c.Set("Content-Type", "text/html; charset=utf-8")
	return objects.ViewEngine.Render(c.Response().BodyWriter(), template, data, layouts...)
}
