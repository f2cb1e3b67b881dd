package middlewares

import (
	"github.com/gofiber/fiber/v2"

	"github.com/polylab/auth/pkg/objects"
)

// SecurityHeaders adds the standard hardening headers to every
// response. HSTS is sent only when enabled for HTTPS deployments.
func SecurityHeaders(c *fiber.Ctx) error {
	cfg := objects.Config
	if !cfg.EnableSecurityHeaders {
		return c.Next()
	}
	err := c.Next()

	c.Set("X-Content-Type-Options", "nosniff")
	c.Set("X-Frame-Options", "DENY")
	c.Set("Referrer-Policy", "no-referrer")
	c.Set("Content-Security-Policy",
		"default-src 'self'; script-src 'self' 'unsafe-inline'; "+
			"style-src 'self' 'unsafe-inline'; img-src 'self' data: blob:; "+
			"connect-src 'self' "+cfg.FrontendOrigin+"; frame-ancestors 'none';")
	if cfg.HSTSEnabled {
		c.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
	}
	return err
}
