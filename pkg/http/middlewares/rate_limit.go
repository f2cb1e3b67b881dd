package middlewares

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/polylab/auth/pkg/libs"
	"github.com/polylab/auth/pkg/objects"
	"github.com/polylab/auth/pkg/utils"
)

// RateLimit admits or rejects the request against the client's sliding
// window. Rejected requests still count toward the window, so bursting
// into the limit cannot reset it.
func RateLimit(c *fiber.Ctx) error {
	clientIP := utils.GetClientIP(c)
	if !objects.Manager.Security().Allow(clientIP) {
		objects.Manager.Logger().Warn("rate limit exceeded",
			zap.String("client_ip", clientIP),
			zap.String("path", c.Path()),
		)
		return libs.NewError(libs.KindRateLimited, "Rate limit exceeded")
	}
	return c.Next()
}

// RateLimitWithMax creates a rate limiting middleware with a custom
// per-window limit for endpoints that need tighter throttling.
func RateLimitWithMax(maxRequests int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientIP := utils.GetClientIP(c)
		if !objects.Manager.Security().AllowN(clientIP+":"+c.Path(), maxRequests) {
			return libs.NewError(libs.KindRateLimited, "Rate limit exceeded")
		}
		return c.Next()
	}
}
