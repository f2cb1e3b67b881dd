package middlewares

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/polylab/auth/pkg/libs"
	"github.com/polylab/auth/pkg/objects"
	"github.com/polylab/auth/pkg/utils"
)

// IssueCSRF generates a fresh token and sets it in the readable
// double-submit cookie. Every call produces a new token.
func IssueCSRF(c *fiber.Ctx) (string, error) {
	token, err := utils.RandomToken(32)
	if err != nil {
		return "", libs.WrapError(libs.KindInternal, "generate CSRF token", err)
	}
	cfg := objects.Config
	c.Cookie(utils.CSRFCookie(cfg.CSRFCookieName, token, cfg.IsProduction()))
	return token, nil
}

// CSRFProtect enforces the double-submit check on unsafe methods. Safe
// methods pass through, as do the bootstrap endpoints a client must be
// able to call before it holds any token.
func CSRFProtect(c *fiber.Ctx) error {
	return csrfProtect(c, utils.CSRFExemptURIs())
}

// CSRFProtectWithPrefix is CSRFProtect for apps mounted under a
// non-root prefix; the bootstrap exemptions move with the mount point.
func CSRFProtectWithPrefix(prefix string) fiber.Handler {
	uris := utils.CSRFExemptURIs()
	exempt := make([]string, 0, len(uris))
	for _, uri := range uris {
		exempt = append(exempt, prefixPath(prefix, uri))
	}
	return func(c *fiber.Ctx) error {
		return csrfProtect(c, exempt)
	}
}

func csrfProtect(c *fiber.Ctx, exemptPaths []string) error {
	switch c.Method() {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return c.Next()
	}

	path := c.Path()
	for _, exempt := range exemptPaths {
		if path == exempt || strings.HasPrefix(path, exempt+"/") {
			return c.Next()
		}
	}

	cfg := objects.Config
	cookie := c.Cookies(cfg.CSRFCookieName)
	header := c.Get(cfg.CSRFHeaderName)
	if cookie == "" || header == "" ||
		subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
		return libs.NewError(libs.KindCsrfMismatch, "CSRF check failed")
	}
	return c.Next()
}

func prefixPath(prefix, uri string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return uri
	}
	return prefix + uri
}
