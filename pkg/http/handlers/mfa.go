package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/polylab/auth/pkg/http/middlewares"
	"github.com/polylab/auth/pkg/http/requests"
	"github.com/polylab/auth/pkg/libs"
	"github.com/polylab/auth/pkg/objects"
)

// PostMFAEnroll generates (or overwrites) the caller's TOTP secret and
// returns it with the provisioning URI and a QR data URL. Re-enrolling
// invalidates the previous secret immediately.
func PostMFAEnroll(c *fiber.Ctx) error {
	user, ok := middlewares.UserFromCtx(c)
	if !ok {
		return libs.NewError(libs.KindUnauthenticated, "Not authenticated")
	}
	enrollment, err := objects.Manager.EnrollTOTP(user)
	if err != nil {
		return err
	}
	return c.JSON(enrollment)
}

// PostMFAVerify completes a pending MFA challenge: the single-use
// token from the login response plus a current code open a session.
func PostMFAVerify(c *fiber.Ctx) error {
	var req requests.MFAVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return libs.NewError(libs.KindInvalidInput, "Unable to parse request body")
	}
	if req.MFAToken == "" || req.Code == "" {
		return libs.NewError(libs.KindInvalidInput, "MFA token and code are required")
	}
	_, sessionID, err := objects.Manager.CompleteMFAChallenge(req.MFAToken, req.Code)
	if err != nil {
		return err
	}
	if err := setSessionCookies(c, sessionID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true})
}
