package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/polylab/auth/pkg/http/middlewares"
	"github.com/polylab/auth/pkg/http/requests"
	"github.com/polylab/auth/pkg/http/responses"
	"github.com/polylab/auth/pkg/libs"
	"github.com/polylab/auth/pkg/objects"
	"github.com/polylab/auth/pkg/utils"
)

func HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// GetCSRF bootstraps the double-submit cookie and returns the token in
// the body so the client can echo it in the request header.
func GetCSRF(c *fiber.Ctx) error {
	token, err := middlewares.IssueCSRF(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"csrf": token})
}

// PostSignup creates an unverified account and triggers the
// verification notification.
func PostSignup(c *fiber.Ctx) error {
	var req requests.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return libs.NewError(libs.KindInvalidInput, "Unable to parse request body")
	}
	if _, err := objects.Manager.Signup(req.Email, req.Password); err != nil {
		return err
	}
	return responses.OK(c)
}

// VerifyEmailPage handles the link clicked from the email. It renders
// a human-readable confirmation instead of a bare JSON body.
func VerifyEmailPage(c *fiber.Ctx) error {
	var req requests.VerifyEmailRequest
	if err := c.QueryParser(&req); err != nil || req.Token == "" {
		return libs.NewError(libs.KindInvalidInput, "Invalid or expired token")
	}
	if err := objects.Manager.VerifyEmail(req.Token); err != nil {
		c.Status(fiber.StatusBadRequest)
		return responses.Render(c, utils.ErrorTemplate, fiber.Map{
			"Title":   "Verification failed",
			"Message": "This verification link is invalid or has expired.",
		})
	}
	return responses.Render(c, utils.VerifyEmailTemplate, fiber.Map{
		"Title": "Email verified",
	})
}

// PostVerifyEmail is the JSON variant used when the frontend posts the
// token itself.
func PostVerifyEmail(c *fiber.Ctx) error {
	var req requests.VerifyEmailRequest
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		if req.Token = c.Query("token"); req.Token == "" {
			return libs.NewError(libs.KindInvalidInput, "Invalid or expired token")
		}
	}
	if err := objects.Manager.VerifyEmail(req.Token); err != nil {
		return err
	}
	return responses.OK(c)
}

// PostLogin runs the login state machine and, on success, sets the
// session and CSRF cookies. A missing TOTP code on an MFA-enabled
// account returns the challenge token alongside the 401.
func PostLogin(c *fiber.Ctx) error {
	var req requests.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return libs.NewError(libs.KindInvalidInput, "Unable to parse request body")
	}

	result, err := objects.Manager.Login(req.Email, req.Password, req.TOTP, utils.GetClientIP(c))
	if err != nil {
		if libs.IsKind(err, libs.KindMfaRequired) && result.MFAToken != "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":     "MFA TOTP required",
				"mfa_token": result.MFAToken,
			})
		}
		return err
	}

	if err := setSessionCookies(c, result.SessionID); err != nil {
		return err
	}
	return responses.OK(c)
}

// PostLogout revokes the current session and clears both cookies.
// Revoking an already-gone session is not an error.
func PostLogout(c *fiber.Ctx) error {
	cfg := objects.Config
	sid := c.Cookies(cfg.SessionCookieName)
	if err := objects.Manager.RevokeSession(sid); err != nil {
		return err
	}
	c.Cookie(utils.ExpiredCookie(cfg.SessionCookieName))
	c.Cookie(utils.ExpiredCookie(cfg.CSRFCookieName))
	return responses.OK(c)
}

// PostReset always answers success so account existence never leaks.
func PostReset(c *fiber.Ctx) error {
	var req requests.ResetRequest
	if err := c.BodyParser(&req); err != nil {
		return libs.NewError(libs.KindInvalidInput, "Unable to parse request body")
	}
	objects.Manager.StartPasswordReset(req.Email)
	return responses.OK(c)
}

func PostResetConfirm(c *fiber.Ctx) error {
	var req requests.ResetConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return libs.NewError(libs.KindInvalidInput, "Unable to parse request body")
	}
	if err := objects.Manager.ConfirmPasswordReset(req.Token, req.NewPassword); err != nil {
		return err
	}
	return responses.OK(c)
}

// setSessionCookies delivers the session cookie (HTTP-only) and a
// fresh CSRF token (readable) together, as every successful
// authentication does.
func setSessionCookies(c *fiber.Ctx, sessionID string) error {
	cfg := objects.Config
	c.Cookie(utils.SessionCookie(
		cfg.SessionCookieName, sessionID,
		int(cfg.SessionTTL.Seconds()), cfg.IsProduction(),
	))
	_, err := middlewares.IssueCSRF(c)
	return err
}
