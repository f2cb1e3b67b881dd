package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/polylab/auth/pkg/http/middlewares"
	"github.com/polylab/auth/pkg/http/requests"
	"github.com/polylab/auth/pkg/http/responses"
	"github.com/polylab/auth/pkg/libs"
	"github.com/polylab/auth/pkg/models"
	"github.com/polylab/auth/pkg/objects"
)

// GetMe returns the authenticated caller's profile.
func GetMe(c *fiber.Ctx) error {
	user, ok := middlewares.UserFromCtx(c)
	if !ok {
		return libs.NewError(libs.KindUnauthenticated, "Not authenticated")
	}
	return c.JSON(responses.UserProfile(user))
}

// PostUserRole is the administrative role override. Route-level
// middleware has already verified the caller is an admin.
func PostUserRole(c *fiber.Ctx) error {
	userID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return libs.NewError(libs.KindInvalidInput, "Invalid user id")
	}
	var req requests.RoleOverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return libs.NewError(libs.KindInvalidInput, "Unable to parse request body")
	}
	role, ok := models.ParseRole(req.Role)
	if !ok {
		return libs.NewError(libs.KindInvalidInput, "Unknown role")
	}
	if err := objects.Manager.OverrideUserRole(userID, role); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "new_role": role})
}
