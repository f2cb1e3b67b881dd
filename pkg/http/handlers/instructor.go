package handlers

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/polylab/auth/pkg/http/middlewares"
	"github.com/polylab/auth/pkg/libs"
	"github.com/polylab/auth/pkg/models"
	"github.com/polylab/auth/pkg/objects"
)

// PostInstructorRequest accepts a multipart form with an optional note
// and a required supporting document, stores the file under the upload
// directory with a generated name, and records the application.
func PostInstructorRequest(c *fiber.Ctx) error {
	user, ok := middlewares.UserFromCtx(c)
	if !ok {
		return libs.NewError(libs.KindUnauthenticated, "Not authenticated")
	}
	if user.Role != models.RoleStudent {
		return libs.NewError(libs.KindInvalidInput, "Only students can request the instructor role")
	}
	file, err := c.FormFile("file")
	if err != nil {
		return libs.NewError(libs.KindInvalidInput, "Supporting document is required")
	}
	uploadDir := objects.Config.UploadDir
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return libs.WrapError(libs.KindInternal, "create upload dir", err)
	}
	name := uuid.New().String() + filepath.Ext(file.Filename)
	dest := filepath.Join(uploadDir, name)
	if err := c.SaveFile(file, dest); err != nil {
		return libs.WrapError(libs.KindInternal, "save uploaded file", err)
	}
	req, err := objects.Manager.SubmitInstructorRequest(user.ID, c.FormValue("note"), dest)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// GetInstructorRequests lists applications, optionally filtered by
// ?status=pending|approved|rejected. Admin only at the route level.
func GetInstructorRequests(c *fiber.Ctx) error {
	status := models.RequestStatus(c.Query("status"))
	switch status {
	case "", models.StatusPending, models.StatusApproved, models.StatusRejected:
	default:
		return libs.NewError(libs.KindInvalidInput, "Unknown status filter")
	}
	reqs, err := objects.Manager.ListInstructorRequests(status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"requests": reqs})
}

// PostApproveRequest grants the instructor role for a pending request.
func PostApproveRequest(c *fiber.Ctx) error {
	return decideRequest(c, true)
}

// PostRejectRequest marks a pending request as rejected.
func PostRejectRequest(c *fiber.Ctx) error {
	return decideRequest(c, false)
}

func decideRequest(c *fiber.Ctx, approve bool) error {
	admin, ok := middlewares.UserFromCtx(c)
	if !ok {
		return libs.NewError(libs.KindUnauthenticated, "Not authenticated")
	}
	requestID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return libs.NewError(libs.KindInvalidInput, "Invalid request id")
	}
	if err := objects.Manager.DecideInstructorRequest(requestID, admin.ID, approve); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true})
}
