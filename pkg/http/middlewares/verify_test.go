package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polylab/auth/pkg/models"
	"github.com/polylab/auth/pkg/objects"
)

var seedID int64 = 100

func seedUser(t *testing.T, role models.Role) (models.User, string) {
	t.Helper()
	seedID++
	user := models.User{
		ID:            seedID,
		Email:         string(role) + "@example.com",
		PasswordHash:  "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		EmailVerified: true,
		Role:          role,
	}
	require.NoError(t, objects.Manager.Store().CreateUser(&user))
	sid, err := objects.Manager.CreateSession(user)
	require.NoError(t, err)
	return user, sid
}

func protectedApp(t *testing.T) *fiber.App {
	app := setupTestApp(t)
	group := app.Group("/app", Verify)
	group.Get("/profile", func(c *fiber.Ctx) error {
		user, _ := UserFromCtx(c)
		return c.JSON(fiber.Map{"email": user.Email})
	})
	admin := group.Group("/admin", RequireRole(models.RoleAdmin))
	admin.Get("/requests", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	instructor := group.Group("/teach", RequireRole(models.RoleInstructor))
	instructor.Get("/courses", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	return app
}

func getWithSession(t *testing.T, app *fiber.App, path, sid string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "session_id", Value: sid})
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestVerifyRejectsMissingSession(t *testing.T) {
	app := protectedApp(t)
	resp := getWithSession(t, app, "/app/profile", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestVerifyRejectsUnknownSession(t *testing.T) {
	app := protectedApp(t)
	resp := getWithSession(t, app, "/app/profile", "nonsense")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestVerifyResolvesUser(t *testing.T) {
	app := protectedApp(t)
	_, sid := seedUser(t, models.RoleStudent)
	resp := getWithSession(t, app, "/app/profile", sid)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Cache-Control"), "no-store")
}

func TestRequireRolePartialOrder(t *testing.T) {
	app := protectedApp(t)
	_, studentSID := seedUser(t, models.RoleStudent)
	_, instructorSID := seedUser(t, models.RoleInstructor)
	_, adminSID := seedUser(t, models.RoleAdmin)

	// instructor routes admit instructors and admins, not students
	assert.Equal(t, http.StatusForbidden, getWithSession(t, app, "/app/teach/courses", studentSID).StatusCode)
	assert.Equal(t, http.StatusOK, getWithSession(t, app, "/app/teach/courses", instructorSID).StatusCode)
	assert.Equal(t, http.StatusOK, getWithSession(t, app, "/app/teach/courses", adminSID).StatusCode)

	// admin routes admit only admins
	assert.Equal(t, http.StatusForbidden, getWithSession(t, app, "/app/admin/requests", studentSID).StatusCode)
	assert.Equal(t, http.StatusForbidden, getWithSession(t, app, "/app/admin/requests", instructorSID).StatusCode)
	assert.Equal(t, http.StatusOK, getWithSession(t, app, "/app/admin/requests", adminSID).StatusCode)
}

func TestVerifyRevokedSession(t *testing.T) {
	app := protectedApp(t)
	_, sid := seedUser(t, models.RoleStudent)
	require.NoError(t, objects.Manager.RevokeSession(sid))
	resp := getWithSession(t, app, "/app/profile", sid)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
