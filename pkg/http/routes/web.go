package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/polylab/auth/pkg/http/handlers"
	"github.com/polylab/auth/pkg/http/middlewares"
	"github.com/polylab/auth/pkg/models"
	"github.com/polylab/auth/pkg/utils"
)

// Credential-guessing surfaces get a tighter per-endpoint window on
// top of the global limiter.
const guessProneLimit = 30

// Setup registers the public endpoints. Session-backed CSRF exemption
// rules are applied globally by the plugin, not here.
func Setup(prefix string, router fiber.Router) {
	route := router.Group(prefix)
	throttled := middlewares.RateLimitWithMax(guessProneLimit)
	route.Get(utils.HealthURI, handlers.HealthCheck)
	route.Get(utils.CSRFURI, handlers.GetCSRF)
	route.Post(utils.SignupURI, handlers.PostSignup)
	route.Get(utils.VerifyEmailURI, handlers.VerifyEmailPage)
	route.Post(utils.VerifyEmailURI, handlers.PostVerifyEmail)
	route.Post(utils.LoginURI, throttled, handlers.PostLogin)
	route.Post(utils.ResetURI, throttled, handlers.PostReset)
	route.Post(utils.ResetConfirmURI, throttled, handlers.PostResetConfirm)
	route.Post(utils.MFAVerifyURI, throttled, handlers.PostMFAVerify)
}

// ProtectedRoutes registers endpoints that require a valid session.
func ProtectedRoutes(route fiber.Router) {
	route.Get(utils.MeURI, handlers.GetMe)
	route.Post(utils.LogoutURI, handlers.PostLogout)
	route.Post(utils.MFAEnrollURI, handlers.PostMFAEnroll)
	route.Post(utils.RoleRequestsURI, handlers.PostInstructorRequest)
}

// AdminRoutes registers endpoints restricted to administrators.
func AdminRoutes(route fiber.Router) {
	admin := route.Group("/", middlewares.RequireRole(models.RoleAdmin))
	admin.Get(utils.AdminRoleRequestsURI, handlers.GetInstructorRequests)
	admin.Post(utils.AdminRoleRequestsURI+"/:id/approve", handlers.PostApproveRequest)
	admin.Post(utils.AdminRoleRequestsURI+"/:id/reject", handlers.PostRejectRequest)
	admin.Post(utils.AdminUserRoleURI, handlers.PostUserRole)
}
