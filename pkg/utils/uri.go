package utils

var (
	HealthURI       = "/health"
	CSRFURI         = "/auth/csrf"
	SignupURI       = "/auth/signup"
	VerifyEmailURI  = "/auth/verify-email"
	LoginURI        = "/auth/login"
	LogoutURI       = "/auth/logout"
	ResetURI        = "/auth/reset"
	ResetConfirmURI = "/auth/reset/confirm"
	MeURI           = "/me"
	MFAEnrollURI    = "/auth/mfa/totp/enroll"
	MFAVerifyURI    = "/auth/mfa/totp/verify"

	RoleRequestsURI      = "/roles/requests"
	AdminRoleRequestsURI = "/admin/roles/requests"
	AdminUserRoleURI     = "/admin/users/:id/role"
)

var (
	VerifyEmailTemplate = "auth/verify-email"
	ErrorTemplate       = "auth/error"
)

// CSRFExemptURIs lists the bootstrap endpoints that accept mutating
// requests without a CSRF proof: a client cannot hold a valid token
// before establishing trust. These endpoints are rate limited and
// strictly validated instead.
func CSRFExemptURIs() []string {
	return []string{
		CSRFURI,
		LoginURI,
		SignupURI,
		VerifyEmailURI,
		ResetURI,
	}
}
