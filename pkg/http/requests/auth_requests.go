package requests

type SignupRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	TOTP     string `json:"totp" form:"totp"`
}

type ResetRequest struct {
	Email string `json:"email" form:"email"`
}

type ResetConfirmRequest struct {
	Token       string `json:"token" form:"token"`
	NewPassword string `json:"new_password" form:"new_password"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" form:"token" query:"token"`
}
