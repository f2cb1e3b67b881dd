package requests

type MFAVerifyRequest struct {
	MFAToken string `json:"mfa_token" form:"mfa_token"`
	Code     string `json:"code" form:"code"`
}

type RoleOverrideRequest struct {
	Role string `json:"role" form:"role"`
}
