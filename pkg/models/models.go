package models

import (
	"time"
)

// Role is the closed set of account roles. Comparisons go through
// Satisfies rather than string equality.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// ParseRole validates a role string coming from storage or a request body.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// Satisfies reports whether a holder of r meets the given requirement.
// Admin satisfies an instructor requirement; an admin requirement
// rejects everyone else, instructors included.
func (r Role) Satisfies(required Role) bool {
	switch required {
	case RoleAdmin:
		return r == RoleAdmin
	case RoleInstructor:
		return r == RoleInstructor || r == RoleAdmin
	case RoleStudent:
		return r == RoleStudent || r == RoleInstructor || r == RoleAdmin
	}
	return false
}

type User struct {
	ID            int64     `db:"id" json:"id,string"`
	Email         string    `db:"email" json:"email"`
	PasswordHash  string    `db:"password_hash" json:"-"`
	EmailVerified bool      `db:"email_verified" json:"email_verified"`
	Role          Role      `db:"role" json:"role"`
	TOTPSecret    string    `db:"totp_secret" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// MFAEnabled reports whether a TOTP secret has been enrolled.
func (u User) MFAEnabled() bool {
	return u.TOTPSecret != ""
}

// Session is an opaque server-side session row. The TTL is fixed at
// creation; there is no sliding renewal.
type Session struct {
	ID        string    `db:"id"`
	UserID    int64     `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

// TokenPurpose scopes a single-use token to exactly one flow.
type TokenPurpose string

const (
	PurposeVerify TokenPurpose = "verify"
	PurposeReset  TokenPurpose = "reset"
	PurposeMFA    TokenPurpose = "mfa"
)

// Token is a single-use, purpose-scoped opaque token. It is looked up
// by exact value and deleted on consumption.
type Token struct {
	ID        int64        `db:"id"`
	UserID    int64        `db:"user_id"`
	Value     string       `db:"token"`
	Purpose   TokenPurpose `db:"purpose"`
	ExpiresAt time.Time    `db:"expires_at"`
}

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// InstructorRequest is a student's application for the instructor role,
// with an uploaded supporting document. Int64 IDs exceed float64's
// exact-integer range, so they go over the wire as strings.
type InstructorRequest struct {
	ID         int64         `db:"id" json:"id,string"`
	UserID     int64         `db:"user_id" json:"user_id,string"`
	Note       string        `db:"note" json:"note,omitempty"`
	FilePath   string        `db:"file_path" json:"file_path"`
	Status     RequestStatus `db:"status" json:"status"`
	DecisionBy int64         `db:"decision_by" json:"decision_by,string,omitempty"`
	DecidedAt  *time.Time    `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

// MFAEnrollment is returned from TOTP enrollment so the client can show
// both the raw secret and a scannable QR code.
type MFAEnrollment struct {
	Secret  string `json:"secret"`
	Otpauth string `json:"otpauth"`
	QRCode  string `json:"qr_png,omitempty"`
}
