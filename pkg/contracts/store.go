package contracts

import (
	"errors"
	"time"

	"github.com/polylab/auth/pkg/models"
)

// Sentinel storage errors. Implementations return these so callers can
// branch without driver-specific inspection.
var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// Storage is the persistence boundary for users, sessions, single-use
// tokens and instructor requests.
type Storage interface {
	CreateUser(user *models.User) error
	GetUserByID(id int64) (models.User, error)
	GetUserByEmail(email string) (models.User, error)
	SetUserVerified(id int64) error
	SetUserPassword(id int64, passwordHash string) error
	SetUserTOTPSecret(id int64, secret string) error
	SetUserRole(id int64, role models.Role) error

	CreateSession(session models.Session) error
	GetSession(id string) (models.Session, error)
	DeleteSession(id string) error
	DeleteExpiredSessions(now time.Time) (int64, error)

	CreateToken(token models.Token) error
	GetToken(value string, purpose models.TokenPurpose) (models.Token, error)
	// DeleteToken reports whether a row was actually removed. Under
	// concurrent consumption exactly one caller observes true.
	DeleteToken(value string, purpose models.TokenPurpose) (bool, error)
	DeleteExpiredTokens(now time.Time) (int64, error)

	CreateInstructorRequest(req *models.InstructorRequest) error
	GetInstructorRequest(id int64) (models.InstructorRequest, error)
	ListInstructorRequests(status models.RequestStatus) ([]models.InstructorRequest, error)
	UpdateInstructorRequest(req models.InstructorRequest) error
}
