package libs

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polylab/auth/pkg/config"
	"github.com/polylab/auth/pkg/models"
	"github.com/polylab/auth/pkg/storage"
)

// captureNotifier records messages so tests can fish links out of them.
type captureNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *captureNotifier) Notify(recipient, subject, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, body)
}

// lastToken extracts the token query parameter from the most recent
// notification body.
func (n *captureNotifier) lastToken(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.messages)
	body := n.messages[len(n.messages)-1]
	_, token, ok := strings.Cut(body, "token=")
	require.True(t, ok, "no token in notification: %q", body)
	return token
}

func testConfig() *config.Config {
	return &config.Config{
		AppName:            "auth-test",
		Env:                "development",
		SessionCookieName:  "session_id",
		SessionTTL:         120 * time.Minute,
		CSRFCookieName:     "csrf_token",
		CSRFHeaderName:     "X-CSRF-Token",
		RateLimitPerWindow: 120,
		RateLimitWindow:    time.Minute,
		MaxLoginAttempts:   5,
		LoginCooldown:      15 * time.Minute,
		VerifyTokenTTL:     60 * time.Minute,
		ResetTokenTTL:      30 * time.Minute,
		MFATokenTTL:        5 * time.Minute,
		TOTPIssuer:         "PolyLab",
		NotifierKind:       "console",
	}
}

func newTestManager(t *testing.T) (*Manager, *captureNotifier) {
	t.Helper()
	m := NewManager(storage.NewMemoryStorage(), testConfig(), nil)
	notifier := &captureNotifier{}
	m.SetNotifier(notifier)
	return m, notifier
}

const testPassword = "Sup3r-Secret!"

func signupVerified(t *testing.T, m *Manager, notifier *captureNotifier, email string) models.User {
	t.Helper()
	user, err := m.Signup(email, testPassword)
	require.NoError(t, err)
	require.NoError(t, m.VerifyEmail(notifier.lastToken(t)))
	verified, err := m.Store().GetUserByID(user.ID)
	require.NoError(t, err)
	return verified
}

func TestSignupCreatesUnverifiedStudent(t *testing.T) {
	m, notifier := newTestManager(t)

	user, err := m.Signup("alice@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.False(t, user.EmailVerified)
	assert.NotEqual(t, testPassword, user.PasswordHash)
	assert.NotEmpty(t, notifier.lastToken(t))
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Signup("alice@example.com", testPassword)
	require.NoError(t, err)
	_, err = m.Signup("alice@example.com", testPassword)
	assert.True(t, IsKind(err, KindInvalidInput))
}

func TestSignupRejectsWeakPassword(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Signup("alice@example.com", "weak")
	assert.True(t, IsKind(err, KindInvalidInput))
}

func TestVerifyEmailTokenIsSingleUse(t *testing.T) {
	m, notifier := newTestManager(t)

	_, err := m.Signup("alice@example.com", testPassword)
	require.NoError(t, err)
	token := notifier.lastToken(t)

	require.NoError(t, m.VerifyEmail(token))
	err = m.VerifyEmail(token)
	assert.True(t, IsKind(err, KindInvalidInput))
}

func TestLoginStateMachine(t *testing.T) {
	m, notifier := newTestManager(t)

	// unknown account
	_, err := m.Login("ghost@example.com", testPassword, "", "client-1")
	assert.True(t, IsKind(err, KindInvalidCredentials))

	user, err := m.Signup("alice@example.com", testPassword)
	require.NoError(t, err)

	// wrong password
	_, err = m.Login("alice@example.com", "Wr0ng-Pass!", "", "client-1")
	assert.True(t, IsKind(err, KindInvalidCredentials))

	// right password but unverified email
	_, err = m.Login("alice@example.com", testPassword, "", "client-1")
	assert.True(t, IsKind(err, KindEmailNotVerified))

	require.NoError(t, m.VerifyEmail(notifier.lastToken(t)))
	result, err := m.Login("alice@example.com", testPassword, "", "client-1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, user.ID, result.User.ID)
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	m, notifier := newTestManager(t)
	signupVerified(t, m, notifier, "alice@example.com")

	for i := 0; i < 5; i++ {
		_, err := m.Login("alice@example.com", "Wr0ng-Pass!", "", "client-1")
		assert.True(t, IsKind(err, KindInvalidCredentials))
	}
	// even the correct password is refused while blocked
	_, err := m.Login("alice@example.com", testPassword, "", "client-1")
	assert.True(t, IsKind(err, KindRateLimited))

	// a different client key is unaffected
	result, err := m.Login("alice@example.com", testPassword, "", "client-2")
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)
}

func TestSessionLifecycle(t *testing.T) {
	m, notifier := newTestManager(t)
	user := signupVerified(t, m, notifier, "alice@example.com")

	sid, err := m.CreateSession(user)
	require.NoError(t, err)

	resolved, err := m.ResolveSession(sid)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)

	require.NoError(t, m.RevokeSession(sid))
	_, err = m.ResolveSession(sid)
	assert.True(t, IsKind(err, KindUnauthenticated))

	// revoking again is a no-op
	assert.NoError(t, m.RevokeSession(sid))
}

func TestResolveSessionExpiry(t *testing.T) {
	m, notifier := newTestManager(t)
	user := signupVerified(t, m, notifier, "alice@example.com")

	sid, err := m.CreateSession(user)
	require.NoError(t, err)

	m.SetClock(func() time.Time { return time.Now().Add(121 * time.Minute) })
	_, err = m.ResolveSession(sid)
	assert.True(t, IsKind(err, KindUnauthenticated))
}

func TestConsumeTokenExactlyOnce(t *testing.T) {
	m, notifier := newTestManager(t)
	user := signupVerified(t, m, notifier, "alice@example.com")

	token, err := m.IssueToken(user.ID, models.PurposeReset, 30*time.Minute)
	require.NoError(t, err)

	got, err := m.ConsumeToken(token, models.PurposeReset)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = m.ConsumeToken(token, models.PurposeReset)
	assert.True(t, IsKind(err, KindInvalidInput))
}

func TestConsumeTokenWrongPurpose(t *testing.T) {
	m, notifier := newTestManager(t)
	user := signupVerified(t, m, notifier, "alice@example.com")

	token, err := m.IssueToken(user.ID, models.PurposeReset, 30*time.Minute)
	require.NoError(t, err)

	_, err = m.ConsumeToken(token, models.PurposeVerify)
	assert.True(t, IsKind(err, KindInvalidInput))

	// still spendable under the right purpose
	_, err = m.ConsumeToken(token, models.PurposeReset)
	assert.NoError(t, err)
}

func TestConsumeTokenExpired(t *testing.T) {
	m, notifier := newTestManager(t)
	user := signupVerified(t, m, notifier, "alice@example.com")

	token, err := m.IssueToken(user.ID, models.PurposeReset, 0)
	require.NoError(t, err)

	m.SetClock(func() time.Time { return time.Now().Add(time.Second) })
	_, err = m.ConsumeToken(token, models.PurposeReset)
	assert.True(t, IsKind(err, KindInvalidInput))
}

func TestPasswordResetFlow(t *testing.T) {
	m, notifier := newTestManager(t)
	signupVerified(t, m, notifier, "alice@example.com")

	m.StartPasswordReset("alice@example.com")
	token := notifier.lastToken(t)

	const newPassword = "N3w-Secret-Pass!"
	require.NoError(t, m.ConfirmPasswordReset(token, newPassword))

	_, err := m.Login("alice@example.com", testPassword, "", "client-1")
	assert.True(t, IsKind(err, KindInvalidCredentials))

	result, err := m.Login("alice@example.com", newPassword, "", "client-2")
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)

	// the token was consumed by the first confirm
	err = m.ConfirmPasswordReset(token, "An0ther-Pass!")
	assert.True(t, IsKind(err, KindInvalidInput))
}

func TestStartPasswordResetUnknownEmailIsSilent(t *testing.T) {
	m, notifier := newTestManager(t)

	m.StartPasswordReset("ghost@example.com")
	assert.Empty(t, notifier.messages)
}

func TestMFAChallengeFlow(t *testing.T) {
	m, notifier := newTestManager(t)
	user := signupVerified(t, m, notifier, "alice@example.com")

	enrollment, err := m.EnrollTOTP(user)
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.Secret)
	assert.Contains(t, enrollment.Otpauth, "PolyLab")

	// credentials alone now yield a challenge, not a session
	result, err := m.Login("alice@example.com", testPassword, "", "client-1")
	assert.True(t, IsKind(err, KindMfaRequired))
	require.NotEmpty(t, result.MFAToken)
	assert.Empty(t, result.SessionID)

	// wrong code leaves the challenge open
	_, _, err = m.CompleteMFAChallenge(result.MFAToken, "000000")
	assert.True(t, IsKind(err, KindInvalidInput))

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)
	got, sid, err := m.CompleteMFAChallenge(result.MFAToken, code)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.NotEmpty(t, sid)

	// the challenge token was spent
	_, _, err = m.CompleteMFAChallenge(result.MFAToken, code)
	assert.True(t, IsKind(err, KindInvalidInput))
}

func TestLoginWithInlineTOTPCode(t *testing.T) {
	m, notifier := newTestManager(t)
	user := signupVerified(t, m, notifier, "alice@example.com")

	enrollment, err := m.EnrollTOTP(user)
	require.NoError(t, err)

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)
	result, err := m.Login("alice@example.com", testPassword, code, "client-1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)
}

func TestInstructorRequestApproval(t *testing.T) {
	m, notifier := newTestManager(t)
	student := signupVerified(t, m, notifier, "alice@example.com")
	admin := signupVerified(t, m, notifier, "admin@example.com")
	require.NoError(t, m.OverrideUserRole(admin.ID, models.RoleAdmin))

	req, err := m.SubmitInstructorRequest(student.ID, "I teach Go", "uploads/cv.pdf")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, req.Status)

	pending, err := m.ListInstructorRequests(models.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, m.DecideInstructorRequest(req.ID, admin.ID, true))

	promoted, err := m.Store().GetUserByID(student.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleInstructor, promoted.Role)

	// already decided
	err = m.DecideInstructorRequest(req.ID, admin.ID, false)
	assert.True(t, IsKind(err, KindInvalidInput))
}

func TestInstructorRequestRejectionKeepsRole(t *testing.T) {
	m, notifier := newTestManager(t)
	student := signupVerified(t, m, notifier, "alice@example.com")

	req, err := m.SubmitInstructorRequest(student.ID, "", "uploads/cv.pdf")
	require.NoError(t, err)
	require.NoError(t, m.DecideInstructorRequest(req.ID, 42, false))

	unchanged, err := m.Store().GetUserByID(student.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, unchanged.Role)
}

func TestOverrideUserRoleUnknownUser(t *testing.T) {
	m, _ := newTestManager(t)
	err := m.OverrideUserRole(999, models.RoleAdmin)
	assert.True(t, IsKind(err, KindNotFound))
}
