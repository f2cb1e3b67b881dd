package libs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oarkflow/xid/wuid"
	"go.uber.org/zap"

	"github.com/polylab/auth/pkg/config"
	"github.com/polylab/auth/pkg/contracts"
	"github.com/polylab/auth/pkg/models"
	"github.com/polylab/auth/pkg/utils"
)

const (
	sessionIDBytes = 32
	tokenBytes     = 32

	retryBackoff = 100 * time.Millisecond
)

// Manager composes the credential store, token issuer, session manager
// and TOTP engine over a single Storage, and owns the in-memory
// security state.
type Manager struct {
	store    contracts.Storage
	security contracts.SecurityManager
	notifier contracts.Notifier
	cfg      *config.Config
	log      *zap.Logger

	now func() time.Time
}

func NewManager(store contracts.Storage, cfg *config.Config, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		store:    store,
		security: NewSecurityManager(cfg.RateLimitPerWindow, cfg.RateLimitWindow, cfg.MaxLoginAttempts, cfg.LoginCooldown),
		notifier: NewNotifier(cfg, log),
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

func (m *Manager) Store() contracts.Storage                { return m.store }
func (m *Manager) Security() contracts.SecurityManager     { return m.security }
func (m *Manager) Config() *config.Config                  { return m.cfg }
func (m *Manager) Logger() *zap.Logger                     { return m.log }
func (m *Manager) SetNotifier(n contracts.Notifier)        { m.notifier = n }
func (m *Manager) SetSecurity(s contracts.SecurityManager) { m.security = s }

// SetClock injects a deterministic clock for tests.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// --- Signup and email verification ---

// Signup creates an unverified student account and sends the
// verification link. Notification failure never fails the signup.
func (m *Manager) Signup(email, password string) (models.User, error) {
	if err := utils.ValidateEmail(email); err != nil {
		return models.User{}, NewError(KindInvalidInput, "Invalid email address")
	}
	if !ValidatePasswordPolicy(password) {
		return models.User{}, NewError(KindInvalidInput, "Weak password")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return models.User{}, WrapError(KindInternal, "hash password", err)
	}
	user := models.User{
		ID:           wuid.New().Int64(),
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleStudent,
		CreatedAt:    m.now(),
	}
	if err := m.withRetry(func() error { return m.store.CreateUser(&user) }); err != nil {
		if errors.Is(err, contracts.ErrDuplicateEmail) {
			return models.User{}, NewError(KindInvalidInput, "Email already registered")
		}
		return models.User{}, WrapError(KindInternal, "create user", err)
	}

	m.sendVerificationLink(user)
	return user, nil
}

func (m *Manager) sendVerificationLink(user models.User) {
	token, err := m.IssueToken(user.ID, models.PurposeVerify, m.cfg.VerifyTokenTTL)
	if err != nil {
		m.log.Error("issue verification token", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	link := utils.VerifyEmailURI + "?token=" + token
	m.notifier.Notify(user.Email, "Verify your email", "Open this link to verify your account: "+link)
}

// VerifyEmail consumes a verify-purpose token and marks the owner
// verified.
func (m *Manager) VerifyEmail(token string) error {
	user, err := m.ConsumeToken(token, models.PurposeVerify)
	if err != nil {
		return err
	}
	if err := m.withRetry(func() error { return m.store.SetUserVerified(user.ID) }); err != nil {
		return WrapError(KindInternal, "mark user verified", err)
	}
	return nil
}

// --- Login ---

// LoginResult carries the session on success, or the single-use MFA
// challenge token when credentials were valid but the code is missing.
type LoginResult struct {
	User      models.User
	SessionID string
	MFAToken  string
}

// Login walks the credential -> email-verified -> MFA -> session state
// machine. The failure message never reveals whether the email exists
// or which factor failed, beyond the explicit MFA-required case.
func (m *Manager) Login(email, password, totpCode, clientKey string) (LoginResult, error) {
	if m.security.IsLoginBlocked(clientKey) {
		return LoginResult{}, NewError(KindRateLimited, "Too many failed attempts, try again later")
	}

	user, err := m.store.GetUserByEmail(email)
	if err != nil {
		m.security.RecordFailedLogin(clientKey)
		return LoginResult{}, NewError(KindInvalidCredentials, "Invalid credentials")
	}
	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return LoginResult{}, err
	}
	if !ok {
		m.security.RecordFailedLogin(clientKey)
		return LoginResult{}, NewError(KindInvalidCredentials, "Invalid credentials")
	}
	if !user.EmailVerified {
		return LoginResult{}, NewError(KindEmailNotVerified, "Email not verified")
	}
	if user.MFAEnabled() {
		if totpCode == "" {
			token, issueErr := m.IssueToken(user.ID, models.PurposeMFA, m.cfg.MFATokenTTL)
			if issueErr != nil {
				m.log.Error("issue mfa challenge", zap.Int64("user_id", user.ID), zap.Error(issueErr))
			}
			return LoginResult{MFAToken: token}, NewError(KindMfaRequired, "MFA TOTP required")
		}
		if !VerifyTOTPAt(user.TOTPSecret, totpCode, m.now()) {
			m.security.RecordFailedLogin(clientKey)
			return LoginResult{}, NewError(KindMfaRequired, "MFA TOTP required")
		}
	}

	sid, err := m.CreateSession(user)
	if err != nil {
		return LoginResult{}, err
	}
	m.security.ClearLoginAttempts(clientKey)
	return LoginResult{User: user, SessionID: sid}, nil
}

// --- Sessions ---

// CreateSession persists one new session row per call; concurrent
// sessions per user are allowed. The TTL is fixed from creation.
func (m *Manager) CreateSession(user models.User) (string, error) {
	sid, err := utils.RandomToken(sessionIDBytes)
	if err != nil {
		return "", WrapError(KindInternal, "generate session id", err)
	}
	now := m.now()
	sess := models.Session{
		ID:        sid,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.cfg.SessionTTL),
	}
	if err := m.withRetry(func() error { return m.store.CreateSession(sess) }); err != nil {
		return "", WrapError(KindInternal, "create session", err)
	}
	return sid, nil
}

// ResolveSession maps a session ID to its owning user. Expired rows
// fail resolution but are left for the sweeper.
func (m *Manager) ResolveSession(sessionID string) (models.User, error) {
	if sessionID == "" {
		return models.User{}, NewError(KindUnauthenticated, "Not authenticated")
	}
	sess, err := m.store.GetSession(sessionID)
	if err != nil {
		return models.User{}, NewError(KindUnauthenticated, "Not authenticated")
	}
	if m.now().After(sess.ExpiresAt) {
		return models.User{}, NewError(KindUnauthenticated, "Session expired")
	}
	user, err := m.store.GetUserByID(sess.UserID)
	if err != nil {
		return models.User{}, NewError(KindUnauthenticated, "User not found")
	}
	return user, nil
}

// RevokeSession deletes the session row; revoking an unknown ID is not
// an error.
func (m *Manager) RevokeSession(sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := m.store.DeleteSession(sessionID); err != nil {
		return WrapError(KindInternal, "revoke session", err)
	}
	return nil
}

// --- Single-use tokens ---

// IssueToken stores a fresh 256-bit opaque token scoped to purpose.
func (m *Manager) IssueToken(userID int64, purpose models.TokenPurpose, ttl time.Duration) (string, error) {
	value, err := utils.RandomToken(tokenBytes)
	if err != nil {
		return "", WrapError(KindInternal, "generate token", err)
	}
	tok := models.Token{
		ID:        wuid.New().Int64(),
		UserID:    userID,
		Value:     value,
		Purpose:   purpose,
		ExpiresAt: m.now().Add(ttl),
	}
	if err := m.withRetry(func() error { return m.store.CreateToken(tok) }); err != nil {
		return "", WrapError(KindInternal, "store token", err)
	}
	return value, nil
}

// ConsumeToken atomically spends a token: the conditional delete keyed
// on (value, purpose) succeeds for exactly one of any concurrent
// callers. Expiry is checked here, not by background cleanup.
func (m *Manager) ConsumeToken(value string, purpose models.TokenPurpose) (models.User, error) {
	tok, err := m.store.GetToken(value, purpose)
	if err != nil {
		return models.User{}, NewError(KindInvalidInput, "Invalid or expired token")
	}
	if m.now().After(tok.ExpiresAt) {
		return models.User{}, NewError(KindInvalidInput, "Invalid or expired token")
	}
	deleted, err := m.store.DeleteToken(value, purpose)
	if err != nil {
		return models.User{}, WrapError(KindInternal, "consume token", err)
	}
	if !deleted {
		// lost the race to a concurrent consumer
		return models.User{}, NewError(KindInvalidInput, "Invalid or expired token")
	}
	user, err := m.store.GetUserByID(tok.UserID)
	if err != nil {
		return models.User{}, NewError(KindInvalidInput, "Invalid or expired token")
	}
	return user, nil
}

// PeekToken resolves a token's owner without spending it. Used by the
// MFA challenge flow, where the code is verified before consumption.
func (m *Manager) PeekToken(value string, purpose models.TokenPurpose) (models.User, error) {
	tok, err := m.store.GetToken(value, purpose)
	if err != nil || m.now().After(tok.ExpiresAt) {
		return models.User{}, NewError(KindInvalidInput, "Invalid or expired token")
	}
	user, err := m.store.GetUserByID(tok.UserID)
	if err != nil {
		return models.User{}, NewError(KindInvalidInput, "Invalid or expired token")
	}
	return user, nil
}

// --- Password reset ---

// StartPasswordReset sends a reset link when the account exists. The
// response is identical either way, so account existence never leaks.
func (m *Manager) StartPasswordReset(email string) {
	user, err := m.store.GetUserByEmail(email)
	if err != nil {
		return
	}
	token, err := m.IssueToken(user.ID, models.PurposeReset, m.cfg.ResetTokenTTL)
	if err != nil {
		m.log.Error("issue reset token", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	link := utils.ResetConfirmURI + "?token=" + token
	m.notifier.Notify(user.Email, "Password reset", "Open this link to reset your password: "+link)
}

// ConfirmPasswordReset consumes a reset token and rewrites the hash.
func (m *Manager) ConfirmPasswordReset(token, newPassword string) error {
	if !ValidatePasswordPolicy(newPassword) {
		return NewError(KindInvalidInput, "Weak password")
	}
	user, err := m.ConsumeToken(token, models.PurposeReset)
	if err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return WrapError(KindInternal, "hash password", err)
	}
	if err := m.withRetry(func() error { return m.store.SetUserPassword(user.ID, hash) }); err != nil {
		return WrapError(KindInternal, "update password", err)
	}
	return nil
}

// --- MFA ---

// EnrollTOTP generates (or overwrites) the account's TOTP secret. A
// prior secret stops working the moment the new one is stored.
func (m *Manager) EnrollTOTP(user models.User) (models.MFAEnrollment, error) {
	secret, otpauthURI, err := GenerateTOTPSecret(user.Email, m.cfg.TOTPIssuer)
	if err != nil {
		return models.MFAEnrollment{}, WrapError(KindInternal, "generate TOTP secret", err)
	}
	if err := m.withRetry(func() error { return m.store.SetUserTOTPSecret(user.ID, secret) }); err != nil {
		return models.MFAEnrollment{}, WrapError(KindInternal, "store TOTP secret", err)
	}
	qr, err := QRCodeDataURL(otpauthURI)
	if err != nil {
		// enrollment is still usable via the raw secret and URI
		m.log.Warn("render enrollment QR", zap.Int64("user_id", user.ID), zap.Error(err))
		qr = ""
	}
	return models.MFAEnrollment{Secret: secret, Otpauth: otpauthURI, QRCode: qr}, nil
}

// CompleteMFAChallenge validates a pending challenge token against a
// submitted code and, on success, consumes the token and opens a
// session. A wrong code leaves the token spendable until it expires.
func (m *Manager) CompleteMFAChallenge(mfaToken, code string) (models.User, string, error) {
	user, err := m.PeekToken(mfaToken, models.PurposeMFA)
	if err != nil {
		return models.User{}, "", NewError(KindInvalidInput, "Invalid MFA token")
	}
	if !user.MFAEnabled() || !VerifyTOTPAt(user.TOTPSecret, code, m.now()) {
		return models.User{}, "", NewError(KindInvalidInput, "Invalid code")
	}
	if _, err := m.ConsumeToken(mfaToken, models.PurposeMFA); err != nil {
		return models.User{}, "", NewError(KindInvalidInput, "Invalid MFA token")
	}
	sid, err := m.CreateSession(user)
	if err != nil {
		return models.User{}, "", err
	}
	return user, sid, nil
}

// --- Instructor requests and role mutation ---

func (m *Manager) SubmitInstructorRequest(userID int64, note, filePath string) (models.InstructorRequest, error) {
	req := models.InstructorRequest{
		ID:        wuid.New().Int64(),
		UserID:    userID,
		Note:      note,
		FilePath:  filePath,
		Status:    models.StatusPending,
		CreatedAt: m.now(),
	}
	if err := m.withRetry(func() error { return m.store.CreateInstructorRequest(&req) }); err != nil {
		return models.InstructorRequest{}, WrapError(KindInternal, "create instructor request", err)
	}
	return req, nil
}

func (m *Manager) ListInstructorRequests(status models.RequestStatus) ([]models.InstructorRequest, error) {
	reqs, err := m.store.ListInstructorRequests(status)
	if err != nil {
		return nil, WrapError(KindInternal, "list instructor requests", err)
	}
	return reqs, nil
}

// DecideInstructorRequest approves or rejects a pending request.
// Approval promotes the requesting user to instructor.
func (m *Manager) DecideInstructorRequest(requestID, adminID int64, approve bool) error {
	req, err := m.store.GetInstructorRequest(requestID)
	if err != nil {
		return NewError(KindNotFound, "Not found")
	}
	if req.Status != models.StatusPending {
		return NewError(KindInvalidInput, "Request already decided")
	}
	now := m.now()
	req.Status = models.StatusRejected
	if approve {
		req.Status = models.StatusApproved
	}
	req.DecisionBy = adminID
	req.DecidedAt = &now
	if err := m.withRetry(func() error { return m.store.UpdateInstructorRequest(req) }); err != nil {
		return WrapError(KindInternal, "update instructor request", err)
	}
	if approve {
		if err := m.withRetry(func() error { return m.store.SetUserRole(req.UserID, models.RoleInstructor) }); err != nil {
			return WrapError(KindInternal, "promote user", err)
		}
	}
	return nil
}

// OverrideUserRole is the administrative role override.
func (m *Manager) OverrideUserRole(userID int64, role models.Role) error {
	if _, err := m.store.GetUserByID(userID); err != nil {
		return NewError(KindNotFound, "Not found")
	}
	if err := m.withRetry(func() error { return m.store.SetUserRole(userID, role) }); err != nil {
		return WrapError(KindInternal, "set user role", err)
	}
	return nil
}

// --- Housekeeping ---

// StartSweeper purges expired sessions and tokens on an interval.
// Correctness never depends on it; resolve and consume both check
// expiry themselves.
func (m *Manager) StartSweeper(ctx context.Context) {
	interval := m.cfg.SweepInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

func (m *Manager) sweep() {
	now := m.now()
	sessions, err := m.store.DeleteExpiredSessions(now)
	if err != nil {
		m.log.Warn("sweep sessions", zap.Error(err))
	}
	tokens, err := m.store.DeleteExpiredTokens(now)
	if err != nil {
		m.log.Warn("sweep tokens", zap.Error(err))
	}
	if sessions > 0 || tokens > 0 {
		m.log.Debug("swept expired rows",
			zap.Int64("sessions", sessions),
			zap.Int64("tokens", tokens),
		)
	}
}

// withRetry retries a persistence operation once after a short backoff.
// Terminal outcomes (sentinel and taxonomy errors) are not retried.
func (m *Manager) withRetry(op func() error) error {
	err := op()
	if err == nil || isTerminal(err) {
		return err
	}
	m.log.Debug("retrying persistence operation", zap.Error(err))
	time.Sleep(retryBackoff)
	if retryErr := op(); retryErr != nil {
		return fmt.Errorf("after retry: %w", retryErr)
	}
	return nil
}

func isTerminal(err error) bool {
	var e *Error
	return errors.Is(err, contracts.ErrNotFound) ||
		errors.Is(err, contracts.ErrDuplicateEmail) ||
		errors.As(err, &e)
}
