package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/polylab/auth/pkg/contracts"
	"github.com/polylab/auth/pkg/models"
)

// DatabaseType represents the type of database
type DatabaseType string

const (
	MySQL      DatabaseType = "mysql"
	PostgreSQL DatabaseType = "postgres"
	SQLite     DatabaseType = "sqlite"
)

// DatabaseStorage implements contracts.Storage over squealx with
// database type awareness. Timestamps are persisted as Unix seconds so
// scanning behaves identically across drivers.
type DatabaseStorage struct {
	db     *squealx.DB
	dbType DatabaseType
}

var _ contracts.Storage = (*DatabaseStorage)(nil)

// NewDatabaseStorage creates the storage instance and its schema.
func NewDatabaseStorage(db *squealx.DB) (*DatabaseStorage, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	storage := &DatabaseStorage{
		db:     db,
		dbType: DatabaseType(db.DriverName()),
	}
	if err := storage.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create database schema: %w", err)
	}
	return storage, nil
}

func (d *DatabaseStorage) createTables() error {
	var queries []string
	switch d.dbType {
	case MySQL:
		queries = d.getMySQLSchema()
	case PostgreSQL:
		queries = d.getPostgreSQLSchema()
	case SQLite:
		queries = d.getSQLiteSchema()
	default:
		return fmt.Errorf("unsupported database type: %s", d.dbType)
	}
	for _, query := range queries {
		if _, err := d.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}
	return nil
}

func (d *DatabaseStorage) getMySQLSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			email_verified TINYINT(1) DEFAULT 0,
			role VARCHAR(20) DEFAULT 'student' NOT NULL,
			totp_secret VARCHAR(64) DEFAULT '' NOT NULL,
			created_at BIGINT NOT NULL,
			INDEX idx_users_email (email)
		) ENGINE=InnoDB`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id VARCHAR(64) PRIMARY KEY,
			user_id BIGINT NOT NULL,
			created_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			INDEX idx_sessions_user_id (user_id),
			INDEX idx_sessions_expires_at (expires_at)
		) ENGINE=InnoDB`,

		`CREATE TABLE IF NOT EXISTS tokens (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			token VARCHAR(64) UNIQUE NOT NULL,
			purpose VARCHAR(16) NOT NULL,
			expires_at BIGINT NOT NULL,
			INDEX idx_tokens_token (token),
			INDEX idx_tokens_expires_at (expires_at)
		) ENGINE=InnoDB`,

		`CREATE TABLE IF NOT EXISTS instructor_requests (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			note TEXT,
			file_path TEXT NOT NULL,
			status VARCHAR(16) DEFAULT 'pending' NOT NULL,
			decision_by BIGINT DEFAULT 0,
			decided_at BIGINT NULL,
			created_at BIGINT NOT NULL,
			INDEX idx_instructor_requests_status (status)
		) ENGINE=InnoDB`,
	}
}

func (d *DatabaseStorage) getPostgreSQLSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			email_verified BOOLEAN DEFAULT FALSE,
			role VARCHAR(20) DEFAULT 'student' NOT NULL,
			totp_secret VARCHAR(64) DEFAULT '' NOT NULL,
			created_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id VARCHAR(64) PRIMARY KEY,
			user_id BIGINT NOT NULL,
			created_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS tokens (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			token VARCHAR(64) UNIQUE NOT NULL,
			purpose VARCHAR(16) NOT NULL,
			expires_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS instructor_requests (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			note TEXT,
			file_path TEXT NOT NULL,
			status VARCHAR(16) DEFAULT 'pending' NOT NULL,
			decision_by BIGINT DEFAULT 0,
			decided_at BIGINT NULL,
			created_at BIGINT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_token ON tokens(token)`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_expires_at ON tokens(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_instructor_requests_status ON instructor_requests(status)`,
	}
}

func (d *DatabaseStorage) getSQLiteSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			email_verified INTEGER DEFAULT 0,
			role TEXT DEFAULT 'student' NOT NULL CHECK (role IN ('student', 'instructor', 'admin')),
			totp_secret TEXT DEFAULT '' NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS tokens (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL,
			token TEXT UNIQUE NOT NULL,
			purpose TEXT NOT NULL CHECK (purpose IN ('verify', 'reset', 'mfa')),
			expires_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS instructor_requests (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL,
			note TEXT,
			file_path TEXT NOT NULL,
			status TEXT DEFAULT 'pending' NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
			decision_by INTEGER DEFAULT 0,
			decided_at INTEGER NULL,
			created_at INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_token ON tokens(token)`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_expires_at ON tokens(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_instructor_requests_status ON instructor_requests(status)`,
	}
}

func (d *DatabaseStorage) convertBoolForDB(value bool) any {
	if d.dbType == PostgreSQL {
		return value
	}
	if value {
		return 1
	}
	return 0
}

func convertBoolFromDB(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int32:
		return v != 0
	case int:
		return v != 0
	case string:
		return v == "1" || strings.EqualFold(v, "true")
	case []byte:
		str := string(v)
		return str == "1" || strings.EqualFold(str, "true")
	default:
		return false
	}
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// --- Users ---

type userRow struct {
	ID            int64  `db:"id"`
	Email         string `db:"email"`
	PasswordHash  string `db:"password_hash"`
	EmailVerified any    `db:"email_verified"`
	Role          string `db:"role"`
	TOTPSecret    string `db:"totp_secret"`
	CreatedAt     int64  `db:"created_at"`
}

func (r userRow) toModel() models.User {
	role, ok := models.ParseRole(r.Role)
	if !ok {
		role = models.RoleStudent
	}
	return models.User{
		ID:            r.ID,
		Email:         r.Email,
		PasswordHash:  r.PasswordHash,
		EmailVerified: convertBoolFromDB(r.EmailVerified),
		Role:          role,
		TOTPSecret:    r.TOTPSecret,
		CreatedAt:     time.Unix(r.CreatedAt, 0),
	}
}

func (d *DatabaseStorage) CreateUser(user *models.User) error {
	query := `INSERT INTO users (id, email, password_hash, email_verified, role, totp_secret, created_at)
		VALUES (:id, :email, :password_hash, :email_verified, :role, :totp_secret, :created_at)`
	params := map[string]any{
		"id":             user.ID,
		"email":          user.Email,
		"password_hash":  user.PasswordHash,
		"email_verified": d.convertBoolForDB(user.EmailVerified),
		"role":           string(user.Role),
		"totp_secret":    user.TOTPSecret,
		"created_at":     user.CreatedAt.Unix(),
	}
	if _, err := d.db.NamedExec(query, params); err != nil {
		if isDuplicateKeyError(err) {
			return contracts.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (d *DatabaseStorage) GetUserByID(id int64) (models.User, error) {
	return d.getUser(`SELECT id, email, password_hash, email_verified, role, totp_secret, created_at
		FROM users WHERE id = :id`, map[string]any{"id": id})
}

func (d *DatabaseStorage) GetUserByEmail(email string) (models.User, error) {
	return d.getUser(`SELECT id, email, password_hash, email_verified, role, totp_secret, created_at
		FROM users WHERE email = :email`, map[string]any{"email": email})
}

func (d *DatabaseStorage) getUser(query string, params map[string]any) (models.User, error) {
	var row userRow
	if err := d.db.NamedGet(&row, query, params); err != nil {
		return models.User{}, contracts.ErrNotFound
	}
	return row.toModel(), nil
}

func (d *DatabaseStorage) SetUserVerified(id int64) error {
	return d.updateUser(id, `UPDATE users SET email_verified = :email_verified WHERE id = :id`,
		map[string]any{"email_verified": d.convertBoolForDB(true), "id": id})
}

func (d *DatabaseStorage) SetUserPassword(id int64, passwordHash string) error {
	return d.updateUser(id, `UPDATE users SET password_hash = :password_hash WHERE id = :id`,
		map[string]any{"password_hash": passwordHash, "id": id})
}

func (d *DatabaseStorage) SetUserTOTPSecret(id int64, secret string) error {
	return d.updateUser(id, `UPDATE users SET totp_secret = :totp_secret WHERE id = :id`,
		map[string]any{"totp_secret": secret, "id": id})
}

func (d *DatabaseStorage) SetUserRole(id int64, role models.Role) error {
	return d.updateUser(id, `UPDATE users SET role = :role WHERE id = :id`,
		map[string]any{"role": string(role), "id": id})
}

func (d *DatabaseStorage) updateUser(id int64, query string, params map[string]any) error {
	result, err := d.db.NamedExec(query, params)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return contracts.ErrNotFound
	}
	return nil
}

// --- Sessions ---

type sessionRow struct {
	ID        string `db:"id"`
	UserID    int64  `db:"user_id"`
	CreatedAt int64  `db:"created_at"`
	ExpiresAt int64  `db:"expires_at"`
}

func (d *DatabaseStorage) CreateSession(session models.Session) error {
	query := `INSERT INTO sessions (id, user_id, created_at, expires_at)
		VALUES (:id, :user_id, :created_at, :expires_at)`
	params := map[string]any{
		"id":         session.ID,
		"user_id":    session.UserID,
		"created_at": session.CreatedAt.Unix(),
		"expires_at": session.ExpiresAt.Unix(),
	}
	_, err := d.db.NamedExec(query, params)
	return err
}

func (d *DatabaseStorage) GetSession(id string) (models.Session, error) {
	var row sessionRow
	query := `SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = :id`
	if err := d.db.NamedGet(&row, query, map[string]any{"id": id}); err != nil {
		return models.Session{}, contracts.ErrNotFound
	}
	return models.Session{
		ID:        row.ID,
		UserID:    row.UserID,
		CreatedAt: time.Unix(row.CreatedAt, 0),
		ExpiresAt: time.Unix(row.ExpiresAt, 0),
	}, nil
}

func (d *DatabaseStorage) DeleteSession(id string) error {
	_, err := d.db.NamedExec(`DELETE FROM sessions WHERE id = :id`, map[string]any{"id": id})
	return err
}

func (d *DatabaseStorage) DeleteExpiredSessions(now time.Time) (int64, error) {
	result, err := d.db.NamedExec(`DELETE FROM sessions WHERE expires_at < :now`,
		map[string]any{"now": now.Unix()})
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// --- Single-use tokens ---

type tokenRow struct {
	ID        int64  `db:"id"`
	UserID    int64  `db:"user_id"`
	Value     string `db:"token"`
	Purpose   string `db:"purpose"`
	ExpiresAt int64  `db:"expires_at"`
}

func (d *DatabaseStorage) CreateToken(token models.Token) error {
	query := `INSERT INTO tokens (id, user_id, token, purpose, expires_at)
		VALUES (:id, :user_id, :token, :purpose, :expires_at)`
	params := map[string]any{
		"id":         token.ID,
		"user_id":    token.UserID,
		"token":      token.Value,
		"purpose":    string(token.Purpose),
		"expires_at": token.ExpiresAt.Unix(),
	}
	_, err := d.db.NamedExec(query, params)
	return err
}

func (d *DatabaseStorage) GetToken(value string, purpose models.TokenPurpose) (models.Token, error) {
	var row tokenRow
	query := `SELECT id, user_id, token, purpose, expires_at FROM tokens
		WHERE token = :token AND purpose = :purpose`
	params := map[string]any{"token": value, "purpose": string(purpose)}
	if err := d.db.NamedGet(&row, query, params); err != nil {
		return models.Token{}, contracts.ErrNotFound
	}
	return models.Token{
		ID:        row.ID,
		UserID:    row.UserID,
		Value:     row.Value,
		Purpose:   models.TokenPurpose(row.Purpose),
		ExpiresAt: time.Unix(row.ExpiresAt, 0),
	}, nil
}

// DeleteToken is the consumption primitive: the conditional delete is a
// single statement, so of any concurrent consumers exactly one sees a
// row removed.
func (d *DatabaseStorage) DeleteToken(value string, purpose models.TokenPurpose) (bool, error) {
	result, err := d.db.NamedExec(`DELETE FROM tokens WHERE token = :token AND purpose = :purpose`,
		map[string]any{"token": value, "purpose": string(purpose)})
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (d *DatabaseStorage) DeleteExpiredTokens(now time.Time) (int64, error) {
	result, err := d.db.NamedExec(`DELETE FROM tokens WHERE expires_at < :now`,
		map[string]any{"now": now.Unix()})
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// --- Instructor requests ---

type requestRow struct {
	ID         int64  `db:"id"`
	UserID     int64  `db:"user_id"`
	Note       string `db:"note"`
	FilePath   string `db:"file_path"`
	Status     string `db:"status"`
	DecisionBy int64  `db:"decision_by"`
	DecidedAt  *int64 `db:"decided_at"`
	CreatedAt  int64  `db:"created_at"`
}

func (r requestRow) toModel() models.InstructorRequest {
	req := models.InstructorRequest{
		ID:         r.ID,
		UserID:     r.UserID,
		Note:       r.Note,
		FilePath:   r.FilePath,
		Status:     models.RequestStatus(r.Status),
		DecisionBy: r.DecisionBy,
		CreatedAt:  time.Unix(r.CreatedAt, 0),
	}
	if r.DecidedAt != nil {
		t := time.Unix(*r.DecidedAt, 0)
		req.DecidedAt = &t
	}
	return req
}

func (d *DatabaseStorage) CreateInstructorRequest(req *models.InstructorRequest) error {
	query := `INSERT INTO instructor_requests (id, user_id, note, file_path, status, decision_by, created_at)
		VALUES (:id, :user_id, :note, :file_path, :status, :decision_by, :created_at)`
	params := map[string]any{
		"id":          req.ID,
		"user_id":     req.UserID,
		"note":        req.Note,
		"file_path":   req.FilePath,
		"status":      string(req.Status),
		"decision_by": req.DecisionBy,
		"created_at":  req.CreatedAt.Unix(),
	}
	_, err := d.db.NamedExec(query, params)
	return err
}

func (d *DatabaseStorage) GetInstructorRequest(id int64) (models.InstructorRequest, error) {
	var row requestRow
	query := `SELECT id, user_id, note, file_path, status, decision_by, decided_at, created_at
		FROM instructor_requests WHERE id = :id`
	if err := d.db.NamedGet(&row, query, map[string]any{"id": id}); err != nil {
		return models.InstructorRequest{}, contracts.ErrNotFound
	}
	return row.toModel(), nil
}

func (d *DatabaseStorage) ListInstructorRequests(status models.RequestStatus) ([]models.InstructorRequest, error) {
	query := `SELECT id, user_id, note, file_path, status, decision_by, decided_at, created_at
		FROM instructor_requests ORDER BY id DESC`
	params := map[string]any{}
	if status != "" {
		query = `SELECT id, user_id, note, file_path, status, decision_by, decided_at, created_at
			FROM instructor_requests WHERE status = :status ORDER BY id DESC`
		params["status"] = string(status)
	}
	rows, err := d.db.NamedQuery(query, params)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []models.InstructorRequest
	for rows.Next() {
		var row requestRow
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		reqs = append(reqs, row.toModel())
	}
	return reqs, rows.Err()
}

func (d *DatabaseStorage) UpdateInstructorRequest(req models.InstructorRequest) error {
	query := `UPDATE instructor_requests
		SET status = :status, decision_by = :decision_by, decided_at = :decided_at
		WHERE id = :id`
	params := map[string]any{
		"status":      string(req.Status),
		"decision_by": req.DecisionBy,
		"id":          req.ID,
	}
	if req.DecidedAt != nil {
		params["decided_at"] = req.DecidedAt.Unix()
	} else {
		params["decided_at"] = nil
	}
	result, err := d.db.NamedExec(query, params)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return contracts.ErrNotFound
	}
	return nil
}
