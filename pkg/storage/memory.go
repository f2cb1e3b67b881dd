package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/polylab/auth/pkg/contracts"
	"github.com/polylab/auth/pkg/models"
)

// MemoryStorage is a mutex-guarded in-memory Storage used by tests and
// throwaway development runs. Token deletion holds the same
// exactly-one-winner guarantee as the database implementation because
// lookup and delete happen under one lock.
type MemoryStorage struct {
	mu sync.Mutex

	users         map[int64]models.User
	userIDByEmail map[string]int64
	sessions      map[string]models.Session
	tokens        map[string]models.Token // keyed by value
	requests      map[int64]models.InstructorRequest
}

var _ contracts.Storage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:         make(map[int64]models.User),
		userIDByEmail: make(map[string]int64),
		sessions:      make(map[string]models.Session),
		tokens:        make(map[string]models.Token),
		requests:      make(map[int64]models.InstructorRequest),
	}
}

func (m *MemoryStorage) CreateUser(user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.userIDByEmail[user.Email]; exists {
		return contracts.ErrDuplicateEmail
	}
	m.users[user.ID] = *user
	m.userIDByEmail[user.Email] = user.ID
	return nil
}

func (m *MemoryStorage) GetUserByID(id int64) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return models.User{}, contracts.ErrNotFound
	}
	return user, nil
}

func (m *MemoryStorage) GetUserByEmail(email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.userIDByEmail[email]
	if !ok {
		return models.User{}, contracts.ErrNotFound
	}
	return m.users[id], nil
}

func (m *MemoryStorage) SetUserVerified(id int64) error {
	return m.updateUser(id, func(u *models.User) { u.EmailVerified = true })
}

func (m *MemoryStorage) SetUserPassword(id int64, passwordHash string) error {
	return m.updateUser(id, func(u *models.User) { u.PasswordHash = passwordHash })
}

func (m *MemoryStorage) SetUserTOTPSecret(id int64, secret string) error {
	return m.updateUser(id, func(u *models.User) { u.TOTPSecret = secret })
}

func (m *MemoryStorage) SetUserRole(id int64, role models.Role) error {
	return m.updateUser(id, func(u *models.User) { u.Role = role })
}

func (m *MemoryStorage) updateUser(id int64, mutate func(*models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return contracts.ErrNotFound
	}
	mutate(&user)
	m.users[id] = user
	return nil
}

func (m *MemoryStorage) CreateSession(session models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *MemoryStorage) GetSession(id string) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return models.Session{}, contracts.ErrNotFound
	}
	return sess, nil
}

func (m *MemoryStorage) DeleteSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStorage) DeleteExpiredSessions(now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, sess := range m.sessions {
		if now.After(sess.ExpiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStorage) CreateToken(token models.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.Value] = token
	return nil
}

func (m *MemoryStorage) GetToken(value string, purpose models.TokenPurpose) (models.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[value]
	if !ok || tok.Purpose != purpose {
		return models.Token{}, contracts.ErrNotFound
	}
	return tok, nil
}

func (m *MemoryStorage) DeleteToken(value string, purpose models.TokenPurpose) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[value]
	if !ok || tok.Purpose != purpose {
		return false, nil
	}
	delete(m.tokens, value)
	return true, nil
}

func (m *MemoryStorage) DeleteExpiredTokens(now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for value, tok := range m.tokens {
		if now.After(tok.ExpiresAt) {
			delete(m.tokens, value)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStorage) CreateInstructorRequest(req *models.InstructorRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = *req
	return nil
}

func (m *MemoryStorage) GetInstructorRequest(id int64) (models.InstructorRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return models.InstructorRequest{}, contracts.ErrNotFound
	}
	return req, nil
}

func (m *MemoryStorage) ListInstructorRequests(status models.RequestStatus) ([]models.InstructorRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs := make([]models.InstructorRequest, 0, len(m.requests))
	for _, req := range m.requests {
		if status == "" || req.Status == status {
			reqs = append(reqs, req)
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].ID > reqs[j].ID })
	return reqs, nil
}

func (m *MemoryStorage) UpdateInstructorRequest(req models.InstructorRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[req.ID]; !ok {
		return contracts.ErrNotFound
	}
	m.requests[req.ID] = req
	return nil
}
