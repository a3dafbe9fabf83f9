// Package repotest provides in-memory repositories for tests. Each store
// guards its state with a mutex and honours the same conditional-write
// contracts as the Postgres implementations.
package repotest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/tasklane/internal/domain"
	"github.com/prperemyshlev/tasklane/internal/repository"
)

// Stores bundles one of each in-memory repository
type Stores struct {
	Users       *UserStore
	Sessions    *SessionStore
	MagicLinks  *MagicLinkStore
	DeviceCodes *DeviceCodeStore
}

// New returns a fresh set of in-memory repositories
func New() *Stores {
	return &Stores{
		Users:       NewUserStore(),
		Sessions:    NewSessionStore(),
		MagicLinks:  NewMagicLinkStore(),
		DeviceCodes: NewDeviceCodeStore(),
	}
}

// Repositories exposes the stores through the repository interfaces
func (s *Stores) Repositories() *repository.Repositories {
	return &repository.Repositories{
		User:       s.Users,
		Session:    s.Sessions,
		MagicLink:  s.MagicLinks,
		DeviceCode: s.DeviceCodes,
	}
}

// UserStore is an in-memory UserRepository
type UserStore struct {
	mu    sync.Mutex
	byID  map[string]*domain.User
	email map[string]string
}

// NewUserStore creates an empty user store
func NewUserStore() *UserStore {
	return &UserStore{byID: map[string]*domain.User{}, email: map[string]string{}}
}

func (s *UserStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.email[user.Email]; ok {
		return fmt.Errorf("user with email %s already exists: %w", user.Email, repository.ErrDuplicateEmail)
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	cp := *user
	s.byID[user.ID] = &cp
	s.email[user.Email] = user.ID
	return nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.email[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *UserStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *UserStore) MarkEmailVerified(_ context.Context, userID string) error {
	return s.update(userID, func(u *domain.User) { u.IsEmailVerified = true })
}

func (s *UserStore) SetBlocked(_ context.Context, userID string, blocked bool) error {
	return s.update(userID, func(u *domain.User) { u.IsBlocked = blocked })
}

func (s *UserStore) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	return s.update(userID, func(u *domain.User) { u.LastLoginAt = &at })
}

// SetAdmin flags a user as an administrator. It has no repository counterpart.
func (s *UserStore) SetAdmin(userID string, admin bool) error {
	return s.update(userID, func(u *domain.User) { u.IsAdmin = admin })
}

func (s *UserStore) update(userID string, fn func(*domain.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now()
	return nil
}

// SessionStore is an in-memory SessionRepository
type SessionStore struct {
	mu   sync.Mutex
	byID map[string]*domain.Session
}

// NewSessionStore creates an empty session store
func NewSessionStore() *SessionStore {
	return &SessionStore{byID: map[string]*domain.Session{}}
}

func (s *SessionStore) Create(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byID {
		if existing.TokenHash == session.TokenHash {
			return repository.ErrDuplicateToken
		}
	}
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	if session.LastUsedAt.IsZero() {
		session.LastUsedAt = session.CreatedAt
	}

	cp := *session
	s.byID[session.ID] = &cp
	return nil
}

func (s *SessionStore) GetActiveByTokenHash(_ context.Context, tokenHash string, now time.Time) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.byID {
		if sess.TokenHash == tokenHash && sess.ExpiresAt.After(now) {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *SessionStore) Touch(_ context.Context, id string, lastUsedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	sess.LastUsedAt = lastUsedAt
	return nil
}

func (s *SessionStore) Renew(_ context.Context, id string, expiresAt, lastUsedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	sess.ExpiresAt = expiresAt
	sess.LastUsedAt = lastUsedAt
	return nil
}

func (s *SessionStore) List(_ context.Context, filter repository.SessionFilter) ([]*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Session
	for _, sess := range s.byID {
		if filter.Matches(sess.ID, sess.UserID, sess.TokenHash, sess.ExpiresAt) {
			cp := *sess
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *SessionStore) Delete(_ context.Context, filter repository.SessionFilter) (int64, error) {
	if filter.IsEmpty() {
		return 0, repository.ErrEmptyFilter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sess := range s.byID {
		if filter.Matches(sess.ID, sess.UserID, sess.TokenHash, sess.ExpiresAt) {
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions, expired ones included
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// MagicLinkStore is an in-memory MagicLinkRepository
type MagicLinkStore struct {
	mu     sync.Mutex
	byHash map[string]*domain.MagicLinkToken
}

// NewMagicLinkStore creates an empty magic-link store
func NewMagicLinkStore() *MagicLinkStore {
	return &MagicLinkStore{byHash: map[string]*domain.MagicLinkToken{}}
}

func (s *MagicLinkStore) Create(_ context.Context, token *domain.MagicLinkToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byHash[token.TokenHash]; ok {
		return repository.ErrDuplicateToken
	}
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	cp := *token
	s.byHash[token.TokenHash] = &cp
	return nil
}

func (s *MagicLinkStore) Consume(_ context.Context, tokenHash string, now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byHash[tokenHash]
	if !ok || t.Used || !t.ExpiresAt.After(now) {
		return "", repository.ErrNotFound
	}
	t.Used = true
	t.UsedAt = &now
	return t.Email, nil
}

func (s *MagicLinkStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, t := range s.byHash {
		if t.Used || !t.ExpiresAt.After(now) {
			delete(s.byHash, hash)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored tokens
func (s *MagicLinkStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byHash)
}

// DeviceCodeStore is an in-memory DeviceCodeRepository
type DeviceCodeStore struct {
	mu   sync.Mutex
	byID map[string]*domain.DeviceAuthCode
}

// NewDeviceCodeStore creates an empty device-code store
func NewDeviceCodeStore() *DeviceCodeStore {
	return &DeviceCodeStore{byID: map[string]*domain.DeviceAuthCode{}}
}

func (s *DeviceCodeStore) Create(_ context.Context, code *domain.DeviceAuthCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byID {
		if existing.UserCode == code.UserCode {
			return fmt.Errorf("user code collision: %w", repository.ErrDuplicateUserCode)
		}
		if existing.DeviceCodeHash == code.DeviceCodeHash {
			return repository.ErrDuplicateToken
		}
	}
	if code.ID == "" {
		code.ID = uuid.New().String()
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}

	cp := *code
	s.byID[code.ID] = &cp
	return nil
}

func (s *DeviceCodeStore) GetByDeviceCodeHash(_ context.Context, deviceCodeHash string) (*domain.DeviceAuthCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.byID {
		if c.DeviceCodeHash == deviceCodeHash {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *DeviceCodeStore) GetPendingByUserCode(_ context.Context, userCode string, now time.Time) (*domain.DeviceAuthCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.byID {
		if c.UserCode == userCode && isPending(c, now) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *DeviceCodeStore) Approve(_ context.Context, id, userID, pendingToken string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok || !isPending(c, now) {
		return repository.ErrNotFound
	}
	c.Approved = true
	c.UserID = &userID
	c.PendingToken = &pendingToken
	c.ApprovedAt = &now
	return nil
}

func (s *DeviceCodeStore) Deny(_ context.Context, userCode string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.byID {
		if c.UserCode == userCode && isPending(c, now) {
			c.Denied = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *DeviceCodeStore) TakeApproved(_ context.Context, deviceCodeHash string) (*domain.DeviceAuthCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.byID {
		if c.DeviceCodeHash == deviceCodeHash && c.Approved {
			delete(s.byID, id)
			return c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *DeviceCodeStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, c := range s.byID {
		if !c.ExpiresAt.After(now) {
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored device authorizations
func (s *DeviceCodeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func isPending(c *domain.DeviceAuthCode, now time.Time) bool {
	return !c.Approved && !c.Denied && c.ExpiresAt.After(now)
}

var (
	_ repository.UserRepository       = (*UserStore)(nil)
	_ repository.SessionRepository    = (*SessionStore)(nil)
	_ repository.MagicLinkRepository  = (*MagicLinkStore)(nil)
	_ repository.DeviceCodeRepository = (*DeviceCodeStore)(nil)
)
