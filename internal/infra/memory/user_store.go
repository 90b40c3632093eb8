package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"edurumble-service/internal/domain"
	"github.com/google/uuid"
)

// UserStore is an in-memory implementation of app.UserStore.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]domain.User)}
}

func (s *UserStore) CreateUser(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) || existing.Username == user.Username {
			return domain.User{}, domain.ErrConflict
		}
	}
	user.ID = uuid.NewString()
	s.users[user.ID] = user
	return user, nil
}

func (s *UserStore) GetUser(_ context.Context, userID string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *UserStore) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	return s.find(func(u domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *UserStore) GetUserByUsername(_ context.Context, username string) (domain.User, error) {
	return s.find(func(u domain.User) bool { return u.Username == username })
}

func (s *UserStore) MarkVerified(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.IsVerified = true
	user.VerifyCode = ""
	user.UpdatedAt = time.Now()
	s.users[userID] = user
	return nil
}

func (s *UserStore) TakeVerifyAttempt(_ context.Context, userID string, limit int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return false, domain.ErrUserNotFound
	}
	if user.VerifyAttempts >= limit {
		return false, nil
	}
	user.VerifyAttempts++
	s.users[userID] = user
	return true, nil
}

func (s *UserStore) ResetVerification(_ context.Context, userID, passwordHash, code string, expiry time.Time) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	if user.IsVerified {
		return domain.User{}, domain.ErrConflict
	}
	user.PasswordHash = passwordHash
	user.VerifyCode = code
	user.VerifyCodeExpiry = expiry
	user.VerifyAttempts = 0
	user.UpdatedAt = time.Now()
	s.users[userID] = user
	return user, nil
}

func (s *UserStore) DebitCredits(_ context.Context, userID string, amount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return 0, domain.ErrUserNotFound
	}
	if user.Credits < amount {
		return user.Credits, domain.ErrInsufficientCredits
	}
	user.Credits -= amount
	s.users[userID] = user
	return user.Credits, nil
}

func (s *UserStore) RefundCredits(_ context.Context, userID string, amount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return 0, domain.ErrUserNotFound
	}
	user.Credits += amount
	s.users[userID] = user
	return user.Credits, nil
}

func (s *UserStore) find(match func(domain.User) bool) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if match(user) {
			return user, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}
