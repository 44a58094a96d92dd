package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var ErrUserNotFound = errors.New("user not found")

// UserStore resolves a login (email or username) to a user.
type UserStore interface {
	GetByLogin(ctx context.Context, login string) (User, error)
	Put(ctx context.Context, user User) error
}

type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[string]User)}
}

func (s *InMemoryUserStore) GetByLogin(_ context.Context, login string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findUser(s.users, login)
}

func (s *InMemoryUserStore) Put(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[normalizeEmail(user.Email)] = user
	return nil
}

func findUser(users map[string]User, login string) (User, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return User{}, ErrUserNotFound
	}
	if u, ok := users[normalizeEmail(login)]; ok {
		return u, nil
	}
	for _, u := range users {
		if u.Username != "" && u.Username == login {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
