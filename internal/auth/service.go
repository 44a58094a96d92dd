package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"redwhite/dashboard-bff/internal/profile"
)

// Service is the built-in authority used when no upstream webhook is
// configured. Sessions live in memory and are mirrored to a SessionStore or
// a JSON state file after every change.
type Service struct {
	users        UserStore
	ttl          time.Duration
	bcryptCost   int
	nowFunc      func() time.Time
	stateFile    string
	sessionStore SessionStore

	sessMu   sync.RWMutex
	sessions map[string]Session
}

type ServiceConfig struct {
	SessionTTL       time.Duration
	SessionStateFile string
	SessionStore     SessionStore
	BcryptCost       int
}

func NewService(userStore UserStore, cfg ServiceConfig) (*Service, error) {
	if userStore == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session TTL must be > 0")
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	return &Service{
		users:        userStore,
		ttl:          cfg.SessionTTL,
		bcryptCost:   cost,
		nowFunc:      time.Now,
		stateFile:    cfg.SessionStateFile,
		sessionStore: cfg.SessionStore,
		sessions:     make(map[string]Session),
	}, nil
}

func (s *Service) HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func (s *Service) VerifyPassword(password, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) == nil
}

// EnsureUser creates the user when no account with that email exists yet.
// An existing account is left untouched.
func (s *Service) EnsureUser(ctx context.Context, user User, password string) error {
	user.Email = normalizeEmail(user.Email)
	if user.Email == "" || password == "" {
		return fmt.Errorf("bootstrap email and password are required")
	}
	if _, err := s.users.GetByLogin(ctx, user.Email); err == nil {
		return nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return fmt.Errorf("lookup bootstrap user: %w", err)
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return err
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.PasswordHash = hash
	if err := s.users.Put(ctx, user); err != nil {
		return fmt.Errorf("store bootstrap user: %w", err)
	}
	return nil
}

func (s *Service) Login(ctx context.Context, creds Credentials) (Grant, error) {
	u, err := s.users.GetByLogin(ctx, creds.Login())
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Grant{}, &RejectedError{Reason: "usuario o contraseña incorrectos"}
		}
		return Grant{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if !s.VerifyPassword(creds.Password, u.PasswordHash) {
		return Grant{}, &RejectedError{Reason: "usuario o contraseña incorrectos"}
	}

	token, err := generateToken(32)
	if err != nil {
		return Grant{}, fmt.Errorf("generate token: %w", err)
	}

	now := s.nowFunc()
	session := Session{
		ID:        uuid.NewString(),
		Token:     token,
		UserID:    u.ID,
		Email:     u.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.sessMu.Lock()
	s.sessions[token] = session
	if err := s.persistSessionsLocked(ctx); err != nil {
		delete(s.sessions, token)
		s.sessMu.Unlock()
		return Grant{}, err
	}
	s.sessMu.Unlock()

	return Grant{
		SessionID: token,
		ExpiresAt: session.ExpiresAt,
		Profile: profile.Profile{
			Email:     u.Email,
			Name:      u.Name,
			Team:      u.Team,
			Company:   u.Company,
			ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
		},
	}, nil
}

// ValidateToken returns the live session for token. Expired sessions are
// purged on access.
func (s *Service) ValidateToken(ctx context.Context, token string) (Session, error) {
	s.sessMu.RLock()
	session, ok := s.sessions[token]
	s.sessMu.RUnlock()
	if !ok {
		return Session{}, ErrInvalidSession
	}

	if s.nowFunc().After(session.ExpiresAt) {
		s.sessMu.Lock()
		delete(s.sessions, token)
		_ = s.persistSessionsLocked(ctx)
		s.sessMu.Unlock()
		return Session{}, ErrInvalidSession
	}

	return session, nil
}

func (s *Service) CheckSession(ctx context.Context, token string) (bool, error) {
	if _, err := s.ValidateToken(ctx, token); err != nil {
		if errors.Is(err, ErrInvalidSession) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	if _, ok := s.sessions[token]; !ok {
		return ErrInvalidSession
	}
	delete(s.sessions, token)
	return s.persistSessionsLocked(ctx)
}

// Refresh pushes the expiry of a live session to now+TTL.
func (s *Service) Refresh(ctx context.Context, token string) (time.Time, error) {
	if _, err := s.ValidateToken(ctx, token); err != nil {
		return time.Time{}, err
	}

	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return time.Time{}, ErrInvalidSession
	}
	prev := sess
	sess.ExpiresAt = s.nowFunc().Add(s.ttl)
	s.sessions[token] = sess
	if err := s.persistSessionsLocked(ctx); err != nil {
		s.sessions[token] = prev
		return time.Time{}, err
	}
	return sess.ExpiresAt, nil
}

func (s *Service) ListSessions(ctx context.Context) []Session {
	now := s.nowFunc()

	s.sessMu.Lock()
	defer s.sessMu.Unlock()

	out := make([]Session, 0, len(s.sessions))
	dirty := false
	for token, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, token)
			dirty = true
			continue
		}
		out = append(out, sess)
	}
	if dirty {
		_ = s.persistSessionsLocked(ctx)
	}
	return out
}

func (s *Service) ListSessionViews(ctx context.Context) []SessionView {
	sessions := s.ListSessions(ctx)
	out := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, SessionView{
			ID:        sess.ID,
			UserID:    sess.UserID,
			Email:     sess.Email,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
		})
	}
	return out
}

func (s *Service) LoadSessionState(ctx context.Context) error {
	if s.sessionStore != nil {
		state, err := s.sessionStore.Load(ctx)
		if err != nil {
			return fmt.Errorf("load session state: %w", err)
		}
		s.sessMu.Lock()
		s.sessions = state
		s.sessMu.Unlock()
		return nil
	}

	if s.stateFile == "" {
		return nil
	}
	b, err := os.ReadFile(s.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read session state: %w", err)
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil
	}
	state := make(map[string]Session)
	if err := json.Unmarshal(b, &state); err != nil {
		return fmt.Errorf("decode session state: %w", err)
	}

	s.sessMu.Lock()
	s.sessions = state
	s.sessMu.Unlock()
	return nil
}

func (s *Service) persistSessionsLocked(ctx context.Context) error {
	if s.sessionStore != nil {
		if err := s.sessionStore.Save(ctx, s.sessions); err != nil {
			return fmt.Errorf("save session state: %w", err)
		}
		return nil
	}

	if s.stateFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.stateFile), 0o755); err != nil {
		return fmt.Errorf("mkdir session state dir: %w", err)
	}
	b, err := json.MarshalIndent(s.sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	if err := os.WriteFile(s.stateFile, b, 0o600); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	return nil
}

func generateToken(n int) (string, error) {
	if n < 16 {
		return "", fmt.Errorf("token length too short")
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
