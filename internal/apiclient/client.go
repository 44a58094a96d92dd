// Package apiclient talks to the dashboard BFF the way the browser does:
// cookies in a jar, the anti-forgery header copied from its cookie, and a
// bounded timeout on every call.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"redwhite/dashboard-bff/internal/csrf"
	"redwhite/dashboard-bff/internal/dashboard"
	"redwhite/dashboard-bff/internal/experiments"
	"redwhite/dashboard-bff/internal/kv"
	"redwhite/dashboard-bff/internal/profile"
)

const DefaultTimeout = 6 * time.Second

// Form markers the backend expects in the JSON bodies.
const (
	formLogin   = 111
	formLogout  = 222
	formSession = 333
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnreachable        = errors.New("backend unreachable")
	ErrUnauthorized       = errors.New("not authenticated")
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && (e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

// LoginError carries the reason the backend gave for refusing a login.
type LoginError struct {
	Status int
	Reason string
}

func (e *LoginError) Error() string {
	if e.Reason == "" {
		return ErrInvalidCredentials.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidCredentials, e.Reason)
}

func (e *LoginError) Is(target error) bool {
	return target == ErrInvalidCredentials
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	// Store backs the cookie jar and the profile cache.
	Store  kv.Store
	Logger *slog.Logger
}

type Client struct {
	base     *url.URL
	http     *http.Client
	jar      *Jar
	profiles *profile.Cache
	logger   *slog.Logger
}

func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", raw)
	}
	if cfg.Store == nil {
		cfg.Store = kv.NewMemory()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	jar := NewJar(cfg.Store, cfg.Logger)
	return &Client{
		base:     base,
		http:     &http.Client{Timeout: timeout, Jar: jar},
		jar:      jar,
		profiles: profile.NewCache(cfg.Store, cfg.Logger),
		logger:   cfg.Logger,
	}, nil
}

func (c *Client) Profiles() *profile.Cache {
	return c.profiles
}

// HasSession reports whether a session cookie is held locally. It says
// nothing about whether the backend still accepts it.
func (c *Client) HasSession() bool {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name != csrf.CookieName {
			return true
		}
	}
	return false
}

type LoginResult struct {
	ExpiresAt string
	Profile   profile.Profile
}

type loginResponse struct {
	Auth      bool            `json:"auth"`
	Reason    string          `json:"reason"`
	ExpiresAt string          `json:"expires_at"`
	Profile   profile.Profile `json:"profile"`
}

// Login sends the credentials both as email and usuario. On success the
// profile is cached for the widgets.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	body := map[string]any{
		"email":    email,
		"usuario":  email,
		"password": password,
		"form":     formLogin,
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/login", nil, body)
	if err != nil {
		return LoginResult{}, err
	}
	defer resp.Body.Close()

	var lr loginResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&lr)
	if resp.StatusCode < 200 || resp.StatusCode > 299 || decodeErr != nil || !lr.Auth {
		return LoginResult{}, &LoginError{Status: resp.StatusCode, Reason: lr.Reason}
	}

	if lr.Profile.ExpiresAt == "" {
		lr.Profile.ExpiresAt = lr.ExpiresAt
	}
	c.profiles.Save(ctx, lr.Profile)
	return LoginResult{ExpiresAt: lr.ExpiresAt, Profile: lr.Profile}, nil
}

// CheckSession asks the backend whether the held cookie is a live session.
// Only a 2xx answer with result true counts.
func (c *Client) CheckSession(ctx context.Context) (bool, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/session", nil, map[string]any{"form": formSession})
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, statusError(resp)
	}
	var out struct {
		Result bool `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode session response: %w", err)
	}
	return out.Result, nil
}

// Logout is best-effort toward the backend; the local jar and profile are
// always cleared.
func (c *Client) Logout(ctx context.Context) error {
	var remoteErr error
	resp, err := c.do(ctx, http.MethodPost, "/api/logout", nil, map[string]any{"form": formLogout})
	if err != nil {
		remoteErr = err
	} else {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			remoteErr = statusError(resp)
		}
		resp.Body.Close()
	}
	if remoteErr != nil {
		c.logger.Warn("logout request failed", "error", remoteErr)
	}

	c.profiles.Clear(ctx)
	if err := c.jar.Clear(ctx); err != nil {
		return fmt.Errorf("clear cookie jar: %w", err)
	}
	return nil
}

func (c *Client) Refresh(ctx context.Context) (string, error) {
	var out struct {
		ExpiresAt string `json:"expires_at"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/refresh", nil, nil, &out); err != nil {
		return "", err
	}
	return out.ExpiresAt, nil
}

func (c *Client) Publicos(ctx context.Context) ([]dashboard.Publico, error) {
	var out []dashboard.Publico
	if err := c.doJSON(ctx, http.MethodGet, "/api/publicos", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Experiments(ctx context.Context) ([]experiments.Experiment, error) {
	var out []experiments.Experiment
	if err := c.doJSON(ctx, http.MethodGet, "/api/experimentos/", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateExperiment(ctx context.Context, in experiments.Input) (experiments.Experiment, error) {
	var out experiments.Experiment
	if err := c.doJSON(ctx, http.MethodPost, "/api/experimentos/", nil, in, &out); err != nil {
		return experiments.Experiment{}, err
	}
	return out, nil
}

func (c *Client) Dashboard(ctx context.Context, q dashboard.Query) (dashboard.Overview, error) {
	var out dashboard.Overview
	if err := c.doJSON(ctx, http.MethodGet, "/api/dashboard", q.Values(), nil, &out); err != nil {
		return dashboard.Overview{}, err
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// do sends one request. path is appended to the base URL's own path, so a
// backend mounted under a prefix keeps it. Transport failures, timeouts
// included, come back wrapped in ErrUnreachable.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	u := c.base.JoinPath(path)
	u.RawQuery = query.Encode()
	u.Fragment = ""

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.jar.Value(csrf.CookieName); token != "" {
		req.Header.Set(csrf.HeaderName, token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("backend request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	c.logger.Debug("backend request", "method", method, "path", path, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	return &StatusError{Status: resp.StatusCode, Message: body.Error}
}
