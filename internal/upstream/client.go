// Package upstream talks to the webhook that owns users and sessions. One
// URL serves every operation; the "form" field of the payload selects it.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"redwhite/dashboard-bff/internal/auth"
	"redwhite/dashboard-bff/internal/config"
	"redwhite/dashboard-bff/internal/observability"
	"redwhite/dashboard-bff/internal/profile"
)

const (
	FormLogin  = 111
	FormLogout = 222
	FormCheck  = 333

	defaultRefreshTTL = 24 * time.Hour
	maxBodyBytes      = 1 << 20
	rawPreviewLen     = 160
)

type Client struct {
	url        string
	httpClient *http.Client
	tokens     *TokenSource
	refreshTTL time.Duration
	nowFunc    func() time.Time
	logger     *slog.Logger
}

func New(cfg config.UpstreamConfig, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("upstream URL is required")
	}
	tokens, err := NewTokenSource(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 6 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.MaxConns > 0 {
		transport.MaxConnsPerHost = cfg.MaxConns
	}
	if cfg.MaxIdleConns > 0 {
		transport.MaxIdleConns = cfg.MaxIdleConns
		transport.MaxIdleConnsPerHost = cfg.MaxIdleConns
	}

	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		tokens:     tokens,
		refreshTTL: defaultRefreshTTL,
		nowFunc:    time.Now,
		logger:     logger,
	}, nil
}

func (c *Client) Mode() Mode {
	return c.tokens.Mode()
}

// TokenPreview is a redacted view of the current bearer token for the
// debug endpoint.
func (c *Client) TokenPreview() string {
	tok, err := c.tokens.Token()
	if err != nil || tok == "" {
		return ""
	}
	if len(tok) > 16 {
		return tok[:16] + "…"
	}
	return tok
}

type response struct {
	status int
	data   map[string]any
	raw    string
}

func (c *Client) call(ctx context.Context, op string, payload map[string]any) (response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return response{}, fmt.Errorf("encode %s payload: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return response{}, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	tok, err := c.tokens.Token()
	if err != nil {
		c.logger.Warn("upstream token unavailable", "error", err)
	} else if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordUpstreamCall(op, "error")
		return response{}, fmt.Errorf("%w: %s: %v", auth.ErrUpstream, op, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		observability.RecordUpstreamCall(op, "error")
		return response{}, fmt.Errorf("%w: read %s response: %v", auth.ErrUpstream, op, err)
	}
	out := response{status: resp.StatusCode, raw: string(b)}
	if err := json.Unmarshal(b, &out.data); err != nil || out.data == nil {
		preview := out.raw
		if len(preview) > rawPreviewLen {
			preview = preview[:rawPreviewLen]
		}
		out.data = map[string]any{"raw": preview}
	}

	observability.RecordUpstreamCall(op, fmt.Sprintf("%dxx", resp.StatusCode/100))
	c.logger.Debug("upstream call",
		"operation", op,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"auth", out.data["auth"],
		"result", out.data["result"],
		"valid", out.data["valid"],
	)
	return out, nil
}

func (c *Client) Login(ctx context.Context, creds auth.Credentials) (auth.Grant, error) {
	login := creds.Login()
	usuario := creds.Usuario
	if usuario == "" {
		usuario = login
	}
	resp, err := c.call(ctx, "login", map[string]any{
		"form":     FormLogin,
		"email":    login,
		"usuario":  usuario,
		"password": creds.Password,
	})
	if err != nil {
		return auth.Grant{}, err
	}

	sid, _ := resp.data["jsessionid"].(string)
	if resp.status != http.StatusOK || resp.data["auth"] != true || sid == "" {
		return auth.Grant{}, &auth.RejectedError{
			Status: resp.status,
			Reason: rejectionReason(resp.data),
		}
	}

	grant := auth.Grant{
		SessionID: sid,
		Profile:   profileFrom(resp.data, login),
	}
	if raw, ok := resp.data["expires_at"].(string); ok {
		grant.Profile.ExpiresAt = raw
		if exp, err := time.Parse(time.RFC3339, raw); err == nil {
			grant.ExpiresAt = exp
		}
	}
	return grant, nil
}

func (c *Client) CheckSession(ctx context.Context, sessionID string) (bool, error) {
	resp, err := c.call(ctx, "check", map[string]any{"form": FormCheck, "sessionkey": sessionID})
	if err != nil {
		return false, err
	}
	if resp.status < 200 || resp.status > 299 {
		return false, fmt.Errorf("%w: check returned status %d", auth.ErrUpstream, resp.status)
	}
	return truthy(resp.data["result"]) || truthy(resp.data["auth"]) || truthy(resp.data["valid"]), nil
}

func (c *Client) Logout(ctx context.Context, sessionID string) error {
	resp, err := c.call(ctx, "logout", map[string]any{"form": FormLogout, "sessionkey": sessionID})
	if err != nil {
		return err
	}
	if resp.status < 200 || resp.status > 299 {
		return fmt.Errorf("%w: logout returned status %d", auth.ErrUpstream, resp.status)
	}
	return nil
}

// Refresh re-validates the session upstream; the webhook has no extend
// operation, so the new expiry is local.
func (c *Client) Refresh(ctx context.Context, sessionID string) (time.Time, error) {
	ok, err := c.CheckSession(ctx, sessionID)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, auth.ErrInvalidSession
	}
	return c.nowFunc().Add(c.refreshTTL), nil
}

func profileFrom(data map[string]any, login string) profile.Profile {
	p := profile.Profile{Email: login}
	src := data
	if nested, ok := data["profile"].(map[string]any); ok {
		src = nested
	}
	if v, ok := src["email"].(string); ok && v != "" {
		p.Email = v
	}
	p.Name, _ = src["name"].(string)
	p.Team, _ = src["team"].(string)
	p.Company, _ = src["company"].(string)
	return p
}

func rejectionReason(data map[string]any) string {
	for _, k := range []string{"reason", "error"} {
		if v, ok := data[k]; ok && truthy(v) {
			return reasonText(v)
		}
	}
	return reasonText(data)
}

func reasonText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// truthy follows JSON-ish truthiness: false, null, 0, "" and empty
// collections are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

var _ auth.Authenticator = (*Client)(nil)
