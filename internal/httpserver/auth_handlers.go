package httpserver

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"redwhite/dashboard-bff/internal/audit"
	"redwhite/dashboard-bff/internal/auth"
	"redwhite/dashboard-bff/internal/csrf"
	"redwhite/dashboard-bff/internal/observability"
)

type loginRequest struct {
	Email    string `json:"email"`
	Usuario  string `json:"usuario"`
	Password string `json:"password"`
	Form     int    `json:"form"`
}

func (h *handlers) registerAuthHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/api/login", h.login)
	mux.HandleFunc("/api/session", h.session)
	mux.HandleFunc("/api/logout", h.logout)
	mux.HandleFunc("/api/refresh", h.refresh)
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.deps.Auth == nil {
		writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
		return
	}
	if !h.limiter.Allow(limiterKey(r, h.proxies)) {
		w.Header().Set("Retry-After", strconv.Itoa(h.limiter.retryAfterSeconds()))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"auth": false, "reason": "demasiados intentos, espera un momento"})
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"auth": false, "reason": "invalid request body"})
		return
	}
	creds := auth.Credentials{Email: req.Email, Usuario: req.Usuario, Password: req.Password}
	if err := h.validate.Struct(creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"auth": false, "reason": "email and password required"})
		return
	}

	grant, err := h.deps.Auth.Login(r.Context(), creds)
	if err != nil {
		var rejected *auth.RejectedError
		switch {
		case errors.As(err, &rejected):
			status := rejected.Status
			if status < http.StatusBadRequest {
				status = http.StatusUnauthorized
			}
			h.audit(r, creds.Login(), audit.ActionLogin, "", audit.OutcomeFailure, rejected.Reason)
			writeJSON(w, status, map[string]any{"auth": false, "reason": rejected.Reason})
		case errors.Is(err, auth.ErrUpstream):
			h.deps.Logger.Error("login upstream failure", "error", err)
			h.audit(r, creds.Login(), audit.ActionLogin, "", audit.OutcomeFailure, "authority unavailable")
			writeJSON(w, http.StatusBadGateway, map[string]any{"auth": false, "reason": "servicio de autenticación no disponible"})
		default:
			h.deps.Logger.Error("login failed", "error", err)
			h.audit(r, creds.Login(), audit.ActionLogin, "", audit.OutcomeFailure, err.Error())
			writeJSON(w, http.StatusInternalServerError, map[string]any{"auth": false, "reason": "login failed"})
		}
		return
	}

	expiresAt, ok := h.setSessionCookies(w, grant.SessionID, grant.ExpiresAt)
	if !ok {
		if err := h.deps.Auth.Logout(r.Context(), grant.SessionID); err != nil {
			h.deps.Logger.Warn("revoke unusable session failed", "error", err)
		}
		h.audit(r, creds.Login(), audit.ActionLogin, "", audit.OutcomeFailure, "csrf token unavailable")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"auth": false, "reason": "login failed"})
		return
	}
	h.audit(r, creds.Login(), audit.ActionLogin, "", audit.OutcomeSuccess, "")

	prof := grant.Profile
	if prof.ExpiresAt == "" {
		prof.ExpiresAt = expiresAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"auth":       true,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
		"profile":    prof,
	})
}

func (h *handlers) session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sid := h.sessionID(r)
	if sid == "" || h.deps.Auth == nil {
		observability.RecordSessionCheck(false)
		writeJSON(w, http.StatusOK, map[string]bool{"result": false})
		return
	}
	if !h.checkCSRF(w, r, sid) {
		return
	}

	ok, err := h.deps.Auth.CheckSession(r.Context(), sid)
	if err != nil {
		h.deps.Logger.Warn("session check failed", "error", err, "request_id", requestIDFromContext(r.Context()))
		ok = false
	}
	observability.RecordSessionCheck(ok)
	writeJSON(w, http.StatusOK, map[string]bool{"result": ok})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sid := h.sessionID(r)
	if sid != "" {
		if !h.checkCSRF(w, r, sid) {
			return
		}
		outcome := audit.OutcomeSuccess
		if h.deps.Auth != nil {
			if err := h.deps.Auth.Logout(r.Context(), sid); err != nil {
				h.deps.Logger.Warn("upstream logout failed", "error", err)
				outcome = audit.OutcomeFailure
			}
		}
		h.audit(r, "", audit.ActionLogout, "", outcome, "")
	}
	h.clearSessionCookies(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.deps.Auth == nil {
		writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
		return
	}
	sid := h.sessionID(r)
	if sid == "" {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if !h.checkCSRF(w, r, sid) {
		return
	}

	expiresAt, err := h.deps.Auth.Refresh(r.Context(), sid)
	if err != nil {
		h.audit(r, "", audit.ActionRefresh, "", audit.OutcomeFailure, err.Error())
		if errors.Is(err, auth.ErrUpstream) {
			writeError(w, http.StatusBadGateway, "authority unavailable")
			return
		}
		h.clearSessionCookies(w)
		writeError(w, http.StatusUnauthorized, "invalid session")
		return
	}

	expiresAt, ok := h.setSessionCookies(w, sid, expiresAt)
	if !ok {
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	h.audit(r, "", audit.ActionRefresh, "", audit.OutcomeSuccess, "")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "expires_at": expiresAt.UTC().Format(time.RFC3339)})
}

// requireSession validates the session cookie and, for state-changing
// methods, the anti-forgery header. It writes the error response itself.
func (h *handlers) requireSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.deps.Auth == nil {
		writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
		return "", false
	}
	sid := h.sessionID(r)
	if sid == "" {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return "", false
	}
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		if !h.checkCSRF(w, r, sid) {
			return "", false
		}
	}

	ok, err := h.deps.Auth.CheckSession(r.Context(), sid)
	if err != nil {
		h.deps.Logger.Warn("session check failed", "error", err, "request_id", requestIDFromContext(r.Context()))
	}
	observability.RecordSessionCheck(ok && err == nil)
	if err != nil || !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return "", false
	}
	return sid, true
}

func (h *handlers) sessionID(r *http.Request) string {
	c, err := r.Cookie(h.deps.Cookie.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

// checkCSRF is a no-op when no generator is configured.
func (h *handlers) checkCSRF(w http.ResponseWriter, r *http.Request, sid string) bool {
	if h.deps.CSRF == nil {
		return true
	}
	if err := h.deps.CSRF.Verify(sid, r.Header.Get(csrf.HeaderName)); err != nil {
		h.audit(r, "", audit.ActionCSRFReject, r.URL.Path, audit.OutcomeFailure, err.Error())
		writeError(w, http.StatusForbidden, "CSRF validation failed")
		return false
	}
	return true
}

// setSessionCookies issues the HttpOnly session cookie and the readable
// anti-forgery cookie. A zero expiresAt falls back to the default max age.
// Nothing is written when the anti-forgery token cannot be derived.
func (h *handlers) setSessionCookies(w http.ResponseWriter, sid string, expiresAt time.Time) (time.Time, bool) {
	var token string
	if h.deps.CSRF != nil {
		var err error
		if token, err = h.deps.CSRF.Generate(sid); err != nil {
			h.deps.Logger.Error("csrf token generation failed", "error", err)
			return time.Time{}, false
		}
	}

	now := time.Now()
	maxAge := int(h.deps.Cookie.DefaultMaxAge / time.Second)
	if expiresAt.IsZero() {
		expiresAt = now.Add(h.deps.Cookie.DefaultMaxAge)
	} else {
		maxAge = max(1, int(math.Ceil(expiresAt.Sub(now).Seconds())))
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.deps.Cookie.Name,
		Value:    sid,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.deps.Cookie.Secure,
		SameSite: h.deps.Cookie.SameSite,
	})
	if token != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     csrf.CookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   maxAge,
			Secure:   h.deps.Cookie.Secure,
			SameSite: h.deps.Cookie.SameSite,
		})
	}
	return expiresAt, true
}

func (h *handlers) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{h.deps.Cookie.Name, csrf.CookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: name == h.deps.Cookie.Name,
			Secure:   h.deps.Cookie.Secure,
			SameSite: h.deps.Cookie.SameSite,
		})
	}
}
