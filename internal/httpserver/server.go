package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"redwhite/dashboard-bff/internal/audit"
	"redwhite/dashboard-bff/internal/auth"
	"redwhite/dashboard-bff/internal/config"
	"redwhite/dashboard-bff/internal/csrf"
	"redwhite/dashboard-bff/internal/events"
	"redwhite/dashboard-bff/internal/experiments"
	"redwhite/dashboard-bff/internal/observability"
)

type AuditLogger interface {
	Record(e audit.Event) error
}

// Probe is a dependency checked by /readyz.
type Probe struct {
	Name string
	Ping func(ctx context.Context) error
}

type Deps struct {
	Auth        auth.Authenticator
	CSRF        *csrf.Generator
	Experiments experiments.Store
	Events      *events.Hub
	// Broadcaster fans /internal/broadcast payloads out. Defaults to Events.
	Broadcaster events.Broadcaster
	Audit       AuditLogger
	Probes      []Probe
	Logger      *slog.Logger

	Cookie          config.CookieConfig
	Gate            config.GateConfig
	SSE             config.SSEConfig
	LoginRateLimit  config.RateLimitConfig
	FrontendDistDir string

	Debug     bool
	DebugInfo func() map[string]any
}

type Server struct {
	httpServer *http.Server
}

func New(cfg config.HTTPConfig, deps Deps) *Server {
	stop := make(chan struct{})
	handler := newHandler(deps, stop)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      loggingMiddleware(deps.Logger, handler),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	// Shutdown waits for active requests; open event streams would hold it
	// until the deadline.
	srv.RegisterOnShutdown(func() { close(stop) })

	return &Server{httpServer: srv}
}

func NewHandler(deps Deps) http.Handler {
	return newHandler(deps, nil)
}

// newHandler builds the routes. Closing stop ends every open event stream.
func newHandler(deps Deps, stop <-chan struct{}) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Cookie.Name == "" {
		deps.Cookie.Name = "jsessionid"
	}
	if deps.Cookie.DefaultMaxAge <= 0 {
		deps.Cookie.DefaultMaxAge = 24 * time.Hour
	}
	if deps.Gate.LoginPath == "" {
		deps.Gate.LoginPath = "/"
	}
	if deps.SSE.PingInterval <= 0 {
		deps.SSE.PingInterval = 20 * time.Second
	}
	if deps.Broadcaster == nil && deps.Events != nil {
		deps.Broadcaster = deps.Events
	}

	h := &handlers{
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		limiter:  newRateLimiter(deps.LoginRateLimit),
		proxies:  deps.LoginRateLimit.TrustedProxies,
		stop:     stop,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/readyz", h.readyz)
	mux.Handle("/metrics", promhttp.Handler())

	h.registerAuthHandlers(mux)
	h.registerAPIHandlers(mux)
	h.registerEventHandlers(mux)
	if deps.Debug {
		h.registerDebugHandlers(mux)
	}
	h.registerFrontendHandlers(mux)

	return securityHeaders(mux)
}

type handlers struct {
	deps     Deps
	validate *validator.Validate
	limiter  *rateLimiter
	proxies  []netip.Prefix
	stop     <-chan struct{}
}

func (h *handlers) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, p := range h.deps.Probes {
		if err := p.Ping(ctx); err != nil {
			h.deps.Logger.Warn("readiness probe failed", "probe", p.Name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "failed": p.Name})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Flush keeps SSE streaming working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, reqID))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		route := routeLabel(r.URL.Path)
		observability.HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		observability.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(elapsed.Seconds())
		logger.Info("http request",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
			"remote_ip", clientIP(r),
		)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

var knownRoutes = map[string]struct{}{
	"/healthz": {}, "/readyz": {}, "/metrics": {},
	"/api/health": {}, "/api/login": {}, "/api/session": {}, "/api/logout": {}, "/api/refresh": {},
	"/api/publicos": {}, "/api/experimentos": {}, "/api/experimentos/": {}, "/api/dashboard": {},
	"/api/events": {}, "/internal/broadcast": {}, "/api/_debug": {}, "/api/_echo": {},
}

// routeLabel bounds metric label cardinality.
func routeLabel(p string) string {
	if _, ok := knownRoutes[p]; ok {
		return p
	}
	switch {
	case strings.HasPrefix(p, "/api/experimentos/"):
		return "/api/experimentos/{id}"
	case strings.HasPrefix(p, "/api/"), strings.HasPrefix(p, "/internal/"):
		return "unmatched"
	default:
		return "frontend"
	}
}

type requestIDKey struct{}

func requestIDFromContext(ctx context.Context) string {
	v := ctx.Value(requestIDKey{})
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func (h *handlers) audit(r *http.Request, actor, action, target, outcome, detail string) {
	if h.deps.Audit == nil {
		return
	}
	err := h.deps.Audit.Record(audit.Event{
		Actor:     actor,
		Action:    action,
		Target:    target,
		Outcome:   outcome,
		Detail:    strings.TrimSpace(detail),
		RequestID: requestIDFromContext(r.Context()),
		RemoteIP:  clientIP(r),
	})
	if err != nil {
		h.deps.Logger.Warn("audit write failed", "action", action, "error", err)
	}
}
