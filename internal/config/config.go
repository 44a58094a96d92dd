package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTP                 HTTPConfig
	DatabaseURL          string
	RedisURL             string
	Auth                 AuthConfig
	Upstream             UpstreamConfig
	Cookie               CookieConfig
	CSRFSecret           string
	SessionCacheTTL      time.Duration
	LoginRateLimit       RateLimitConfig
	Gate                 GateConfig
	SSE                  SSEConfig
	FrontendDistDir      string
	ExperimentsStateFile string
	AuditLogFile         string
	Debug                bool
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig configures the built-in authenticator used when no upstream
// webhook is configured.
type AuthConfig struct {
	BootstrapEmail    string
	BootstrapPassword string
	SessionTTL        time.Duration
	SessionStateFile  string
	UserStateFile     string
}

type UpstreamConfig struct {
	URL           string
	Timeout       time.Duration
	MaxConns      int
	MaxIdleConns  int
	JWT           string
	JWTSecret     string
	JWTPrivateKey string
	JWTAlg        string
	JWTIssuer     string
	JWTAudience   string
}

func (u UpstreamConfig) Enabled() bool {
	return u.URL != ""
}

type CookieConfig struct {
	Name          string
	SameSite      http.SameSite
	Secure        bool
	DefaultMaxAge time.Duration
}

type RateLimitConfig struct {
	PerSecond float64
	Burst     int
	// TrustedProxies are the peers whose X-Forwarded-For header is believed
	// when keying the limiter. Empty means the socket peer is the client.
	TrustedProxies []netip.Prefix
}

type GateConfig struct {
	LoginPath         string
	ProtectedPrefixes []string
}

type SSEConfig struct {
	BroadcastSecret string
	PingInterval    time.Duration
}

func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	sameSite, err := parseSameSite(getEnv("SESSION_SAMESITE", "Lax"))
	if err != nil {
		return Config{}, err
	}
	trustedProxies, err := parseTrustedProxies(getEnv("TRUSTED_PROXIES", ""))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTP: HTTPConfig{
			Addr:            getEnv("HTTP_ADDR", ":35669"),
			ReadTimeout:     time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SEC", 10)) * time.Second,
			WriteTimeout:    time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SEC", 0)) * time.Second,
			ShutdownTimeout: time.Duration(getEnvInt("HTTP_SHUTDOWN_TIMEOUT_SEC", 20)) * time.Second,
		},
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		Auth: AuthConfig{
			BootstrapEmail:    getEnv("AUTH_BOOTSTRAP_EMAIL", "admin@example.com"),
			BootstrapPassword: getEnv("AUTH_BOOTSTRAP_PASSWORD", "admin123"),
			SessionTTL:        time.Duration(getEnvInt("AUTH_SESSION_TTL_SEC", 86400)) * time.Second,
			SessionStateFile:  getEnv("AUTH_SESSION_STATE_FILE", "./data/auth_sessions.json"),
			UserStateFile:     getEnv("AUTH_USER_STATE_FILE", "./data/auth_users.json"),
		},
		Upstream: UpstreamConfig{
			URL:           getEnv("N8N_URL", ""),
			Timeout:       time.Duration(getEnvInt("N8N_TIMEOUT_MS", 6000)) * time.Millisecond,
			MaxConns:      getEnvInt("HTTP_MAX_CONNECTIONS", 50),
			MaxIdleConns:  getEnvInt("HTTP_MAX_KEEPALIVE", 10),
			JWT:           getEnv("N8N_JWT", ""),
			JWTSecret:     getEnv("N8N_JWT_SECRET", ""),
			JWTPrivateKey: getEnv("N8N_JWT_PRIVATE_KEY", ""),
			JWTAlg:        getEnv("N8N_JWT_ALG", "HS256"),
			JWTIssuer:     getEnv("N8N_JWT_ISS", "red-white-bff"),
			JWTAudience:   getEnv("N8N_JWT_AUD", "n8n-webhook"),
		},
		Cookie: CookieConfig{
			Name:          getEnv("SESSION_COOKIE", "jsessionid"),
			SameSite:      sameSite,
			Secure:        getEnvBool("SESSION_SECURE", false),
			DefaultMaxAge: time.Duration(getEnvInt("SESSION_DEFAULT_MAX_AGE_SEC", 86400)) * time.Second,
		},
		CSRFSecret:      getEnv("CSRF_SECRET", "change-me-in-production"),
		SessionCacheTTL: time.Duration(getEnvInt("SESSION_CACHE_TTL_SEC", 30)) * time.Second,
		LoginRateLimit: RateLimitConfig{
			PerSecond:      getEnvFloat("LOGIN_RATE_PER_SEC", 1),
			Burst:          getEnvInt("LOGIN_RATE_BURST", 5),
			TrustedProxies: trustedProxies,
		},
		Gate: GateConfig{
			LoginPath:         getEnv("GATE_LOGIN_PATH", "/"),
			ProtectedPrefixes: splitList(getEnv("GATE_PROTECTED_PREFIXES", "/inicio")),
		},
		SSE: SSEConfig{
			BroadcastSecret: getEnv("SSE_BROADCAST_SECRET", ""),
			PingInterval:    time.Duration(getEnvInt("SSE_PING_SEC", 20)) * time.Second,
		},
		FrontendDistDir:      getEnv("FRONTEND_DIST_DIR", "./web/dist"),
		ExperimentsStateFile: getEnv("EXPERIMENTS_STATE_FILE", "./data/experiments.json"),
		AuditLogFile:         getEnv("AUDIT_LOG_FILE", "./data/audit.log"),
		Debug:                getEnvBool("BFF_DEBUG", false),
	}

	if cfg.HTTP.Addr == "" {
		return Config{}, fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.Cookie.Name == "" {
		return Config{}, fmt.Errorf("SESSION_COOKIE must not be empty")
	}
	if cfg.Cookie.DefaultMaxAge <= 0 {
		return Config{}, fmt.Errorf("SESSION_DEFAULT_MAX_AGE_SEC must be > 0")
	}
	if cfg.CSRFSecret == "" {
		return Config{}, fmt.Errorf("CSRF_SECRET must not be empty")
	}
	if cfg.SessionCacheTTL < 0 {
		return Config{}, fmt.Errorf("SESSION_CACHE_TTL_SEC must be >= 0")
	}
	if cfg.LoginRateLimit.PerSecond <= 0 || cfg.LoginRateLimit.Burst <= 0 {
		return Config{}, fmt.Errorf("LOGIN_RATE_PER_SEC and LOGIN_RATE_BURST must be > 0")
	}
	if !strings.HasPrefix(cfg.Gate.LoginPath, "/") {
		return Config{}, fmt.Errorf("GATE_LOGIN_PATH must start with /")
	}
	if cfg.SSE.PingInterval <= 0 {
		return Config{}, fmt.Errorf("SSE_PING_SEC must be > 0")
	}
	if cfg.Upstream.Enabled() {
		if cfg.Upstream.Timeout <= 0 {
			return Config{}, fmt.Errorf("N8N_TIMEOUT_MS must be > 0")
		}
	} else {
		if cfg.Auth.BootstrapEmail == "" {
			return Config{}, fmt.Errorf("AUTH_BOOTSTRAP_EMAIL must not be empty")
		}
		if cfg.Auth.BootstrapPassword == "" {
			return Config{}, fmt.Errorf("AUTH_BOOTSTRAP_PASSWORD must not be empty")
		}
		if cfg.Auth.SessionTTL <= 0 {
			return Config{}, fmt.Errorf("AUTH_SESSION_TTL_SEC must be > 0")
		}
		if cfg.Auth.UserStateFile == "" {
			return Config{}, fmt.Errorf("AUTH_USER_STATE_FILE must not be empty")
		}
	}
	if cfg.ExperimentsStateFile == "" {
		return Config{}, fmt.Errorf("EXPERIMENTS_STATE_FILE must not be empty")
	}

	return cfg, nil
}

func parseSameSite(v string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("SESSION_SAMESITE must be one of Lax, Strict, None")
	}
}

// parseTrustedProxies accepts a comma separated list of IPs and CIDRs.
func parseTrustedProxies(v string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range splitList(v) {
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: invalid CIDR %q", item)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: invalid IP %q", item)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv resolves KEY_FILE before KEY so secrets can be mounted as files.
func getEnv(key, fallback string) string {
	if path := os.Getenv(key + "_FILE"); path != "" {
		if b, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(b))
		}
	}
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}
