package upstream

import (
	"crypto/rsa"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"redwhite/dashboard-bff/internal/config"
)

// Mode is how the bearer token for webhook calls is obtained.
type Mode string

const (
	ModeHS     Mode = "HS"
	ModeRS     Mode = "RS"
	ModeStatic Mode = "STATIC"
	ModeNone   Mode = "NONE"
)

const tokenLifetime = 2 * time.Minute

type TokenSource struct {
	mode     Mode
	method   jwt.SigningMethod
	hsKey    []byte
	rsKey    *rsa.PrivateKey
	static   string
	issuer   string
	audience string
	nowFunc  func() time.Time
}

// ResolveMode picks the first usable mode: a signing secret matching the
// algorithm family wins over a pre-signed token.
func ResolveMode(cfg config.UpstreamConfig) Mode {
	alg := strings.ToUpper(cfg.JWTAlg)
	switch {
	case cfg.JWTSecret != "" && strings.HasPrefix(alg, "HS"):
		return ModeHS
	case cfg.JWTPrivateKey != "" && strings.HasPrefix(alg, "RS"):
		return ModeRS
	case cfg.JWT != "":
		return ModeStatic
	default:
		return ModeNone
	}
}

func NewTokenSource(cfg config.UpstreamConfig) (*TokenSource, error) {
	ts := &TokenSource{
		mode:     ResolveMode(cfg),
		static:   cfg.JWT,
		issuer:   cfg.JWTIssuer,
		audience: cfg.JWTAudience,
		nowFunc:  time.Now,
	}

	switch ts.mode {
	case ModeHS, ModeRS:
		ts.method = jwt.GetSigningMethod(strings.ToUpper(cfg.JWTAlg))
		if ts.method == nil {
			return nil, fmt.Errorf("unsupported N8N_JWT_ALG %q", cfg.JWTAlg)
		}
	}
	switch ts.mode {
	case ModeHS:
		ts.hsKey = []byte(cfg.JWTSecret)
	case ModeRS:
		// Env files often carry the PEM with literal \n sequences.
		pem := strings.ReplaceAll(cfg.JWTPrivateKey, `\n`, "\n")
		key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pem))
		if err != nil {
			return nil, fmt.Errorf("parse N8N_JWT_PRIVATE_KEY: %w", err)
		}
		ts.rsKey = key
	}
	return ts, nil
}

func (t *TokenSource) Mode() Mode {
	return t.mode
}

// Token returns the bearer token for one call, or "" in NONE mode. Signed
// tokens are minted per call and live two minutes.
func (t *TokenSource) Token() (string, error) {
	switch t.mode {
	case ModeStatic:
		return t.static, nil
	case ModeNone:
		return "", nil
	}

	now := t.nowFunc()
	claims := jwt.RegisteredClaims{
		Issuer:    t.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
	}
	if t.audience != "" {
		claims.Audience = jwt.ClaimStrings{t.audience}
	}
	tok := jwt.NewWithClaims(t.method, claims)

	var key any = t.hsKey
	if t.mode == ModeRS {
		key = t.rsKey
	}
	signed, err := tok.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign upstream token: %w", err)
	}
	return signed, nil
}
