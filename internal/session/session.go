// Package session authenticates operators and issues signed, time-bounded session tokens.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/cimillas/giftlink/internal/clock"
)

const (
	// DefaultMaxAge is how long a session token stays valid after issue.
	DefaultMaxAge = 24 * time.Hour
	// CookieName is the cookie carrying the session token.
	CookieName = "admin_session"

	roleAdmin = "admin"
)

var ErrNotConfigured = errors.New("admin password and secret must be set")

// Authenticator checks the operator password and signs sessions with HMAC-SHA256.
type Authenticator struct {
	password []byte
	secret   []byte
	maxAge   time.Duration
	clock    clock.Clock
}

type Option func(*Authenticator)

// WithMaxAge overrides DefaultMaxAge.
func WithMaxAge(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.maxAge = d
		}
	}
}

func NewAuthenticator(password, secret string, clk clock.Clock, opts ...Option) (*Authenticator, error) {
	if password == "" || secret == "" {
		return nil, ErrNotConfigured
	}
	a := &Authenticator{
		password: []byte(password),
		secret:   []byte(secret),
		maxAge:   DefaultMaxAge,
		clock:    clk,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// MaxAge is the session lifetime, used for cookie expiry.
func (a *Authenticator) MaxAge() time.Duration {
	return a.maxAge
}

type claims struct {
	Role       string `json:"role"`
	IssuedAtMs int64  `json:"issuedAtMs"`
}

type envelope struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// Login returns a session token when password matches the configured one.
func (a *Authenticator) Login(password string) (string, bool) {
	// Digests keep the comparison constant-time regardless of input length.
	want := sha256.Sum256(a.password)
	got := sha256.Sum256([]byte(password))
	if subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
		return "", false
	}

	payload, err := json.Marshal(claims{Role: roleAdmin, IssuedAtMs: a.clock.Now().UnixMilli()})
	if err != nil {
		return "", false
	}
	raw, err := json.Marshal(envelope{
		Payload:   string(payload),
		Signature: a.sign(string(payload)),
	})
	if err != nil {
		return "", false
	}
	return base64.StdEncoding.EncodeToString(raw), true
}

// Validate reports whether token was issued by this authenticator and has not aged out.
// It never panics or returns an error: any malformed input is simply invalid.
func (a *Authenticator) Validate(token string) bool {
	if token == "" {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false
	}
	if env.Payload == "" || env.Signature == "" {
		return false
	}

	expected := a.sign(env.Payload)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(env.Signature)) != 1 {
		return false
	}

	var c claims
	if err := json.Unmarshal([]byte(env.Payload), &c); err != nil {
		return false
	}
	if c.Role != roleAdmin {
		return false
	}
	age := a.clock.Now().UnixMilli() - c.IssuedAtMs
	return age < a.maxAge.Milliseconds()
}

func (a *Authenticator) sign(payload string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
