// Package auth resolves the identity behind a signaling connection.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/wojtas-j/cam-relay/internal/config"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// RoleReceiver is the role that marks the single camera-feed consumer.
const RoleReceiver = "RECEIVER"

// Principal is the authenticated identity bound to a signaling connection.
type Principal struct {
	Username string
	Roles    []string
}

func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// IsReceiver reports whether the principal belongs to the receiver
// admission class.
func (p Principal) IsReceiver() bool {
	return p.HasRole(RoleReceiver)
}

// Authenticator resolves a Principal from a WebSocket handshake request.
type Authenticator interface {
	Authenticate(r *http.Request) (Principal, error)
}

func NewAuthenticator(cfg config.Config) (Authenticator, error) {
	switch cfg.AuthMode {
	case config.AuthModeNone:
		return queryAuthenticator{}, nil
	case config.AuthModeJWT:
		return jwtAuthenticator{
			verifier: NewJWTVerifier(cfg.JWTSecret),
			cookie:   cfg.AccessTokenCookie,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}
}

// queryAuthenticator trusts the username and roles query parameters. Dev-only
// escape hatch; main logs a warning when it is active.
type queryAuthenticator struct{}

func (queryAuthenticator) Authenticate(r *http.Request) (Principal, error) {
	q := r.URL.Query()
	username := strings.TrimSpace(q.Get("username"))
	if username == "" {
		return Principal{}, ErrMissingCredentials
	}
	var roles []string
	for _, raw := range strings.Split(q.Get("roles"), ",") {
		if role := normalizeRole(raw); role != "" {
			roles = append(roles, role)
		}
	}
	return Principal{Username: username, Roles: roles}, nil
}

type jwtAuthenticator struct {
	verifier JWTVerifier
	cookie   string
}

func (a jwtAuthenticator) Authenticate(r *http.Request) (Principal, error) {
	token, err := CredentialFromRequest(r, a.cookie)
	if err != nil {
		return Principal{}, err
	}
	return a.verifier.Verify(token)
}

// CredentialFromRequest extracts the JWT from the handshake request: the
// access-token cookie first, then the Authorization header, then the token
// query parameter (for clients that cannot set either).
func CredentialFromRequest(r *http.Request, cookieName string) (string, error) {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	if h := r.Header.Get("Authorization"); h != "" {
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return "", ErrInvalidCredentials
		}
		return strings.TrimSpace(token), nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", ErrMissingCredentials
}

// normalizeRole canonicalizes a role name: trims whitespace, uppercases, and
// strips the Spring-style "ROLE_" authority prefix some token issuers emit.
func normalizeRole(raw string) string {
	role := strings.ToUpper(strings.TrimSpace(raw))
	return strings.TrimPrefix(role, "ROLE_")
}
