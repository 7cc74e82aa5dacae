package auth

import (
	"errors"
	"net/http"
	"strings"
)

const (
	// SessionCookie carries the session token on plain-HTTP deployments
	SessionCookie = "vakspot.session-token"
	// SecureSessionCookie carries the session token when cookies are Secure
	SecureSessionCookie = "__Secure-vakspot.session-token"

	bearerPrefix = "Bearer "
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrEmptyToken        = errors.New("empty token")
)

// CookieName returns the session cookie name for the deployment
func CookieName(secure bool) string {
	if secure {
		return SecureSessionCookie
	}
	return SessionCookie
}

// Reader derives the principal from a request's credential material.
// It verifies the token signature only; passwords and storage are never consulted.
type Reader struct {
	tokens *TokenIssuer
}

// NewReader creates a session reader backed by the token issuer
func NewReader(tokens *TokenIssuer) *Reader {
	return &Reader{tokens: tokens}
}

// Read returns the request's principal, or nil when absent or invalid
func (r *Reader) Read(req *http.Request) *Principal {
	token := tokenFromRequest(req)
	if token == "" {
		return nil
	}

	principal, err := r.tokens.Parse(token)
	if err != nil {
		return nil
	}
	return principal
}

func tokenFromRequest(req *http.Request) string {
	for _, name := range []string{SecureSessionCookie, SessionCookie} {
		if c, err := req.Cookie(name); err == nil && c.Value != "" {
			return c.Value
		}
	}

	token, err := extractBearerToken(req.Header.Get("Authorization"))
	if err != nil {
		return ""
	}
	return token
}

func extractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthFormat
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}
