package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vakspot/vakspot/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// SessionClaims represents the session token claims
type SessionClaims struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies session tokens
type TokenIssuer struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer signing with secret; tokens expire after maxAge
func NewTokenIssuer(secret string, maxAge time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("session secret not configured")
	}
	return &TokenIssuer{
		secret: []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}, nil
}

// MaxAge returns the lifetime of issued tokens
func (t *TokenIssuer) MaxAge() time.Duration {
	return t.maxAge
}

// Issue creates a signed token embedding the principal
func (t *TokenIssuer) Issue(p Principal) (string, error) {
	now := t.now()
	claims := SessionClaims{
		Email: p.Email,
		Role:  p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.maxAge)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse verifies a token and reconstructs the principal it carries
func (t *TokenIssuer) Parse(tokenString string) (*Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	role, ok := models.ParseRole(string(claims.Role))
	if !ok {
		return nil, ErrInvalidToken
	}

	return &Principal{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  role,
	}, nil
}
