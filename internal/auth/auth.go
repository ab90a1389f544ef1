// Package auth issues and verifies the signed tokens that identify
// users to the API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/TheHartAttack/viberates-backend/internal/revision"
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 365 * 24 * time.Hour

// ErrInvalidToken covers expired, malformed, and tampered tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the token payload.
type Claims struct {
	Username  string   `json:"username"`
	Slug      string   `json:"userSlug"`
	Roles     []string `json:"roles"`
	Suspended bool     `json:"suspended"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies user tokens with an HMAC secret.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

// New builds a Tokens using the configured signing secret.
func New(secret string) *Tokens {
	return &Tokens{secret: []byte(secret), now: time.Now}
}

// Issue signs a token identifying the user.
func (t *Tokens) Issue(actor revision.Actor) (string, error) {
	now := t.now()
	claims := Claims{
		Username:  actor.Username,
		Slug:      actor.Slug,
		Roles:     actor.Roles,
		Suspended: actor.Suspended,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", actor.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns the actor it identifies.
func (t *Tokens) Verify(tokenString string) (revision.Actor, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return t.now() }))
	if err != nil || !token.Valid {
		return revision.Actor{}, ErrInvalidToken
	}

	var id int64
	if _, err := fmt.Sscanf(claims.Subject, "%d", &id); err != nil {
		return revision.Actor{}, ErrInvalidToken
	}

	return revision.Actor{
		ID:        id,
		Username:  claims.Username,
		Slug:      claims.Slug,
		Roles:     claims.Roles,
		Suspended: claims.Suspended,
	}, nil
}
