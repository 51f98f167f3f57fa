package rpc

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"badgeforge/crypto"
)

const authClockSkew = 2 * time.Minute

var (
	errAuthDisabled = errors.New("rpc: admin auth not configured")
	errMissingToken = errors.New("rpc: missing bearer token")
	errInvalidToken = errors.New("rpc: invalid token")
)

// Authenticator validates HS256 bearer tokens for administrative methods.
// The token's subject claim carries the caller's bech32 address; the
// engine still performs the owner check, so a valid token for a non-owner
// account surfaces the engine's Unauthorized error rather than an HTTP
// 401.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return &Authenticator{}
	}
	return &Authenticator{secret: []byte(trimmed)}
}

// RequireCaller extracts and validates the caller identity from the
// request's bearer token.
func (a *Authenticator) RequireCaller(r *http.Request) (crypto.Address, error) {
	if len(a.secret) == 0 {
		return crypto.Address{}, errAuthDisabled
	}
	tokenString := extractBearer(r.Header.Get("Authorization"))
	if tokenString == "" {
		return crypto.Address{}, errMissingToken
	}
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithLeeway(authClockSkew))
	if err != nil || !parsed.Valid {
		return crypto.Address{}, errInvalidToken
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return crypto.Address{}, errInvalidToken
	}
	addr, err := crypto.DecodeAddress(strings.TrimSpace(subject))
	if err != nil {
		return crypto.Address{}, errInvalidToken
	}
	return addr, nil
}

// IssueToken mints a short-lived admin token for the given caller. Used by
// operator tooling and tests.
func (a *Authenticator) IssueToken(caller crypto.Address, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errAuthDisabled
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   caller.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func extractBearer(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
