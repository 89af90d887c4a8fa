package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims defines the JWT claims structure.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// UserClaimsKey is the context key for user claims.
type contextKey string

const UserClaimsKey = contextKey("userClaims")

// ErrEmptySecret indicates a missing signing secret. Issuance without a
// secret would be a configuration fault, so construction fails up front
// instead of failing per request.
var ErrEmptySecret = errors.New("signing secret must not be empty")

// Issuer mints and validates HS256-signed tokens. The secret and TTL are
// fixed at construction; an Issuer is safe for concurrent use.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates an Issuer with the given signing secret and token lifetime.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %v", ttl)
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}, nil
}

// TTL reports the configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue creates a new signed token for the given user ID, expiring TTL from now.
func (i *Issuer) Issue(userID string) (string, error) {
	return i.IssueAt(userID, time.Now())
}

// IssueAt creates a signed token expiring TTL after the supplied instant.
// The output is deterministic for fixed (userID, now, ttl, secret).
func (i *Issuer) IssueAt(userID string, now time.Time) (string, error) {
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Validate parses a token string, checking signature and expiry.
func (i *Issuer) Validate(tokenStr string) (*Claims, error) {
	return i.validate(tokenStr)
}

// ValidateAt is Validate with an explicit clock, for callers that need to
// evaluate expiry against a fixed instant.
func (i *Issuer) ValidateAt(tokenStr string, now time.Time) (*Claims, error) {
	return i.validate(tokenStr, jwt.WithTimeFunc(func() time.Time { return now }))
}

func (i *Issuer) validate(tokenStr string, opts ...jwt.ParserOption) (*Claims, error) {
	claims := &Claims{}
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Middleware creates a middleware for protecting routes.
func (i *Issuer) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenStr string

			// 1. Try to get the token from the Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				parts := strings.Split(authHeader, "Bearer ")
				if len(parts) == 2 {
					tokenStr = parts[1]
				}
			}

			// 2. If not in header, fall back to the cookie
			if tokenStr == "" {
				cookie, err := r.Cookie("token")
				if err != nil {
					http.Error(w, "Missing auth token", http.StatusUnauthorized)
					return
				}
				tokenStr = cookie.Value
			}

			// 3. Validate the token
			claims, err := i.Validate(tokenStr)
			if err != nil {
				http.Error(w, "Invalid auth token", http.StatusUnauthorized)
				return
			}

			// 4. Pass claims down via context
			ctx := context.WithValue(r.Context(), UserClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
