// Package auth issues and checks the bearer tokens that carry a caller's
// account id and role.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

const issuer = "mindengage-quiz"

var (
	ErrMissingBearer = errors.New("auth: missing bearer token")
	ErrTokenRevoked  = errors.New("auth: token revoked")
)

type Service struct {
	hmac    []byte
	ttl     time.Duration
	revoker Revoker
}

// NewService returns a token service. A nil revoker keeps revocations in memory.
func NewService(secret string, ttl time.Duration, revoker Revoker) *Service {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	if revoker == nil {
		revoker = NewMemoryRevoker()
	}
	return &Service{hmac: []byte(secret), ttl: ttl, revoker: revoker}
}

type Claims struct {
	AccountID int64  `json:"uid"`
	Role      string `json:"role"` // "teacher" or "student"
	jwt.RegisteredClaims
}

// IssueJWT signs a token for the account and returns it with its expiry.
func (a *Service) IssueJWT(accountID int64, username string, role rbac.Role) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(a.ttl)
	claims := &Claims{
		AccountID: accountID,
		Role:      string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(a.hmac)
	return s, exp, err
}

func (a *Service) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return c, nil
}

// Authenticate parses a bearer token and rejects revoked ones.
func (a *Service) Authenticate(ctx context.Context, header string) (*Claims, error) {
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, ErrMissingBearer
	}
	c, err := a.Parse(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return nil, err
	}
	revoked, err := a.revoker.Revoked(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return c, nil
}

// Revoke denies the token for the rest of its lifetime.
func (a *Service) Revoke(ctx context.Context, c *Claims) error {
	until := time.Now().Add(a.ttl)
	if c.ExpiresAt != nil {
		until = c.ExpiresAt.Time
	}
	return a.revoker.Revoke(ctx, c.ID, until)
}

// JWTMiddleware authenticates the bearer token and puts the caller's actor
// and claims on the request context.
func JWTMiddleware(a *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := a.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				unauthorized(w)
				return
			}
			role, ok := rbac.ParseRole(c.Role)
			if !ok || c.AccountID == 0 {
				unauthorized(w)
				return
			}
			ctx := rbac.WithActor(r.Context(), rbac.Actor{ID: c.AccountID, Role: role})
			ctx = WithClaims(ctx, c)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":    "unauthenticated",
		"notice":   "Please log in.",
		"redirect": "/auth/login",
	})
}

type ctxKey string

const ctxKeyClaims ctxKey = "claims"

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, c)
}

func ClaimsFromContext(ctx context.Context) *Claims {
	if c, ok := ctx.Value(ctxKeyClaims).(*Claims); ok {
		return c
	}
	return nil
}
