package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

func TestIssueAndParse(t *testing.T) {
	a := NewService("secret", time.Hour, nil)
	tok, exp, err := a.IssueJWT(42, "ada", rbac.RoleTeacher)
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry in the past: %v", exp)
	}
	c, err := a.Parse(tok)
	if err != nil {
		t.Fatal(err)
	}
	if c.AccountID != 42 || c.Role != "teacher" || c.Subject != "ada" || c.ID == "" {
		t.Fatalf("claims = %+v", c)
	}

	other := NewService("different", time.Hour, nil)
	if _, err := other.Parse(tok); err == nil {
		t.Fatal("token verified with the wrong secret")
	}
}

func TestMiddleware(t *testing.T) {
	a := NewService("secret", time.Hour, nil)
	var seen rbac.Actor
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = rbac.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tok, _, err := a.IssueJWT(7, "sam", rbac.RoleStudent)
	if err != nil {
		t.Fatal(err)
	}
	bad, _, err := a.IssueJWT(7, "sam", rbac.Role("admin"))
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"unknown role", "Bearer " + bad, http.StatusUnauthorized},
		{"ok", "Bearer " + tok, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
	if seen.ID != 7 || seen.Role != rbac.RoleStudent {
		t.Fatalf("actor = %+v", seen)
	}
}

func TestRevokedTokenIsRejected(t *testing.T) {
	ctx := context.Background()
	a := NewService("secret", time.Hour, NewMemoryRevoker())
	tok, _, err := a.IssueJWT(1, "u", rbac.RoleStudent)
	if err != nil {
		t.Fatal(err)
	}
	c, err := a.Authenticate(ctx, "Bearer "+tok)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Revoke(ctx, c); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Authenticate(ctx, "Bearer "+tok); err != ErrTokenRevoked {
		t.Fatalf("err = %v, want ErrTokenRevoked", err)
	}
}

func TestMemoryRevokerExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRevoker()
	_ = m.Revoke(ctx, "past", time.Now().Add(-time.Minute))
	_ = m.Revoke(ctx, "future", time.Now().Add(time.Minute))

	if ok, _ := m.Revoked(ctx, "past"); ok {
		t.Fatal("expired entry still revoked")
	}
	if ok, _ := m.Revoked(ctx, "future"); !ok {
		t.Fatal("live entry not revoked")
	}
}

// Runs against a real server only when QUIZ_TEST_REDIS_ADDR is set.
func TestRedisRevoker(t *testing.T) {
	addr := os.Getenv("QUIZ_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("QUIZ_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	r := NewRedisRevoker(client)
	jti := "test-" + time.Now().Format("150405.000000")
	if ok, err := r.Revoked(ctx, jti); err != nil || ok {
		t.Fatalf("fresh jti: %v %v", ok, err)
	}
	if err := r.Revoke(ctx, jti, time.Now().Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if ok, err := r.Revoked(ctx, jti); err != nil || !ok {
		t.Fatalf("revoked jti: %v %v", ok, err)
	}
}
