package http

import (
	"errors"
	"net/http"

	"github.com/mind-engage/mindengage-quiz/internal/apperr"
	"github.com/mind-engage/mindengage-quiz/internal/auth"
	"github.com/mind-engage/mindengage-quiz/internal/identity"
	"github.com/mind-engage/mindengage-quiz/internal/logger"
	"github.com/mind-engage/mindengage-quiz/internal/metrics"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

// POST /auth/register  {username,email,first_name,last_name,password,confirm_password}
func RegisterHandler(accounts *identity.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in identity.NewAccount
		if err := decode(r, &in); err != nil {
			metrics.Registration("invalid")
			writeError(w, log, err, "/auth/register")
			return
		}
		acc, err := accounts.Register(r.Context(), in)
		if err != nil {
			metrics.Registration(resultLabel(err))
			writeError(w, log, err, "/auth/register")
			return
		}
		metrics.Registration("ok")
		writeJSON(w, http.StatusCreated, map[string]any{
			"account":  acc,
			"notice":   "Registration successful. You can now login.",
			"redirect": "/auth/login",
		})
	}
}

// POST /auth/login  { "username": "...", "password": "...", "role": "teacher|student" }
func LoginHandler(accounts *identity.Store, a *auth.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := decode(r, &req); err != nil {
			metrics.LoginAttempt("invalid")
			writeError(w, log, err, "/auth/login")
			return
		}
		claimed, ok := rbac.ParseRole(req.Role)
		if !ok {
			claimed = rbac.Role(req.Role)
		}
		acc, err := accounts.Authenticate(r.Context(), req.Username, req.Password, claimed)
		if err != nil {
			metrics.LoginAttempt(resultLabel(err))
			writeError(w, log, err, "/auth/login")
			return
		}
		tok, exp, err := a.IssueJWT(acc.ID, acc.Username, acc.Role)
		if err != nil {
			metrics.LoginAttempt("error")
			writeError(w, log, err, "/auth/login")
			return
		}
		metrics.LoginAttempt("ok")
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": tok,
			"expires_at":   exp.Unix(),
			"role":         acc.Role,
			"redirect":     dashboardFor(acc.Role),
		})
	}
}

// POST /auth/logout
func LogoutHandler(a *auth.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := auth.ClaimsFromContext(r.Context())
		if c != nil {
			if err := a.Revoke(r.Context(), c); err != nil {
				writeError(w, log, err, "/")
				return
			}
		}
		writeJSON(w, http.StatusOK, notice{Notice: "You have been logged out.", Redirect: "/"})
	}
}

func dashboardFor(role rbac.Role) string {
	if role == rbac.RoleTeacher {
		return "/teacher/dashboard"
	}
	return "/student/dashboard"
}

func resultLabel(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Code != "" {
		return ae.Code
	}
	return "error"
}
