package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/erazemk/garderoba/internal/auth"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	DB        *sql.DB
	Guard     *auth.Guard
	JWTSecret string
	TokenTTL  time.Duration
	Limiter   *rate.Limiter
}

type loginRequest struct {
	Role       string `json:"role"`
	Identifier string `json:"identifier"`
	Credential string `json:"credential"`
}

type loginResponse struct {
	Token   string        `json:"token"`
	Session model.Session `json:"session"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.Limiter != nil && !h.Limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		jsonError(w, http.StatusTooManyRequests, "too many login requests")
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Role = strings.TrimSpace(req.Role)
	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Role == "" || req.Identifier == "" {
		jsonError(w, http.StatusBadRequest, "role and identifier required")
		return
	}

	session, err := h.Guard.AttemptLogin(r.Context(), req.Role, req.Identifier, req.Credential)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, session, h.TokenTTL)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("user logged in", "role", session.Role, "identifier", session.Identifier, "remote", r.RemoteAddr)
	jsonResponse(w, http.StatusOK, loginResponse{Token: token, Session: session})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil || claims.ID == "" {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	expiresAt := time.Now().Add(h.TokenTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, expiresAt, time.Now()); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("user logged out", "role", claims.Role, "identifier", claims.Identifier)
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Me handles GET /api/auth/session.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, actor(r))
}

// Lockout handles GET /api/auth/lockout?role=&identifier=.
func (h *AuthHandler) Lockout(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	jsonResponse(w, http.StatusOK, h.Guard.Status(q.Get("role"), q.Get("identifier")))
}
