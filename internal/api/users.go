package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/staff"
)

// UsersHandler handles staff account endpoints.
type UsersHandler struct {
	Staff *staff.Service
}

type createUserRequest struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type setBlockedRequest struct {
	Blocked bool `json:"blocked"`
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.Staff.List(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	jsonResponse(w, http.StatusOK, users)
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.Staff.Create(r.Context(), actor(r), req.Username, req.FullName, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, user)
}

// SetBlocked handles PUT /api/users/{username}/blocked.
func (h *UsersHandler) SetBlocked(w http.ResponseWriter, r *http.Request) {
	var req setBlockedRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	username := chi.URLParam(r, "username")
	if err := h.Staff.SetBlocked(r.Context(), actor(r), username, req.Blocked); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"username": username, "blocked": req.Blocked})
}

// SetRole handles PUT /api/users/{username}/role.
func (h *UsersHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req setRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	username := chi.URLParam(r, "username")
	if err := h.Staff.SetRole(r.Context(), actor(r), username, req.Role); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"username": username, "role": req.Role})
}
