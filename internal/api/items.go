package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/erazemk/garderoba/internal/ledger"
	"github.com/erazemk/garderoba/internal/model"
)

// ItemsHandler handles custody endpoints.
type ItemsHandler struct {
	Ledger *ledger.Ledger
}

type checkOutRequest struct {
	Code string `json:"code"`
}

// List handles GET /api/items?department=&phone=.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.ActiveFilter{
		Department:  model.Department(q.Get("department")),
		ClientPhone: q.Get("phone"),
	}
	if filter.Department != "" && !filter.Department.Valid() {
		jsonError(w, http.StatusBadRequest, "unknown department")
		return
	}

	items, err := h.Ledger.ListActive(r.Context(), actor(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// CheckIn handles POST /api/items.
func (h *ItemsHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var draft model.ItemDraft
	if err := decodeJSON(r, &draft); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Ledger.CheckIn(r.Context(), actor(r), draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// CheckOut handles POST /api/items/checkout.
func (h *ItemsHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	var req checkOutRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Ledger.CheckOut(r.Context(), actor(r), req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Lookup handles GET /api/items/code/{code}.
func (h *ItemsHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	item, err := h.Ledger.LookupCode(r.Context(), actor(r), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Archive handles GET /api/archive.
func (h *ItemsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	items, err := h.Ledger.ListArchive(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Departments handles GET /api/departments.
func (h *ItemsHandler) Departments(w http.ResponseWriter, r *http.Request) {
	occ, err := h.Ledger.Occupancy(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, occ)
}

// Clients handles GET /api/clients.
func (h *ItemsHandler) Clients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Ledger.ListClients(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if clients == nil {
		clients = []model.Client{}
	}
	jsonResponse(w, http.StatusOK, clients)
}
