package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"retroboard/internal/auth"
	"retroboard/internal/retro"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
)

type RetroHandler struct {
	Store  retro.Store
	Logger *log.Logger
}

type createRetroReq struct {
	RetroType string `json:"retroType"`
}

func (h *RetroHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	var req createRetroReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	t, ok := retro.ParseRetroType(req.RetroType)
	if !ok {
		http.Error(w, "Invalid retro type", http.StatusBadRequest)
		return
	}

	created, err := h.Store.CreateRetro(r.Context(), retro.User{Email: id.Email, Name: id.Name, Image: id.Image}, t)
	if err != nil {
		h.fail(w, r, "create retro", err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *RetroHandler) List(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	rows, err := h.Store.ListRetros(r.Context(), id.Email)
	if err != nil {
		h.fail(w, r, "list retros", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"retros": rows})
}

func (h *RetroHandler) Get(w http.ResponseWriter, r *http.Request) {
	retroID := strings.TrimSpace(chi.URLParam(r, "id"))
	if retroID == "" {
		http.Error(w, "Retro not found", http.StatusNotFound)
		return
	}

	agg, err := h.Store.FetchAggregate(r.Context(), retroID)
	if errors.Is(err, retro.ErrNotFound) {
		http.Error(w, "Retro not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.fail(w, r, "fetch retro", err)
		return
	}
	agg.Normalize()
	writeJSON(w, http.StatusOK, agg)
}

func (h *RetroHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if h.Logger != nil {
		h.Logger.Error(op, "path", r.URL.Path, "err", err)
	}
	http.Error(w, "server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
