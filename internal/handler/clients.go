package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/homelink/hub-go/internal/audit"
	apperrors "github.com/homelink/hub-go/internal/errors"
	"github.com/homelink/hub-go/internal/service"
	"github.com/homelink/hub-go/internal/util"
)

type ClientsHandler struct {
	clients *service.ClientService
}

func NewClientsHandler(clients *service.ClientService) *ClientsHandler {
	return &ClientsHandler{clients: clients}
}

func (h *ClientsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/revoke", h.Revoke)
	r.Get("/{id}/activity", h.Activity)
	return r
}

func (h *ClientsHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clients.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(clients))
	for _, c := range clients {
		out = append(out, formatClient(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ClientsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := clientID(w, r)
	if !ok {
		return
	}

	client, err := h.clients.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, formatClient(*client))
}

func (h *ClientsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := clientID(w, r)
	if !ok {
		return
	}

	if err := h.clients.Delete(r.Context(), id, audit.ClientIP(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *ClientsHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, ok := clientID(w, r)
	if !ok {
		return
	}

	if err := h.clients.Revoke(r.Context(), id, audit.ClientIP(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

func (h *ClientsHandler) Activity(w http.ResponseWriter, r *http.Request) {
	id, ok := clientID(w, r)
	if !ok {
		return
	}

	entries, err := h.clients.Activity(r.Context(), id, 100)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func clientID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !util.IsValidUUID(id) {
		writeError(w, apperrors.InvalidInput("id", "must be a UUID"))
		return "", false
	}
	return id, true
}
