package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/homelink/hub-go/internal/audit"
	"github.com/homelink/hub-go/internal/config"
	"github.com/homelink/hub-go/internal/middleware"
	"github.com/homelink/hub-go/internal/service"
)

type AdminHandler struct {
	admin        *service.AdminService
	isProduction bool
}

func NewAdminHandler(admin *service.AdminService, isProduction bool) *AdminHandler {
	return &AdminHandler{admin: admin, isProduction: isProduction}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	return r
}

type loginRequest struct {
	Password string `json:"password"`
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}

	token, err := h.admin.Login(r.Context(), req.Password, audit.ClientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.SetSessionCookie(w, token, int(config.AdminSessionTTL.Seconds()), h.isProduction)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.AdminSessionCookie); err == nil && cookie.Value != "" {
		if err := h.admin.Logout(r.Context(), cookie.Value, audit.ClientIP(r)); err != nil {
			writeError(w, err)
			return
		}
	}

	middleware.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
