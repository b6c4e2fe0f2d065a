package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	internalmw "github.com/mototumen/community-api/internal/http/middleware"
	"github.com/mototumen/community-api/internal/repo"
	"github.com/mototumen/community-api/internal/roles"
	"github.com/mototumen/community-api/internal/service"
)

func (h *Handler) handleUsersList(w http.ResponseWriter, r *http.Request) {
	profile := internalmw.GetProfile(r.Context())

	users, err := h.users.List(r.Context(), profile.Role)
	if err != nil {
		writeUserAdminError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) handleUserStatus(w http.ResponseWriter, r *http.Request) {
	profile := internalmw.GetProfile(r.Context())

	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var req struct {
		IsActive bool `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := h.users.SetActive(r.Context(), profile.Role, userID, req.IsActive); err != nil {
		writeUserAdminError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleUserRole(w http.ResponseWriter, r *http.Request) {
	profile := internalmw.GetProfile(r.Context())

	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := h.users.AssignRole(r.Context(), profile.Role, userID, roles.Role(req.Role)); err != nil {
		writeUserAdminError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func writeUserAdminError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		WriteError(w, http.StatusForbidden, "Permission denied")
	case errors.Is(err, service.ErrUnknownRole):
		WriteError(w, http.StatusBadRequest, "Unknown role")
	case errors.Is(err, repo.ErrNotFound):
		WriteError(w, http.StatusNotFound, "User not found")
	default:
		WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}
