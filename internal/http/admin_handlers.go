package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	internalmw "github.com/mototumen/community-api/internal/http/middleware"
	"github.com/mototumen/community-api/internal/ratelimit"
	"github.com/mototumen/community-api/internal/service"
)

type adminPasswordRequest struct {
	PasswordAction  string `json:"passwordAction"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
}

// handleAdminGet reports whether the gate password has been set up.
func (h *Handler) handleAdminGet(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("action") != "admin-password" {
		WriteError(w, http.StatusBadRequest, "Unknown action")
		return
	}

	hasPassword, err := h.gate.Status(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"hasPassword": hasPassword})
}

func (h *Handler) handleAdminPost(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("action") {
	case "admin-password":
		h.handleAdminPasswordSetup(w, r)
	case "verify-my-admin-password":
		h.handleAdminPasswordVerify(w, r)
	default:
		WriteError(w, http.StatusBadRequest, "Unknown action")
	}
}

func (h *Handler) handleAdminPasswordSetup(w http.ResponseWriter, r *http.Request) {
	var req adminPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.PasswordAction != "setup" {
		WriteError(w, http.StatusBadRequest, "Unknown password action")
		return
	}

	confirm := req.ConfirmPassword
	if confirm == "" {
		confirm = req.Password
	}

	if err := h.gate.Setup(r.Context(), req.Password, confirm); err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordAlreadySet):
			WriteError(w, http.StatusBadRequest, "Password already set")
		case errors.Is(err, service.ErrPasswordMismatch):
			WriteError(w, http.StatusBadRequest, "Passwords do not match")
		default:
			WriteError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleAdminPasswordVerify requires a valid session token; attempts are
// counted against the admin rate limiter per user.
func (h *Handler) handleAdminPasswordVerify(w http.ResponseWriter, r *http.Request) {
	token := internalmw.TokenFromRequest(r)
	if token == "" {
		WriteError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	profile, err := h.auth.Verify(r.Context(), token)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	var req adminPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	valid, err := h.gate.Verify(r.Context(), profile.ID, req.Password)
	if err != nil {
		var limitErr *ratelimit.LimitExceededError
		switch {
		case errors.As(err, &limitErr):
			w.Header().Set("Retry-After", strconv.Itoa(limitErr.WaitSeconds))
			WriteError(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, service.ErrPasswordNotSet):
			WriteError(w, http.StatusBadRequest, "Password not set")
		default:
			WriteError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

func (h *Handler) handleAdminPut(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("action") != "admin-password" {
		WriteError(w, http.StatusBadRequest, "Unknown action")
		return
	}

	var req adminPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := h.gate.Change(r.Context(), req.OldPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, service.ErrWrongPassword):
			WriteError(w, http.StatusForbidden, "Wrong old password")
		case errors.Is(err, service.ErrPasswordNotSet):
			WriteError(w, http.StatusBadRequest, "Password not set")
		default:
			WriteError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}
