package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mototumen/community-api/internal/auth"
	internalmw "github.com/mototumen/community-api/internal/http/middleware"
	"github.com/mototumen/community-api/internal/ratelimit"
	"github.com/mototumen/community-api/internal/service"
)

type authRequest struct {
	Action string `json:"action"`

	// telegram_auth fields
	TelegramID int64  `json:"telegram_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Username   string `json:"username"`
	PhotoURL   string `json:"photo_url"`
	AuthDate   int64  `json:"auth_date"`
	Hash       string `json:"hash"`

	// initdata_auth field
	InitData string `json:"init_data"`
}

func (h *Handler) handleAuthPost(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	switch req.Action {
	case "telegram_auth":
		result, err := h.auth.LoginWithTelegram(r.Context(), auth.WidgetPayload{
			TelegramID: req.TelegramID,
			FirstName:  req.FirstName,
			LastName:   req.LastName,
			Username:   req.Username,
			PhotoURL:   req.PhotoURL,
			AuthDate:   req.AuthDate,
			Hash:       req.Hash,
		})
		if err != nil {
			writeLoginError(w, err)
			return
		}
		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		WriteJSON(w, status, result)

	case "initdata_auth":
		result, err := h.auth.LoginWithInitData(r.Context(), req.InitData)
		if err != nil {
			writeLoginError(w, err)
			return
		}
		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		WriteJSON(w, status, result)

	case "logout":
		if token := internalmw.TokenFromRequest(r); token != "" {
			h.auth.Logout(r.Context(), token)
		}
		WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})

	default:
		WriteError(w, http.StatusBadRequest, "Unknown action")
	}
}

func writeLoginError(w http.ResponseWriter, err error) {
	var limitErr *ratelimit.LimitExceededError
	switch {
	case errors.As(err, &limitErr):
		w.Header().Set("Retry-After", strconv.Itoa(limitErr.WaitSeconds))
		WriteError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, service.ErrIdentityRequired):
		WriteError(w, http.StatusBadRequest, "telegram_id and first_name required")
	case errors.Is(err, service.ErrIdentityRejected):
		WriteError(w, http.StatusUnauthorized, "Telegram authentication failed")
	case errors.Is(err, service.ErrAccountDisabled):
		WriteError(w, http.StatusForbidden, "Your account has been blocked")
	default:
		WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handler) handleAuthGet(w http.ResponseWriter, r *http.Request) {
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

	WriteJSON(w, http.StatusOK, map[string]any{"user": profile})
}

func (h *Handler) handleAuthPut(w http.ResponseWriter, r *http.Request) {
	token := internalmw.TokenFromRequest(r)
	if token == "" {
		WriteError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	var update service.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	profile, err := h.auth.UpdateProfile(r.Context(), token, update)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			WriteError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"user": profile})
}
