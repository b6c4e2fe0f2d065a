package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	initdata "github.com/telegram-mini-apps/init-data-golang"
)

var (
	// ErrInvalidSignature is returned when the identity payload fails the HMAC check.
	ErrInvalidSignature = errors.New("telegram signature mismatch")
	// ErrAuthExpired is returned when auth_date is outside the freshness window.
	ErrAuthExpired = errors.New("telegram auth data expired")
)

// WidgetPayload is the identity payload produced by the Telegram Login Widget.
type WidgetPayload struct {
	TelegramID int64  `json:"telegram_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name,omitempty"`
	Username   string `json:"username,omitempty"`
	PhotoURL   string `json:"photo_url,omitempty"`
	AuthDate   int64  `json:"auth_date"`
	Hash       string `json:"hash"`
}

// VerifyWidgetPayload checks the widget HMAC (secret = SHA256(bot token)) and
// rejects payloads whose auth_date is older than maxAge.
func VerifyWidgetPayload(botToken string, p WidgetPayload, maxAge time.Duration) error {
	if maxAge > 0 {
		issued := time.Unix(p.AuthDate, 0)
		if time.Since(issued) > maxAge {
			return ErrAuthExpired
		}
	}

	expected := SignWidgetPayload(botToken, p)
	if !hmac.Equal([]byte(expected), []byte(p.Hash)) {
		return ErrInvalidSignature
	}
	return nil
}

// SignWidgetPayload computes the widget signature for an identity payload.
// The data-check string uses the widget field names, sorted, hash excluded.
func SignWidgetPayload(botToken string, p WidgetPayload) string {
	pairs := []string{
		fmt.Sprintf("auth_date=%d", p.AuthDate),
		fmt.Sprintf("first_name=%s", p.FirstName),
		fmt.Sprintf("id=%d", p.TelegramID),
	}
	if p.LastName != "" {
		pairs = append(pairs, "last_name="+p.LastName)
	}
	if p.PhotoURL != "" {
		pairs = append(pairs, "photo_url="+p.PhotoURL)
	}
	if p.Username != "" {
		pairs = append(pairs, "username="+p.Username)
	}
	sort.Strings(pairs)

	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(strings.Join(pairs, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidateInitData verifies Telegram Mini App init data and maps its user to a
// widget-shaped payload so both login transports share one path downstream.
func ValidateInitData(botToken, raw string, expIn time.Duration) (WidgetPayload, error) {
	if err := initdata.Validate(raw, botToken, expIn); err != nil {
		return WidgetPayload{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	data, err := initdata.Parse(raw)
	if err != nil {
		return WidgetPayload{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return WidgetPayload{
		TelegramID: data.User.ID,
		FirstName:  data.User.FirstName,
		LastName:   data.User.LastName,
		Username:   data.User.Username,
		PhotoURL:   data.User.PhotoURL,
		AuthDate:   int64(data.AuthDateRaw),
	}, nil
}
