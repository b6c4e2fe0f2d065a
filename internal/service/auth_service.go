package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mototumen/community-api/internal/auth"
	"github.com/mototumen/community-api/internal/ratelimit"
	"github.com/mototumen/community-api/internal/repo"
	"github.com/mototumen/community-api/internal/roles"
	"github.com/mototumen/community-api/internal/util"
)

var (
	// ErrIdentityRequired indicates a payload without telegram_id or first_name.
	ErrIdentityRequired = errors.New("telegram_id and first_name required")
	// ErrIdentityRejected indicates a failed Telegram signature check.
	ErrIdentityRejected = errors.New("telegram identity rejected")
	// ErrInvalidToken indicates a token the server no longer accepts.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrAccountDisabled indicates a blocked account.
	ErrAccountDisabled = errors.New("account disabled")
)

type authRepository interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (repo.User, error)
	CreateTelegramUser(ctx context.Context, arg repo.CreateTelegramUserParams) (repo.User, error)
	UpdateTelegramProfile(ctx context.Context, userID int64, photoURL, username string) error
	GetUserWithProfile(ctx context.Context, id int64) (repo.UserWithProfile, error)
	UpdateProfile(ctx context.Context, userID int64, arg repo.UpdateProfileParams) error
	InsertSession(ctx context.Context, arg repo.InsertSessionParams) error
	GetSessionByHash(ctx context.Context, tokenHash string) (repo.Session, error)
	RevokeSession(ctx context.Context, tokenHash string) error
}

type tokenStore interface {
	SetToken(ctx context.Context, id, token string) error
	GetToken(ctx context.Context, id string) (string, bool, error)
	RemoveToken(ctx context.Context, id string) error
}

// AuthService is the single source of truth for who is logged in.
type AuthService struct {
	repo        authRepository
	store       tokenStore
	jwt         *auth.JWTManager
	authLimiter *ratelimit.Limiter
	botToken    string
	authTTL     time.Duration
	sessionTTL  time.Duration
}

// NewAuthService wires the authentication flow together.
func NewAuthService(r authRepository, store tokenStore, jwtMgr *auth.JWTManager, limiter *ratelimit.Limiter, botToken string, authTTL, sessionTTL time.Duration) *AuthService {
	return &AuthService{
		repo:        r,
		store:       store,
		jwt:         jwtMgr,
		authLimiter: limiter,
		botToken:    botToken,
		authTTL:     authTTL,
		sessionTTL:  sessionTTL,
	}
}

// JWT exposes the JWT manager (used by middleware).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// UserProfile is the profile shape returned to clients.
type UserProfile struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Gender    string    `json:"gender"`
	Phone     *string   `json:"phone,omitempty"`
	Bio       *string   `json:"bio,omitempty"`
	Location  *string   `json:"location,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	Telegram  *string   `json:"telegram,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAdmin reports whether the profile unlocks admin surfaces.
func (p *UserProfile) IsAdmin() bool {
	return roles.IsAdminRole(p.Role)
}

// LoginResult is the response of a successful authentication.
type LoginResult struct {
	Token   string      `json:"token"`
	User    UserProfile `json:"user"`
	Created bool        `json:"-"`
}

// AuthIdentifier is the rate-limit key for a Telegram identity.
func AuthIdentifier(telegramID int64) string {
	return fmt.Sprintf("telegram_%d", telegramID)
}

// LoginWithTelegram exchanges a Login Widget identity payload for a bearer
// token. The rate limit is checked before any verification or storage work.
func (s *AuthService) LoginWithTelegram(ctx context.Context, p auth.WidgetPayload) (*LoginResult, error) {
	if _, err := ratelimit.Enforce(AuthIdentifier(p.TelegramID), s.authLimiter); err != nil {
		return nil, err
	}

	if p.TelegramID == 0 || p.FirstName == "" {
		return nil, ErrIdentityRequired
	}

	if err := auth.VerifyWidgetPayload(s.botToken, p, s.authTTL); err != nil {
		log.Warn().Int64("telegram_id", p.TelegramID).Err(err).Msg("telegram auth rejected")
		return nil, ErrIdentityRejected
	}

	return s.loginVerified(ctx, p)
}

// LoginWithInitData authenticates a Telegram Mini App init data string.
func (s *AuthService) LoginWithInitData(ctx context.Context, raw string) (*LoginResult, error) {
	p, err := auth.ValidateInitData(s.botToken, raw, s.authTTL)
	if err != nil {
		log.Warn().Err(err).Msg("init data rejected")
		return nil, ErrIdentityRejected
	}

	if _, err := ratelimit.Enforce(AuthIdentifier(p.TelegramID), s.authLimiter); err != nil {
		return nil, err
	}

	return s.loginVerified(ctx, p)
}

func (s *AuthService) loginVerified(ctx context.Context, p auth.WidgetPayload) (*LoginResult, error) {
	user, err := s.repo.GetUserByTelegramID(ctx, p.TelegramID)
	created := false
	switch {
	case err == nil:
		if p.PhotoURL != "" || p.Username != "" {
			if err := s.repo.UpdateTelegramProfile(ctx, user.ID, p.PhotoURL, p.Username); err != nil {
				return nil, err
			}
		}
	case errors.Is(err, repo.ErrNotFound):
		name := p.FirstName
		if p.LastName != "" {
			name += " " + p.LastName
		}
		user, err = s.repo.CreateTelegramUser(ctx, repo.CreateTelegramUserParams{
			TelegramID: p.TelegramID,
			Name:       name,
			FirstName:  p.FirstName,
			LastName:   optional(p.LastName),
			Username:   optional(p.Username),
			Email:      fmt.Sprintf("tg_%d@telegram.user", p.TelegramID),
			PhotoURL:   optional(p.PhotoURL),
		})
		if err != nil {
			return nil, err
		}
		created = true
	default:
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	token, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	profile, err := s.loadProfile(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, User: *profile, Created: created}, nil
}

func (s *AuthService) issueSession(ctx context.Context, user repo.User) (string, error) {
	rawSession, sessionHash, err := auth.GenerateSessionToken()
	if err != nil {
		return "", err
	}

	now := util.Now()
	if err := s.repo.InsertSession(ctx, repo.InsertSessionParams{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: sessionHash,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}); err != nil {
		return "", err
	}

	if err := s.store.SetToken(ctx, sessionHash, strconv.FormatInt(user.ID, 10)); err != nil {
		return "", err
	}

	return s.jwt.GenerateAccessToken(strconv.FormatInt(user.ID, 10), user.Role, rawSession)
}

// Verify resolves a bearer token to the current profile. Any failure along
// the way yields ErrInvalidToken: verification fails closed.
func (s *AuthService) Verify(ctx context.Context, token string) (*UserProfile, error) {
	claims, err := s.jwt.ParseAndValidate(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	sessionHash := auth.HashSessionToken(claims.SessionID)
	if err := s.checkSession(ctx, sessionHash, claims.Subject); err != nil {
		return nil, err
	}

	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return profile, nil
}

// checkSession consults the token store first and falls back to the durable
// session record, re-priming the store on a hit.
func (s *AuthService) checkSession(ctx context.Context, sessionHash, subject string) error {
	stored, ok, err := s.store.GetToken(ctx, sessionHash)
	if err == nil && ok {
		if stored != subject {
			return ErrInvalidToken
		}
		return nil
	}
	if err != nil {
		log.Warn().Err(err).Msg("token store read failed, falling back to database")
	}

	session, err := s.repo.GetSessionByHash(ctx, sessionHash)
	if err != nil {
		return ErrInvalidToken
	}
	if session.Revoked || util.Now().After(session.ExpiresAt) {
		return ErrInvalidToken
	}
	if strconv.FormatInt(session.UserID, 10) != subject {
		return ErrInvalidToken
	}

	if err := s.store.SetToken(ctx, sessionHash, subject); err != nil {
		log.Warn().Err(err).Msg("token store re-prime failed")
	}
	return nil
}

// Logout revokes the session best-effort. It always succeeds: a client must
// be able to log out even when the backend state is unreachable.
func (s *AuthService) Logout(ctx context.Context, token string) {
	claims, err := s.jwt.ParseAndValidate(token)
	if err != nil {
		return
	}

	sessionHash := auth.HashSessionToken(claims.SessionID)
	if err := s.repo.RevokeSession(ctx, sessionHash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		log.Warn().Err(err).Msg("session revoke failed")
	}
	if err := s.store.RemoveToken(ctx, sessionHash); err != nil {
		log.Warn().Err(err).Msg("token store delete failed")
	}
}

// ProfileUpdate carries a partial profile edit. Nil fields are untouched.
type ProfileUpdate struct {
	Name      *string `json:"name"`
	Gender    *string `json:"gender"`
	Phone     *string `json:"phone"`
	Bio       *string `json:"bio"`
	Location  *string `json:"location"`
	AvatarURL *string `json:"avatar_url"`
}

// UpdateProfile validates and applies the delta, then re-reads the full
// profile. On failure nothing is merged.
func (s *AuthService) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (*UserProfile, error) {
	current, err := s.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	params, err := sanitizeProfileUpdate(update)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateProfile(ctx, current.ID, params); err != nil {
		return nil, err
	}

	return s.loadProfile(ctx, current.ID)
}

func sanitizeProfileUpdate(update ProfileUpdate) (repo.UpdateProfileParams, error) {
	var params repo.UpdateProfileParams

	if update.Name != nil {
		name := util.SanitizeInput(*update.Name, 100)
		if err := util.RequireString(name, "name"); err != nil {
			return params, err
		}
		params.Name = &name
	}
	if update.Gender != nil {
		gender := *update.Gender
		if gender != "male" && gender != "female" {
			return params, errors.New("gender must be male or female")
		}
		params.Gender = &gender
	}
	if update.Phone != nil {
		phone := util.SanitizeInput(*update.Phone, 20)
		if phone != "" && !util.IsValidPhone(phone) {
			return params, errors.New("invalid phone number")
		}
		params.Phone = &phone
	}
	if update.Bio != nil {
		bio := util.SanitizeInput(*update.Bio, 1000)
		params.Bio = &bio
	}
	if update.Location != nil {
		location := util.SanitizeInput(*update.Location, 100)
		params.Location = &location
	}
	if update.AvatarURL != nil {
		cleaned := util.SanitizeURL(*update.AvatarURL)
		if *update.AvatarURL != "" && cleaned == "" {
			return params, errors.New("invalid avatar url")
		}
		params.AvatarURL = &cleaned
	}

	return params, nil
}

func (s *AuthService) loadProfile(ctx context.Context, userID int64) (*UserProfile, error) {
	row, err := s.repo.GetUserWithProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &UserProfile{
		ID:        row.User.ID,
		Name:      row.Name,
		Email:     row.Email,
		Role:      row.Role,
		Gender:    row.Gender,
		Phone:     row.Phone,
		Bio:       row.Bio,
		Location:  row.Location,
		AvatarURL: row.AvatarURL,
		Telegram:  row.Profile.Telegram,
		CreatedAt: row.CreatedAt,
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
