package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mototumen/community-api/internal/auth"
	"github.com/mototumen/community-api/internal/config"
	"github.com/mototumen/community-api/internal/ratelimit"
	"github.com/mototumen/community-api/internal/repo"
	"github.com/mototumen/community-api/internal/service"
)

const testBotToken = "1234567890:TEST_TOKEN"

// memoryRepo backs every service in the router tests.
type memoryRepo struct {
	users    map[int64]repo.User
	profiles map[int64]repo.Profile
	sessions map[string]repo.Session
	gate     *repo.AdminPassword
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users:    make(map[int64]repo.User),
		profiles: make(map[int64]repo.Profile),
		sessions: make(map[string]repo.Session),
		nextID:   1,
	}
}

func (m *memoryRepo) addUser(u repo.User) repo.User {
	u.ID = m.nextID
	m.nextID++
	m.users[u.ID] = u
	m.profiles[u.ID] = repo.Profile{UserID: u.ID}
	return u
}

func (m *memoryRepo) GetUserByTelegramID(ctx context.Context, telegramID int64) (repo.User, error) {
	for _, u := range m.users {
		if u.TelegramID == telegramID {
			return u, nil
		}
	}
	return repo.User{}, repo.ErrNotFound
}

func (m *memoryRepo) CreateTelegramUser(ctx context.Context, arg repo.CreateTelegramUserParams) (repo.User, error) {
	return m.addUser(repo.User{
		TelegramID: arg.TelegramID,
		Name:       arg.Name,
		FirstName:  arg.FirstName,
		LastName:   arg.LastName,
		Username:   arg.Username,
		Email:      arg.Email,
		Role:       "user",
		Gender:     "male",
		IsActive:   true,
		CreatedAt:  time.Now(),
	}), nil
}

func (m *memoryRepo) UpdateTelegramProfile(ctx context.Context, userID int64, photoURL, username string) error {
	return nil
}

func (m *memoryRepo) GetUserWithProfile(ctx context.Context, id int64) (repo.UserWithProfile, error) {
	u, ok := m.users[id]
	if !ok {
		return repo.UserWithProfile{}, repo.ErrNotFound
	}
	return repo.UserWithProfile{User: u, Profile: m.profiles[id]}, nil
}

func (m *memoryRepo) UpdateProfile(ctx context.Context, userID int64, arg repo.UpdateProfileParams) error {
	u, ok := m.users[userID]
	if !ok {
		return repo.ErrNotFound
	}
	if arg.Name != nil {
		u.Name = *arg.Name
	}
	if arg.Gender != nil {
		u.Gender = *arg.Gender
	}
	m.users[userID] = u
	return nil
}

func (m *memoryRepo) InsertSession(ctx context.Context, arg repo.InsertSessionParams) error {
	m.sessions[arg.TokenHash] = repo.Session{
		ID: arg.ID, UserID: arg.UserID, TokenHash: arg.TokenHash,
		ExpiresAt: arg.ExpiresAt, CreatedAt: arg.CreatedAt,
	}
	return nil
}

func (m *memoryRepo) GetSessionByHash(ctx context.Context, tokenHash string) (repo.Session, error) {
	sess, ok := m.sessions[tokenHash]
	if !ok {
		return repo.Session{}, repo.ErrNotFound
	}
	return sess, nil
}

func (m *memoryRepo) RevokeSession(ctx context.Context, tokenHash string) error {
	sess, ok := m.sessions[tokenHash]
	if !ok {
		return repo.ErrNotFound
	}
	sess.Revoked = true
	m.sessions[tokenHash] = sess
	return nil
}

func (m *memoryRepo) ListUsers(ctx context.Context) ([]repo.UserWithProfile, error) {
	var rows []repo.UserWithProfile
	for _, u := range m.users {
		rows = append(rows, repo.UserWithProfile{User: u, Profile: m.profiles[u.ID]})
	}
	return rows, nil
}

func (m *memoryRepo) GetUserByID(ctx context.Context, id int64) (repo.User, error) {
	u, ok := m.users[id]
	if !ok {
		return repo.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (m *memoryRepo) UpdateUserRole(ctx context.Context, userID int64, role string) error {
	u, ok := m.users[userID]
	if !ok {
		return repo.ErrNotFound
	}
	u.Role = role
	m.users[userID] = u
	return nil
}

func (m *memoryRepo) SetUserActive(ctx context.Context, userID int64, active bool) error {
	u, ok := m.users[userID]
	if !ok {
		return repo.ErrNotFound
	}
	u.IsActive = active
	m.users[userID] = u
	return nil
}

func (m *memoryRepo) GetAdminPassword(ctx context.Context) (repo.AdminPassword, error) {
	if m.gate == nil {
		return repo.AdminPassword{}, repo.ErrNotFound
	}
	return *m.gate, nil
}

func (m *memoryRepo) HasAdminPassword(ctx context.Context) (bool, error) {
	return m.gate != nil, nil
}

func (m *memoryRepo) InsertAdminPassword(ctx context.Context, passwordHash string) error {
	m.gate = &repo.AdminPassword{ID: 1, PasswordHash: passwordHash, CreatedAt: time.Now()}
	return nil
}

func (m *memoryRepo) UpdateAdminPassword(ctx context.Context, passwordHash string) error {
	if m.gate == nil {
		return repo.ErrNotFound
	}
	m.gate.PasswordHash = passwordHash
	return nil
}

type memoryTokenStore struct {
	data map[string]string
}

func (s *memoryTokenStore) SetToken(ctx context.Context, id, token string) error {
	s.data[id] = token
	return nil
}

func (s *memoryTokenStore) GetToken(ctx context.Context, id string) (string, bool, error) {
	v, ok := s.data[id]
	return v, ok, nil
}

func (s *memoryTokenStore) RemoveToken(ctx context.Context, id string) error {
	delete(s.data, id)
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *memoryRepo) {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:        strings.Repeat("s", 32),
		SessionTTL:       24 * time.Hour,
		TelegramBotToken: testBotToken,
		TelegramAuthTTL:  24 * time.Hour,
		AllowOrigins:     []string{"https://mototumen.ru"},
		RateLimitAuth:    config.RateLimitConfig{MaxRequests: 100, Window: time.Minute},
		RateLimitAPI:     config.RateLimitConfig{MaxRequests: 100, Window: time.Minute},
		RateLimitAdmin:   config.RateLimitConfig{MaxRequests: 100, Window: time.Minute},
		ThrottlePublic:   config.ThrottleConfig{RequestsPerSecond: 1000, Burst: 1000},
	}

	r := newMemoryRepo()
	store := &memoryTokenStore{data: make(map[string]string)}
	mgr := auth.NewJWTManager(cfg.JWTSecret, cfg.SessionTTL)

	authLimiter := ratelimit.New(cfg.RateLimitAuth.MaxRequests, cfg.RateLimitAuth.Window)
	apiLimiter := ratelimit.New(cfg.RateLimitAPI.MaxRequests, cfg.RateLimitAPI.Window)
	adminLimiter := ratelimit.New(cfg.RateLimitAdmin.MaxRequests, cfg.RateLimitAdmin.Window)
	t.Cleanup(authLimiter.Stop)
	t.Cleanup(apiLimiter.Stop)
	t.Cleanup(adminLimiter.Stop)

	authSvc := service.NewAuthService(r, store, mgr, authLimiter, cfg.TelegramBotToken, cfg.TelegramAuthTTL, cfg.SessionTTL)
	userAdmin := service.NewUserAdminService(r)
	gate := service.NewAdminGateService(r, adminLimiter)

	return NewRouter(cfg, authSvc, userAdmin, gate, apiLimiter, adminLimiter), r
}

func doJSON(t *testing.T, handler http.Handler, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Auth-Token", token)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func loginBody(telegramID int64, firstName string) map[string]any {
	p := auth.WidgetPayload{
		TelegramID: telegramID,
		FirstName:  firstName,
		AuthDate:   time.Now().Unix(),
	}
	p.Hash = auth.SignWidgetPayload(testBotToken, p)
	return map[string]any{
		"action":      "telegram_auth",
		"telegram_id": p.TelegramID,
		"first_name":  p.FirstName,
		"auth_date":   p.AuthDate,
		"hash":        p.Hash,
	}
}

func login(t *testing.T, handler http.Handler, telegramID int64, firstName string) string {
	t.Helper()

	rec := doJSON(t, handler, http.MethodPost, "/auth", "", loginBody(telegramID, firstName))
	if rec.Code != http.StatusCreated && rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}

	var res struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if res.Token == "" {
		t.Fatal("login response has no token")
	}
	return res.Token
}

func TestHealthz(t *testing.T) {
	handler, _ := newTestRouter(t)

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAuthLifecycle(t *testing.T) {
	handler, _ := newTestRouter(t)

	rec := doJSON(t, handler, http.MethodPost, "/auth", "", loginBody(500, "Анна"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first login status = %d, want 201", rec.Code)
	}
	var created struct {
		Token string `json:"token"`
		User  struct {
			Name string `json:"name"`
			Role string `json:"role"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.User.Name != "Анна" || created.User.Role != "user" {
		t.Fatalf("user = %+v", created.User)
	}

	// Second login is 200, not 201.
	if rec := doJSON(t, handler, http.MethodPost, "/auth", "", loginBody(500, "Анна")); rec.Code != http.StatusOK {
		t.Fatalf("second login status = %d, want 200", rec.Code)
	}

	// The token resolves to the profile.
	rec = doJSON(t, handler, http.MethodGet, "/auth", created.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /auth status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Logout invalidates it.
	rec = doJSON(t, handler, http.MethodPost, "/auth", created.Token, map[string]string{"action": "logout"})
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/auth", created.Token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("GET /auth after logout status = %d, want 401", rec.Code)
	}
}

func TestAuthErrors(t *testing.T) {
	handler, _ := newTestRouter(t)

	rec := doJSON(t, handler, http.MethodGet, "/auth", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", rec.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "No token provided" {
		t.Fatalf("error = %q", body.Error)
	}

	if rec := doJSON(t, handler, http.MethodPost, "/auth", "", map[string]string{"action": "dance"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown action status = %d, want 400", rec.Code)
	}

	badLogin := loginBody(600, "Борис")
	badLogin["hash"] = "deadbeef"
	if rec := doJSON(t, handler, http.MethodPost, "/auth", "", badLogin); rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged login status = %d, want 401", rec.Code)
	}
}

func TestAuthRateLimitResponse(t *testing.T) {
	handler, _ := newTestRouter(t)

	// The login limit is keyed per Telegram identity.
	var rec *httptest.ResponseRecorder
	for i := 0; i < 101; i++ {
		rec = doJSON(t, handler, http.MethodPost, "/auth", "", loginBody(700, "Гонщик"))
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("429 without Retry-After")
	}
}

func TestProfileUpdateEndpoint(t *testing.T) {
	handler, _ := newTestRouter(t)
	token := login(t, handler, 500, "Анна")

	rec := doJSON(t, handler, http.MethodPut, "/auth", token, map[string]string{"name": "Анна Быкова", "gender": "female"})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT /auth status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res struct {
		User struct {
			Name   string `json:"name"`
			Gender string `json:"gender"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.User.Name != "Анна Быкова" || res.User.Gender != "female" {
		t.Fatalf("user = %+v", res.User)
	}

	if rec := doJSON(t, handler, http.MethodPut, "/auth", token, map[string]string{"gender": "other"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid gender status = %d, want 400", rec.Code)
	}
}

func TestAdminPasswordEndpoints(t *testing.T) {
	handler, _ := newTestRouter(t)
	token := login(t, handler, 500, "Анна")

	rec := doJSON(t, handler, http.MethodGet, "/admin?action=admin-password", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var status struct {
		HasPassword bool `json:"hasPassword"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.HasPassword {
		t.Fatal("hasPassword true before setup")
	}

	rec = doJSON(t, handler, http.MethodPost, "/admin?action=admin-password", "", map[string]string{
		"passwordAction":  "setup",
		"password":        "secret1",
		"confirmPassword": "secret1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("setup status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/admin?action=admin-password", "", nil)
	_ = json.Unmarshal(rec.Body.Bytes(), &status)
	if !status.HasPassword {
		t.Fatal("hasPassword false after setup")
	}

	// Verification requires an authenticated session.
	rec = doJSON(t, handler, http.MethodPost, "/admin?action=verify-my-admin-password", token, map[string]string{"password": "secret1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d, body %s", rec.Code, rec.Body.String())
	}
	var verified struct {
		Valid bool `json:"valid"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &verified); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !verified.Valid {
		t.Fatal("correct password reported invalid")
	}

	rec = doJSON(t, handler, http.MethodPost, "/admin?action=verify-my-admin-password", token, map[string]string{"password": "wrong"})
	_ = json.Unmarshal(rec.Body.Bytes(), &verified)
	if verified.Valid {
		t.Fatal("wrong password reported valid")
	}
}

func TestUsersEndpointsRequireAdmin(t *testing.T) {
	handler, r := newTestRouter(t)
	admin := r.addUser(repo.User{TelegramID: 900, Name: "Админ", Role: "administrator", Gender: "male", IsActive: true, Email: "a@b.c"})
	_ = admin

	userToken := login(t, handler, 500, "Анна")
	adminToken := login(t, handler, 900, "Админ")

	if rec := doJSON(t, handler, http.MethodGet, "/users", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", rec.Code)
	}
	if rec := doJSON(t, handler, http.MethodGet, "/users", userToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("plain user status = %d, want 403", rec.Code)
	}

	rec := doJSON(t, handler, http.MethodGet, "/users", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Users []struct {
			ID int64 `json:"id"`
		} `json:"users"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Users) != 2 {
		t.Fatalf("users = %d, want 2", len(res.Users))
	}

	// Block and unblock through the status route.
	var target int64
	for _, u := range res.Users {
		if u.ID != admin.ID {
			target = u.ID
		}
	}
	rec = doJSON(t, handler, http.MethodPut, "/users/"+strconvItoa(target)+"/status", adminToken, map[string]bool{"is_active": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("status route = %d, body %s", rec.Code, rec.Body.String())
	}
	if r.users[target].IsActive {
		t.Fatal("user still active")
	}

	// Role assignment honors the grant table.
	rec = doJSON(t, handler, http.MethodPut, "/users/"+strconvItoa(target)+"/role", adminToken, map[string]string{"role": "moderator"})
	if rec.Code != http.StatusOK {
		t.Fatalf("role route = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodPut, "/users/"+strconvItoa(target)+"/role", adminToken, map[string]string{"role": "ceo"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("granting ceo = %d, want 403", rec.Code)
	}
}

func strconvItoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
