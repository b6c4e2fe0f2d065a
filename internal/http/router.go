package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mototumen/community-api/internal/config"
	internalmw "github.com/mototumen/community-api/internal/http/middleware"
	"github.com/mototumen/community-api/internal/ratelimit"
	"github.com/mototumen/community-api/internal/service"
)

// Handler carries the services the routes depend on.
type Handler struct {
	cfg   *config.Config
	auth  *service.AuthService
	users *service.UserAdminService
	gate  *service.AdminGateService

	apiLimiter   *ratelimit.Limiter
	adminLimiter *ratelimit.Limiter
}

// NewRouter returns the configured router.
func NewRouter(cfg *config.Config, authService *service.AuthService, userAdmin *service.UserAdminService, gate *service.AdminGateService, apiLimiter, adminLimiter *ratelimit.Limiter) http.Handler {
	h := &Handler{
		cfg:          cfg,
		auth:         authService,
		users:        userAdmin,
		gate:         gate,
		apiLimiter:   apiLimiter,
		adminLimiter: adminLimiter,
	}

	throttle := internalmw.NewThrottle(cfg.ThrottlePublic.RequestsPerSecond, cfg.ThrottlePublic.Burst)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(internalmw.Logging)
	r.Use(internalmw.Recover)
	r.Use(internalmw.CORS(cfg.AllowOrigins))
	r.Use(internalmw.IPThrottle(throttle))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Login throttling happens inside the auth service, keyed by Telegram id,
	// before any verification or storage work.
	r.Route("/auth", func(r chi.Router) {
		r.Post("/", h.handleAuthPost)

		r.Group(func(r chi.Router) {
			r.Use(internalmw.FixedWindow(h.apiLimiter, subjectKey(h.auth)))
			r.Get("/", h.handleAuthGet)
			r.Put("/", h.handleAuthPut)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Get("/", h.handleAdminGet)
		r.Post("/", h.handleAdminPost)
		r.Put("/", h.handleAdminPut)
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(internalmw.Auth(h.auth))
		r.Use(internalmw.RequireAdmin)
		r.Use(internalmw.FixedWindow(h.adminLimiter, profileKey))

		r.Get("/", h.handleUsersList)
		r.Put("/{id}/status", h.handleUserStatus)
		r.Put("/{id}/role", h.handleUserRole)
	})

	return r
}

// subjectKey keys the general API limiter by the verified subject when a
// token is present, letting unauthenticated requests fail in the handler.
func subjectKey(authService *service.AuthService) func(*http.Request) string {
	return func(r *http.Request) string {
		token := internalmw.TokenFromRequest(r)
		if token == "" {
			return ""
		}
		profile, err := authService.Verify(r.Context(), token)
		if err != nil {
			return ""
		}
		return "api_user_" + strconv.FormatInt(profile.ID, 10)
	}
}

// profileKey keys the admin limiter by the already-authenticated profile.
func profileKey(r *http.Request) string {
	profile := internalmw.GetProfile(r.Context())
	if profile == nil {
		return ""
	}
	return "admin_user_" + strconv.FormatInt(profile.ID, 10)
}
