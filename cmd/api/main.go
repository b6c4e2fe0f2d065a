package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mototumen/community-api/internal/auth"
	"github.com/mototumen/community-api/internal/config"
	"github.com/mototumen/community-api/internal/db"
	internalhttp "github.com/mototumen/community-api/internal/http"
	"github.com/mototumen/community-api/internal/ratelimit"
	"github.com/mototumen/community-api/internal/repo"
	"github.com/mototumen/community-api/internal/roles"
	"github.com/mototumen/community-api/internal/securestore"
	"github.com/mototumen/community-api/internal/service"
	"github.com/mototumen/community-api/internal/util"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api exited with error")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if err := roles.Validate(); err != nil {
		return fmt.Errorf("role table: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis parse: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	authLimiter := ratelimit.New(cfg.RateLimitAuth.MaxRequests, cfg.RateLimitAuth.Window)
	apiLimiter := ratelimit.New(cfg.RateLimitAPI.MaxRequests, cfg.RateLimitAPI.Window)
	adminLimiter := ratelimit.New(cfg.RateLimitAdmin.MaxRequests, cfg.RateLimitAdmin.Window)
	defer authLimiter.Stop()
	defer apiLimiter.Stop()
	defer adminLimiter.Stop()

	repository := repo.New(pool)
	store := securestore.New(redisClient)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.SessionTTL)

	authService := service.NewAuthService(repository, store, jwtManager, authLimiter,
		cfg.TelegramBotToken, cfg.TelegramAuthTTL, cfg.SessionTTL)
	userAdmin := service.NewUserAdminService(repository)
	gate := service.NewAdminGateService(repository, adminLimiter)

	go pruneSessions(ctx, repository, cfg.SessionTTL)

	handler := internalhttp.NewRouter(cfg, authService, userAdmin, gate, apiLimiter, adminLimiter)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API listening on :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down...")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// pruneSessions removes expired session rows once per TTL period.
func pruneSessions(ctx context.Context, repository *repo.Queries, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := repository.DeleteExpiredSessions(ctx, util.Now())
			if err != nil {
				log.Warn().Err(err).Msg("session prune failed")
				continue
			}
			if removed > 0 {
				log.Info().Int64("removed", removed).Msg("expired sessions pruned")
			}
		}
	}
}
