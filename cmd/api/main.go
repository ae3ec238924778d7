package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minglehq/mingle/internal/app/migrate"
	httpx "github.com/minglehq/mingle/internal/http"
	"github.com/minglehq/mingle/internal/mail"
	"github.com/minglehq/mingle/internal/repository"
	"github.com/minglehq/mingle/internal/repository/memory"
	"github.com/minglehq/mingle/internal/repository/postgres"
	"github.com/minglehq/mingle/internal/service/auth"
	"github.com/minglehq/mingle/internal/service/profile"
	"github.com/minglehq/mingle/internal/session"
	"github.com/minglehq/mingle/pkg/config"
	"github.com/minglehq/mingle/pkg/logger"
	"github.com/minglehq/mingle/pkg/token"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		users    repository.UserRepository
		dbHealth func(context.Context) error
	)
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Warn("no database configured, using in-memory store")
		users = memory.New()
	} else {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
		if err != nil {
			log.Error("failed to configure migrations", "error", err)
			os.Exit(1)
		}
		defer runner.Close()
		if err := runner.Ping(ctx); err != nil {
			log.Error("database ping failed", "error", err)
			os.Exit(1)
		}
		if err := runner.Ensure(ctx); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		users = postgres.New(pool)
		dbHealth = pool.Ping
	}

	var mailer mail.Sender
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		log.Warn("no SMTP relay configured, mail will be logged only")
		mailer = mail.NewLogSender(log)
	} else {
		smtp, err := mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
		if err != nil {
			log.Error("failed to configure SMTP sender", "error", err)
			os.Exit(1)
		}
		mailer = smtp
	}

	revoker := session.NewMemoryRevoker()
	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		redisRevoker, err := session.NewRedisRevoker(addr, cfg.RedisPassword, cfg.RedisDB, log)
		if err != nil {
			log.Warn("redis revoker unavailable", "error", err)
		} else {
			revoker.Close()
			revoker = redisRevoker
		}
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RedisPassword, cfg.RedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}
	defer revoker.Close()

	issuer := token.NewIssuer(cfg.TokenSecret)
	authSvc := auth.New(users, issuer, revoker, mailer, log, cfg)
	profileSvc := profile.New(users, authSvc, log)

	router := httpx.NewRouter(log, authSvc, profileSvc, limiter, dbHealth)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
