package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/coastalkoffix/webapp/internal/mailer"
	"github.com/coastalkoffix/webapp/internal/notify"
	"github.com/coastalkoffix/webapp/internal/repository"
	"github.com/coastalkoffix/webapp/internal/service"
	"github.com/coastalkoffix/webapp/internal/session"
	"github.com/coastalkoffix/webapp/internal/web"
	"github.com/coastalkoffix/webapp/pkg/config"
	"github.com/coastalkoffix/webapp/pkg/database"
	"github.com/coastalkoffix/webapp/pkg/events"
	"github.com/coastalkoffix/webapp/pkg/logger"
	mw "github.com/coastalkoffix/webapp/pkg/middleware"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()

	// Connect to database and apply migrations
	if err := database.Migrate(ctx, cfg.Database.URL); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	pool, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Connect to Redis for sessions
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("Invalid Redis URL", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(pool)
	otpRepo := repository.NewOTPRepository(pool)
	rateLimitRepo := repository.NewRateLimitRepository(pool)

	sessions := session.NewStore(redisClient, cfg.Session.Secret, cfg.Session.TTL)

	// Sweep stale rate-limit rows in the background
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if n, err := rateLimitRepo.CleanupExpired(ctx); err != nil {
				logger.Error("Rate limit cleanup failed", "error", err)
			} else if n > 0 {
				logger.Info("Removed expired rate limit rows", "count", n)
			}
		}
	}()

	// Start the notification worker on the same bus
	worker := notify.NewWorker(eventBus, buildMailer(cfg))
	if err := worker.Start(); err != nil {
		logger.Error("Failed to start notify worker", "error", err)
		os.Exit(1)
	}

	// Initialize services and handlers
	authService := service.NewAuthService(userRepo, otpRepo, eventBus)
	h := web.New(authService, userRepo, sessions, rateLimitRepo, cfg)

	// Setup router
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.Logging)
	r.Use(mw.Health)

	r.Group(h.Routes)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error", "error", err)
		}
	}()

	logger.Info("Starting web server", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func buildMailer(cfg *config.Config) mailer.Service {
	if cfg.Email.DevMode {
		return mailer.NewDevMailer()
	}
	if cfg.Email.MailerSendKey != "" {
		return mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.SMTPFrom)
	}
	return mailer.NewSMTPMailer(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPFrom,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPass,
		cfg.Email.SMTPUseTLS,
	)
}
