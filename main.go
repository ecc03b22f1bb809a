package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/uday169/split-it-app-backend/config"
	"github.com/uday169/split-it-app-backend/database"
	"github.com/uday169/split-it-app-backend/handlers"
	"github.com/uday169/split-it-app-backend/ledger"
	"github.com/uday169/split-it-app-backend/logger"
	"github.com/uday169/split-it-app-backend/middleware"
	"github.com/uday169/split-it-app-backend/services"
	"github.com/uday169/split-it-app-backend/store"
	"github.com/uday169/split-it-app-backend/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.Connect(cfg, log)
	if err != nil {
		return err
	}

	// Connect to Redis (optional, won't crash if unavailable)
	rdb := database.ConnectRedis(ctx, cfg.RedisURL, log)
	if rdb != nil {
		defer rdb.Close()
	}

	repo := store.New(db)
	engine := ledger.NewEngine(log)
	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)

	var mailer services.Mailer = services.NewLogMailer(log)
	if cfg.SendGridAPIKey != "" {
		mailer = services.NewSendGridMailer(cfg.SendGridAPIKey, cfg.SendGridFrom, cfg.AppName)
	} else {
		log.Warn("SENDGRID_API_KEY not set, emails will only be logged")
	}
	var pusher services.Pusher = services.NewLogPusher(log)
	if cfg.FirebaseCredPath != "" {
		fcm, err := services.NewFCMPusher(ctx, cfg.FirebaseCredPath)
		if err != nil {
			log.Warn("firebase unavailable, push disabled", zap.Error(err))
		} else {
			pusher = fcm
		}
	}

	notify := services.NewNotificationService(repo, mailer, pusher, cfg.AppName, cfg.AppURL, log)
	activity := services.NewActivityService(repo, log)
	balances := services.NewBalanceService(repo, engine, cfg.MaxGroupExpenses, log)
	groups := services.NewGroupService(repo, balances, activity, notify, cfg.DefaultCurrency, log)

	h := &handlers.Handler{
		Auth:        services.NewAuthService(repo, tokens, notify, groups, cfg.OTPTTL, cfg.DefaultCurrency, log),
		Users:       services.NewUserService(repo),
		Groups:      groups,
		Expenses:    services.NewExpenseService(repo, engine, activity, notify, log),
		Settlements: services.NewSettlementService(repo, engine, activity, notify, log),
		Balances:    balances,
		Activity:    activity,
		AppName:     cfg.AppName,
		Log:         log,
	}

	// Setup router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.RequestLogger(log), middleware.CORSMiddleware(cfg.CORSOrigins))

	authLimit := middleware.NewRateLimiter(rdb, cfg.RateLimitPerMin, time.Minute, "ratelimit:auth", log)
	h.Routes(r, middleware.AuthRequired(tokens), authLimit.Handler())

	// Start server
	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("app", cfg.AppName), zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	notify.Wait()
	return nil
}
