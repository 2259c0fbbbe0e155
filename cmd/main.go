package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campaignly/auth-service/internal/config"
	"github.com/campaignly/auth-service/internal/database"
	"github.com/campaignly/auth-service/internal/handlers"
	"github.com/campaignly/auth-service/internal/logger"
	"github.com/campaignly/auth-service/internal/metrics"
	"github.com/campaignly/auth-service/internal/middleware"
	"github.com/campaignly/auth-service/internal/password"
	"github.com/campaignly/auth-service/internal/repository"
	"github.com/campaignly/auth-service/internal/routes"
	"github.com/campaignly/auth-service/internal/server"
	"github.com/campaignly/auth-service/internal/services"
	"github.com/campaignly/auth-service/internal/sms"
	"github.com/campaignly/auth-service/internal/tokens"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	sugar := zl.Sugar()
	sugar.Infof("Starting auth-service in %s environment on port %d", cfg.App.Env, cfg.App.Port)

	db, mongoClient, err := database.ConnectMongo(cfg.Mongo, sugar)
	if err != nil {
		sugar.Fatal(err)
	}
	rdb, err := database.ConnectRedis(cfg.Redis, sugar)
	if err != nil {
		sugar.Fatal(err)
	}

	smsClient := sms.NewClient(cfg.SMS.BaseURL, cfg.SMS.Login, cfg.SMS.Password, cfg.SMS.Sender, cfg.SMS.Enabled, sugar)
	if !smsClient.IsConfigured() {
		sugar.Warn("SMS gateway not fully configured, code dispatch will be skipped")
	}

	tokenManager := tokens.NewManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		time.Duration(cfg.JWT.AccessTTLHours)*time.Hour,
		time.Duration(cfg.JWT.AutoLoginAccessTTLDays)*24*time.Hour,
		time.Duration(cfg.JWT.RefreshTTLDays)*24*time.Hour,
	)

	authSvc := services.NewAuthService(services.Deps{
		Sessions:        repository.NewMongoSessionRepo(db),
		RefreshTokens:   repository.NewMongoRefreshTokenRepo(db),
		AutoLoginTokens: repository.NewMongoAutoLoginTokenRepo(db),
		Users:           repository.NewMongoUserRepo(db),
		Companies:       repository.NewMongoCompanyRepo(db),
		Referrals:       repository.NewMongoReferralRepo(db),
		SMS:             smsClient,
		Tokens:          tokenManager,
		Hasher:          password.NewHasher(cfg.Security.BcryptCost),
		AutoLoginURL:    cfg.Security.AutoLoginURL,
		Logger:          zl,
	})

	limiter := middleware.NewRateLimiter(rdb, "auth:rl", cfg.Security.RateLimitPerHour, time.Hour, sugar)

	app := server.New(cfg, routes.Deps{
		Handler:     handlers.NewHandler(authSvc, zl),
		Service:     authSvc,
		Tokens:      tokenManager,
		RateLimiter: limiter,
		APIKey:      cfg.Security.ServiceAPIKey,
	}, zl)

	// Metrics are served from a side listener, kept off the public port.
	var metricsSrv *http.Server
	if cfg.App.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.App.MetricsPort),
			Handler: mux,
		}
		go func() {
			sugar.Infof("Metrics listening on :%d", cfg.App.MetricsPort)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				sugar.Errorf("metrics server error: %v", err)
			}
		}()
	}

	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		sugar.Infof("Server listening on %s", addr)
		if err := app.Listen(addr); err != nil {
			sugar.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	sugar.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		sugar.Errorf("app shutdown error: %v", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			sugar.Errorf("metrics server shutdown error: %v", err)
		}
	}
	if err := mongoClient.Disconnect(ctx); err != nil {
		sugar.Errorf("MongoDB disconnect error: %v", err)
	}
	if err := rdb.Close(); err != nil {
		sugar.Errorf("Redis client close error: %v", err)
	}

	sugar.Info("Graceful shutdown complete")
}
