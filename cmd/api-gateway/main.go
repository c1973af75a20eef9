package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/YathuPiraba/lead-management-system-sub000/api/swagger"
	"github.com/YathuPiraba/lead-management-system-sub000/internal/handler"
	"github.com/YathuPiraba/lead-management-system-sub000/internal/repository"
	"github.com/YathuPiraba/lead-management-system-sub000/internal/service"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/cache"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/config"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/database"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/jobs"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/logger"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/password"
)

// @title Lead Management Auth API
// @version 1.0.0
// @description Session and token authority for the multi-tenant lead management system
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg.Env, cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelConnect()

	db, err := database.NewPostgres(connectCtx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(connectCtx, cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	users := repository.NewUserRepository(db)
	audit := service.NewAsyncAuditWriter(repository.NewAuditRepository(db), jobs.Config{
		Workers:     cfg.Audit.Workers,
		BufferSize:  cfg.Audit.BufferSize,
		MaxAttempts: cfg.Audit.MaxAttempts,
		RetryDelay:  cfg.Audit.RetryDelay,
		Logger:      logr.Named("audit_queue"),
	})
	audit.Start(context.Background())
	sessions := repository.NewSessionRepository(redisClient, repository.SessionStoreOptions{
		KeyPrefix:          cfg.Session.KeyPrefix,
		OperationTimeout:   cfg.Session.StoreTimeout,
		DeleteRetries:      cfg.Session.DeleteRetries,
		DeleteRetryBackoff: cfg.Session.DeleteRetryBackoff,
		Observer:           metricsSvc,
	}, logr.Named("session_store"))

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		logr.Fatal("invalid password hashing configuration", zap.Error(err))
	}

	tokens, err := service.NewTokenService(service.TokenConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.Expiration,
		RefreshTTL:    cfg.JWT.RefreshExpiration,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
	})
	if err != nil {
		logr.Fatal("invalid token configuration", zap.Error(err))
	}

	credentials, err := service.NewCredentialService(users, hasher, logr.Named("credentials"))
	if err != nil {
		logr.Fatal("failed to init credential verifier", zap.Error(err))
	}
	guard := service.NewTenantGuard(users, logr.Named("tenant_guard"))

	authority := service.NewSessionAuthority(service.SessionAuthorityDeps{
		Credentials: credentials,
		Tokens:      tokens,
		Store:       sessions,
		Users:       users,
		Guard:       guard,
		Validator:   validate,
		Logger:      logr.Named("session_authority"),
		Observer:    metricsSvc,
	}, service.SessionAuthorityConfig{
		RotateRefresh:     cfg.Session.RotateRefresh,
		StrictAccessCheck: cfg.Session.StrictAccessCheck,
	})

	security := service.NewSuspiciousActivityService(sessions, users, audit, service.SecurityThresholds{
		MaxSessions: cfg.Security.MaxSessions,
		MaxDevices:  cfg.Security.MaxDevices,
		MaxIPs:      cfg.Security.MaxIPs,
	}, logr.Named("security"))
	accounts := service.NewAccountService(users, credentials, authority, audit, validate, logr.Named("accounts"))

	r := newRouter(cfg, logr, routerDeps{
		auth: handler.NewAuthHandler(authority, accounts, handler.AuthHandlerOptions{
			Cookie:     cfg.Cookie,
			Tenant:     cfg.Tenant,
			AccessTTL:  cfg.JWT.Expiration,
			RefreshTTL: cfg.JWT.RefreshExpiration,
		}),
		sessions: handler.NewSessionHandler(authority, security),
		admin:    handler.NewAdminHandler(security),
		metrics: handler.NewMetricsHandler(metricsSvc, map[string]handler.ReadinessCheck{
			"postgres": db.PingContext,
			"redis":    sessions.Ping,
		}),
		metricsSvc: metricsSvc,
		authority:  authority,
		guard:      guard,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	if err := audit.Stop(shutdownCtx); err != nil {
		logr.Warn("audit queue not drained", zap.Error(err))
	}
}
