package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/dklatt/gatehouse/internal/background"
	"github.com/dklatt/gatehouse/internal/config"
	"github.com/dklatt/gatehouse/internal/database"
	"github.com/dklatt/gatehouse/internal/handlers"
	middlewareCustom "github.com/dklatt/gatehouse/internal/middleware"
	"github.com/dklatt/gatehouse/internal/repositories"
	"github.com/dklatt/gatehouse/internal/routes"
	"github.com/dklatt/gatehouse/internal/services"
	"github.com/dklatt/gatehouse/internal/session"
	pkgauth "github.com/dklatt/gatehouse/pkg/auth"
	pkghttp "github.com/dklatt/gatehouse/pkg/http"
	pkglogger "github.com/dklatt/gatehouse/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize session store backend
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	pingCancel()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	failedLoginRepo := repositories.NewFailedLoginRepository(db)

	// Initialize security services
	auditLogger := pkglogger.NewAuditLogger(logger)

	throttleConfig := services.ThrottleConfig{
		Threshold: cfg.Auth.ThrottleThreshold,
		Lockout:   cfg.Auth.ThrottleLockout,
	}
	throttleService := services.NewThrottleService(failedLoginRepo, throttleConfig, logger)

	timingDelay := pkgauth.NewTimingDelay(pkgauth.TimingConfig{
		BaseDelayMs:   cfg.Auth.BaseDelayMs,
		RandomDelayMs: cfg.Auth.RandomDelayMs,
	})

	// Lockout notifications are optional; without them lockouts still work,
	// account owners just aren't told.
	var notifier services.LockoutNotifier
	if cfg.Email.Enabled {
		sesNotifier, err := services.NewAWSSESNotifier(cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize lockout notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = sesNotifier
	}

	sessionManager := session.NewManager(logger)

	loginService := services.NewLoginService(
		userRepo,
		throttleService,
		sessionManager,
		notifier,
		timingDelay,
		services.LoginConfig{BcryptCost: cfg.Auth.BcryptCost},
		logger,
		auditLogger,
	)

	cookieConfig := session.CookieConfig{
		Domain:   cfg.Auth.CookieDomain,
		Secure:   cfg.Auth.CookieSecure,
		SameSite: cfg.Auth.CookieSameSite,
	}

	ipConfig := pkghttp.IPConfig{
		TrustedProxies: cfg.Server.TrustedProxies,
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(loginService, cookieConfig, ipConfig, cfg.Auth.SessionTTL)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(failedLoginRepo, cfg.Auth.ThrottleLockout, logger, cfg.Auth.CleanupInterval)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(session.Loader(redisClient, cfg.Auth.SessionTTL, logger))

	// Register routes
	routes.RegisterRoutes(router, authHandler, sessionManager, cookieConfig, logger)

	// Health check with database and session store
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		dbStatus, redisStatus := "up", "up"
		if err := db.HealthCheck(ctx); err != nil {
			dbStatus = "down"
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisStatus = "down"
		}

		w.Header().Set("Content-Type", "application/json")
		if dbStatus == "down" || redisStatus == "down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"` + dbStatus + `","redis":"` + redisStatus + `"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up","redis":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
