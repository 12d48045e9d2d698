package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "resellerportal/api/swagger" // swagger docs
	"resellerportal/internal/authz"
	"resellerportal/internal/config"
	"resellerportal/internal/database"
	"resellerportal/internal/handler"
	"resellerportal/internal/logger"
	"resellerportal/internal/metrics"
	"resellerportal/internal/middleware"
	"resellerportal/internal/notification"
	"resellerportal/internal/ratelimit"
	"resellerportal/internal/repository"
	"resellerportal/internal/service"
	"resellerportal/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Reseller Portal API
// @version         1.0
// @description     Admin and reseller portal: roles, invites, accounts and the device assignment lifecycle.
// @host            localhost:8080
// @BasePath        /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zlog, err := logger.New(cfg.IsRelease(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	gin.SetMode(cfg.GinMode)

	db, err := database.NewConnection(cfg.DSN(), zlog)
	if err != nil {
		return err
	}
	zlog.Info("connected to PostgreSQL")

	m := metrics.New(prometheus.DefaultRegisterer)

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(zlog.Named("ws"), cfg.CORSOrigins)
	go wsHub.Run()

	// Repositories
	txManager := repository.NewTransactionManager(db)
	accountRepo := repository.NewAccountRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	inviteRepo := repository.NewInviteRepository(db)
	resetRepo := repository.NewResetTokenRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	statisticsRepo := repository.NewStatisticsRepository(db)

	// Authorization
	engine := authz.NewEngine(accountRepo, roleRepo)
	tokens := authz.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	auth := middleware.NewAuth(tokens, engine, cfg.IsRelease())

	limiter := newResetLimiter(cfg, zlog)

	// Outbox
	outbox := notification.NewOutbox(notificationRepo)
	sender := notification.NewMultiSender(zlog,
		notification.NewEmailSender(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, zlog.Named("email")),
		notification.NewHubSender(wsHub),
	)
	dispatcher := notification.NewDispatcher(notificationRepo, sender, notification.DispatcherConfig{JitterFraction: 0.2}, zlog.Named("outbox"), m)

	// Services
	roleService := service.NewRoleService(roleRepo, auditRepo, txManager, engine)
	accountService := service.NewAccountService(accountRepo, roleRepo, auditRepo, txManager)
	authService := service.NewAuthService(accountRepo, resetRepo, auditRepo, txManager, engine, tokens, outbox, limiter,
		service.AuthConfig{ResetTTL: cfg.ResetTTL, FrontendURL: cfg.FrontendURL}, zlog, m)
	inviteService := service.NewInviteService(inviteRepo, accountRepo, roleRepo, auditRepo, txManager, outbox,
		service.InviteConfig{TTL: cfg.InviteTTL, FrontendURL: cfg.FrontendURL}, m)
	deviceService := service.NewDeviceService(deviceRepo, auditRepo, txManager, wsHub)
	assignmentService := service.NewAssignmentService(assignmentRepo, deviceRepo, accountRepo, auditRepo, txManager, outbox, m, cfg.DHLTrackingURL)
	statisticsService := service.NewStatisticsService(statisticsRepo)
	auditService := service.NewAuditService(auditRepo)
	notificationService := service.NewNotificationService(notificationRepo)
	toolService := service.NewToolService()
	janitor := service.NewTokenJanitor(inviteRepo, resetRepo, zlog.Named("janitor"))

	if cfg.BootstrapAdminEmail != "" {
		created, err := accountService.Bootstrap(context.Background(), cfg.BootstrapAdminEmail)
		if err != nil {
			return err
		}
		if created != nil {
			zlog.Info("bootstrap super admin created", zap.String("username", created.Account.Username))
		}
	}

	// Background jobs
	scheduler := notification.NewScheduler(zlog.Named("cron"))
	if err := scheduler.Add("outbox", cfg.OutboxSchedule, func(ctx context.Context) error {
		_, err := dispatcher.DispatchOnce(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := scheduler.Add("token-gc", cfg.TokenGCSchedule, janitor.Sweep); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Set up Gin Router
	router := gin.New()
	router.Use(middleware.Recover(zlog), middleware.RequestLogger(zlog.Named("http"), m))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, auth.Resolve)
	})

	// API Routing
	api := router.Group("/api")
	handler.NewAuthHandler(authService, auth).RegisterRoutes(api)
	handler.NewInviteHandler(inviteService, auth).RegisterRoutes(api)
	handler.NewRoleHandler(roleService, auth).RegisterRoutes(api)
	handler.NewAccountHandler(accountService, auth).RegisterRoutes(api)
	handler.NewDeviceHandler(deviceService, auth).RegisterRoutes(api)
	handler.NewAssignmentHandler(assignmentService, auth).RegisterRoutes(api)
	handler.NewStatisticsHandler(statisticsService, auth).RegisterRoutes(api)
	handler.NewAuditHandler(auditService, auth).RegisterRoutes(api)
	handler.NewNotificationHandler(notificationService, auth).RegisterRoutes(api)
	handler.NewToolHandler(toolService, auth).RegisterRoutes(api)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// newResetLimiter shares counters through Redis when configured and keeps them in memory otherwise.
func newResetLimiter(cfg *config.Config, zlog *zap.Logger) ratelimit.Limiter {
	if cfg.RedisAddr == "" {
		return ratelimit.NewMemoryLimiter(ratelimit.PasswordResetConfig())
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		zlog.Warn("redis unavailable, using in-memory rate limiter", zap.Error(err))
		_ = client.Close()
		return ratelimit.NewMemoryLimiter(ratelimit.PasswordResetConfig())
	}
	return ratelimit.NewRedisLimiter(client, ratelimit.PasswordResetConfig(), "password-reset")
}
