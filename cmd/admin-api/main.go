package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/studyspace/admin-api/api/swagger"
	"github.com/studyspace/admin-api/internal/handler"
	"github.com/studyspace/admin-api/internal/middleware"
	"github.com/studyspace/admin-api/internal/models"
	"github.com/studyspace/admin-api/internal/repository"
	"github.com/studyspace/admin-api/internal/service"
	"github.com/studyspace/admin-api/pkg/cache"
	"github.com/studyspace/admin-api/pkg/config"
	"github.com/studyspace/admin-api/pkg/database"
	"github.com/studyspace/admin-api/pkg/jobs"
	"github.com/studyspace/admin-api/pkg/logger"
	"github.com/studyspace/admin-api/pkg/middleware/cors"
	"github.com/studyspace/admin-api/pkg/middleware/requestid"
)

const (
	jobSeatReconcile = "seat_reconcile"
	jobOverdueSweep  = "overdue_sweep"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	appLogger, err := logger.New(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("starting admin-api",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port))

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		appLogger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		appLogger.Warn("redis unavailable, continuing without cache", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()
	metricsService := service.NewMetricsService()

	// Repositories.
	studentRepo := repository.NewStudentRepository(db)
	seatRepo := repository.NewSeatRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, appLogger)
	defer func() { _ = cacheRepo.Close() }()

	// Services.
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Dashboard.CacheTTL, appLogger, redisClient != nil)
	studentService := service.NewStudentService(studentRepo, settingsRepo, seatRepo, validate, appLogger)
	seatService := service.NewSeatService(seatRepo, studentRepo, settingsRepo, validate, appLogger)
	attendanceService := service.NewAttendanceService(attendanceRepo, studentRepo, cacheRepo, cfg.Attendance, appLogger)
	paymentService := service.NewPaymentService(paymentRepo, studentRepo, validate, appLogger)
	settingsService := service.NewSettingsService(settingsRepo, seatRepo, validate, appLogger)
	userService := service.NewUserService(userRepo, validate, appLogger)
	authService := service.NewAuthService(userRepo, validate, appLogger, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "studyspace-admin-api",
	})
	dashboardService := service.NewDashboardService(studentRepo, seatRepo, attendanceRepo, cacheService, metricsService, cfg.Dashboard.CacheTTL, appLogger)

	// Handlers.
	authHandler := handler.NewAuthHandler(authService, userService)
	studentHandler := handler.NewStudentHandler(studentService)
	seatHandler := handler.NewSeatHandler(seatService)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService, metricsService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	settingsHandler := handler.NewSettingsHandler(settingsService)
	staffHandler := handler.NewStaffHandler(userService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Seat rows track configured capacity from the first boot onwards.
	if err := seatService.InitializeFromSettings(ctx); err != nil {
		appLogger.Warn("seat initialization failed", zap.Error(err))
	}

	maintenance := startMaintenance(ctx, cfg, seatService, studentService, appLogger)
	if maintenance != nil {
		defer maintenance.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(appLogger))
	r.Use(cors.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.GET("/setup", authHandler.SetupStatus)
		auth.POST("/setup", authHandler.RegisterAdmin)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))
	{
		protected.GET("/auth/me", authHandler.Me)
		protected.POST("/auth/logout", authHandler.Logout)
		protected.POST("/auth/change-password", authHandler.ChangePassword)

		students := protected.Group("/students")
		{
			students.GET("", studentHandler.List)
			students.GET("/next-code", studentHandler.NextCode)
			students.GET("/:id", studentHandler.Get)
			students.POST("", studentHandler.Create)
			students.PUT("/:id", studentHandler.Update)
			students.DELETE("/:id", studentHandler.Deactivate)
		}

		seats := protected.Group("/seats")
		{
			seats.GET("", seatHandler.List)
			seats.POST("/assign", middleware.Audit(userRepo, models.AuditActionSeatAssign, "seat"), seatHandler.Assign)
			seats.DELETE("/student/:studentId", middleware.Audit(userRepo, models.AuditActionSeatClear, "seat"), seatHandler.Clear)
			seats.GET("/student/:studentId/history", seatHandler.History)
			seats.POST("/reconcile",
				middleware.RequireRoles(models.RoleAdmin),
				middleware.Audit(userRepo, models.AuditActionSeatReconcile, "seat"),
				seatHandler.Reconcile)
		}

		attendance := protected.Group("/attendance")
		{
			attendance.POST("/scan", attendanceHandler.Scan)
			attendance.POST("/check-in/:studentId", attendanceHandler.CheckIn)
			attendance.POST("/check-out/:studentId", attendanceHandler.CheckOut)
			attendance.GET("/today", attendanceHandler.Today)
			attendance.GET("/present", attendanceHandler.Present)
			attendance.GET("/student/:studentId", attendanceHandler.History)
			attendance.GET("/export", attendanceHandler.ExportToday)
		}

		payments := protected.Group("/payments")
		{
			payments.GET("", paymentHandler.List)
			payments.POST("", middleware.Audit(userRepo, models.AuditActionPaymentRecord, "payment"), paymentHandler.Record)
			payments.GET("/:id/receipt", paymentHandler.Receipt)
			payments.GET("/student/:studentId/suggested", paymentHandler.Suggested)
		}

		settings := protected.Group("/settings")
		settings.Use(middleware.RequireRoles(models.RoleAdmin))
		{
			settings.GET("", settingsHandler.Get)
			settings.PUT("", settingsHandler.Update)
		}

		staff := protected.Group("/staff")
		staff.Use(middleware.RequireRoles(models.RoleAdmin))
		{
			staff.GET("", staffHandler.List)
			staff.GET("/:id", staffHandler.Get)
			staff.POST("", middleware.Audit(userRepo, models.AuditActionStaffCreate, "user"), staffHandler.Create)
			staff.PUT("/:id", staffHandler.Update)
			staff.DELETE("/:id", middleware.Audit(userRepo, models.AuditActionStaffDisable, "user"), staffHandler.Deactivate)
		}

		protected.GET("/audit-logs", middleware.RequireRoles(models.RoleAdmin), staffHandler.AuditTrail)

		if cfg.Dashboard.Enabled {
			protected.GET("/dashboard", dashboardHandler.Summary)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// startMaintenance runs the seat reconciliation and overdue fee sweeps on a
// worker queue so a slow database never blocks the tickers.
func startMaintenance(ctx context.Context, cfg *config.Config, seats *service.SeatService, students *service.StudentService, log *zap.Logger) *jobs.Queue {
	if !cfg.Seats.ReconcileEnabled && !cfg.Fees.OverdueSweepEnabled {
		return nil
	}

	queue := jobs.NewQueue("maintenance", func(ctx context.Context, job jobs.Job) error {
		switch job.Type {
		case jobSeatReconcile:
			repaired, err := seats.Reconcile(ctx)
			if err != nil {
				return err
			}
			if repaired > 0 {
				log.Info("seat reconciliation repaired mismatches", zap.Int("repaired", repaired))
			}
			return nil
		case jobOverdueSweep:
			marked, err := students.MarkOverdue(ctx)
			if err != nil {
				return err
			}
			if marked > 0 {
				log.Info("marked overdue fees", zap.Int64("marked", marked))
			}
			return nil
		default:
			return fmt.Errorf("unknown maintenance job %q", job.Type)
		}
	}, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 8,
		MaxRetries: 2,
		RetryDelay: 30 * time.Second,
		Logger:     log,
	})
	queue.Start(ctx)

	schedule := func(jobType string, interval time.Duration) {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case tick := <-ticker.C:
					err := queue.Enqueue(jobs.Job{
						ID:       fmt.Sprintf("%s-%d", jobType, tick.Unix()),
						Type:     jobType,
						Enqueued: tick,
					})
					if err != nil {
						log.Warn("maintenance job dropped", zap.String("type", jobType), zap.Error(err))
					}
				}
			}
		}()
	}

	if cfg.Seats.ReconcileEnabled {
		schedule(jobSeatReconcile, cfg.Seats.ReconcileInterval)
	}
	if cfg.Fees.OverdueSweepEnabled {
		schedule(jobOverdueSweep, cfg.Fees.OverdueSweepInterval)
	}

	return queue
}
