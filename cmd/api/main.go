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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/fyp-supervision-api/api/swagger"
	"github.com/noah-isme/fyp-supervision-api/internal/handler"
	"github.com/noah-isme/fyp-supervision-api/internal/middleware"
	"github.com/noah-isme/fyp-supervision-api/internal/models"
	"github.com/noah-isme/fyp-supervision-api/internal/repository"
	"github.com/noah-isme/fyp-supervision-api/internal/service"
	"github.com/noah-isme/fyp-supervision-api/pkg/cache"
	"github.com/noah-isme/fyp-supervision-api/pkg/config"
	"github.com/noah-isme/fyp-supervision-api/pkg/database"
	"github.com/noah-isme/fyp-supervision-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/fyp-supervision-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/fyp-supervision-api/pkg/middleware/requestid"
	"github.com/noah-isme/fyp-supervision-api/pkg/storage"
)

// @title FYP Supervision API
// @version 1.0.0
// @description Final-year-project supervision service
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The dashboard cache degrades gracefully without Redis.
		logr.Sugar().Warnw("redis unavailable, dashboard caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	uploadStorage, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	reviewRepo := repository.NewReviewRepository(db)

	// Services.
	metricsSvc := service.NewMetricsService()
	notificationSvc := service.NewNotificationService(notificationRepo, cfg.Notifications, metricsSvc, logr)
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	dashboardSvc := service.NewDashboardService(projectRepo, requestRepo, userRepo, notificationRepo, cacheRepo, cfg.Dashboard.CacheTTL, logr)
	authSvc := service.NewAuthService(userRepo, cfg.JWT, validate, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)
	projectSvc := service.NewProjectService(projectRepo, notificationSvc, validate, logr)
	assignmentSvc := service.NewAssignmentService(projectRepo, userRepo, notificationSvc, dashboardSvc, metricsSvc, validate, logr)
	requestSvc := service.NewRequestService(requestRepo, projectRepo, userRepo, assignmentSvc, notificationSvc, validate, logr)
	reviewSvc := service.NewReviewService(reviewRepo, userRepo, projectRepo, notificationSvc, validate, logr)
	exportSvc := service.NewExportService(projectRepo, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(projectSvc, requestSvc, reviewSvc, userSvc, uploadStorage, cfg.Uploads)
	teacherHandler := handler.NewTeacherHandler(requestSvc, projectSvc, reviewSvc, dashboardSvc)
	projectHandler := handler.NewProjectHandler(projectSvc, uploadStorage, signer)
	adminHandler := handler.NewAdminHandler(userSvc, projectSvc, assignmentSvc, dashboardSvc, exportSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.GET("/files/download", projectHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.GET("/auth/me", authHandler.Me)

		students := authed.Group("/students")
		students.Use(middleware.RequireRoles(models.RoleStudent))
		{
			students.GET("/me/project", studentHandler.MyProject)
			students.POST("/me/project", studentHandler.SubmitProposal)
			students.POST("/me/project/files", studentHandler.UploadFiles)
			students.GET("/me/marks", studentHandler.MyMarks)
			students.GET("/me/supervisor", studentHandler.MySupervisor)
			students.GET("/supervisors", studentHandler.ListSupervisors)
			students.POST("/requests", studentHandler.CreateRequest)
		}

		teachers := authed.Group("/teachers")
		teachers.Use(middleware.RequireRoles(models.RoleTeacher))
		{
			teachers.GET("/me/requests", teacherHandler.ListRequests)
			teachers.PUT("/me/requests/:id/accept", teacherHandler.AcceptRequest)
			teachers.PUT("/me/requests/:id/reject", teacherHandler.RejectRequest)
			teachers.GET("/me/students", teacherHandler.MyStudents)
			teachers.PUT("/me/students/:id/marks", teacherHandler.RecordMarks)
			teachers.GET("/me/dashboard", teacherHandler.Dashboard)
		}

		admin := authed.Group("/admin")
		admin.Use(middleware.RequireRoles(models.RoleAdmin))
		{
			admin.GET("/students", adminHandler.ListStudents)
			admin.POST("/students", adminHandler.CreateStudent)
			admin.GET("/teachers", adminHandler.ListTeachers)
			admin.POST("/teachers", adminHandler.CreateTeacher)
			admin.GET("/users", adminHandler.ListUsers)
			admin.GET("/users/:id", adminHandler.GetUser)
			admin.PUT("/users/:id", adminHandler.UpdateUser)
			admin.DELETE("/users/:id", adminHandler.DeleteUser)
			admin.GET("/projects", adminHandler.ListProjects)
			admin.GET("/projects/export", adminHandler.ExportProjects)
			admin.GET("/dashboard", adminHandler.Dashboard)
			admin.POST("/assignments", adminHandler.Assign)
		}

		projects := authed.Group("/projects")
		{
			projects.GET("/:id", projectHandler.Get)
			projects.GET("/:id/files/:fileId", projectHandler.GetFile)
			projects.POST("/:id/feedback", middleware.RequireRoles(models.RoleTeacher), projectHandler.AddFeedback)
			projects.PUT("/:id/complete", middleware.RequireRoles(models.RoleTeacher), projectHandler.Complete)
			projects.PUT("/:id/status", middleware.RequireRoles(models.RoleAdmin), projectHandler.UpdateStatus)
			projects.PUT("/:id/deadline", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), projectHandler.SetDeadline)
		}

		notifications := authed.Group("/notifications")
		{
			notifications.GET("", notificationHandler.List)
			notifications.PUT("/read-all", notificationHandler.MarkAllRead)
			notifications.PUT("/:id/read", notificationHandler.MarkRead)
			notifications.DELETE("/:id", notificationHandler.Delete)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
