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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/smartcampus/timetable-api/api/swagger"
	"github.com/smartcampus/timetable-api/internal/handler"
	internalmiddleware "github.com/smartcampus/timetable-api/internal/middleware"
	"github.com/smartcampus/timetable-api/internal/repository"
	"github.com/smartcampus/timetable-api/internal/service"
	"github.com/smartcampus/timetable-api/pkg/cache"
	"github.com/smartcampus/timetable-api/pkg/config"
	"github.com/smartcampus/timetable-api/pkg/database"
	"github.com/smartcampus/timetable-api/pkg/logger"
	corsmiddleware "github.com/smartcampus/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/smartcampus/timetable-api/pkg/middleware/requestid"
)

// @title Timetable API
// @version 1.0.0
// @description School timetable management and generation service
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	termRepo := repository.NewTermRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	classRepo := repository.NewClassRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	slotRepo := repository.NewSlotTemplateRepository(db)
	entryRepo := repository.NewTimetableEntryRepository(db)

	validate := validator.New()

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	viewSvc := service.NewTimetableViewService(
		termRepo, classRepo, slotRepo, entryRepo,
		cacheRepo, metrics,
		service.TimetableViewConfig{
			WorkingDays: cfg.Scheduler.WorkingDays,
			GridTTL:     cfg.Scheduler.GridCacheTTL,
			WarmWorkers: cfg.Scheduler.WarmWorkers,
			ExportDir:   cfg.Scheduler.ExportDir,
		},
		logr,
	)

	generatorSvc := service.NewTimetableGeneratorService(
		termRepo, slotRepo, courseRepo, teacherRepo, classRepo, subjectRepo, classroomRepo,
		entryRepo, viewSvc, metrics, nil, cfg.Scheduler.WorkingDays, logr,
	)
	gate := generatorSvc.Gate()

	editorSvc := service.NewSlotEditorService(entryRepo, slotRepo, courseRepo, classroomRepo, viewSvc, gate, validate, logr)
	templateSvc := service.NewSlotTemplateService(slotRepo, termRepo, viewSvc, gate, validate, logr)

	termSvc := service.NewTermService(termRepo, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, courseRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, courseRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, validate, logr)
	classroomSvc := service.NewClassroomService(classroomRepo, entryRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, classRepo, subjectRepo, teacherRepo, validate, logr)

	timetableHandler := handler.NewTimetableHandler(generatorSvc, editorSvc, viewSvc)
	templateHandler := handler.NewSlotTemplateHandler(templateSvc)
	termHandler := handler.NewTermHandler(termSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	classHandler := handler.NewClassHandler(classSvc)
	classroomHandler := handler.NewClassroomHandler(classroomSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/terms", termHandler.List)
		api.POST("/terms", termHandler.Create)
		api.GET("/terms/:termId", termHandler.Get)
		api.PUT("/terms/:termId", termHandler.Update)
		api.DELETE("/terms/:termId", termHandler.Delete)

		api.GET("/terms/:termId/slot-template", templateHandler.Get)
		api.PUT("/terms/:termId/slot-template", templateHandler.Replace)

		api.POST("/terms/:termId/timetable/generate", timetableHandler.Generate)
		api.GET("/terms/:termId/timetable", timetableHandler.ListEntries)
		api.GET("/terms/:termId/timetable/grid", timetableHandler.Grid)
		api.GET("/terms/:termId/timetable/grid/export", timetableHandler.Export)
		api.POST("/terms/:termId/timetable/slots", timetableHandler.UpsertSlot)
		api.DELETE("/timetable/entries/:entryId", timetableHandler.ClearEntry)

		api.GET("/teachers", teacherHandler.List)
		api.POST("/teachers", teacherHandler.Create)
		api.GET("/teachers/:id", teacherHandler.Get)
		api.PUT("/teachers/:id", teacherHandler.Update)
		api.DELETE("/teachers/:id", teacherHandler.Delete)

		api.GET("/subjects", subjectHandler.List)
		api.POST("/subjects", subjectHandler.Create)
		api.GET("/subjects/:id", subjectHandler.Get)
		api.PUT("/subjects/:id", subjectHandler.Update)
		api.DELETE("/subjects/:id", subjectHandler.Delete)

		api.GET("/classes", classHandler.List)
		api.POST("/classes", classHandler.Create)
		api.GET("/classes/:id", classHandler.Get)
		api.PUT("/classes/:id", classHandler.Update)
		api.DELETE("/classes/:id", classHandler.Delete)

		api.GET("/classrooms", classroomHandler.List)
		api.POST("/classrooms", classroomHandler.Create)
		api.GET("/classrooms/:id", classroomHandler.Get)
		api.PUT("/classrooms/:id", classroomHandler.Update)
		api.DELETE("/classrooms/:id", classroomHandler.Delete)

		api.GET("/courses", courseHandler.List)
		api.POST("/courses", courseHandler.Create)
		api.GET("/courses/:id", courseHandler.Get)
		api.PUT("/courses/:id", courseHandler.Update)
		api.DELETE("/courses/:id", courseHandler.Delete)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	viewSvc.Start(ctx)
	defer viewSvc.Stop()

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
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
