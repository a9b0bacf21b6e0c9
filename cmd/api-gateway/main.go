package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/drtc-peru/tramite-api/api/swagger"
	"github.com/drtc-peru/tramite-api/internal/handler"
	"github.com/drtc-peru/tramite-api/internal/middleware"
	"github.com/drtc-peru/tramite-api/internal/models"
	"github.com/drtc-peru/tramite-api/internal/repository"
	"github.com/drtc-peru/tramite-api/internal/service"
	"github.com/drtc-peru/tramite-api/pkg/cache"
	"github.com/drtc-peru/tramite-api/pkg/config"
	"github.com/drtc-peru/tramite-api/pkg/database"
	"github.com/drtc-peru/tramite-api/pkg/logger"
	"github.com/drtc-peru/tramite-api/pkg/mailer"
	corsmiddleware "github.com/drtc-peru/tramite-api/pkg/middleware/cors"
	reqidmiddleware "github.com/drtc-peru/tramite-api/pkg/middleware/requestid"
	"github.com/drtc-peru/tramite-api/pkg/storage"
)

// @title DRTC Mesa de Partes API
// @version 1.0.0
// @description Tramite documentario de la DRTC
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, document cache disabled", "error", err)
		redisClient = nil
	}

	fileStorage, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init attachment storage", "error", err)
	}

	// Repositories.
	serialRepo := repository.NewSerialRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	derivationRepo := repository.NewDerivationRepository(db)
	archiveRepo := repository.NewArchiveRepository(db)
	padronRepo := repository.NewPadronRepository(db)
	integrationRepo := repository.NewIntegrationRepository(db)
	syncLogRepo := repository.NewSyncLogRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	numberingSvc := service.NewNumberingService(serialRepo, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, alertRepo, mailer.New(cfg.SMTP), logr,
		cfg.Notifications.EmailWorkers, cfg.Notifications.CleanupAgeDays)
	documentSvc := service.NewDocumentService(documentRepo, attachmentRepo, derivationRepo, numberingSvc,
		cacheRepo, fileStorage, logr, service.DocumentServiceConfig{
			CacheTTL:        cfg.Documents.CacheTTL,
			AllocateRetries: cfg.Documents.AllocateRetries,
			MaxFileSize:     cfg.Uploads.MaxFileSizeBytes,
			AllowedMIMEs:    cfg.Uploads.AllowedMIMEs,
			BaseURL:         cfg.BaseURL,
		})
	derivationSvc := service.NewDerivationService(db, derivationRepo, documentRepo, numberingSvc,
		notificationSvc, cacheRepo, logr)
	archiveSvc := service.NewArchiveService(db, archiveRepo, documentRepo, numberingSvc,
		cacheRepo, logr, cfg.Archive.RetentionYears)
	ingestSvc := service.NewIngestService(padronRepo, logr)
	integrationSvc := service.NewIntegrationService(integrationRepo, syncLogRepo, documentRepo,
		numberingSvc, logr, service.IntegrationServiceConfig{
			DefaultTimeout:       cfg.Outbox.DefaultTimeout,
			DefaultMaxAttempts:   cfg.Outbox.DefaultMaxAttempts,
			DefaultRetryInterval: cfg.Outbox.DefaultRetryInterval,
		})

	// Handlers.
	documentHandler := handler.NewDocumentHandler(documentSvc, metricsSvc)
	derivationHandler := handler.NewDerivationHandler(derivationSvc, metricsSvc)
	archiveHandler := handler.NewArchiveHandler(archiveSvc)
	ingestHandler := handler.NewIngestHandler(ingestSvc, metricsSvc)
	integrationHandler := handler.NewIntegrationHandler(integrationSvc)
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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Public lookup for citizens scanning the intake receipt QR.
	api.GET("/consulta/:token", documentHandler.Lookup)

	auth := api.Group("")
	auth.Use(middleware.JWT(cfg.JWT.Secret))

	anyStaff := middleware.RequireRoles(models.RoleAdmin, models.RoleMesaPartes, models.RoleAreaUser)
	intake := middleware.RequireRoles(models.RoleAdmin, models.RoleMesaPartes)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	docs := auth.Group("/documentos")
	{
		docs.POST("", intake, documentHandler.Create)
		docs.GET("", anyStaff, documentHandler.List)
		docs.GET("/expediente/:expediente", anyStaff, documentHandler.GetByExpediente)
		docs.GET("/:id", anyStaff, documentHandler.Get)
		docs.PATCH("/:id", intake, documentHandler.Update)
		docs.POST("/:id/adjuntos", intake, documentHandler.Attach)
		docs.GET("/:id/cargo", anyStaff, documentHandler.Receipt)
		docs.GET("/:id/qr", anyStaff, documentHandler.QRCode)
		docs.GET("/:id/derivaciones", anyStaff, derivationHandler.History)
	}

	derivations := auth.Group("/derivaciones")
	{
		derivations.POST("", anyStaff, derivationHandler.Derive)
		derivations.POST("/lote", intake, derivationHandler.BulkDerive)
		derivations.GET("/bandeja", anyStaff, derivationHandler.Inbox)
		derivations.GET("/vencidas", anyStaff, derivationHandler.Overdue)
		derivations.GET("/urgentes", anyStaff, derivationHandler.UrgentPending)
		derivations.POST("/:id/recepcion", anyStaff, derivationHandler.Receive)
		derivations.POST("/:id/atencion", anyStaff, derivationHandler.Attend)
	}

	archive := auth.Group("/archivo")
	{
		archive.POST("", anyStaff, archiveHandler.Archive)
		archive.GET("", anyStaff, archiveHandler.List)
		archive.GET("/por-vencer", anyStaff, archiveHandler.NearExpiry)
		archive.GET("/vencidos", anyStaff, archiveHandler.Expired)
		archive.POST("/destruir", adminOnly, archiveHandler.BulkDestroy)
		archive.POST("/migrar", adminOnly, archiveHandler.BulkMigrate)
		archive.GET("/:id", anyStaff, archiveHandler.Get)
	}

	imports := auth.Group("/importar")
	{
		imports.POST("/:entidad", adminOnly, ingestHandler.Import)
		imports.GET("/:entidad/plantilla", anyStaff, ingestHandler.Template)
	}

	integrations := auth.Group("/integraciones")
	{
		integrations.POST("", adminOnly, integrationHandler.Create)
		integrations.GET("", adminOnly, integrationHandler.List)
		integrations.GET("/:id", adminOnly, integrationHandler.Get)
		integrations.PUT("/:id", adminOnly, integrationHandler.Update)
		integrations.DELETE("/:id", adminOnly, integrationHandler.Delete)
		integrations.POST("/:id/probar", adminOnly, integrationHandler.TestConnection)
		integrations.POST("/:id/enviar", intake, integrationHandler.Send)
		integrations.POST("/:id/recibir", adminOnly, integrationHandler.Receive)
		integrations.GET("/:id/documentos/:externalId", anyStaff, integrationHandler.QueryState)
		integrations.GET("/:id/logs", adminOnly, integrationHandler.Logs)
		integrations.GET("/:id/logs/csv", adminOnly, integrationHandler.ExportLogs)
		integrations.GET("/:id/estadisticas", adminOnly, integrationHandler.Stats)
	}

	notifications := auth.Group("/notificaciones")
	{
		notifications.GET("", anyStaff, notificationHandler.List)
		notifications.GET("/no-leidas", anyStaff, notificationHandler.UnreadCount)
		notifications.POST("/leidas", anyStaff, notificationHandler.MarkAllRead)
		notifications.POST("/:id/leida", anyStaff, notificationHandler.MarkRead)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationSvc.StartEmailQueue(ctx)
	defer notificationSvc.StopEmailQueue()

	scheduler, err := startRunners(ctx, cfg, logr.Sugar(), integrationSvc, notificationSvc)
	if err != nil {
		logr.Sugar().Fatalw("failed to start background runners", "error", err)
	}
	defer scheduler.Shutdown() //nolint:errcheck

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("server shutdown incomplete", "error", err)
	}
}

type sugaredLogger interface {
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
}

// startRunners schedules the outbox retry poller, the alert runner, the
// pending email sweep and the notification cleanup.
func startRunners(ctx context.Context, cfg *config.Config, logr sugaredLogger, integrationSvc *service.IntegrationService, notificationSvc *service.NotificationService) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(cfg.Outbox.RetryPollInterval),
		gocron.NewTask(func() {
			retried, err := integrationSvc.RetryDue(ctx, 50)
			if err != nil {
				logr.Warnw("outbox retry poll failed", "error", err)
				return
			}
			if retried > 0 {
				logr.Infow("outbox retries dispatched", "count", retried)
			}
		}),
	); err != nil {
		return nil, err
	}

	if cfg.Alerts.Enabled {
		if _, err := scheduler.NewJob(
			gocron.DurationJob(cfg.Alerts.PollInterval),
			gocron.NewTask(func() {
				if _, err := notificationSvc.RunScheduledAlerts(ctx); err != nil {
					logr.Warnw("alert run failed", "error", err)
				}
			}),
		); err != nil {
			return nil, err
		}
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(func() {
			if _, err := notificationSvc.ProcessPendingEmails(ctx, 100); err != nil {
				logr.Warnw("pending email sweep failed", "error", err)
			}
		}),
	); err != nil {
		return nil, err
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(cfg.Notifications.CleanupInterval),
		gocron.NewTask(func() {
			removed, err := notificationSvc.Cleanup(ctx)
			if err != nil {
				logr.Warnw("notification cleanup failed", "error", err)
				return
			}
			if removed > 0 {
				logr.Infow("old notifications removed", "count", removed)
			}
		}),
	); err != nil {
		return nil, err
	}

	scheduler.Start()
	return scheduler, nil
}
