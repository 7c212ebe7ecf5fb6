package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AbdulWasay1738/postsync-connect-flow/internal/approval"
	"github.com/AbdulWasay1738/postsync-connect-flow/internal/dispatcher"
	"github.com/AbdulWasay1738/postsync-connect-flow/internal/handlers"
	"github.com/AbdulWasay1738/postsync-connect-flow/internal/scheduler"
	"github.com/AbdulWasay1738/postsync-connect-flow/internal/store"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/auth"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/clients/ayrshare"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/clients/cloudinary"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/config"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/database"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/logging"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/monitoring"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/server"
	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("postsync")

	// Load environment variables
	config.LoadEnv(logger)

	logger.WithFields(logging.Fields{
		"version": version.Version,
		"commit":  version.GetShortCommit(),
	}).Info("Starting PostSync (Social Post Scheduler)")

	dbURL := config.RequireEnv("DATABASE_URL")
	jwtSecret := config.RequireEnv("JWT_SECRET")
	ayrshareKey := config.RequireEnv("AYRSHARE_API_KEY")
	cloudName := config.RequireEnv("CLOUDINARY_CLOUD_NAME")
	uploadPreset := config.RequireEnv("CLOUDINARY_UPLOAD_PRESET")

	// === Database Connection ===
	dbConfig := database.DefaultConfig()
	dbConfig.URL = dbURL
	dbConfig.MaxOpenConns = config.GetEnvInt("DB_MAX_OPEN_CONNS", dbConfig.MaxOpenConns)
	dbConfig.MaxIdleConns = config.GetEnvInt("DB_MAX_IDLE_CONNS", dbConfig.MaxIdleConns)
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	if err := database.ApplySchema(context.Background(), db, logger); err != nil {
		logger.WithError(err).Fatal("Failed to apply database schema")
	}

	postStore := store.NewStore(db)

	// === External Clients ===
	publisher := ayrshare.NewClient(config.GetEnv("AYRSHARE_BASE_URL", ""), ayrshareKey)
	uploader := cloudinary.NewClient(cloudName, uploadPreset)

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("postsync", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("postsync", version.Version, version.GitCommit)

	dispatchOutcomes := metricsCollector.NewCounter("dispatch_outcomes_total", "Dispatch results by outcome", []string{"outcome"})
	triggerReclaims := metricsCollector.NewCounter("trigger_reclaims_total", "Triggers reclaimed from lapsed leases", nil)
	postEvents := metricsCollector.NewCounter("post_events_total", "Post lifecycle events", []string{"event"})

	// === Core Wiring ===
	gate := approval.NewGate(postStore, logger)

	disp := dispatcher.NewDispatcher(postStore, publisher, logger, dispatcher.Config{
		PublishTimeout: config.GetEnvDuration("PUBLISH_TIMEOUT", 30*time.Second),
		Outcomes:       dispatchOutcomes,
	})

	worker := scheduler.NewWorker(postStore, disp, logger, scheduler.Config{
		PollInterval: config.GetEnvDuration("SCHEDULER_POLL_INTERVAL", 60*time.Second),
		Lease:        config.GetEnvDuration("SCHEDULER_LEASE", 5*time.Minute),
		Reclaims:     triggerReclaims.WithLabelValues(),
	})

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	// SCHEDULER_ENABLED=false runs an API-only replica; another replica owns
	// dispatch. Trigger claims are lease-guarded so running several is safe.
	if config.GetEnvBool("SCHEDULER_ENABLED", true) {
		go worker.Start(workerCtx)
	}

	handlers.Init(postStore, gate, uploader, publisher, logger)
	handlers.InitMetrics(postEvents)

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("configuration", monitoring.ConfigurationHealthCheck(map[string]string{
		"AYRSHARE_API_KEY":      ayrshareKey,
		"CLOUDINARY_CLOUD_NAME": cloudName,
	}))

	// === Server Setup ===
	serverConfig := server.DefaultConfig("postsync", "18090")

	app := server.SetupRouter(logger)
	app.Use(metricsCollector.MetricsMiddleware())
	app.GET("/health", healthChecker.Handler())
	app.GET("/metrics", metricsCollector.Handler())
	app.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "running", "version": version.GetInfo()})
	})

	api := app.Group("/api")
	api.Use(auth.JWTAuthMiddleware([]byte(jwtSecret)))
	{
		api.POST("/posts", handlers.CreatePost)
		api.GET("/posts", handlers.ListPosts)
		api.GET("/posts/:id", handlers.GetPost)
		api.POST("/upload", handlers.UploadMedia)

		admin := api.Group("")
		admin.Use(auth.RequireAdmin())
		{
			admin.PATCH("/posts/:id/approve", handlers.ApprovePost)
			admin.PATCH("/posts/:id/reject", handlers.RejectPost)
			admin.POST("/publish", handlers.PublishNow)
		}
	}

	if err := server.Start(serverConfig, app, logger); err != nil {
		logger.WithError(err).Fatal("PostSync HTTP server failed")
	}
}
