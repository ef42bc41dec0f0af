package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"arbor/internal/auth"
	"arbor/internal/blobstore"
	"arbor/internal/config"
	"arbor/internal/handler"
	"arbor/internal/identity"
	"arbor/internal/middleware"
	"arbor/internal/repository/postgres"
	postgresWiki "arbor/internal/repository/postgres/wiki"
	"arbor/internal/schedule"
	serviceWiki "arbor/internal/service/wiki"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	var logOut io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, 10)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	// JWT verifier against the identity provider's JWKS endpoint
	jwtVerifier, err := auth.NewJWTVerifier(cfg.JWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected",
		"max_conns", 25,
		"min_conns", 5,
	)

	tables := postgres.NewTableNames(cfg.TablePrefix)
	if err := postgresWiki.EnsureSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	nodeRepo := postgresWiki.NewNodeRepository(repoConfig)
	logRepo := postgresWiki.NewPermissionLogRepository(repoConfig)
	dismissalRepo := postgresWiki.NewDismissalRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	// Directory lookups: raw client for the detector, cached for request
	// paths. The detector bypasses the cache so sweeps never act on a stale
	// snapshot.
	directory, err := identity.NewHTTPClient(cfg.IdentityBaseURL, cfg.IdentityAPIKey)
	if err != nil {
		log.Fatalf("Failed to create identity client: %v", err)
	}
	var requestLookup identity.Lookup = directory
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()
		requestLookup = identity.NewCachedLookup(directory, redisClient, 5*time.Minute, logger)
		logger.Info("identity cache enabled")
	}

	// Blob storage for attachments
	var blobs blobstore.Client
	if cfg.BlobEndpoint != "" {
		blobs, err = blobstore.NewMinioClient(ctx, blobstore.MinioConfig{
			Endpoint:  cfg.BlobEndpoint,
			AccessKey: cfg.BlobAccessKey,
			SecretKey: cfg.BlobSecretKey,
			Bucket:    cfg.BlobBucket,
			UseSSL:    cfg.BlobUseSSL,
			PublicURL: cfg.BlobPublicURL,
		})
		if err != nil {
			log.Fatalf("Failed to connect blob storage: %v", err)
		}
		logger.Info("blob storage connected", "bucket", cfg.BlobBucket)
	}

	// Detector schedule profile, env override wins
	profile, err := schedule.Load(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to load schedule profile: %v", err)
	}
	if cfg.DetectorSweepInterval > 0 {
		profile.SweepInterval = cfg.DetectorSweepInterval
	}

	clock := serviceWiki.RealClock{}
	nodeService := serviceWiki.NewNodeService(nodeRepo, txManager, clock, logger)
	accessService := serviceWiki.NewAccessService(nodeRepo, logger)
	detector := serviceWiki.NewDetectorService(nodeRepo, logRepo, directory, clock, logger, profile.NudgeBacklog)
	repairService := serviceWiki.NewRepairService(nodeRepo, logRepo, txManager, clock, logger)
	notifyService := serviceWiki.NewNotificationService(logRepo, dismissalRepo, clock, logger)

	scheduler := serviceWiki.NewScheduler(detector, *profile, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	nodeHandler := handler.NewNodeHandler(nodeService, accessService, detector, blobs, logger)
	treeHandler := handler.NewTreeHandler(nodeService, logger)
	accessHandler := handler.NewAccessHandler(accessService, requestLookup, logger)
	logHandler := handler.NewPermissionLogHandler(notifyService, repairService, detector, logger)
	healthHandler := handler.NewHealthHandler(pool)

	logger.Info("services initialized")

	// HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", healthHandler.Check)

	// Structure
	mux.HandleFunc("GET /api/wiki/structure", treeHandler.GetStructure)

	// Node routes
	mux.HandleFunc("GET /api/wiki/nodes", nodeHandler.ListRoots)
	mux.HandleFunc("GET /api/wiki/search", nodeHandler.Search)
	mux.HandleFunc("GET /api/wiki/nodes/{id}", nodeHandler.GetNode)
	mux.HandleFunc("GET /api/wiki/nodes/{id}/children", nodeHandler.GetChildren)
	mux.HandleFunc("GET /api/wiki/nodes/{id}/path", nodeHandler.GetPath)
	mux.HandleFunc("GET /api/wiki/nodes/{id}/access", accessHandler.GetAccess)
	mux.HandleFunc("PATCH /api/wiki/nodes/{id}", nodeHandler.UpdateNode)
	mux.HandleFunc("DELETE /api/wiki/nodes/{id}", nodeHandler.DeleteNode)

	// Folder routes
	mux.HandleFunc("POST /api/wiki/folders", nodeHandler.CreateFolder)
	mux.HandleFunc("PUT /api/wiki/folders/{id}/permissions", nodeHandler.UpdatePermissions)

	// File routes
	mux.HandleFunc("POST /api/wiki/files", nodeHandler.CreateFile)
	mux.HandleFunc("PATCH /api/wiki/files/{id}", nodeHandler.UpdateFile)

	// Permission log and repair routes
	mux.HandleFunc("GET /api/wiki/permission-logs", logHandler.ListLogs)
	mux.HandleFunc("GET /api/wiki/permission-logs/unread", logHandler.ListUnread)
	mux.HandleFunc("POST /api/wiki/permission-logs/dismiss", logHandler.Dismiss)
	mux.HandleFunc("POST /api/wiki/permission-logs/sweep", logHandler.TriggerSweep)
	mux.HandleFunc("POST /api/wiki/nodes/{id}/replace-permissions", logHandler.ReplacePermissions)

	// Attachment routes (only when blob storage is configured)
	if blobs != nil {
		attachmentHandler := handler.NewAttachmentHandler(blobs, logger)
		mux.HandleFunc("POST /api/wiki/attachments", attachmentHandler.Upload)
	}

	// Build middleware chain
	var root http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Auth → Routes
	root = middleware.AuthMiddleware(jwtVerifier, logger)(root)
	root = middleware.Recovery(logger)(root)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOriginList(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Serve until interrupted, then drain in-flight requests
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", cfg.Port)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
}
