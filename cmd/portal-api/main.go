package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"aip-platform/deal-portal-backend/internal/analysis"
	"aip-platform/deal-portal-backend/internal/attestation"
	"aip-platform/deal-portal-backend/internal/audit"
	"aip-platform/deal-portal-backend/internal/auth"
	"aip-platform/deal-portal-backend/internal/config"
	"aip-platform/deal-portal-backend/internal/dataroom"
	"aip-platform/deal-portal-backend/internal/investors"
	"aip-platform/deal-portal-backend/internal/projects"
	"aip-platform/deal-portal-backend/internal/sira"
	"aip-platform/deal-portal-backend/internal/verification"
	"aip-platform/deal-portal-backend/pkg/storage"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := connectDatabase(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := migrate(db); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	ctx := context.Background()
	s3Client, err := storage.NewClient(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.Error(err))
	}
	if s3Client == nil {
		logger.Info("no storage bucket configured, file storage disabled")
	}

	policy := auth.DefaultPolicy()
	recorder := audit.NewRecorder()
	attester := attestation.NewService(cfg.Attestation, logger)
	analyzer := analysis.NewService(logger)

	authService := auth.NewService(db, cfg.Security, logger)
	projectService := projects.NewService(db, policy, logger)
	investorService := investors.NewService(db, policy, projectService, logger)
	siraService := sira.NewService(db, policy, logger)

	verificationRepo := verification.NewRepository(db, recorder)
	engine := verification.NewEngine(verificationRepo, policy, attester, analyzer, cfg.Verification, logger)

	dataroomRepo := dataroom.NewRepository(db, recorder)
	var store dataroom.BlobStore
	if s3Client != nil {
		store = s3Client
	}
	roomService := dataroom.NewService(dataroomRepo, policy, attester, analyzer, store, cfg.DataRoom, logger)

	router := buildRouter(logger)

	public := router.Group("/api/v1")
	private := router.Group("/api/v1")
	private.Use(auth.Middleware(authService))

	auth.NewHandler(authService, logger).RegisterRoutes(public, private)
	projects.NewHandler(projectService, logger).RegisterRoutes(private)
	investors.NewHandler(investorService, logger).RegisterRoutes(private)
	verification.NewHandler(engine, verificationRepo, logger).RegisterRoutes(private)
	dataroom.NewHandler(roomService, logger).RegisterRoutes(private)
	sira.NewHandler(siraService, logger).RegisterRoutes(private)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", cfg.DataRoom.SweepInterval), func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := roomService.SweepExpired(sweepCtx); err != nil {
			logger.Error("NDA expiry sweep failed", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("failed to schedule expiry sweep", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func connectDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.Database.GetDatabaseURL()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxConnections)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	return db, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&auth.User{},
		&projects.Project{},
		&investors.Investor{},
		&verification.VerificationRequest{},
		&verification.VerificationDocument{},
		&dataroom.DataRoom{},
		&dataroom.Folder{},
		&dataroom.Document{},
		&dataroom.Access{},
		&dataroom.Activity{},
		&attestation.BlockchainCertificate{},
		&audit.Entry{},
		&sira.Movement{},
		&sira.ShipmentEvent{},
		&sira.Alert{},
		&sira.Case{},
		&sira.Evidence{},
		&sira.Playbook{},
	)
}

func buildRouter(logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
