package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"science-registry/config"
	"science-registry/models"
	"science-registry/services"
	"science-registry/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var linkedPublicationsCounter prometheus.Counter
var uploadedPublicationsCounter prometheus.Counter

func init() {
	linkedPublicationsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "publications_linked_total",
			Help: "Total number of publications linked to registry users.",
		},
	)
	uploadedPublicationsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "publications_uploaded_total",
			Help: "Total number of publications submitted through the API.",
		},
	)
	prometheus.MustRegister(linkedPublicationsCounter, uploadedPublicationsCounter)
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to registry database.")

	// Auto-Migration
	logging.Info("Running database auto-migration...")
	if err := db.SetupJoinTable(&models.Publication{}, "Authors", &models.PublicationAuthor{}); err != nil {
		logging.Fatal("Join table setup failed", zap.Error(err))
	}
	db.AutoMigrate(
		&models.User{},
		&models.Source{},
		&models.Author{},
		&models.Category{},
		&models.Publication{},
	)

	// Seeding
	seedAdminUser(db, cfg, logging)

	// Setup Services
	s3Client, err := storage.NewS3Client(cfg)
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}

	mapper := services.NewFacultyMapper()
	if overrides, err := storage.LoadDeptMap(context.Background(), s3Client, cfg); err != nil {
		logging.Warn("Failed to load persisted department map", zap.Error(err))
	} else if len(overrides) > 0 {
		mapper.SetOverrides(overrides)
		logging.Info("Department map overrides loaded", zap.Int("count", len(overrides)))
	}

	tokens := services.NewTokenService(cfg.JWTSecret)
	search := services.NewSearchService(db, logging, cfg.PageSizeDefault, cfg.PageSizeMax)
	pubService := services.NewPublicationService(db, logging, search, mapper)
	userService := services.NewUserService(db, logging, cfg.PasswordSalt, cfg.AdminLogin)
	importService := services.NewImportService(db, logging, cfg.PasswordSalt)
	linker := services.NewLinker(db, logging)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Setup Routes
	setupAuthRoutes(router, db, cfg, tokens, logging)
	setupSearchRoutes(router, search, logging)
	setupPublicationRoutes(router, pubService, mapper, tokens, s3Client, cfg, logging)
	setupAdminRoutes(router, pubService, userService, importService, linker, mapper, tokens, s3Client, cfg, logging)

	// Setup Cron
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled publication linking job...")
		res, err := linker.LinkPublications(models.SourceArticle, models.SourceKokson)
		if err != nil {
			logging.Error("Cron job failed", zap.Error(err))
		} else {
			logging.Info("Cron job completed", zap.Int("linked", res.Linked), zap.Int("scanned", res.Scanned))
			linkedPublicationsCounter.Add(float64(res.Linked))
		}
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func seedAdminUser(db *gorm.DB, cfg *config.Config, logger *zap.Logger) {
	var count int64
	db.Model(&models.User{}).Where("login = ?", cfg.AdminLogin).Count(&count)
	if count > 0 {
		return
	}
	role := services.RoleAdmin
	admin := models.User{
		FullName:     "Administrator",
		Login:        cfg.AdminLogin,
		PasswordHash: services.HashPassword(cfg.AdminPassword, cfg.PasswordSalt),
		Role:         &role,
		Active:       true,
	}
	if err := db.Create(&admin).Error; err != nil {
		logger.Warn("Failed to seed admin user", zap.Error(err))
	} else {
		logger.Info("Admin user seeded.")
	}
}
