// Command imagedesc-core starts the HTTP/JSON API for the paid
// image-description research platform (spec.md §1).
package main

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/research-platform/imagedesc-core/internal/apierror"
	"github.com/research-platform/imagedesc-core/internal/cache"
	"github.com/research-platform/imagedesc-core/internal/catalog"
	"github.com/research-platform/imagedesc-core/internal/db"
	"github.com/research-platform/imagedesc-core/internal/handlers"
	"github.com/research-platform/imagedesc-core/internal/identity"
	"github.com/research-platform/imagedesc-core/internal/logger"
	"github.com/research-platform/imagedesc-core/internal/middleware"
	"github.com/research-platform/imagedesc-core/internal/scheduler"
	"github.com/research-platform/imagedesc-core/internal/telemetry"
)

func main() {
	logger.Initialize(getEnv("LOG_LEVEL", "info"), os.Getenv("GIN_MODE") != "release")
	log := logger.Log

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}
	dbConfig, err := parseDatabaseURL(databaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid DATABASE_URL")
	}

	log.Info().Msg("connecting to database")
	database, err := db.NewDatabase(dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	log.Info().Msg("running database migrations")
	if err := database.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	cacheEnabled := redisAddr != ""
	redisHost, redisPort := splitHostPort(redisAddr)
	redisPassword := os.Getenv("REDIS_PASSWORD")

	redisCache, err := cache.NewCache(cache.Config{
		Host:     redisHost,
		Port:     redisPort,
		Password: redisPassword,
		DB:       0,
		Enabled:  cacheEnabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("redis cache unavailable, continuing without it")
		redisCache, _ = cache.NewCache(cache.Config{Enabled: false})
	}
	defer redisCache.Close()

	natsURL := os.Getenv("NATS_URL")
	publisher, err := telemetry.Connect(natsURL)
	if err != nil {
		log.Warn().Err(err).Msg("nats connection failed, reward events will not be published")
		publisher, _ = telemetry.Connect("")
	}
	defer publisher.Close()

	ipSalt := getEnv("IP_HASH_SALT", "local-salt")
	minWordCount := getEnvInt("MIN_WORD_COUNT", 60)
	tooFastSeconds := getEnvInt("TOO_FAST_SECONDS", 5)
	paymentRequired := getEnv("PAYMENT_REQUIRED", "true") == "true"
	maxBodyBytes := int64(getEnvInt("MAX_BODY_BYTES", 65536))
	auditRetentionDays := getEnvInt("AUDIT_RETENTION_DAYS", 90)
	metricsEnabled := getEnv("METRICS_ENABLED", "true") == "true"
	imagesDir := getEnv("IMAGES_DIR", "./images")

	exclusion := catalog.NewExclusion(redisCache)

	if seedFile := os.Getenv("CATALOG_SEED_FILE"); seedFile != "" {
		manifest, err := catalog.LoadManifest(seedFile)
		if err != nil {
			log.Warn().Err(err).Str("file", seedFile).Msg("failed to load catalog seed manifest")
		} else {
			seedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := catalog.Seed(seedCtx, database, manifest); err != nil {
				log.Warn().Err(err).Msg("catalog seed failed")
			} else {
				log.Info().Int("images", len(manifest.Images)).Msg("catalog seeded")
			}
			cancel()
		}
	}

	var localLimiter *middleware.LocalLimiter
	var limiter middleware.Limiter
	if cacheEnabled {
		rateLimitClient := redis.NewClient(&redis.Options{
			Addr:     redisHost + ":" + redisPort,
			Password: redisPassword,
			DB:       1,
		})
		limiter = middleware.NewRedisLimiter(rateLimitClient, log)
	} else {
		localLimiter = middleware.NewLocalLimiter()
		limiter = localLimiter
	}

	schedulerConfig := scheduler.DefaultConfig()
	schedulerConfig.AuditRetention = time.Duration(auditRetentionDays) * 24 * time.Hour
	maintenance := scheduler.New(database, localLimiter, exclusion, schedulerConfig, *logger.Scheduler())
	if err := maintenance.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer maintenance.Stop()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(apierror.Recovery(log))
	router.Use(middleware.StructuredLoggerWithConfig(log, middleware.DefaultStructuredLoggerConfig()))
	router.Use(middleware.Timeout(middleware.DefaultTimeoutConfig()))
	router.Use(middleware.CORS(middleware.NewCORSConfig(getEnv("CORS_ORIGINS", "http://localhost:5173"))))
	router.Use(middleware.SecurityHeaders())

	inputValidator := middleware.NewInputValidator()
	router.Use(inputValidator.Middleware())
	router.Use(inputValidator.SanitizeJSONMiddleware())

	router.Use(middleware.RequestSizeLimiter(maxBodyBytes))

	auditLogger := middleware.NewAuditLogger(database, ipSalt, log)
	router.Use(auditLogger.Middleware())

	router.Use(middleware.QuotaMiddleware(limiter, func(ip string) string {
		return identity.HashIP(ipSalt, ip)
	}, func(c *gin.Context) {
		route := c.Request.Method + " " + c.FullPath()
		_ = database.AppendAudit(c.Request.Context(), db.AuditEvent{
			EventType:  "rate_limit_exceeded",
			Endpoint:   route,
			Method:     c.Request.Method,
			StatusCode: http.StatusTooManyRequests,
		})
	}))

	router.Use(apierror.ErrorHandler(log))

	api := router.Group("/api")

	handlers.NewParticipantHandler(database, ipSalt).RegisterRoutes(api)
	handlers.NewCatalogHandler(database, exclusion, imagesDir).RegisterRoutes(api)
	handlers.NewSubmissionHandler(database, ipSalt, handlers.SubmissionConfig{
		MinWordCount:    minWordCount,
		TooFastSeconds:  tooFastSeconds,
		PaymentRequired: paymentRequired,
	}).RegisterRoutes(api)
	handlers.NewRewardHandler(database, publisher).RegisterRoutes(api)
	handlers.NewHealthHandler(database, maxBodyBytes, paymentRequired, cacheEnabled).RegisterRoutes(api)

	if metricsEnabled {
		handlers.RegisterMetricsRoute(api)
	}

	port := getEnv("API_PORT", "8000")
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", port).Msg("starting api server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseDatabaseURL translates a postgres:// connection string into the
// discrete fields db.Config validates, since spec.md §6 specifies a single
// DATABASE_URL while the storage layer's Config is host/port/user/etc.
func parseDatabaseURL(raw string) (db.Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return db.Config{}, err
	}

	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "5432"
	}

	user := ""
	password := ""
	if u.User != nil {
		user = u.User.Username()
		password, _ = u.User.Password()
	}

	dbName := ""
	if len(u.Path) > 1 {
		dbName = u.Path[1:]
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return db.Config{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		DBName:   dbName,
		SSLMode:  sslMode,
	}, nil
}

func splitHostPort(addr string) (host, port string) {
	if addr == "" {
		return "", ""
	}
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i], addr[i+1:]
		}
	}
	return addr, "6379"
}
