package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"studytracker/internal/admin"
	"studytracker/internal/auth"
	"studytracker/internal/config"
	"studytracker/internal/httpmiddleware"
	"studytracker/internal/queue"
	"studytracker/internal/store"
	"studytracker/internal/totals"
	"studytracker/internal/tracker"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

// backends holds everything main has to open and close.
type backends struct {
	store   tracker.Store
	db      *store.DB
	redis   *store.Redis
	queue   queue.Queue
	cache   totals.Cache
	limiter httpmiddleware.Limiter
}

func (b *backends) Close() {
	if err := b.db.Close(); err != nil {
		log.Printf("db close: %v", err)
	}
	if err := b.redis.Close(); err != nil {
		log.Printf("redis close: %v", err)
	}
}

func openBackends(ctx context.Context, cfg config.App) (*backends, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &backends{}
	if cfg.NeedsRedis() {
		b.redis = store.NewRedis(cfg.Redis())
	}

	switch cfg.StoreBackend {
	case "memory":
		log.Println("using in-memory store; data is lost on restart")
		b.store = tracker.NewMemoryStore()
	default:
		db, err := store.NewDB(ctx, cfg.DatabaseURL, cfg.Pool())
		if err != nil {
			log.Printf("warning: db not reachable: %v", err)
		}
		if db == nil {
			return nil, err
		}
		b.db = db
		if cfg.AutoMigrate && err == nil {
			if err := store.Migrate(ctx, db.Client); err != nil {
				return nil, err
			}
		}
		b.store = tracker.NewPostgresStore(db.Client)
	}

	if cfg.QueueBackend == "memory" {
		b.queue = queue.NewInMemory(256)
	} else {
		b.queue = queue.NewRedisQueue(b.redis.Client, cfg.QueueKey)
	}

	if cfg.TotalsBackend == "memory" {
		b.cache = totals.NewMemoryCache()
	} else {
		b.cache = totals.NewRedisCache(b.redis.Client, cfg.TotalsTTL)
	}

	if cfg.RateLimitBackend == "redis" {
		b.limiter = httpmiddleware.NewRedisWindow(b.redis.Client, cfg.RateLimitPerMin)
	} else {
		b.limiter = httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}
	return b, nil
}

func runHTTP(cfg config.App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := admin.RegisterValidators(); err != nil {
		return err
	}

	records := tracker.NewService(b.store, totals.QueueNotifier{Queue: b.queue})
	reports := totals.NewService(b.store, b.cache)

	// An in-memory queue only reaches consumers in this process.
	if cfg.QueueBackend == "memory" {
		go func() {
			if err := totals.Consume(ctx, b.queue, reports); err != nil {
				log.Printf("totals consumer stopped: %v", err)
			}
		}()
		log.Println("totals consumer running in-process")
	}

	if cfg.AdminAPIKey == "" {
		log.Println("ADMIN_API_KEY not set; token issuance disabled")
	}
	signer := auth.NewSigner(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	r.Use(httpmiddleware.CORS(cfg.CORSOrigins))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.RateLimit(b.limiter))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		checkCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		dbHealthy := b.store.Ping(checkCtx) == nil
		redisHealthy := b.redis == nil || b.redis.Healthy(checkCtx)
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	v1 := r.Group("/v1")
	auth.NewHandler(signer, cfg.AdminAPIKey).Register(v1)

	handler := admin.NewHandler(records, reports)
	protected := v1.Group("", auth.RequireRole(signer, auth.RoleAdmin))
	handler.Register(protected.Group("/admin"))
	handler.RegisterReports(protected)

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
