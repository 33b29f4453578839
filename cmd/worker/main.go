package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"studytracker/internal/config"
	"studytracker/internal/queue"
	"studytracker/internal/store"
	"studytracker/internal/totals"
	"studytracker/internal/tracker"
)

// Worker consumes change events and keeps the daily totals cache current.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend == "memory" || cfg.TotalsBackend == "memory" {
		log.Fatal("worker needs QUEUE_BACKEND=redis and TOTALS_BACKEND=redis; memory backends are served inside the api process")
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL, cfg.Pool())
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.Redis())
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Printf("WARNING: redis at %s not reachable, consumer will keep retrying", cfg.RedisAddr)
	}

	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	cache := totals.NewRedisCache(redisClient.Client, cfg.TotalsTTL)
	svc := totals.NewService(tracker.NewPostgresStore(db.Client), cache)

	log.Printf("worker started, waiting for messages on %s...", cfg.QueueKey)
	if err := totals.Consume(ctx, q, svc); err != nil {
		log.Fatalf("queue consume failed: %v", err)
	}
	log.Println("worker stopped")
}
