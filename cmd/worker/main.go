/**
 * Recognition Worker - Main Entry Point
 *
 * Queue-driven worker that dispatches document-recognition requests across
 * interchangeable OCR engines.
 *
 * Architecture:
 * - Asynq consumer for the Redis-backed task queue
 * - Multi-engine orchestrator with sequential fallback and parallel racing
 * - Redis result cache keyed on file content + request options
 * - PostgreSQL persistence for request outcomes
 *
 * Engines registered at startup:
 * 1. Tesseract - free, offline, fast (default primary)
 * 2. Vision service - remote cloud OCR, higher accuracy (when configured)
 */

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/docmill/recognition-worker/internal/cache"
	"github.com/docmill/recognition-worker/internal/config"
	"github.com/docmill/recognition-worker/internal/engine"
	"github.com/docmill/recognition-worker/internal/orchestrator"
	"github.com/docmill/recognition-worker/internal/queue"
	"github.com/docmill/recognition-worker/internal/storage"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Recognition worker starting...")
	log.Printf("Configuration loaded: Redis=%s, Workers=%d, Parallel=%t",
		cfg.RedisURL, cfg.WorkerConcurrency, cfg.ParallelMode)

	// Initialize result cache; the orchestrator degrades to always-miss if
	// the cache is unavailable
	var resultCache cache.Store
	redisCache, err := cache.NewRedisStore(&cache.RedisConfig{
		RedisURL:  cfg.RedisURL,
		KeyPrefix: cfg.CacheKeyPrefix,
		TTL:       time.Duration(cfg.CacheTTLSeconds) * time.Second,
	})
	if err != nil {
		log.Printf("WARNING: Result cache unavailable, every request will recompute: %v", err)
	} else {
		resultCache = redisCache
		defer redisCache.Close()
		log.Printf("Result cache initialized (TTL=%ds)", cfg.CacheTTLSeconds)
	}

	// Initialize outcome store (optional)
	var store *storage.PostgresStore
	if cfg.DatabaseURL != "" {
		store, err = storage.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize outcome store: %v", err)
		}
		defer store.Close()
		log.Printf("Outcome store initialized (PostgreSQL)")
	} else {
		log.Printf("WARNING: DATABASE_URL not configured, request outcomes will not be persisted")
	}

	// Initialize orchestrator with session defaults from configuration
	orc := orchestrator.New(&orchestrator.Config{
		Cache: resultCache,
		Defaults: orchestrator.Preferences{
			PreferredEngines:  cfg.PreferredEngines,
			FallbackEngines:   cfg.FallbackEngines,
			QualityThreshold:  cfg.QualityThreshold,
			MaxProcessingTime: time.Duration(cfg.ProcessingTimeout) * time.Millisecond,
			ParallelMode:      cfg.ParallelMode,
		},
	})

	// Register engines
	tesseract, err := engine.NewTesseractEngine(&engine.TesseractConfig{
		BinaryPath: cfg.TesseractPath,
	})
	if err != nil {
		log.Fatalf("Failed to initialize Tesseract engine: %v", err)
	}
	orc.RegisterEngine(tesseract, true)
	if !tesseract.IsAvailable() {
		log.Printf("WARNING: Tesseract binary not found at %s", cfg.TesseractPath)
	}

	if cfg.VisionOCRURL != "" {
		vision, err := engine.NewVisionEngine(&engine.VisionConfig{
			BaseURL: cfg.VisionOCRURL,
		})
		if err != nil {
			log.Fatalf("Failed to initialize vision engine: %v", err)
		}
		orc.RegisterEngine(vision, false)
		if !vision.IsAvailable() {
			log.Printf("WARNING: Vision service health check failed: %s. Requests will fall back to Tesseract.", cfg.VisionOCRURL)
		} else {
			log.Printf("Vision service connection verified: %s", cfg.VisionOCRURL)
		}
	} else {
		log.Printf("Vision service not configured, running with local engines only")
	}

	// Initialize queue consumer
	log.Printf("Connecting to Redis queue...")
	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:     cfg.RedisURL,
		QueueName:    cfg.QueueName,
		Concurrency:  cfg.WorkerConcurrency,
		Orchestrator: orc,
		Store:        store,
	})
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}

	ctx := context.Background()
	if err := consumer.Start(ctx); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	// Print startup summary
	log.Printf("===========================================")
	log.Printf("Recognition worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: %s", cfg.QueueName)
	log.Printf("Workers: %d", cfg.WorkerConcurrency)
	log.Printf("Quality threshold: %.2f", cfg.QualityThreshold)
	log.Printf("Request budget: %dms", cfg.ProcessingTimeout)
	log.Printf("Parallel mode: %t", cfg.ParallelMode)
	log.Printf("===========================================")
	log.Printf("Waiting for tasks...")

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	log.Printf("Stopping queue consumer...")
	if err := consumer.Stop(ctx); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	}

	stats := orc.Statistics()
	log.Printf("Final counters: requests=%d, successes=%d, cacheHits=%d",
		stats.TotalRequests, stats.TotalSuccesses, stats.CacheHits)

	log.Printf("Shutdown complete")
}
