package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/wasabipesto/niceengine/internal/coordinator"
	"github.com/wasabipesto/niceengine/internal/store"
)

func main() {
	log.Println("Starting niceengine coordination service...")

	// ─── Required Environment Variables ─────────────────────────────────
	// All credentials MUST come from environment variables. No fallback
	// defaults for security-sensitive values.
	// ────────────────────────────────────────────────────────────────────

	dbURL := requireEnv("DATABASE_URL")

	pg, err := store.Connect(dbURL)
	if err != nil {
		log.Fatalf("FATAL: failed to connect to PostgreSQL: %v", err)
	}
	defer pg.Close()

	if err := pg.InitSchema(); err != nil {
		log.Fatalf("FATAL: schema init failed: %v", err)
	}

	hub := coordinator.NewHub()

	cfg := coordinator.Config{
		LeaseTimeout:  durationOrDefault("CLAIM_LEASE_TIMEOUT", 1*time.Hour),
		ThinThreshold: floatOrDefault("THIN_CHUNK_THRESHOLD", 0.5),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	aggregateInterval := durationOrDefault("AGGREGATE_INTERVAL", 5*time.Minute)
	go coordinator.RunAggregator(ctx, pg, aggregateInterval)

	r := coordinator.SetupRouter(ctx, pg, hub, cfg)

	port := getEnvOrDefault("PORT", "8080")
	log.Printf("Coordination service running on :%s\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// requireEnv reads a required environment variable and exits if it is not set.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set.", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationOrDefault(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using default %s", key, val, fallback)
		return fallback
	}
	return d
}

func floatOrDefault(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using default %v", key, val, fallback)
		return fallback
	}
	return f
}
