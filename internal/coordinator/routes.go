// Package coordinator implements the HTTP work-coordination service: field
// claims, submission validation and consensus, and the aggregate dashboard
// feed described for the distributed nice-number search.
package coordinator

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wasabipesto/niceengine/internal/store"
)

// Config holds the tunables left as configuration knobs rather than
// hard-coded constants.
type Config struct {
	LeaseTimeout  time.Duration
	ThinThreshold float64
}

// Handler bundles every dependency the route handlers need.
type Handler struct {
	store   *store.PostgresStore
	hub     *Hub
	metrics *metrics
	config  Config
	queue   *SubmissionQueue
}

// niceonlyQueueCapacity bounds the in-memory deferred-submission channel.
// Sized generously since each job is small and the drain goroutine is
// expected to keep up easily under normal load.
const niceonlyQueueCapacity = 4096

// SetupRouter builds the Gin engine, registers public, authenticated and
// rate-limited route groups, and starts the hub's broadcast loop and the
// niceonly submission queue's drain goroutine. ctx governs the queue drain's
// lifetime; cancel it to stop draining (e.g. alongside the aggregator, on
// shutdown).
func SetupRouter(ctx context.Context, pg *store.PostgresStore, hub *Hub, cfg Config) *gin.Engine {
	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	h := &Handler{
		store:   pg,
		hub:     hub,
		metrics: newMetrics(),
		config:  cfg,
	}
	h.queue = NewSubmissionQueue(h, niceonlyQueueCapacity)

	go hub.Run()
	go h.queue.Run(ctx)

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", h.handleHealth)
		pub.GET("/stream", hub.Subscribe)
		pub.GET("/bases", h.handleListBases)
		pub.GET("/chunks", h.handleListAllChunks)
		pub.GET("/bases/:base/chunks", h.handleListChunks)
		pub.GET("/submission", h.handleGetSubmission)
	}

	worker := r.Group("/api/v1")
	worker.Use(NewRateLimiter(60, 10).Middleware())
	{
		worker.POST("/claim/:mode", h.handleClaim)
		worker.POST("/submit", h.handleSubmit)
	}

	operator := r.Group("/api/v1")
	operator.Use(AuthMiddleware())
	{
		operator.GET("/metrics", gin.WrapH(promhttp.Handler()))
		operator.POST("/admin/bases", h.handleSeedBase)
		operator.POST("/admin/aggregate", h.handleAggregate)
	}

	return r
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"error":"failed to encode event"}`)
	}
	return b
}
