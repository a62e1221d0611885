// Package httpapi exposes the facility service over HTTP with gin.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"growcore/internal/core"
)

// ActorHeader names the caller recorded on every event a request appends.
const ActorHeader = "X-Actor"

// Options configures the router. Zero values are usable.
type Options struct {
	Logger      *slog.Logger
	ServiceName string
	// Gatherer backs /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
	// RateLimit caps /api/v1 requests per second across all callers; zero disables it.
	RateLimit float64
	RateBurst int
}

// Handler serves the REST surface for one service.
type Handler struct {
	svc    *core.Service
	logger *slog.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(svc *core.Service, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "growcore"
	}
	h := &Handler{svc: svc, logger: opts.Logger}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(opts.ServiceName))
	router.Use(requestLogger(opts.Logger))

	router.GET("/healthz", h.health)
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	if opts.RateLimit > 0 {
		v1.Use(rateLimiter(rate.NewLimiter(rate.Limit(opts.RateLimit), max(opts.RateBurst, 1))))
	}
	{
		v1.POST("/facilities", h.createFacility)
		v1.GET("/facilities", h.listFacilities)

		v1.POST("/strains", h.createStrain)
		v1.GET("/strains", h.listStrains)
		v1.GET("/strains/:id", h.getStrain)
		v1.POST("/strains/:id/active", h.setStrainActive)

		v1.POST("/rooms", h.createRoom)
		v1.GET("/rooms", h.listRooms)
		v1.GET("/rooms/:id", h.getRoom)
		v1.GET("/rooms/:id/floors/:floor", h.floorView)

		v1.POST("/plant_batches", h.createPlantBatch)
		v1.GET("/plant_batches", h.listPlantBatches)
		v1.GET("/plant_batches/:id", h.getPlantBatch)

		plants := v1.Group("/plants")
		{
			plants.POST("", h.placePlant)
			plants.GET("", h.listPlants)
			plants.GET("/:id", h.getPlant)
			plants.GET("/:id/events", h.plantEvents)
			plants.POST("/:id/move", h.movePlant)
			plants.POST("/:id/tag", h.tagPlant)
			plants.DELETE("/:id/tag", h.untagPlant)
			plants.POST("/:id/phase", h.setPhase)
			plants.POST("/:id/advance", h.advancePhase)
			plants.POST("/:id/harvest", h.harvestPlant)
			plants.POST("/:id/destroy", h.destroyPlant)
			plants.POST("/:id/notes", h.notePlant)
		}

		v1.POST("/harvests", h.harvestPlants)
		v1.GET("/harvests", h.listHarvests)
		v1.GET("/harvests/:id", h.getHarvest)
		v1.POST("/harvests/:id/status", h.setHarvestStatus)

		v1.GET("/metrc_tags", h.listTags)
		v1.GET("/metrc_tags/:tag", h.getTag)
		v1.POST("/metrc_tags/import", h.importTags)
		v1.POST("/metrc_tags/:tag/retire", h.retireTag)

		v1.GET("/audit_events", h.listEvents)
		v1.POST("/notes", h.addNote)
	}
	return router
}

func (h *Handler) health(c *gin.Context) {
	count, err := h.svc.EventCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.svc.Store().Version(), "events": count})
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// CodeRateLimited is returned with 429 when the API limiter rejects a request.
const CodeRateLimited = "RATE_LIMITED"

func rateLimiter(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded", Code: CodeRateLimited})
			return
		}
		c.Next()
	}
}

func actor(c *gin.Context) string {
	return c.GetHeader(ActorHeader)
}
