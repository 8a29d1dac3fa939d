package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"message-functions/internal/middleware"
	"message-functions/internal/services"
	"message-functions/internal/triggers"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// RouterConfig holds configuration for setting up routes
type RouterConfig struct {
	MessageService services.MessageService
	Logger         *logrus.Logger

	// MaxInstances bounds concurrent ingress invocations
	MaxInstances int

	RateLimitRPS   float64
	RateLimitBurst int

	// HealthCheck reports store reachability; nil means always healthy
	HealthCheck func(ctx context.Context) error

	// TriggerStats reports in-process trigger counters; nil when triggers run elsewhere
	TriggerStats func() triggers.DispatcherStats
}

// NewRouter builds a gin engine with the standard middleware chain and all routes
func NewRouter(config *RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.StructuredLogger(config.Logger))
	router.Use(middleware.CORS())
	router.Use(middleware.ErrorHandler(config.Logger))

	SetupRoutes(router, config)
	return router
}

// SetupRoutes configures all routes
func SetupRoutes(router *gin.Engine, config *RouterConfig) {
	messageHandler := NewMessageHandler(config.MessageService, config.Logger)

	router.GET("/health", healthHandler(config))

	functions := router.Group("")
	if config.RateLimitRPS > 0 {
		functions.Use(middleware.RateLimiter(config.RateLimitRPS, config.RateLimitBurst))
	}
	functions.Use(middleware.MaxInstances(config.MaxInstances))
	{
		functions.GET("/addmessage", messageHandler.AddMessage)
		functions.POST("/addmessage", messageHandler.AddMessage)
		functions.GET("/messages/:id", messageHandler.GetMessage)
	}
}

func healthHandler(config *RouterConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"status":    "healthy",
			"service":   "message-functions",
			"version":   Version,
			"timestamp": time.Now().UTC(),
		}
		if config.TriggerStats != nil {
			body["triggers"] = config.TriggerStats()
		}

		if config.HealthCheck != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := config.HealthCheck(ctx); err != nil {
				body["status"] = "unhealthy"
				body["error"] = err.Error()
				c.JSON(http.StatusServiceUnavailable, body)
				return
			}
		}

		c.JSON(http.StatusOK, body)
	}
}
