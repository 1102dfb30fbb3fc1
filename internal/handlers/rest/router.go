package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/Martin-Hayot/car-auction/pkg/errors"
	"github.com/Martin-Hayot/car-auction/pkg/types"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

const userKey = "user"

var errForbidden = errors.New(http.StatusForbidden, "admin role required")

type Authenticator interface {
	Authenticate(r *http.Request) (types.User, error)
}

type HealthChecker interface {
	Health(ctx context.Context) map[string]string
}

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	log.Debug("HTTP Request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"latency", time.Since(start).String(),
	)
}

// AuthMiddleware resolves the caller and stores it on the context.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.Authenticate(c.Request)
		if err != nil {
			JSONError(c, http.StatusUnauthorized, err, "unauthorized")
			c.Abort()
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// AdminMiddleware lets only admins through. It must run after AuthMiddleware.
func AdminMiddleware(c *gin.Context) {
	if currentUser(c).Role != "admin" {
		JSONError(c, http.StatusForbidden, errForbidden, "forbidden")
		c.Abort()
		return
	}
	c.Next()
}

func currentUser(c *gin.Context) types.User {
	if v, ok := c.Get(userKey); ok {
		if u, ok := v.(types.User); ok {
			return u
		}
	}
	return types.User{}
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(engine EngineService, auth Authenticator, health HealthChecker) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	router.GET("/healthz", func(c *gin.Context) {
		stats := health.Health(c.Request.Context())
		status := http.StatusOK
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		JSONResponse(c, status, stats, stats["message"])
	})

	h := NewAuctionHandler(engine)

	api := router.Group("/api", AuthMiddleware(auth))
	auctions := api.Group("/auctions")
	{
		auctions.GET("", h.ListAuctionsHandler)
		auctions.POST("", h.CreateListingHandler)
		auctions.GET("/:id", h.GetAuctionHandler)
		auctions.POST("/:id/bids", h.PlaceBidHandler)
		auctions.POST("/:id/purchase", h.PurchaseHandler)
		auctions.GET("/:id/winner", h.GetWinnerHandler)
		auctions.POST("/:id/evaluate", h.EvaluateHandler)
	}

	admin := api.Group("/admin", AdminMiddleware)
	{
		admin.POST("/evaluate", h.EvaluateAllHandler)
		admin.POST("/reconcile-winners", h.ReconcileWinnersHandler)
		admin.GET("/auctions/pending", h.ListPendingHandler)
		admin.PUT("/auctions/:id/approve", h.ApproveHandler)
		admin.PUT("/auctions/:id/reject", h.RejectHandler)
		admin.PUT("/orders/:id/confirm", h.AdvanceOrderHandler(types.OrderConfirmed))
		admin.PUT("/orders/:id/complete", h.AdvanceOrderHandler(types.OrderCompleted))
		admin.PUT("/orders/:id/cancel", h.AdvanceOrderHandler(types.OrderCancelled))
		admin.GET("/statistics", h.StatisticsHandler)
	}

	return router
}
