package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"spotwise-backend/config"
	"spotwise-backend/internal/hub"
	"spotwise-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, handler *Handler, wsHub *hub.Hub) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/spots", handler.GetSpots)
		api.GET("/stats", handler.GetStats)
		api.GET("/nearest", handler.GetNearest)
		api.GET("/reservation/durations", handler.GetDurations)
		api.POST("/spots/:id/reservation", handler.Reserve)
		api.DELETE("/spots/:id/reservation", handler.CancelReservation)

		api.POST("/detections", handler.PostDetection)
		api.POST("/visualize", handler.PostVisualize)

		api.GET("/status", handler.GetStatus)
		api.GET("/history", caching, handler.GetHistory)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	if wsHub != nil {
		r.GET("/ws", hub.Handler(wsHub, handler.store.Snapshot))
	}

	return r
}
