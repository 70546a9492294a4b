package api

import (
	"math"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"filament-monitor-backend/config"
	"filament-monitor-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(d Deps, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()
	if cfg.RequestIPHeader != "" {
		r.TrustedPlatform = cfg.RequestIPHeader
	}

	handler := NewHandler(d)

	burst := int(math.Max(1, math.Ceil(cfg.RateLimitPerSec*2)))
	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), burst)

	// History changes only when a print ends or a fault fires.
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	caching := mw.Cache(cache.New(ttl, 2*ttl), ttl)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/status", handler.GetStatus)
		api.POST("/control", handler.PostControl)

		api.GET("/prints", caching, handler.GetPrints)
		api.GET("/faults", caching, handler.GetFaults)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
