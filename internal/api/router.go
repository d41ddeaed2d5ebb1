package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"catmate-tracker/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger(h.log))

	rateLimiter := mw.RateLimiter(rate.Limit(h.cfg.Server.RateLimitPerSec), h.cfg.Server.RateLimitBurst)
	caching := h.cache.Middleware()

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/meals", caching, h.GetMeals)
		api.POST("/meals/refill", h.RefillMeals)
		api.PUT("/admin/meals", h.ReplaceMeals)

		api.GET("/status", h.GetStatus)
		api.GET("/chart", h.GetChart)
		api.GET("/schedule/preview", h.PreviewSchedule)
		api.GET("/live", h.Live)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
