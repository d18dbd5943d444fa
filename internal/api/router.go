package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"childcare-scheduling-backend/config"
	"childcare-scheduling-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()

	// Zero values mean the config was built by hand rather than loaded.
	limit := rate.Limit(cfg.RateLimitPerSec)
	if limit <= 0 {
		limit = rate.Inf
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	// Initialize middleware
	rateLimiter := mw.RateLimiter(limit, cfg.RateLimitBurst, cfg.RequestIPHeader)

	// Slot listings are cached until the next successful write.
	responses := mw.NewResponseCache(cache.New(ttl, 2*ttl))
	caching := responses.Cache(ttl)

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter, responses.Invalidate())
	{
		api.POST("/caregivers/:caregiver_id/slots", h.CreateSlot)
		api.GET("/caregivers/:caregiver_id/slots", caching, h.ListSlots)
		api.PATCH("/slots/:slot_id", h.UpdateSlot)
		api.DELETE("/slots/:slot_id", h.DeleteSlot)

		api.GET("/templates", GetTemplates())
		api.POST("/caregivers/:caregiver_id/templates/apply", h.ApplyTemplate)

		api.POST("/bookings", h.CreateBooking)
		api.GET("/bookings", h.ListBookings)
		api.GET("/bookings/:booking_id", h.GetBooking)
		api.POST("/bookings/:booking_id/transitions", h.TransitionBooking)
		api.GET("/bookings/:booking_id/transitions", h.GetBookingHistory)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
