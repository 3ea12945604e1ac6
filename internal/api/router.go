package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"housekeeping-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(d Deps) *gin.Engine {
	r := gin.Default()
	handler := NewHandler(d)
	srv := d.Config.Server

	origins := srv.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	allowCredentials := true
	for _, origin := range origins {
		if origin == "*" {
			allowCredentials = false
			break
		}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: allowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	perSec := srv.RateLimitPerSec
	if perSec <= 0 {
		perSec = 10
	}
	burst := int(perSec / 2)
	if burst < 5 {
		burst = 5
	}
	rateLimiter := mw.RateLimiter(rate.Limit(perSec), burst, srv.RequestIPHeader)

	// Derived reads are cached per snapshot revision and hotel day, since a
	// request without a date means today.
	ttl := time.Duration(srv.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	cacheStore := cache.New(ttl, 2*ttl)
	revision := func() int64 { return d.State.Current().Revision }
	caching := mw.Cache(cacheStore, ttl, func() string {
		return fmt.Sprintf("%d:%s", revision(), d.Dispatch.Today())
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "revision": revision()})
	})

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/worklist", caching, handler.GetWorklist)
		api.POST("/worklist/auto-assign", handler.AutoAssign)
		api.POST("/worklist/bulk", handler.BulkUpdate)
		api.PATCH("/worklist/:facility_id/:room_code", handler.UpdateEntry)
		api.POST("/worklist/:facility_id/:room_code/inquiry", handler.ResolveInquiry)
		api.PUT("/rooms/:facility_id/:room_code/status", handler.SetRoomStatus)

		api.GET("/workload", caching, handler.GetWorkload)
		api.GET("/workload/export", handler.ExportWorkload)

		api.GET("/availability", caching, handler.GetAvailability)
		api.POST("/bookings", handler.CreateBooking)
		api.PUT("/bookings/:id", handler.UpdateBooking)

		inv := api.Group("/inventory")
		inv.GET("/items", caching, handler.GetItems)
		inv.GET("/transactions", handler.GetTransactions)
		inv.POST("/consume", inventoryHandler(d.Inventory.Consume))
		inv.POST("/lend", inventoryHandler(d.Inventory.Lend))
		inv.POST("/return", inventoryHandler(d.Inventory.Return))
		inv.POST("/exchange", inventoryHandler(d.Inventory.Exchange))
		inv.POST("/launder", inventoryHandler(d.Inventory.Launder))

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
