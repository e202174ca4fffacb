package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/kennethcatiis/ecommerce-platform/internal/handlers"
	"github.com/kennethcatiis/ecommerce-platform/internal/metrics"
	"github.com/kennethcatiis/ecommerce-platform/internal/middleware"
)

// CORSMiddleware allows the storefront and admin UIs to call the API from
// the configured origins. An empty list allows any origin.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.LegacyTokenHeader, handlers.IdempotencyHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func SetupRouter(h *handlers.Handlers, corsOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(CORSMiddleware(corsOrigins))
	router.Use(metrics.GinMiddleware())

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/v1")
	{
		// --- Ping Route (Public) ---
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong!"})
		})

		// --- Protected Routes (Login Required) ---
		auth := v1.Group("/")
		auth.Use(middleware.AuthMiddleware(h.Tokens))
		auth.Use(middleware.RoleMiddleware(h.Users))
		{
			// --- Cart ---
			auth.POST("/cart/add", h.AddToCart)
			auth.POST("/cart/remove", h.RemoveFromCart)
			auth.POST("/cart/get", h.GetCart)

			// --- Checkout ---
			auth.POST("/checkout", h.Checkout)

			// --- Transactions ---
			auth.POST("/transactions/mine", h.MyTransactions)
			auth.GET("/transactions/:id", h.GetTransaction)

			// --- Admin-Only ---
			auth.GET("/transactions", middleware.AdminMiddleware(), h.ListTransactions)
			auth.POST("/transactions/update", middleware.AdminMiddleware(), h.UpdateTransaction)
		}
	}

	return router
}
