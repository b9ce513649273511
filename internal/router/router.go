// Package router assembles the gin engine and its routes.
package router

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"racer-platform/internal/checkout"
	"racer-platform/internal/engagement"
	"racer-platform/internal/fanstatus"
	"racer-platform/internal/handlers"
	"racer-platform/internal/logger"
	"racer-platform/internal/metrics"
	"racer-platform/internal/middleware"
	"racer-platform/internal/store"
	ws "racer-platform/internal/websocket"
)

// Deps are the services the routes are served from.
type Deps struct {
	Store          *store.Store
	Checkout       *checkout.Orchestrator
	Fans           *fanstatus.Service
	Views          *engagement.Recorder
	Gate           engagement.Gate
	Hub            *ws.Hub
	Metrics        *metrics.Recorder
	JWTSecret      string
	AllowedOrigins []string
	Logger         zerolog.Logger
}

func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger.Component(d.Logger, "http")), corsMiddleware(d.AllowedOrigins))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})
	r.GET("/healthz", func(c *gin.Context) {
		if err := d.Store.Ping(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	checkoutHandler := handlers.NewCheckoutHandler(d.Checkout, d.Fans.Threshold(), logger.Component(d.Logger, "checkout"))
	creatorHandler := handlers.NewCreatorHandler(d.Store, d.Fans, logger.Component(d.Logger, "creators"))
	fanHandler := handlers.NewFanHandler(d.Fans, logger.Component(d.Logger, "fans"))
	viewHandler := handlers.NewViewHandler(d.Views, d.Gate)
	wsHandler := handlers.NewWebSocketHandler(d.Store, d.Hub, logger.Component(d.Logger, "websocket"))

	auth := middleware.AuthMiddleware(d.JWTSecret, logger.Component(d.Logger, "auth"))

	// All API routes under /api
	api := r.Group("/api")
	{
		api.GET("/checkout/config", checkoutHandler.Config)
		api.POST("/checkout/finalize", checkoutHandler.Finalize)
		api.GET("/checkout/pending/:correlationID", checkoutHandler.Pending)
		api.POST("/webhook/payment", checkoutHandler.HandlePaymentNotification)

		api.GET("/u/:username", creatorHandler.GetProfile)
		api.GET("/creators/:creatorID/tiers", creatorHandler.Tiers)
		api.GET("/creators/:creatorID/stats", creatorHandler.Stats)
		api.GET("/creators/:creatorID/split", creatorHandler.Split)
		api.GET("/profiles/:profileID/views", viewHandler.Count)

		// Protected Endpoint
		protected := api.Group("/")
		protected.Use(auth)
		{
			protected.GET("/me", creatorHandler.GetMyProfile)
			protected.GET("/me/charges", creatorHandler.GetMyCharges)

			protected.POST("/creators/:creatorID/tip", checkoutHandler.Tip)
			protected.POST("/creators/:creatorID/subscribe", checkoutHandler.Subscribe)
			protected.POST("/creators/:creatorID/sponsor", checkoutHandler.Sponsor)

			protected.GET("/creators/:creatorID/fan-status", fanHandler.Status)
			protected.POST("/creators/:creatorID/follow", fanHandler.Follow)
			protected.DELETE("/creators/:creatorID/follow", fanHandler.Unfollow)

			protected.POST("/profiles/:profileID/views", viewHandler.Record)
		}
	}

	r.GET("/ws/:secretToken", wsHandler.ServerWs)
	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
