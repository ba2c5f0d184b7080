package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vaais251/Smobile-market-place/internal/auth"
	"github.com/vaais251/Smobile-market-place/internal/config"
)

// NewRouter assembles the gin engine: recovery, request logging, optional
// redis rate limiting, the chat and order endpoints, the gateway route and
// the operational endpoints.
func NewRouter(cfg *config.Config, verifier *auth.Verifier, redisClient *redis.Client, chat *ChatHandler, orders *OrderHandler, ws *WebSocketHandler) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	if redisClient != nil {
		router.Use(RateLimit(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow))
	}

	v1 := router.Group("/api/v1")
	chatRoutes := v1.Group("/chat").Use(Auth(verifier))
	{
		chatRoutes.GET("/rooms", chat.ListRooms)
		chatRoutes.GET("/rooms/:otherUserID", chat.GetOrCreateDirectRoom)
		chatRoutes.GET("/history/:roomID", chat.History)
	}
	orderRoutes := v1.Group("/orders").Use(Auth(verifier))
	{
		orderRoutes.POST("", orders.Place)
		orderRoutes.PATCH("/:orderID/status", orders.UpdateStatus)
	}

	router.GET("/ws/:userID", ws.HandleConnection)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
