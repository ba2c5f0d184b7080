package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vaais251/Smobile-market-place/internal/infrastructure/websocket"
)

type WebSocketHandler struct {
	gateway *websocket.Gateway
}

func NewWebSocketHandler(gateway *websocket.Gateway) *WebSocketHandler {
	return &WebSocketHandler{gateway: gateway}
}

// HandleConnection handles GET /ws/:userID?token=… . Authentication of the
// claimed user id happens inside the gateway handshake so rejections can
// carry the distinguished close code.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	userID, err := parseUintParam(c, "userID")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	h.gateway.ServeWS(c.Writer, c.Request, userID)
}
