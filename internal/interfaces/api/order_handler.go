package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vaais251/Smobile-market-place/internal/application/services"
	"github.com/vaais251/Smobile-market-place/internal/domain"
)

type OrderHandler struct {
	orders *services.OrderService
}

func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type placeOrderRequest struct {
	ListingID uint `json:"listing_id" binding:"required"`
}

// Place handles POST /api/v1/orders. Placing an order provisions its two
// support rooms in the same transaction.
func (h *OrderHandler) Place(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing_id is required"})
		return
	}

	order, err := h.orders.PlaceOrder(c.Request.Context(), userID, req.ListingID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status" binding:"required"`
}

// UpdateStatus handles PATCH /api/v1/orders/:orderID/status.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	orderID, err := parseUintParam(c, "orderID")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), orderID, userID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
