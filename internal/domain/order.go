package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusShipped, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor state.
// COMPLETED and CANCELLED are terminal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusShipped || next == OrderStatusCompleted || next == OrderStatusCancelled
	case OrderStatusShipped:
		return next == OrderStatusCompleted
	}
	return false
}

// Order tracks a purchase between a buyer and a seller. The two chat room
// references are written back by the provisioning service in the same
// transaction that creates the order.
type Order struct {
	ID               uint        `gorm:"primaryKey" json:"id"`
	BuyerID          uint        `gorm:"index;not null" json:"buyer_id"`
	SellerID         uint        `gorm:"index;not null" json:"seller_id"`
	ListingID        uint        `gorm:"index;not null" json:"listing_id"`
	Status           OrderStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	BuyerChatRoomID  *uint       `json:"buyer_chat_room_id"`
	SellerChatRoomID *uint       `json:"seller_chat_room_id"`
	CreatedAt        time.Time   `json:"created_at"`
}
