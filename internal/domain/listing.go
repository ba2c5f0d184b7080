package domain

import "time"

// Listing is a collaborator entity owned by the listings service.
// The messaging core reads it when an order is placed (seller lookup,
// listing title for the coordination room's system message) and flips
// is_active around the order lifecycle.
type Listing struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SellerID  uint      `gorm:"index;not null" json:"seller_id"`
	Title     string    `gorm:"type:varchar(200);not null" json:"title"`
	Price     float64   `gorm:"not null" json:"price"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
