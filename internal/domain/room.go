package domain

import "time"

// ChatRoom is a conversation context. A room with no order link is a
// direct-message room between two users; a room linked to an order is a
// support room created automatically when the order is placed.
type ChatRoom struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(200);not null;default:'Chat'" json:"name"`
	OrderID   *uint     `gorm:"index" json:"order_id"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// IsDirect reports whether the room is a peer-to-peer DM room.
func (r *ChatRoom) IsDirect() bool {
	return r.OrderID == nil
}

// ChatParticipant links a user to a room. The (user_id, room_id) pair is
// unique; membership rows are only ever created, never deleted.
type ChatParticipant struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	UserID   uint      `gorm:"not null;uniqueIndex:idx_chat_participants_user_room" json:"user_id"`
	RoomID   uint      `gorm:"not null;uniqueIndex:idx_chat_participants_user_room;index" json:"room_id"`
	JoinedAt time.Time `gorm:"not null" json:"joined_at"`
}
