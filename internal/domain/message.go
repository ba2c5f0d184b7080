package domain

import "time"

// MaxMessageLength bounds message content, in runes.
const MaxMessageLength = 2000

// Message is a single chat message. The autoincrement id defines the total
// order within a room (timestamp first, id as tie-break) and doubles as the
// backward-pagination cursor. read_at is set once by a non-sender fetching
// history and never moves back to null.
type Message struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	RoomID    uint       `gorm:"index;not null" json:"room_id"`
	SenderID  uint       `gorm:"index;not null" json:"sender_id"`
	Content   string     `gorm:"type:varchar(2000);not null" json:"content"`
	Timestamp time.Time  `gorm:"not null" json:"timestamp"`
	ReadAt    *time.Time `json:"read_at"`
}
