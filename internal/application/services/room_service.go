package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/vaais251/Smobile-market-place/internal/domain"
	"github.com/vaais251/Smobile-market-place/internal/metrics"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// ParticipantInfo is the projection of a room member exposed in summaries
// and enriched messages.
type ParticipantInfo struct {
	ID   uint            `json:"id"`
	Name string          `json:"name"`
	Role domain.UserRole `json:"role"`
}

// LastMessage is the newest message of a room, shown in room lists.
type LastMessage struct {
	Content   string    `json:"content"`
	SenderID  uint      `json:"sender_id"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomSummary is one entry of a user's room list. Participants holds the
// other members only, never the requesting user.
type RoomSummary struct {
	ID           uint              `json:"id"`
	Name         string            `json:"name"`
	OrderID      *uint             `json:"order_id"`
	IsActive     bool              `json:"is_active"`
	CreatedAt    time.Time         `json:"created_at"`
	Participants []ParticipantInfo `json:"participants"`
	LastMessage  *LastMessage      `json:"last_message"`
	UnreadCount  int64             `json:"unread_count"`
}

// MessageView is a message enriched with sender identity, the shape both
// the history endpoint and the gateway broadcast deliver.
type MessageView struct {
	ID         uint            `json:"id"`
	RoomID     uint            `json:"room_id"`
	SenderID   uint            `json:"sender_id"`
	SenderName string          `json:"sender_name"`
	SenderRole domain.UserRole `json:"sender_role"`
	Content    string          `json:"content"`
	Timestamp  time.Time       `json:"timestamp"`
	ReadAt     *time.Time      `json:"read_at"`
}

// RoomService is the room store: persisted rooms, participant membership
// and the message log. It is the source of truth for membership; the
// gateway re-reads it on every inbound frame instead of caching.
type RoomService struct {
	db *gorm.DB
}

func NewRoomService(db *gorm.DB) *RoomService {
	return &RoomService{db: db}
}

// FindOrCreateDirectRoom returns the active DM room between the two users,
// creating it (room plus both participant rows, atomically) when none
// exists. At most one active DM room exists per user pair.
func (s *RoomService) FindOrCreateDirectRoom(ctx context.Context, userID, otherUserID uint) (*domain.ChatRoom, bool, error) {
	if userID == otherUserID {
		return nil, false, fmt.Errorf("%w: cannot create a chat room with yourself", ErrInvalidOperation)
	}

	var other domain.User
	if err := s.db.WithContext(ctx).First(&other, otherUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("%w: user %d", ErrNotFound, otherUserID)
		}
		return nil, false, fmt.Errorf("lookup user %d: %w", otherUserID, err)
	}

	var room domain.ChatRoom
	err := s.db.WithContext(ctx).
		Joins("JOIN chat_participants cp1 ON cp1.room_id = chat_rooms.id AND cp1.user_id = ?", userID).
		Joins("JOIN chat_participants cp2 ON cp2.room_id = chat_rooms.id AND cp2.user_id = ?", otherUserID).
		Where("chat_rooms.order_id IS NULL AND chat_rooms.is_active = ?", true).
		First(&room).Error
	if err == nil {
		return &room, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("find direct room: %w", err)
	}

	var me domain.User
	if err := s.db.WithContext(ctx).First(&me, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		return nil, false, fmt.Errorf("lookup user %d: %w", userID, err)
	}

	room = domain.ChatRoom{
		Name:      fmt.Sprintf("%s & %s", me.Name, other.Name),
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		participants := []domain.ChatParticipant{
			{UserID: userID, RoomID: room.ID, JoinedAt: now},
			{UserID: otherUserID, RoomID: room.ID, JoinedAt: now},
		}
		return tx.Create(&participants).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("create direct room: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"room_id": room.ID,
		"user_id": userID,
		"peer_id": otherUserID,
	}).Info("Direct room created")
	return &room, true, nil
}

// ListRoomsFor returns the active rooms the user participates in, newest
// first, each with the other members, the latest message and the count of
// unread messages addressed to the user.
func (s *RoomService) ListRoomsFor(ctx context.Context, userID uint) ([]RoomSummary, error) {
	var rooms []domain.ChatRoom
	err := s.db.WithContext(ctx).
		Joins("JOIN chat_participants cp ON cp.room_id = chat_rooms.id AND cp.user_id = ?", userID).
		Where("chat_rooms.is_active = ?", true).
		Order("chat_rooms.created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("list rooms for user %d: %w", userID, err)
	}

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		others, err := s.otherParticipants(ctx, room.ID, userID)
		if err != nil {
			return nil, err
		}

		var last domain.Message
		var lastMessage *LastMessage
		err = s.db.WithContext(ctx).
			Where("room_id = ?", room.ID).
			Order("timestamp DESC, id DESC").
			First(&last).Error
		if err == nil {
			lastMessage = &LastMessage{Content: last.Content, SenderID: last.SenderID, Timestamp: last.Timestamp}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("last message of room %d: %w", room.ID, err)
		}

		var unread int64
		err = s.db.WithContext(ctx).Model(&domain.Message{}).
			Where("room_id = ? AND sender_id <> ? AND read_at IS NULL", room.ID, userID).
			Count(&unread).Error
		if err != nil {
			return nil, fmt.Errorf("unread count of room %d: %w", room.ID, err)
		}

		summaries = append(summaries, RoomSummary{
			ID:           room.ID,
			Name:         room.Name,
			OrderID:      room.OrderID,
			IsActive:     room.IsActive,
			CreatedAt:    room.CreatedAt,
			Participants: others,
			LastMessage:  lastMessage,
			UnreadCount:  unread,
		})
	}
	return summaries, nil
}

// FetchHistory returns up to limit messages of the room with id strictly
// below beforeID (the newest messages when beforeID is zero), in
// chronological order. Fetching marks every returned message not sent by
// the caller as read; retrieving history is the acknowledgment.
func (s *RoomService) FetchHistory(ctx context.Context, roomID, userID uint, beforeID uint, limit int) ([]MessageView, error) {
	member, err := s.IsParticipant(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("%w: user %d is not a member of room %d", ErrForbidden, userID, roomID)
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	query := s.db.WithContext(ctx).Where("room_id = ?", roomID)
	if beforeID > 0 {
		query = query.Where("id < ?", beforeID)
	}

	var messages []domain.Message
	if err := query.Order("timestamp DESC, id DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("fetch history of room %d: %w", roomID, err)
	}

	now := time.Now().UTC()
	var unreadIDs []uint
	for i := range messages {
		if messages[i].SenderID != userID && messages[i].ReadAt == nil {
			unreadIDs = append(unreadIDs, messages[i].ID)
			messages[i].ReadAt = &now
		}
	}
	if len(unreadIDs) > 0 {
		err := s.db.WithContext(ctx).Model(&domain.Message{}).
			Where("id IN ? AND read_at IS NULL", unreadIDs).
			Update("read_at", now).Error
		if err != nil {
			return nil, fmt.Errorf("mark messages read: %w", err)
		}
	}

	senders, err := s.senderInfo(ctx, messages)
	if err != nil {
		return nil, err
	}

	// Storage order is newest-first; callers get chronological order.
	views := make([]MessageView, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		views = append(views, makeView(&messages[i], senders))
	}
	return views, nil
}

// AppendMessage persists one message from sender into the room and returns
// it enriched with the assigned id, timestamp and sender identity.
func (s *RoomService) AppendMessage(ctx context.Context, roomID, senderID uint, content string) (*MessageView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is empty", ErrInvalidOperation)
	}
	if utf8.RuneCountInString(content) > domain.MaxMessageLength {
		return nil, fmt.Errorf("%w: message content exceeds %d characters", ErrInvalidOperation, domain.MaxMessageLength)
	}

	member, err := s.IsParticipant(ctx, roomID, senderID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("%w: user %d is not a member of room %d", ErrForbidden, senderID, roomID)
	}

	var sender domain.User
	if err := s.db.WithContext(ctx).First(&sender, senderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, senderID)
		}
		return nil, fmt.Errorf("lookup sender %d: %w", senderID, err)
	}

	message := domain.Message{
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return nil, fmt.Errorf("append message to room %d: %w", roomID, err)
	}

	var room domain.ChatRoom
	roomType := "direct"
	if err := s.db.WithContext(ctx).First(&room, roomID).Error; err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Debug("Failed to resolve room type for metrics")
	} else if !room.IsDirect() {
		roomType = "support"
	}
	metrics.MessagesSent.WithLabelValues(roomType).Inc()

	view := MessageView{
		ID:         message.ID,
		RoomID:     message.RoomID,
		SenderID:   message.SenderID,
		SenderName: sender.Name,
		SenderRole: sender.Role,
		Content:    message.Content,
		Timestamp:  message.Timestamp,
		ReadAt:     nil,
	}
	return &view, nil
}

// CreateSupportRoom creates a support room linked to an order: the room,
// its de-duplicated participants and one system-authored message commit as
// a single unit inside the given transaction. No partial room is ever
// observable to a reader.
func (s *RoomService) CreateSupportRoom(ctx context.Context, tx *gorm.DB, orderID uint, name string, participantIDs []uint, systemSenderID uint, systemMessage string) (*domain.ChatRoom, error) {
	db := tx
	if db == nil {
		db = s.db
	}

	var room domain.ChatRoom
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room = domain.ChatRoom{
			Name:      name,
			OrderID:   &orderID,
			IsActive:  true,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(&room).Error; err != nil {
			return fmt.Errorf("create room: %w", err)
		}

		now := time.Now().UTC()
		seen := make(map[uint]bool, len(participantIDs))
		for _, userID := range participantIDs {
			if seen[userID] {
				continue
			}
			seen[userID] = true
			participant := domain.ChatParticipant{UserID: userID, RoomID: room.ID, JoinedAt: now}
			if err := tx.Create(&participant).Error; err != nil {
				return fmt.Errorf("add participant %d: %w", userID, err)
			}
		}

		message := domain.Message{
			RoomID:    room.ID,
			SenderID:  systemSenderID,
			Content:   systemMessage,
			Timestamp: now,
		}
		if err := tx.Create(&message).Error; err != nil {
			return fmt.Errorf("write system message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// IsParticipant reports whether the user is a member of the room.
func (s *RoomService) IsParticipant(ctx context.Context, roomID, userID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.ChatParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("membership check for user %d in room %d: %w", userID, roomID, err)
	}
	return count > 0, nil
}

// RoomParticipantIDs returns the current member ids of a room. The gateway
// calls this on every message send; membership can change out-of-band
// while a connection is open, so it is never cached.
func (s *RoomService) RoomParticipantIDs(ctx context.Context, roomID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&domain.ChatParticipant{}).
		Where("room_id = ?", roomID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("participants of room %d: %w", roomID, err)
	}
	return ids, nil
}

func (s *RoomService) otherParticipants(ctx context.Context, roomID, userID uint) ([]ParticipantInfo, error) {
	var users []domain.User
	err := s.db.WithContext(ctx).
		Joins("JOIN chat_participants cp ON cp.user_id = users.id AND cp.room_id = ?", roomID).
		Where("users.id <> ?", userID).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("participants of room %d: %w", roomID, err)
	}
	infos := make([]ParticipantInfo, 0, len(users))
	for _, u := range users {
		infos = append(infos, ParticipantInfo{ID: u.ID, Name: u.Name, Role: u.Role})
	}
	return infos, nil
}

func (s *RoomService) senderInfo(ctx context.Context, messages []domain.Message) (map[uint]ParticipantInfo, error) {
	senders := make(map[uint]ParticipantInfo)
	if len(messages) == 0 {
		return senders, nil
	}
	idSet := make(map[uint]bool)
	var ids []uint
	for _, m := range messages {
		if !idSet[m.SenderID] {
			idSet[m.SenderID] = true
			ids = append(ids, m.SenderID)
		}
	}
	var users []domain.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("lookup senders: %w", err)
	}
	for _, u := range users {
		senders[u.ID] = ParticipantInfo{ID: u.ID, Name: u.Name, Role: u.Role}
	}
	return senders, nil
}

func makeView(m *domain.Message, senders map[uint]ParticipantInfo) MessageView {
	view := MessageView{
		ID:        m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
		ReadAt:    m.ReadAt,
	}
	if sender, ok := senders[m.SenderID]; ok {
		view.SenderName = sender.Name
		view.SenderRole = sender.Role
	}
	return view
}
