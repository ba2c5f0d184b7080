package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/vaais251/Smobile-market-place/internal/application/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds the wire frame, not the content: content is
	// capped at 2000 runes, and a rune can occupy up to 12 bytes on the
	// wire when the client JSON-escapes it as a surrogate pair. Anything
	// past that is junk, not a message.
	maxMessageSize = 32768
)

// inboundFrame is the gateway's single inbound frame shape.
type inboundFrame struct {
	RoomID  uint   `json:"room_id"`
	Content string `json:"content"`
}

// outboundMessage is the enriched message frame broadcast to a room.
type outboundMessage struct {
	Type string `json:"type"`
	services.MessageView
}

type errorFrame struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// Client is one live gateway connection. Its readPump processes inbound
// frames strictly in arrival order; its writePump serializes all outbound
// traffic onto the socket.
type Client struct {
	registry *Registry
	rooms    *services.RoomService
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	once     sync.Once
	ctx      context.Context
	cancel   context.CancelFunc
	userID   uint
}

func newClient(registry *Registry, rooms *services.RoomService, conn *websocket.Conn, userID uint) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		registry: registry,
		rooms:    rooms,
		conn:     conn,
		send:     make(chan []byte, 256),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		userID:   userID,
	}
}

// trySend queues a payload for the writePump without blocking. Returns
// false when the client is closed or its buffer is saturated; the caller
// treats that as a transport failure.
func (c *Client) trySend(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// close tears the connection down exactly once. The send channel is never
// closed; writePump exits via done, so concurrent trySend calls can never
// hit a closed channel.
func (c *Client) close() {
	c.once.Do(func() {
		c.cancel()
		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) sendError(detail string) {
	payload, err := json.Marshal(errorFrame{Type: "error", Detail: detail})
	if err != nil {
		return
	}
	c.trySend(payload)
}

// readPump drives the Active state of the connection. Malformed frames and
// membership failures are reported on the same connection and are not
// fatal; only transport errors end the loop. Every exit route runs the one
// cleanup path: deregister, then close.
func (c *Client) readPump() {
	defer func() {
		c.registry.Disconnect(c.userID, c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logrus.WithField("user_id", c.userID).WithError(err).Warn("Gateway read error")
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.sendError("invalid JSON")
			continue
		}
		frame.Content = strings.TrimSpace(frame.Content)
		if frame.RoomID == 0 || frame.Content == "" {
			c.sendError("room_id and content are required")
			continue
		}

		view, err := c.rooms.AppendMessage(c.ctx, frame.RoomID, c.userID, frame.Content)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrForbidden):
				c.sendError("you are not a member of this room")
			case errors.Is(err, services.ErrInvalidOperation):
				c.sendError("message rejected: " + err.Error())
			default:
				logrus.WithField("user_id", c.userID).WithError(err).Error("Failed to persist message")
				c.sendError("failed to send message")
			}
			continue
		}

		payload, err := json.Marshal(outboundMessage{Type: "message", MessageView: *view})
		if err != nil {
			logrus.WithError(err).Error("Failed to marshal outbound message")
			continue
		}

		// Membership can change while the connection is open, so the
		// recipient list is re-read for every send.
		participantIDs, err := c.rooms.RoomParticipantIDs(c.ctx, frame.RoomID)
		if err != nil {
			logrus.WithField("room_id", frame.RoomID).WithError(err).Error("Failed to load participants for broadcast")
			continue
		}
		c.registry.Broadcast(payload, participantIDs, 0)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logrus.WithField("user_id", c.userID).WithError(err).Debug("Gateway write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
