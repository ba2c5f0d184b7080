package websocket

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/vaais251/Smobile-market-place/internal/metrics"
)

// Registry tracks which users currently hold a live gateway connection.
// It is an explicitly constructed instance, created at service start and
// injected where needed, so tests can run against isolated registries.
//
// One connection per user: a second Connect for the same user replaces the
// first (last-writer-wins). The map is guarded by a coarse mutex; all
// critical sections are O(1) and no lock is held across a network write,
// since sends go through each client's buffered channel.
type Registry struct {
	mu      sync.RWMutex
	clients map[uint]*Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[uint]*Client)}
}

// Connect registers the client, replacing any prior connection for the
// same user. The replaced client, if any, is returned for the caller to
// close; leaving a stale handle open would leak.
func (r *Registry) Connect(userID uint, client *Client) *Client {
	r.mu.Lock()
	prior := r.clients[userID]
	r.clients[userID] = client
	r.mu.Unlock()

	if prior == nil {
		metrics.ActiveConnections.Inc()
	}
	logrus.WithField("user_id", userID).Debug("Connection registered")
	return prior
}

// Disconnect removes the registration, but only while the given client is
// still the registered one: a connection replaced by a newer one must not
// evict its successor on teardown. Idempotent.
func (r *Registry) Disconnect(userID uint, client *Client) {
	r.mu.Lock()
	current, ok := r.clients[userID]
	if ok && current == client {
		delete(r.clients, userID)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		metrics.ActiveConnections.Dec()
		logrus.WithField("user_id", userID).Debug("Connection removed")
	}
}

// IsOnline reports whether the user currently has a registered connection.
func (r *Registry) IsOnline(userID uint) bool {
	r.mu.RLock()
	_, ok := r.clients[userID]
	r.mu.RUnlock()
	return ok
}

// SendTo delivers the payload to the user if they are online. Delivery is
// best effort: offline users are skipped silently, and a transport-level
// failure (closed connection or saturated send buffer) removes the broken
// registration so later sends do not retry a dead handle.
func (r *Registry) SendTo(userID uint, payload []byte) {
	r.mu.RLock()
	client := r.clients[userID]
	r.mu.RUnlock()
	if client == nil {
		return
	}

	if client.trySend(payload) {
		metrics.BroadcastDeliveries.Inc()
		return
	}

	metrics.BroadcastDrops.Inc()
	logrus.WithField("user_id", userID).Warn("Send failed, removing broken connection")
	r.Disconnect(userID, client)
	client.close()
}

// Broadcast sends the payload to every listed participant except
// excludeID (0 excludes no one). Recipients are independent: one broken
// transport never blocks or fails delivery to the others.
func (r *Registry) Broadcast(payload []byte, participantIDs []uint, excludeID uint) {
	for _, userID := range participantIDs {
		if excludeID != 0 && userID == excludeID {
			continue
		}
		r.SendTo(userID, payload)
	}
}
