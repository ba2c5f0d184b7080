package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSocketPair dials a throwaway upgrade endpoint and returns both ends of
// a live websocket connection. The server-side end is what a Client wraps.
func newSocketPair(t *testing.T) (clientSide, serverSide *websocket.Conn) {
	t.Helper()

	accepted := make(chan *websocket.Conn, 1)
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		accepted <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientSide, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientSide.Close() })

	serverSide = <-accepted
	t.Cleanup(func() { serverSide.Close() })
	return clientSide, serverSide
}

func newTestClient(t *testing.T, registry *Registry, userID uint) *Client {
	t.Helper()
	_, serverSide := newSocketPair(t)
	c := newClient(registry, nil, serverSide, userID)
	t.Cleanup(c.close)
	return c
}

func TestConnectAndIsOnline(t *testing.T) {
	registry := NewRegistry()
	assert.False(t, registry.IsOnline(7))

	client := newTestClient(t, registry, 7)
	prior := registry.Connect(7, client)
	assert.Nil(t, prior)
	assert.True(t, registry.IsOnline(7))

	registry.Disconnect(7, client)
	assert.False(t, registry.IsOnline(7))

	// Disconnect is idempotent.
	registry.Disconnect(7, client)
	assert.False(t, registry.IsOnline(7))
}

func TestConnect_LastWriterWins(t *testing.T) {
	registry := NewRegistry()
	first := newTestClient(t, registry, 7)
	second := newTestClient(t, registry, 7)

	require.Nil(t, registry.Connect(7, first))
	prior := registry.Connect(7, second)
	assert.Same(t, first, prior)
	assert.True(t, registry.IsOnline(7))

	// The replaced connection's teardown must not evict its successor.
	registry.Disconnect(7, first)
	assert.True(t, registry.IsOnline(7))

	registry.SendTo(7, []byte("hello"))
	select {
	case payload := <-second.send:
		assert.Equal(t, "hello", string(payload))
	default:
		t.Fatal("expected payload queued on the current connection")
	}
	select {
	case <-first.send:
		t.Fatal("replaced connection must not receive sends")
	default:
	}
}

func TestSendTo_OfflineIsNoop(t *testing.T) {
	registry := NewRegistry()
	registry.SendTo(42, []byte("nobody home"))
	assert.False(t, registry.IsOnline(42))
}

func TestSendTo_SaturatedBufferRemovesConnection(t *testing.T) {
	registry := NewRegistry()
	client := newTestClient(t, registry, 7)
	registry.Connect(7, client)

	// No writePump is draining, so the buffer fills up.
	for i := 0; i < cap(client.send); i++ {
		require.True(t, client.trySend([]byte("x")))
	}

	registry.SendTo(7, []byte("overflow"))
	assert.False(t, registry.IsOnline(7))

	// The broken client is closed; further sends are refused outright.
	assert.False(t, client.trySend([]byte("x")))
}

func TestSendTo_ClosedClientRemovesConnection(t *testing.T) {
	registry := NewRegistry()
	client := newTestClient(t, registry, 7)
	registry.Connect(7, client)

	client.close()
	registry.SendTo(7, []byte("too late"))
	assert.False(t, registry.IsOnline(7))
}

func TestBroadcast(t *testing.T) {
	registry := NewRegistry()
	alice := newTestClient(t, registry, 1)
	bob := newTestClient(t, registry, 2)
	registry.Connect(1, alice)
	registry.Connect(2, bob)
	// User 3 is a participant but offline.

	registry.Broadcast([]byte("ping"), []uint{1, 2, 3}, 0)
	assert.Len(t, alice.send, 1)
	assert.Len(t, bob.send, 1)

	registry.Broadcast([]byte("ping"), []uint{1, 2, 3}, 1)
	assert.Len(t, alice.send, 1, "excluded sender must not receive the broadcast")
	assert.Len(t, bob.send, 2)
}
