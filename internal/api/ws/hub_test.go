package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/hostsync/internal/api/middleware"
	"github.com/GriffinCanCode/hostsync/internal/broadcast"
)

type frame struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func startHub(t *testing.T, refresh RefreshFunc) (*Hub, *broadcast.Bus, string) {
	t.Helper()
	hub := NewHub(refresh, nil)
	bus, url := serveHub(t, hub)
	return hub, bus, url
}

func serveHub(t *testing.T, hub *Hub) (*broadcast.Bus, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bus := broadcast.NewBus(nil)
	bus.Subscribe(hub)

	router := gin.New()
	router.GET("/stream", hub.HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	return bus, "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	welcome := read(t, conn)
	require.Equal(t, "system", welcome.Type)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var f frame
	require.NoError(t, sonic.Unmarshal(raw, &f))
	return f
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Len() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestEventsReachClients(t *testing.T) {
	hub, bus, url := startHub(t, nil)
	a := dial(t, url)
	b := dial(t, url)
	waitForClients(t, hub, 2)

	bus.Publish(broadcast.ChannelLocale, true, map[string]string{"lang": "en_US.UTF-8"})

	for _, conn := range []*websocket.Conn{a, b} {
		f := read(t, conn)
		assert.Equal(t, "event", f.Type)
		assert.Equal(t, broadcast.ChannelLocale, f.Channel)
		assert.True(t, f.Success)
		assert.JSONEq(t, `{"lang":"en_US.UTF-8"}`, string(f.Data))
	}
}

func TestPing(t *testing.T) {
	_, _, url := startHub(t, nil)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, "pong", read(t, conn).Type)
}

func TestUnsubscribeFiltersChannel(t *testing.T) {
	hub, bus, url := startHub(t, nil)
	conn := dial(t, url)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "unsubscribe", "channel": broadcast.ChannelKernel}))
	ack := read(t, conn)
	assert.Equal(t, "unsubscribed", ack.Type)

	bus.Publish(broadcast.ChannelKernel, true, "kernel")
	bus.Publish(broadcast.ChannelLocale, true, "locale")

	f := read(t, conn)
	assert.Equal(t, broadcast.ChannelLocale, f.Channel)
}

func TestUnknownMessages(t *testing.T) {
	_, _, url := startHub(t, nil)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dance"}))
	f := read(t, conn)
	assert.Equal(t, "error", f.Type)
	assert.Equal(t, "unknown message type", f.Message)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "channel": "nope"}))
	f = read(t, conn)
	assert.Equal(t, "error", f.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	f = read(t, conn)
	assert.Equal(t, "malformed message", f.Message)
}

func TestRefreshPublishesThroughBus(t *testing.T) {
	var bus *broadcast.Bus
	refreshed := make(chan string, 1)
	hub, b, url := startHub(t, func(ctx context.Context, channel string) error {
		refreshed <- channel
		bus.Publish(channel, true, "fresh")
		return nil
	})
	bus = b
	conn := dial(t, url)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "refresh", "channel": broadcast.ChannelKernel}))

	select {
	case ch := <-refreshed:
		assert.Equal(t, broadcast.ChannelKernel, ch)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh was not requested")
	}
	f := read(t, conn)
	assert.Equal(t, "event", f.Type)
	assert.JSONEq(t, `"fresh"`, string(f.Data))
}

func TestRefreshRequestsAreCoalesced(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	hub, _, url := startHub(t, func(ctx context.Context, channel string) error {
		calls.Add(1)
		<-release
		return nil
	})
	a := dial(t, url)
	b := dial(t, url)
	waitForClients(t, hub, 2)

	refresh := map[string]string{"type": "refresh", "channel": broadcast.ChannelKernel}
	for i := 0; i < 10; i++ {
		require.NoError(t, a.WriteJSON(refresh))
	}
	require.NoError(t, b.WriteJSON(refresh))

	// messages are handled in order, so a pong means the refreshes were seen
	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
		assert.Equal(t, "pong", read(t, conn).Type)
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	unblock()
	require.Eventually(t, func() bool {
		_ = a.WriteJSON(refresh)
		return calls.Load() >= 2
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDefaultOriginCheckRejectsCrossOrigin(t *testing.T) {
	_, _, url := startHub(t, nil)

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestOriginPolicyGuardsUpgrade(t *testing.T) {
	policy := middleware.NewOriginPolicy([]string{"http://localhost:1420"})
	hub := NewHub(nil, nil).WithOriginCheck(policy.AllowsRequest)
	_, url := serveHub(t, hub)

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, hub.Len())

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://localhost:1420"}})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	assert.Equal(t, "system", read(t, conn).Type)
}

func TestClientConnectedFor(t *testing.T) {
	c := newClient(1)
	time.Sleep(5 * time.Millisecond)

	age := c.connectedFor()
	assert.GreaterOrEqual(t, age, 5*time.Millisecond)
	assert.Less(t, age, time.Minute)
}

func TestRefreshWithoutRefresher(t *testing.T) {
	_, _, url := startHub(t, nil)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "refresh", "channel": broadcast.ChannelLocale}))
	f := read(t, conn)
	assert.Equal(t, "error", f.Type)
	assert.Equal(t, "refresh not available", f.Message)
}

func TestSlowClientMissesEvents(t *testing.T) {
	hub := NewHub(nil, nil)
	c := newClient(1)
	hub.attach(c)

	event := broadcast.Event{ID: "evt_1", Channel: broadcast.ChannelLocale, Success: true}
	require.NoError(t, hub.Notify(event))
	assert.Error(t, hub.Notify(event), "second event overflows the queue")
	assert.Len(t, c.send, 1)

	hub.detach(c)
	hub.detach(c)
	assert.Zero(t, hub.Len())
	_, open := <-c.send
	assert.True(t, open, "buffered event is still readable")
	_, open = <-c.send
	assert.False(t, open)
}

func TestCloseDisconnectsClients(t *testing.T) {
	hub, _, url := startHub(t, nil)
	conn := dial(t, url)
	waitForClients(t, hub, 1)

	hub.Close()
	assert.Zero(t, hub.Len())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestConcurrentNotify(t *testing.T) {
	hub := NewHub(nil, nil).WithQueueSize(1000)
	clients := make([]*client, 5)
	for i := range clients {
		clients[i] = newClient(hub.queueSize)
		hub.attach(clients[i])
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = hub.Notify(broadcast.Event{ID: "evt_x", Channel: broadcast.ChannelKernel})
			}
		}()
	}
	wg.Wait()

	for _, c := range clients {
		assert.Len(t, c.send, 200)
	}
}
