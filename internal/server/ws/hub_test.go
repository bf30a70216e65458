package ws

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmarket/vmarket/internal/domain"
)

type chanBus struct {
	ch chan []byte
}

func (b *chanBus) Publish(_ context.Context, _ string, p []byte) error {
	b.ch <- p
	return nil
}

func (b *chanBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.ch, nil
}

func startHub(t *testing.T) (*Hub, *chanBus, *httptest.Server) {
	t.Helper()
	bus := &chanBus{ch: make(chan []byte, 8)}
	hub := NewHub(bus, nil, slog.New(slog.NewJSONHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, bus, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubForwardsEvents(t *testing.T) {
	hub, bus, srv := startHub(t)
	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), domain.MarketEventsChannel,
		[]byte(`{"type":"market_created","room":"vesta","market_id":1}`)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.JSONEq(t, `{"type":"market_created","room":"vesta","market_id":1}`, string(msg))
}

func TestHubRoomFilter(t *testing.T) {
	hub, bus, srv := startHub(t)
	conn := dial(t, srv, "?room=usdc")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, domain.MarketEventsChannel, []byte(`{"room":"vesta","market_id":1}`)))
	require.NoError(t, bus.Publish(ctx, domain.MarketEventsChannel, []byte(`{"room":"usdc","market_id":2}`)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"room":"usdc","market_id":2}`, string(msg))
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, originAllowed(nil, "https://app.example"))
	assert.True(t, originAllowed([]string{"*"}, "https://app.example"))
	assert.True(t, originAllowed([]string{"https://app.example"}, ""))
	assert.False(t, originAllowed([]string{"https://app.example"}, "https://evil.example"))
}
