package websocket

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"resellerportal/internal/authz"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func receive(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case msg := <-c.Send:
		return string(msg)
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.AccountID)
		return ""
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("client %s unexpectedly received %q", c.AccountID, msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_RoutesByAccountAndKind(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	go hub.Run()

	admin := &Client{Hub: hub, Send: make(chan []byte, 4), AccountID: uuid.New(), IsAdmin: true}
	reseller := &Client{Hub: hub, Send: make(chan []byte, 4), AccountID: uuid.New()}
	other := &Client{Hub: hub, Send: make(chan []byte, 4), AccountID: uuid.New()}
	for _, c := range []*Client{admin, reseller, other} {
		hub.register <- c
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == 3 }, time.Second, 10*time.Millisecond)

	hub.SendToAccount(reseller.AccountID, []byte("shipped"))
	assert.Equal(t, "shipped", receive(t, reseller))
	assertSilent(t, other)
	assertSilent(t, admin)

	hub.BroadcastToAdmins([]byte("sold"))
	assert.Equal(t, "sold", receive(t, admin))
	assertSilent(t, reseller)

	hub.unregister <- other
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)
	_, open := <-other.Send
	assert.False(t, open)
}

func TestServeWs_RejectsMissingOrInactivePrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(zap.NewNop(), []string{"https://portal.example.com"})

	inactive := func(*gin.Context, string) (*authz.Principal, error) {
		return &authz.Principal{AccountID: uuid.New(), IsActive: false}, nil
	}

	for _, target := range []string{"/ws", "/ws?token=abc"} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, target, nil)

		ServeWs(hub, c, inactive)
		assert.Equal(t, http.StatusUnauthorized, w.Code, target)
	}
}

func TestHub_CheckOrigin(t *testing.T) {
	hub := NewHub(zap.NewNop(), []string{"https://portal.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	assert.True(t, hub.upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, hub.upgrader.CheckOrigin(req))
}
