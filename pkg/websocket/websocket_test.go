package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"SafeYatra/internal/models"
	apperrors "SafeYatra/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tourist   = models.Identity{UserID: "t1", Name: "John Smith", Role: models.RoleTourist}
	authority = models.Identity{UserID: "a1", Name: "Inspector Rajesh Kumar", Role: models.RoleAuthority}
	admin     = models.Identity{UserID: "ad1", Name: "Officer Amit Singh", Role: models.RoleAdmin}
)

func register(t *testing.T, hub *Hub, id models.Identity) *Connection {
	t.Helper()
	conn := NewConnection(hub, nil, id)
	require.NoError(t, hub.Register(conn))
	return conn
}

// next reads one queued frame or fails after a short wait.
func next(t *testing.T, conn *Connection) Message {
	t.Helper()
	select {
	case raw, ok := <-conn.Send:
		require.True(t, ok, "send channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatalf("no message for %s", conn.ID)
		return Message{}
	}
}

func assertQuiet(t *testing.T, conn *Connection) {
	t.Helper()
	select {
	case raw := <-conn.Send:
		t.Fatalf("unexpected message for %s: %s", conn.ID, raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	assert.NotNil(t, hub)
	assert.Equal(t, int64(100000), hub.config.MaxConnections)
	assert.Equal(t, 30*time.Second, hub.config.HeartbeatInterval)
	assert.True(t, hub.Running())
}

func TestRegisterJoinsRoomsByRole(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	tc := register(t, hub, tourist)
	ac := register(t, hub, authority)
	adc := register(t, hub, admin)

	assert.ElementsMatch(t, []string{"user_t1"}, tc.RoomList())
	assert.ElementsMatch(t, []string{"authorities", "user_a1"}, ac.RoomList())
	assert.ElementsMatch(t, []string{"authorities", "admin", "user_ad1"}, adc.RoomList())

	assert.Equal(t, int64(3), hub.GetConnectionCount())
	assert.Equal(t, 2, hub.GetRoomConnections(RoomAuthorities))
	assert.Equal(t, 1, hub.GetRoomConnections(RoomAdmin))
	assert.Equal(t, 1, hub.GetUserConnections("t1"))
}

func TestConnectionLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConnections = 1
	hub := NewHub(cfg)
	defer hub.Close()

	register(t, hub, tourist)
	err := hub.Register(NewConnection(hub, nil, authority))
	assert.ErrorIs(t, err, ErrConnectionLimit)
}

func TestBroadcastScopes(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	tc := register(t, hub, tourist)
	ac := register(t, hub, authority)
	adc := register(t, hub, admin)

	n := hub.BroadcastToRoom(RoomAuthorities, EventNewSOSAlert, map[string]string{"alertId": "x"})
	assert.Equal(t, 2, n)
	assert.Equal(t, EventNewSOSAlert, next(t, ac).Event)
	assert.Equal(t, EventNewSOSAlert, next(t, adc).Event)
	assertQuiet(t, tc)

	n = hub.BroadcastToUser("t1", EventNotification, map[string]string{"title": "hi"})
	assert.Equal(t, 1, n)
	msg := next(t, tc)
	assert.Equal(t, EventNotification, msg.Event)
	assert.Equal(t, "hi", msg.Data.(map[string]interface{})["title"])
	assertQuiet(t, ac)

	hub.BroadcastAll(EventSOSStatusUpdate, map[string]string{"status": "resolved"})
	for _, c := range []*Connection{tc, ac, adc} {
		assert.Equal(t, EventSOSStatusUpdate, next(t, c).Event)
	}
}

func TestBroadcastWithoutSubscribersIsNoop(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	assert.Equal(t, 0, hub.BroadcastToRoom(RoomAuthorities, EventNewSOSAlert, nil))
	assert.Equal(t, 0, hub.BroadcastToUser("ghost", EventNotification, nil))
	assert.Equal(t, 0, hub.BroadcastAll(EventSOSStatusUpdate, nil))
}

func TestUnregisterTouristNotifiesAuthorities(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	tc := register(t, hub, tourist)
	ac := register(t, hub, authority)

	hub.Unregister(tc)
	assert.Equal(t, int64(1), hub.GetConnectionCount())
	assert.Equal(t, 0, hub.GetUserConnections("t1"))
	assert.False(t, tc.Alive())

	_, open := <-tc.Send
	assert.False(t, open)

	msg := next(t, ac)
	assert.Equal(t, EventTouristOffline, msg.Event)
	data := msg.Data.(map[string]interface{})
	assert.Equal(t, "t1", data["touristId"])
	assert.Equal(t, "John Smith", data["touristName"])

	// authority leaving is silent, double unregister is harmless
	hub.Unregister(ac)
	hub.Unregister(ac)
	assert.Equal(t, int64(0), hub.GetConnectionCount())
	assert.Equal(t, 0, hub.GetRoomConnections(RoomAuthorities))
}

func TestDropOnFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MessageBufferSize = 1
	hub := NewHub(cfg)
	defer hub.Close()

	tc := register(t, hub, tourist)
	assert.Equal(t, 1, hub.BroadcastToUser("t1", EventNotification, 1))
	assert.Equal(t, 0, hub.BroadcastToUser("t1", EventNotification, 2))
	assert.Equal(t, int64(1), hub.Stats()["dropped"])
	next(t, tc)
}

func TestInboundDispatch(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	var got []string
	hub.SetEventHandler(EventHandlerFunc(func(ctx context.Context, conn *Connection, event string, data json.RawMessage) error {
		got = append(got, event)
		if event == EventSOSAcknowledge {
			return apperrors.Forbidden("only authorities can acknowledge")
		}
		return nil
	}))

	tc := register(t, hub, tourist)

	tc.handleMessage(context.Background(), []byte(`{"event":"ping"}`))
	assert.Equal(t, EventPong, next(t, tc).Event)

	tc.handleMessage(context.Background(), []byte(`{"event":"location_update","data":{"latitude":1,"longitude":2}}`))
	assertQuiet(t, tc)

	tc.handleMessage(context.Background(), []byte(`{"event":"sos_acknowledge","data":{"alertId":"x"}}`))
	msg := next(t, tc)
	assert.Equal(t, EventError, msg.Event)
	data := msg.Data.(map[string]interface{})
	assert.Equal(t, EventSOSAcknowledge, data["event"])
	assert.Equal(t, string(apperrors.KindForbidden), data["code"])

	tc.handleMessage(context.Background(), []byte(`not json`))
	assert.Equal(t, EventError, next(t, tc).Event)

	assert.Equal(t, []string{EventLocationUpdate, EventSOSAcknowledge}, got)
}

func TestTypingDedupe(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	tc := register(t, hub, tourist)
	ac := register(t, hub, authority)

	start := []byte(`{"event":"typing_start","data":{"chatId":"c1"}}`)
	stop := []byte(`{"event":"typing_stop","data":{"chatId":"c1"}}`)

	tc.handleMessage(context.Background(), start)
	msg := next(t, ac)
	assert.Equal(t, EventUserTyping, msg.Event)
	assert.Equal(t, "c1", msg.Data.(map[string]interface{})["chatId"])

	tc.handleMessage(context.Background(), start)
	assertQuiet(t, ac)

	tc.handleMessage(context.Background(), []byte(`{"event":"typing_start","data":{}}`))
	assertQuiet(t, ac)

	tc.handleMessage(context.Background(), stop)
	assert.Equal(t, EventUserStoppedTyping, next(t, ac).Event)
	tc.handleMessage(context.Background(), stop)
	assertQuiet(t, ac)

	// the sender never hears its own indicator
	assertQuiet(t, tc)
}

func TestServeWSEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(nil)
	defer hub.Close()

	identities := map[string]models.Identity{"t1": tourist, "a1": authority}
	handler := NewHandler(hub, func(c *gin.Context) (models.Identity, bool) {
		id, ok := identities[c.Query("token")]
		return id, ok
	})
	r := gin.New()
	RegisterRoutes(r, handler)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + RouteWebSocket

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=nope", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	authConn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=a1", nil)
	require.NoError(t, err)
	defer authConn.Close()
	readEvent(t, authConn, EventConnected)

	touristConn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=t1", nil)
	require.NoError(t, err)
	readEvent(t, touristConn, EventConnected)

	require.Eventually(t, func() bool { return hub.GetConnectionCount() == 2 }, time.Second, 10*time.Millisecond)
	hub.BroadcastToRoom(RoomAuthorities, EventNewSOSAlert, map[string]string{"alertId": "a"})
	readEvent(t, authConn, EventNewSOSAlert)

	require.NoError(t, touristConn.Close())
	readEvent(t, authConn, EventTouristOffline)
}

func readEvent(t *testing.T, c *websocket.Conn, want string) {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := c.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, want, msg.Event)
}

func TestWebSocketHandlerStats(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()
	handler := NewHandler(hub, nil)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, RouteWebSocketStats, nil)

	handler.GetStats(c)
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Contains(t, response, "total_connections")
	assert.Contains(t, response, "authority_connections")
}

func TestOriginChecker(t *testing.T) {
	open := originChecker(nil)
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "http://evil.example")
	assert.True(t, open(r))

	strict := originChecker([]string{"http://localhost:5173/"})
	assert.False(t, strict(r))
	r.Header.Set("Origin", "http://localhost:5173")
	assert.True(t, strict(r))
}

func TestConfigValidation(t *testing.T) {
	assert.NoError(t, ValidateConfig(DefaultConfig()))

	invalid := DefaultConfig()
	invalid.HeartbeatInterval = 60 * time.Second
	invalid.ConnectionTimeout = 30 * time.Second
	assert.Error(t, ValidateConfig(invalid))

	invalid = DefaultConfig()
	invalid.MessageBufferSize = 0
	assert.Error(t, ValidateConfig(invalid))
	assert.Error(t, ValidateConfig(nil))
}

func TestConfigLoading(t *testing.T) {
	t.Setenv(EnvWebSocketMaxConnections, "500")
	t.Setenv(EnvWebSocketHeartbeatInterval, "10")
	t.Setenv(EnvWebSocketDropOnFull, "false")
	t.Setenv(EnvWebSocketAllowedOrigins, "http://a.example,http://b.example")

	cfg := LoadConfigFromEnv()
	assert.Equal(t, int64(500), cfg.MaxConnections)
	assert.Equal(t, 10*time.Second, cfg.HeartbeatInterval)
	assert.False(t, cfg.DropOnFull)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)

	cloned := CloneConfig(cfg)
	cloned.AllowedOrigins[0] = "changed"
	assert.Equal(t, "http://a.example", cfg.AllowedOrigins[0])
}
