package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmlens/api/internal/gate"
	"farmlens/api/internal/models"
)

func dialWatch(t *testing.T, hub *gate.Hub, userID string) *websocket.Conn {
	t.Helper()

	h := HandlerSet{log: zerolog.Nop(), sessionHub: hub}

	router := gin.New()
	router.GET("/watch", func(c *gin.Context) {
		c.Set("current_user", models.User{ID: userID})
		h.WatchSession(c)
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/watch"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readView(t *testing.T, conn *websocket.Conn) viewMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg viewMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWatchSessionStartsInWorkspace(t *testing.T) {
	conn := dialWatch(t, gate.NewHub(), "owner-1")

	msg := readView(t, conn)
	assert.Equal(t, gate.ViewWorkspace, msg.View)
	assert.Empty(t, msg.Event)
}

func TestWatchSessionSignOutLandsAndCloses(t *testing.T) {
	hub := gate.NewHub()
	conn := dialWatch(t, hub, "owner-1")

	first := readView(t, conn)
	require.Equal(t, gate.ViewWorkspace, first.View)

	// The subscription exists once the first frame arrived.
	hub.Publish("owner-1", gate.EventSignedOut)

	msg := readView(t, conn)
	assert.Equal(t, gate.ViewLanding, msg.View)
	assert.Equal(t, gate.EventSignedOut, msg.Event)

	// Landing ends the stream.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var extra viewMessage
	assert.Error(t, conn.ReadJSON(&extra))
}

func TestWatchSessionBlocksAuthFormsWhileSignedIn(t *testing.T) {
	conn := dialWatch(t, gate.NewHub(), "owner-1")

	first := readView(t, conn)
	require.Equal(t, gate.ViewWorkspace, first.View)

	require.NoError(t, conn.WriteJSON(watchRequest{Navigate: gate.ViewSignIn}))

	msg := readView(t, conn)
	assert.Equal(t, gate.ViewWorkspace, msg.View, "blocked navigation keeps the current view")
	assert.NotEmpty(t, msg.Error)
}

func TestWatchSessionAllowsNavigationToLanding(t *testing.T) {
	conn := dialWatch(t, gate.NewHub(), "owner-1")

	first := readView(t, conn)
	require.Equal(t, gate.ViewWorkspace, first.View)

	require.NoError(t, conn.WriteJSON(watchRequest{Navigate: gate.ViewLanding}))

	msg := readView(t, conn)
	assert.Equal(t, gate.ViewLanding, msg.View)
	assert.Empty(t, msg.Error)

	// User-initiated landing is just a view; the session is intact and the
	// stream stays open for further transitions.
	require.NoError(t, conn.WriteJSON(watchRequest{Navigate: gate.ViewWorkspace}))
	msg = readView(t, conn)
	assert.Equal(t, gate.ViewWorkspace, msg.View)
	assert.Empty(t, msg.Error)
}

func TestWatchSessionEventsDoNotLeakAcrossIdentities(t *testing.T) {
	hub := gate.NewHub()
	conn := dialWatch(t, hub, "owner-1")

	first := readView(t, conn)
	require.Equal(t, gate.ViewWorkspace, first.View)

	hub.Publish("owner-2", gate.EventSignedOut)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	var msg viewMessage
	assert.Error(t, conn.ReadJSON(&msg), "another identity's sign-out must not reach this stream")
}
