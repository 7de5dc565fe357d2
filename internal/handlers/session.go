package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"farmlens/api/internal/gate"
)

var watchUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the CORS middleware on the
	// handshake request.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type viewMessage struct {
	View  gate.View  `json:"view"`
	Event gate.Event `json:"event,omitempty"`
	Error string     `json:"error,omitempty"`
}

// watchRequest is a client frame. Navigation is the only thing the client may
// ask for; session transitions themselves are never client-originated.
type watchRequest struct {
	Navigate gate.View `json:"navigate"`
}

// WatchSession streams view transitions for the caller's identity. The
// connection starts in the workspace view (the caller holds a session).
// Clients may request navigation between views; whether it is allowed depends
// on session presence. Session transitions are provider-originated only: a
// sign-out lands on the landing view no matter what was visible.
func (h HandlerSet) WatchSession(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := watchUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("session watch upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := h.sessionHub.Subscribe(user.ID)
	defer cancel()

	g := gate.NewSignedIn()
	if err := conn.WriteJSON(viewMessage{View: g.View()}); err != nil {
		return
	}

	// All reads happen here; navigation requests hop to the write loop so a
	// single goroutine owns the connection writes.
	navigations := make(chan gate.View, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var req watchRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if req.Navigate == "" {
				continue
			}
			select {
			case navigations <- req.Navigate:
			default:
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case to := <-navigations:
			view, err := g.Navigate(to)
			msg := viewMessage{View: view}
			if err != nil {
				msg.Error = err.Error()
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			view := g.Apply(ev)
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(viewMessage{View: view, Event: ev}); err != nil {
				return
			}
			if view == gate.ViewLanding {
				// Session is gone; the stream has nothing more to say.
				return
			}
		}
	}
}
