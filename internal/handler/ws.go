package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/barrinalo/CATMAID/internal/domain"
	"github.com/barrinalo/CATMAID/internal/live"
)

// WSHandler upgrades requests to websocket sessions on the live hub.
type WSHandler struct {
	hub      *live.Hub
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. Cross-origin upgrades are only
// accepted from the given origin.
func NewWSHandler(hub *live.Hub, allowedOrigin string) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

// Attach registers the connection as a live session for the authenticated
// user and blocks until the peer disconnects.
func (h *WSHandler) Attach(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response.
		slog.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return nil
	}

	session := h.hub.Attach(userID, conn)
	defer h.hub.Detach(session)

	// Inbound frames are ignored; the read loop only detects disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}
